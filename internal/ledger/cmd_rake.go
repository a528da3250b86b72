package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/riverfelt/platform/internal/domain"
)

// WinnerShare is one winner's fractional share of the net pot.
type WinnerShare struct {
	PlayerID string  `json:"playerId"`
	Share    float64 `json:"share"`
}

// CollectRakeParams extracts rake from a pot and pays out the remainder in
// one atomic step. Exactly one of WinnerPlayerID or Winners must be set.
type CollectRakeParams struct {
	TableID        string
	HandID         string
	PotAmount      int64
	RakePercentage float64
	MaxRake        int64
	WinnerPlayerID string
	Winners        []WinnerShare
}

// CollectRakeResult reports the split.
type CollectRakeResult struct {
	Rake         int64            `json:"rake"`
	NetPot       int64            `json:"netPot"`
	HouseBalance int64            `json:"houseBalance"`
	Payouts      map[string]int64 `json:"payouts"`
}

// CollectRake computes rake = min(floor(pot * pct / 100), maxRake), credits
// it to the lazily created house wallet, and pays the net pot to the
// winner(s). Multi-winner payouts floor each share; the rounding remainder is
// retained rather than redistributed.
func (e *Engine) CollectRake(ctx context.Context, p CollectRakeParams) (*CollectRakeResult, error) {
	if err := domain.ValidateTableID(p.TableID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateHandID(p.HandID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePositiveAmount("potAmount", p.PotAmount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if p.RakePercentage < 0 || p.RakePercentage > 100 {
		return nil, domain.ErrValidation(fmt.Sprintf("rakePercentage must be in [0,100], got %v", p.RakePercentage))
	}
	if err := domain.ValidateNonNegativeAmount("maxRake", p.MaxRake); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	single := p.WinnerPlayerID != ""
	if single == (len(p.Winners) > 0) {
		return nil, domain.ErrValidation("exactly one of winnerPlayerId or winners must be provided")
	}

	winners := p.Winners
	if single {
		winners = []WinnerShare{{PlayerID: p.WinnerPlayerID, Share: 1}}
	}
	players := []string{domain.HousePlayerID}
	for _, w := range winners {
		if err := domain.ValidatePlayerID("winners[].playerId", w.PlayerID); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		if w.Share <= 0 || w.Share > 1 {
			return nil, domain.ErrValidation(fmt.Sprintf("share for %s must be in (0,1], got %v", w.PlayerID, w.Share))
		}
		players = append(players, w.PlayerID)
	}

	rake := int64(math.Floor(float64(p.PotAmount) * p.RakePercentage / 100))
	if rake > p.MaxRake {
		rake = p.MaxRake
	}
	netPot := p.PotAmount - rake

	release, err := e.locks.AcquireMany(ctx, players)
	if err != nil {
		return nil, domain.ErrInternal("acquire wallet locks", err)
	}
	defer release()

	now := e.now()
	e.mu.Lock()
	e.sweepLocked(now)
	pre := e.captureLocked(true, players...)

	house, ok := e.state.Wallets[domain.HousePlayerID]
	if !ok {
		// The house wallet opens empty and carries no synthetic deposit; the
		// rake entry below is its first journal record.
		house = e.createWalletLocked(domain.HousePlayerID, 0, false, now)
	}
	house.Balance += rake
	house.LastUpdated = now
	entries := []*domain.JournalEntry{
		e.appendEntryLocked(&domain.JournalEntry{
			PlayerID:    domain.HousePlayerID,
			Kind:        domain.KindRake,
			Amount:      rake,
			PostBalance: house.Balance,
			TableID:     p.TableID,
			HandID:      p.HandID,
			Metadata: map[string]any{
				"potAmount":      p.PotAmount,
				"rakePercentage": p.RakePercentage,
				"maxRake":        p.MaxRake,
			},
		}, now),
	}

	payouts := make(map[string]int64, len(winners))
	for _, ws := range winners {
		payout := int64(math.Floor(float64(netPot) * ws.Share))
		if single {
			payout = netPot
		}
		w := e.getOrCreateLocked(ws.PlayerID, now)
		w.Balance += payout
		w.LastUpdated = now
		entries = append(entries, e.appendEntryLocked(&domain.JournalEntry{
			PlayerID:    ws.PlayerID,
			Kind:        domain.KindWin,
			Amount:      payout,
			PostBalance: w.Balance,
			TableID:     p.TableID,
			HandID:      p.HandID,
			Metadata:    map[string]any{"share": ws.Share, "netPot": netPot},
		}, now))
		payouts[ws.PlayerID] = payout
	}

	for _, label := range periodLabels(now) {
		stats, ok := e.state.RakeStats[label]
		if !ok {
			stats = &domain.RakeStats{Period: label}
			e.state.RakeStats[label] = stats
		}
		stats.TotalRake += rake
		stats.HandCount++
		stats.LastUpdated = now
	}

	result := &CollectRakeResult{
		Rake:         rake,
		NetPot:       netPot,
		HouseBalance: house.Balance,
		Payouts:      payouts,
	}
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, entries...)

	e.logger.Info("rake collected",
		"table_id", p.TableID, "hand_id", p.HandID,
		"pot", p.PotAmount, "rake", rake, "net_pot", netPot)
	return result, nil
}
