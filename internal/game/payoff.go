package game

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kevsman/pokerplayer-sub002/internal/evaluator"
)

// pot is one side-pot layer: chips contested by the seats eligible for it.
type pot struct {
	amount   int
	eligible []int
}

// pots layers total contributions into main and side pots. Layers are cut
// at each distinct surviving contribution level; a layer with a single
// eligible seat is that seat's uncalled excess and flows straight back via
// the payoff. Folded contributions are captured by the layers they reach.
func (s *State) pots() []pot {
	var levels []int
	seen := make(map[int]struct{})
	for _, p := range s.Players {
		if p.Folded || p.TotalBet == 0 {
			continue
		}
		if _, ok := seen[p.TotalBet]; ok {
			continue
		}
		seen[p.TotalBet] = struct{}{}
		levels = append(levels, p.TotalBet)
	}
	sort.Ints(levels)

	var pots []pot
	prev := 0
	for _, level := range levels {
		pt := pot{}
		for _, p := range s.Players {
			if contrib := min(p.TotalBet, level) - prev; contrib > 0 {
				pt.amount += contrib
			}
		}
		for _, p := range s.Players {
			if !p.Folded && p.TotalBet >= level {
				pt.eligible = append(pt.eligible, p.Seat)
			}
		}
		if pt.amount > 0 && len(pt.eligible) > 0 {
			pots = append(pots, pt)
		}
		prev = level
	}
	return pots
}

// Payoffs resolves a terminal state into per-seat chip deltas. Each seat
// starts down its total contribution; pot shares are added back. Chips
// committed above the largest surviving stake were never callable and
// return to their contributor first. A lone survivor scoops without a
// showdown; otherwise every remaining hand is ranked once and each pot
// splits evenly among its best eligible hands. The deltas always sum to
// zero.
func (s *State) Payoffs(eval evaluator.Evaluator) ([]float64, error) {
	if !s.IsTerminal() {
		return nil, errors.New("game: hand still in progress")
	}

	payoffs := make([]float64, len(s.Players))
	top := 0
	for i, p := range s.Players {
		payoffs[i] = -float64(p.TotalBet)
		if !p.Folded && p.TotalBet > top {
			top = p.TotalBet
		}
	}
	// Only a fold can leave a contribution above every survivor's stake;
	// that uncalled part returns to its contributor.
	for i, p := range s.Players {
		if p.TotalBet > top {
			payoffs[i] += float64(p.TotalBet - top)
		}
	}

	if s.ActiveCount() == 1 {
		survivor := -1
		total := 0
		for i, p := range s.Players {
			total += min(p.TotalBet, top)
			if !p.Folded {
				survivor = i
			}
		}
		payoffs[survivor] += float64(total)
		return payoffs, nil
	}

	community := s.Community()
	ranks := make([]evaluator.Rank, len(s.Players))
	ranked := make([]bool, len(s.Players))
	for i, p := range s.Players {
		if p.Folded {
			continue
		}
		r, err := eval.Evaluate(p.Hole, community)
		if err != nil {
			return nil, fmt.Errorf("game: showdown seat %d: %w", i, err)
		}
		ranks[i] = r
		ranked[i] = true
	}

	for _, pt := range s.pots() {
		var best []int
		for _, seat := range pt.eligible {
			if !ranked[seat] {
				continue
			}
			if len(best) == 0 {
				best = append(best, seat)
				continue
			}
			switch eval.Compare(ranks[seat], ranks[best[0]]) {
			case 1:
				best = append(best[:0], seat)
			case 0:
				best = append(best, seat)
			}
		}
		if len(best) == 0 {
			continue
		}
		share := float64(pt.amount) / float64(len(best))
		for _, seat := range best {
			payoffs[seat] += share
		}
	}
	return payoffs, nil
}
