// Package abstraction compresses concrete poker states into the small
// discrete spaces the trainer learns over: hand-strength buckets from Monte
// Carlo equity, board-texture buckets from suit and rank shape, and the
// information-set keys that combine them with the betting history.
package abstraction

import (
	"sort"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
)

// BoardBucketCount is the number of texture categories BucketBoard produces.
const BoardBucketCount = 6

// BucketBoard maps community cards to a texture bucket, 0 (driest) through
// 5 (most dangerous). The mapping is fully deterministic: preflop is always
// 0, a paired flush-heavy board is always 5, and a rainbow disconnected
// unpaired flop stays at 0. Wetness is judged on flush potential first,
// board pairing second, connectivity last.
func BucketBoard(community []deck.Card, street int) int {
	if street == 0 || len(community) < 3 {
		return 0
	}

	shape := analyzeBoard(community)

	flushHeavy := shape.monotone || shape.maxSuitCount >= 4
	switch {
	case shape.pairedRanks > 0 && flushHeavy:
		return 5
	case flushHeavy:
		return 4
	case shape.pairedRanks > 0:
		return 3
	case shape.maxSuitCount == 3 || shape.maxConnected >= 3:
		return 2
	case shape.maxConnected == 2 || shape.maxSuitCount == 2:
		return 1
	default:
		return 0
	}
}

// boardShape summarizes suit duplication, pairing and rank connectivity
type boardShape struct {
	maxSuitCount int
	monotone     bool // every card shares one suit
	rainbow      bool // no suit appears twice
	pairedRanks  int  // distinct ranks appearing 2+ times
	maxConnected int  // longest run of adjacent distinct ranks, wheel-aware
}

func analyzeBoard(community []deck.Card) boardShape {
	var suitCounts [4]int
	var rankCounts [15]int // indexed by Rank (2..14)

	for _, c := range community {
		suitCounts[c.Suit]++
		rankCounts[c.Rank]++
	}

	shape := boardShape{maxConnected: 1}

	suitsPresent := 0
	for _, n := range suitCounts {
		if n > 0 {
			suitsPresent++
		}
		if n > shape.maxSuitCount {
			shape.maxSuitCount = n
		}
	}
	shape.monotone = suitsPresent == 1
	shape.rainbow = suitsPresent == len(community)

	for _, n := range rankCounts {
		if n >= 2 {
			shape.pairedRanks++
		}
	}

	// Longest run over distinct sorted ranks, counting the ace low as well
	// as high so wheel boards register as connected.
	ranks := make([]int, 0, len(community)+1)
	for r := int(deck.Two); r <= int(deck.Ace); r++ {
		if rankCounts[r] > 0 {
			ranks = append(ranks, r)
		}
	}
	if rankCounts[deck.Ace] > 0 {
		ranks = append([]int{1}, ranks...)
	}
	sort.Ints(ranks)

	run := 1
	for i := 1; i < len(ranks); i++ {
		if ranks[i] == ranks[i-1]+1 {
			run++
			if run > shape.maxConnected {
				shape.maxConnected = run
			}
		} else {
			run = 1
		}
	}

	return shape
}
