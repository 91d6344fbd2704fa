package abstraction

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
	"github.com/kevsman/pokerplayer-sub002/internal/randutil"
)

// DefaultHandCeilings are the win-probability bin ceilings for the five
// hand-strength buckets.
var DefaultHandCeilings = []float64{0.2, 0.4, 0.6, 0.8, 1.0}

// DefaultBucketSamples is the per-bucket Monte Carlo sample count. It is
// deliberately small: abstraction consistency comes from memoization, not
// from per-call precision, and bucketing sits on the hot path.
const DefaultBucketSamples = 120

// CacheStats reports bucket cache effectiveness for the run report
type CacheStats struct {
	Lookups uint64
	Hits    uint64
}

// HandBucketer maps (hole, community, street, opponents) tuples to
// hand-strength buckets. Every distinct tuple is estimated once per run and
// memoized; repeated lookups return the cached bucket rather than
// resampling, so a given deal always lands in the same information set.
//
// Each tuple samples from a stream derived from the base seed and the tuple
// itself, never from a shared cursor. A bucket therefore depends only on the
// tuple and the seed, so a trainer resuming with a cold cache rebuilds
// exactly the buckets the interrupted run used.
type HandBucketer struct {
	oracle   equity.Oracle
	ceilings []float64
	samples  int
	seed     int64

	mu      sync.Mutex
	cache   map[bucketKey]int
	lookups uint64
	hits    uint64
}

type bucketKey struct {
	hole      string
	community string
	street    int
	opponents int
}

// NewHandBucketer creates a bucketer with the given bin ceilings. Ceilings
// must be ascending and end at 1.0. A single ceiling of 1.0 collapses the
// abstraction to one bucket.
func NewHandBucketer(oracle equity.Oracle, ceilings []float64, samples int, seed int64) (*HandBucketer, error) {
	if err := ValidateCeilings(ceilings); err != nil {
		return nil, err
	}
	if samples < 1 {
		return nil, fmt.Errorf("abstraction: bucket samples must be positive, got %d", samples)
	}
	return &HandBucketer{
		oracle:   oracle,
		ceilings: ceilings,
		samples:  samples,
		seed:     seed,
		cache:    make(map[bucketKey]int),
	}, nil
}

// ValidateCeilings checks that bin ceilings ascend within (0,1] and end
// exactly at 1.0.
func ValidateCeilings(ceilings []float64) error {
	if len(ceilings) == 0 {
		return fmt.Errorf("abstraction: at least one bin ceiling required")
	}
	prev := 0.0
	for i, c := range ceilings {
		if c <= prev || c > 1.0 {
			return fmt.Errorf("abstraction: ceilings must ascend within (0,1], got %v at %d", c, i)
		}
		prev = c
	}
	if ceilings[len(ceilings)-1] != 1.0 {
		return fmt.Errorf("abstraction: final ceiling must be 1.0, got %v", ceilings[len(ceilings)-1])
	}
	return nil
}

// Buckets returns the number of hand buckets this abstraction produces
func (b *HandBucketer) Buckets() int {
	return len(b.ceilings)
}

// Ceilings returns a copy of the configured bin ceilings
func (b *HandBucketer) Ceilings() []float64 {
	out := make([]float64, len(b.ceilings))
	copy(out, b.ceilings)
	return out
}

// Samples returns the per-estimate Monte Carlo sample count
func (b *HandBucketer) Samples() int {
	return b.samples
}

// Seed returns the seed the per-hand estimate streams derive from
func (b *HandBucketer) Seed() int64 {
	return b.seed
}

// BucketHand maps a hand to its strength bucket for the given street and
// opponent count. The result is memoized for the life of the bucketer.
func (b *HandBucketer) BucketHand(hole, community []deck.Card, street, opponents int) (int, error) {
	if street < 0 || street > 3 {
		return 0, fmt.Errorf("abstraction: street %d out of range", street)
	}

	key := bucketKey{
		hole:      canonical(hole),
		community: canonical(community),
		street:    street,
		opponents: opponents,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lookups++
	if bucket, ok := b.cache[key]; ok {
		b.hits++
		return bucket, nil
	}

	rng := randutil.New(randutil.Derive(b.seed, hashTuple(key)))
	res, err := b.oracle.Estimate(hole, community, opponents, b.samples, rng)
	if err != nil {
		return 0, fmt.Errorf("abstraction: bucket estimate: %w", err)
	}

	bucket := b.binFor(res.WinProb)
	b.cache[key] = bucket
	return bucket, nil
}

func hashTuple(key bucketKey) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key.hole))
	h.Write([]byte{0})
	h.Write([]byte(key.community))
	h.Write([]byte{0, byte(key.street), byte(key.opponents)})
	return h.Sum64()
}

// Stats returns cache instrumentation for the run report
func (b *HandBucketer) Stats() CacheStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return CacheStats{Lookups: b.lookups, Hits: b.hits}
}

func (b *HandBucketer) binFor(winProb float64) int {
	for i, ceiling := range b.ceilings {
		if winProb <= ceiling {
			return i
		}
	}
	return len(b.ceilings) - 1
}

// canonical renders cards order-independently so that the same physical
// hand always produces the same cache key.
func canonical(cards []deck.Card) string {
	if len(cards) == 0 {
		return ""
	}
	sorted := make([]deck.Card, len(cards))
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index() < sorted[j].Index() })
	return deck.FormatCards(sorted)
}
