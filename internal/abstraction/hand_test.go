package abstraction

import (
	"errors"
	rand "math/rand/v2"
	"testing"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
)

// stubOracle returns a fixed win probability and counts how often it is
// consulted, so tests can prove memoization.
type stubOracle struct {
	calls int
	win   float64
	err   error
}

func (s *stubOracle) Estimate(hole, board []deck.Card, opponents, samples int, rng *rand.Rand) (equity.Result, error) {
	s.calls++
	if s.err != nil {
		return equity.Result{}, s.err
	}
	return equity.Result{WinProb: s.win, Equity: s.win, Samples: samples}, nil
}

type oracleFunc func(hole, board []deck.Card, opponents, samples int, rng *rand.Rand) (equity.Result, error)

func (f oracleFunc) Estimate(hole, board []deck.Card, opponents, samples int, rng *rand.Rand) (equity.Result, error) {
	return f(hole, board, opponents, samples, rng)
}

func TestNewHandBucketerValidation(t *testing.T) {
	oracle := &stubOracle{win: 0.5}

	tests := []struct {
		name     string
		ceilings []float64
		samples  int
		wantErr  bool
	}{
		{"default ceilings", DefaultHandCeilings, DefaultBucketSamples, false},
		{"single ceiling", []float64{1.0}, 10, false},
		{"empty ceilings", nil, 10, true},
		{"descending", []float64{0.4, 0.2, 1.0}, 10, true},
		{"above one", []float64{0.5, 1.2}, 10, true},
		{"final not one", []float64{0.2, 0.9}, 10, true},
		{"zero samples", []float64{1.0}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewHandBucketer(oracle, tt.ceilings, tt.samples, 1)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewHandBucketer(%v) expected error, got nil", tt.ceilings)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHandBucketer(%v) error: %v", tt.ceilings, err)
			}
			if b.Buckets() != len(tt.ceilings) {
				t.Errorf("Buckets() = %d, want %d", b.Buckets(), len(tt.ceilings))
			}
		})
	}
}

func TestCeilingsReturnsCopy(t *testing.T) {
	b, err := NewHandBucketer(&stubOracle{win: 0.5}, DefaultHandCeilings, 10, 1)
	if err != nil {
		t.Fatalf("NewHandBucketer: %v", err)
	}
	got := b.Ceilings()
	got[0] = 99
	if b.Ceilings()[0] == 99 {
		t.Error("Ceilings() exposed internal slice")
	}
}

func TestBucketHandMemoized(t *testing.T) {
	oracle := &stubOracle{win: 0.5}
	b, err := NewHandBucketer(oracle, DefaultHandCeilings, 50, 1)
	if err != nil {
		t.Fatalf("NewHandBucketer: %v", err)
	}

	hole := deck.MustParseCards("AsKs")
	board := deck.MustParseCards("7h8d9c")

	first, err := b.BucketHand(hole, board, 1, 1)
	if err != nil {
		t.Fatalf("BucketHand: %v", err)
	}
	if oracle.calls != 1 {
		t.Fatalf("oracle consulted %d times after first lookup, want 1", oracle.calls)
	}

	// Same tuple again, and again with the card order permuted: both must
	// come from the cache with the same bucket.
	if got, _ := b.BucketHand(hole, board, 1, 1); got != first {
		t.Errorf("repeat lookup = %d, want %d", got, first)
	}
	permHole := deck.MustParseCards("KsAs")
	permBoard := deck.MustParseCards("9c7h8d")
	if got, _ := b.BucketHand(permHole, permBoard, 1, 1); got != first {
		t.Errorf("permuted lookup = %d, want %d", got, first)
	}
	if oracle.calls != 1 {
		t.Errorf("oracle consulted %d times after cached lookups, want 1", oracle.calls)
	}

	// Changing any tuple component is a distinct estimate.
	if _, err := b.BucketHand(hole, board, 2, 1); err != nil {
		t.Fatalf("BucketHand(street 2): %v", err)
	}
	if _, err := b.BucketHand(hole, board, 1, 2); err != nil {
		t.Fatalf("BucketHand(2 opponents): %v", err)
	}
	if oracle.calls != 3 {
		t.Errorf("oracle consulted %d times, want 3", oracle.calls)
	}

	stats := b.Stats()
	if stats.Lookups != 5 {
		t.Errorf("Stats().Lookups = %d, want 5", stats.Lookups)
	}
	if stats.Hits != 2 {
		t.Errorf("Stats().Hits = %d, want 2", stats.Hits)
	}
}

func TestBucketHandBinMapping(t *testing.T) {
	tests := []struct {
		winProb float64
		want    int
	}{
		{0.0, 0},
		{0.2, 0}, // boundary belongs to the lower bin
		{0.21, 1},
		{0.55, 2},
		{0.8, 3},
		{0.81, 4},
		{1.0, 4},
	}

	for i, tt := range tests {
		win := tt.winProb
		oracle := oracleFunc(func(hole, board []deck.Card, opponents, samples int, rng *rand.Rand) (equity.Result, error) {
			return equity.Result{WinProb: win, Samples: samples}, nil
		})
		b, err := NewHandBucketer(oracle, DefaultHandCeilings, 10, 1)
		if err != nil {
			t.Fatalf("NewHandBucketer: %v", err)
		}
		got, err := b.BucketHand(deck.MustParseCards("AsKs"), nil, 0, i+1)
		if err != nil {
			t.Fatalf("BucketHand(win=%v): %v", tt.winProb, err)
		}
		if got != tt.want {
			t.Errorf("bucket for win prob %v = %d, want %d", tt.winProb, got, tt.want)
		}
	}
}

func TestBucketHandSingleCeiling(t *testing.T) {
	b, err := NewHandBucketer(&stubOracle{win: 0.97}, []float64{1.0}, 10, 1)
	if err != nil {
		t.Fatalf("NewHandBucketer: %v", err)
	}
	for _, hole := range []string{"AsAh", "7d2c"} {
		got, err := b.BucketHand(deck.MustParseCards(hole), nil, 0, 1)
		if err != nil {
			t.Fatalf("BucketHand(%s): %v", hole, err)
		}
		if got != 0 {
			t.Errorf("single-ceiling bucket for %s = %d, want 0", hole, got)
		}
	}
}

func TestBucketHandErrorNotCached(t *testing.T) {
	oracle := &stubOracle{win: 0.5, err: errors.New("sampling failed")}
	b, err := NewHandBucketer(oracle, DefaultHandCeilings, 10, 1)
	if err != nil {
		t.Fatalf("NewHandBucketer: %v", err)
	}

	hole := deck.MustParseCards("AsKs")
	if _, err := b.BucketHand(hole, nil, 0, 1); err == nil {
		t.Fatal("BucketHand expected oracle error, got nil")
	}

	// The failed estimate must not poison the cache.
	oracle.err = nil
	if _, err := b.BucketHand(hole, nil, 0, 1); err != nil {
		t.Fatalf("BucketHand after oracle recovery: %v", err)
	}
	if oracle.calls != 2 {
		t.Errorf("oracle consulted %d times, want 2", oracle.calls)
	}
}

func TestBucketHandSeedDeterminism(t *testing.T) {
	// The estimate stream for a tuple derives from the bucketer seed and the
	// tuple alone, so lookup order must not change any bucket. A bucketer
	// rebuilt with the same seed after a restart has to agree with the one
	// it replaces.
	oracle := oracleFunc(func(hole, board []deck.Card, opponents, samples int, rng *rand.Rand) (equity.Result, error) {
		return equity.Result{WinProb: rng.Float64(), Samples: samples}, nil
	})

	lookups := []struct {
		hole   string
		board  string
		street int
	}{
		{"AsKs", "", 0},
		{"7d2c", "", 0},
		{"AsKs", "7h8d9c", 1},
		{"QhQd", "7h8d9c", 1},
	}

	run := func(order []int) map[int]int {
		b, err := NewHandBucketer(oracle, DefaultHandCeilings, 10, 42)
		if err != nil {
			t.Fatalf("NewHandBucketer: %v", err)
		}
		out := make(map[int]int)
		for _, i := range order {
			l := lookups[i]
			var board []deck.Card
			if l.board != "" {
				board = deck.MustParseCards(l.board)
			}
			bucket, err := b.BucketHand(deck.MustParseCards(l.hole), board, l.street, 1)
			if err != nil {
				t.Fatalf("BucketHand(%s): %v", l.hole, err)
			}
			out[i] = bucket
		}
		return out
	}

	forward := run([]int{0, 1, 2, 3})
	reversed := run([]int{3, 2, 1, 0})
	for i := range lookups {
		if forward[i] != reversed[i] {
			t.Errorf("lookup %d bucket depends on order: %d vs %d", i, forward[i], reversed[i])
		}
	}
}

func TestBucketHandStreetRange(t *testing.T) {
	b, err := NewHandBucketer(&stubOracle{win: 0.5}, DefaultHandCeilings, 10, 1)
	if err != nil {
		t.Fatalf("NewHandBucketer: %v", err)
	}
	for _, street := range []int{-1, 4} {
		if _, err := b.BucketHand(deck.MustParseCards("AsKs"), nil, street, 1); err == nil {
			t.Errorf("BucketHand(street=%d) expected error, got nil", street)
		}
	}
}
