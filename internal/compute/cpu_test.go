package compute

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
	"github.com/kevsman/pokerplayer-sub002/internal/evaluator"
)

func newCPUForTest() *CPUBackend {
	return NewCPU(equity.NewMonteCarlo(evaluator.NewPaulHankin()))
}

func TestCPUBatchEquityReproducible(t *testing.T) {
	backend := newCPUForTest()
	req := EquityRequest{
		Hands: [][]deck.Card{
			deck.MustParseCards("AsAh"),
			deck.MustParseCards("7d2c"),
		},
		Board:     deck.MustParseCards("KsTd4c"),
		Opponents: 1,
		Samples:   300,
		Seed:      42,
	}

	first, err := backend.BatchEquity(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := backend.BatchEquity(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same seed must reproduce the same estimates")

	assert.Greater(t, first[0].WinProb, first[1].WinProb, "aces should beat seven-deuce")
}

func TestCPUBatchEquityPropagatesDataErrors(t *testing.T) {
	backend := newCPUForTest()
	req := EquityRequest{
		Hands:     [][]deck.Card{deck.MustParseCards("AsAh"), deck.MustParseCards("KsKs")},
		Opponents: 1,
		Samples:   10,
		Seed:      1,
	}

	_, err := backend.BatchEquity(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hand 1")
}

func TestCPUBatchEquityHonorsCancel(t *testing.T) {
	backend := newCPUForTest()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.BatchEquity(ctx, EquityRequest{
		Hands:     [][]deck.Card{deck.MustParseCards("AsAh")},
		Opponents: 1,
		Samples:   10,
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCPUBatchRegretUpdate(t *testing.T) {
	backend := newCPUForTest()
	updates := []RegretUpdate{{
		Key:           "1|3|0|xr|call,fold",
		Regrets:       []float64{1, -2},
		StrategySums:  []float64{0.5, 0.25},
		Strategy:      []float64{0.75, 0.25},
		Utilities:     []float64{2, -2},
		OwnReach:      0.5,
		OpponentReach: 0.25,
	}}

	results, err := backend.BatchRegretUpdate(context.Background(), updates)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Node expectation 0.75*2 + 0.25*(-2) = 1. Regrets move by
	// 0.25*(u-1), strategy sums by 0.5*strategy.
	assert.Equal(t, RegretResult{
		Key:          "1|3|0|xr|call,fold",
		Regrets:      []float64{1.25, -2.75},
		StrategySums: []float64{0.875, 0.375},
	}, results[0])
}

func TestCPUBatchRegretUpdateLeavesInputsIntact(t *testing.T) {
	backend := newCPUForTest()
	update := RegretUpdate{
		Regrets:       []float64{1, 1},
		StrategySums:  []float64{1, 1},
		Strategy:      []float64{0.5, 0.5},
		Utilities:     []float64{3, -1},
		OwnReach:      1,
		OpponentReach: 1,
	}

	_, err := backend.BatchRegretUpdate(context.Background(), []RegretUpdate{update})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 1}, update.Regrets)
	assert.Equal(t, []float64{1, 1}, update.StrategySums)
}

func TestCPUBatchRegretUpdateRejectsMismatchedVectors(t *testing.T) {
	backend := newCPUForTest()

	cases := []struct {
		name   string
		update RegretUpdate
	}{
		{
			name:   "empty strategy",
			update: RegretUpdate{Key: "empty"},
		},
		{
			name: "short regrets",
			update: RegretUpdate{
				Key:          "short",
				Regrets:      []float64{0},
				StrategySums: []float64{0, 0},
				Strategy:     []float64{0.5, 0.5},
				Utilities:    []float64{1, -1},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := backend.BatchRegretUpdate(context.Background(), []RegretUpdate{tc.update})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.update.Key)
		})
	}
}
