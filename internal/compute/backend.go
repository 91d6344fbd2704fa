// Package compute abstracts the batched numeric work of training so it can
// run in-process or on an external accelerator service. The CPU
// implementation is the correctness baseline: every other backend must
// produce the same results on the same inputs.
package compute

import (
	"context"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
)

// EquityRequest asks for equity estimates for a batch of hole-card hands
// sharing one board. Seed fixes the sampling streams: hand i draws from the
// stream derived for index i, so a fixed-seed batch is reproducible no
// matter which backend serves it.
type EquityRequest struct {
	Hands     [][]deck.Card
	Board     []deck.Card
	Opponents int
	Samples   int
	Seed      int64
}

// RegretUpdate carries one information set's accumulator state through a
// regret-matching update. Regrets, StrategySums, Strategy and Utilities are
// indexed by the node's action order and must share a length.
type RegretUpdate struct {
	Key           string    `json:"key"`
	Regrets       []float64 `json:"regrets"`
	StrategySums  []float64 `json:"strategySums"`
	Strategy      []float64 `json:"strategy"`
	Utilities     []float64 `json:"utilities"`
	OwnReach      float64   `json:"ownReach"`
	OpponentReach float64   `json:"opponentReach"`
}

// RegretResult is the updated accumulator state for one information set.
type RegretResult struct {
	Key          string    `json:"key"`
	Regrets      []float64 `json:"regrets"`
	StrategySums []float64 `json:"strategySums"`
}

// Backend executes the batched numeric work of a training iteration.
type Backend interface {
	// Name identifies the backend in logs and the end-of-run report.
	Name() string

	// BatchEquity estimates equity for every hand in the request,
	// returning results in hand order.
	BatchEquity(ctx context.Context, req EquityRequest) ([]equity.Result, error)

	// BatchRegretUpdate advances each entry's accumulators by the
	// regret-matching update rule, returning results in input order.
	BatchRegretUpdate(ctx context.Context, updates []RegretUpdate) ([]RegretResult, error)

	// Close releases any resources held by the backend.
	Close() error
}
