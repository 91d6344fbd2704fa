package compute

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/kevsman/pokerplayer-sub002/internal/equity"
)

// FallbackBackend guards training against accelerator loss. Calls go to the
// primary backend until its first failure; from then on every call runs on
// the CPU reference instead. The failing call itself is retried on the CPU,
// so callers never see the accelerator error.
type FallbackBackend struct {
	primary Backend
	cpu     *CPUBackend
	logger  *log.Logger

	demoted  atomic.Bool
	failures atomic.Uint64
	warnOnce sync.Once
}

// NewFallback wraps primary with a permanent CPU fallback.
func NewFallback(primary Backend, cpu *CPUBackend, logger *log.Logger) *FallbackBackend {
	return &FallbackBackend{
		primary: primary,
		cpu:     cpu,
		logger:  logger.WithPrefix("compute"),
	}
}

// Name implements Backend. It reports the backend currently serving calls.
func (f *FallbackBackend) Name() string {
	if f.demoted.Load() {
		return f.cpu.Name()
	}
	return f.primary.Name()
}

// Failures returns how many accelerator calls have failed. The end-of-run
// report surfaces this count.
func (f *FallbackBackend) Failures() uint64 { return f.failures.Load() }

// BatchEquity implements Backend
func (f *FallbackBackend) BatchEquity(ctx context.Context, req EquityRequest) ([]equity.Result, error) {
	if f.demoted.Load() {
		return f.cpu.BatchEquity(ctx, req)
	}

	results, err := f.primary.BatchEquity(ctx, req)
	if err != nil {
		if isCallerCancel(err) {
			return nil, err
		}
		f.demote(err)
		return f.cpu.BatchEquity(ctx, req)
	}
	return results, nil
}

// BatchRegretUpdate implements Backend
func (f *FallbackBackend) BatchRegretUpdate(ctx context.Context, updates []RegretUpdate) ([]RegretResult, error) {
	if f.demoted.Load() {
		return f.cpu.BatchRegretUpdate(ctx, updates)
	}

	results, err := f.primary.BatchRegretUpdate(ctx, updates)
	if err != nil {
		if isCallerCancel(err) {
			return nil, err
		}
		f.demote(err)
		return f.cpu.BatchRegretUpdate(ctx, updates)
	}
	return results, nil
}

// demote records an accelerator failure and routes all future work to the
// CPU reference. The warning is logged once per run.
func (f *FallbackBackend) demote(err error) {
	f.failures.Add(1)
	f.demoted.Store(true)
	f.warnOnce.Do(func() {
		f.logger.Warn("Accelerator failed, continuing on CPU", "backend", f.primary.Name(), "error", err)
	})
}

// Close implements Backend
func (f *FallbackBackend) Close() error {
	err := f.primary.Close()
	if cerr := f.cpu.Close(); err == nil {
		err = cerr
	}
	return err
}

// isCallerCancel separates the caller giving up from the accelerator
// failing; a canceled context must not demote the primary backend.
func isCallerCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
