package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
)

// Frame kinds exchanged with an accelerator service.
const (
	kindBatchEquity = "batch_equity"
	kindBatchRegret = "batch_regret_update"
)

// DefaultRemoteTimeout bounds a request round-trip when RemoteOptions does
// not say otherwise.
const DefaultRemoteTimeout = 30 * time.Second

// ErrRemoteClosed reports that the accelerator connection is gone. Calls in
// flight when the connection drops fail with it.
var ErrRemoteClosed = errors.New("compute: accelerator connection closed")

// frame is the wire envelope. Requests and replies share it: a reply
// carries the id of the request it answers, and a failed request comes
// back with Error set instead of Data.
type frame struct {
	ID    string          `json:"id"`
	Kind  string          `json:"kind"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// equityPayload is an EquityRequest with cards flattened to card notation.
type equityPayload struct {
	Hands     []string `json:"hands"`
	Board     string   `json:"board"`
	Opponents int      `json:"opponents"`
	Samples   int      `json:"samples"`
	Seed      int64    `json:"seed"`
}

type equityResult struct {
	WinProb float64 `json:"winProb"`
	TieProb float64 `json:"tieProb"`
	Equity  float64 `json:"equity"`
	Samples int     `json:"samples"`
}

type equityReply struct {
	Results []equityResult `json:"results"`
}

type regretPayload struct {
	Updates []RegretUpdate `json:"updates"`
}

type regretReply struct {
	Results []RegretResult `json:"results"`
}

// RemoteOptions configures a remote backend connection.
type RemoteOptions struct {
	// Timeout bounds each request round-trip. Zero means DefaultRemoteTimeout.
	Timeout time.Duration

	// Clock drives the request timers. Nil means the real clock.
	Clock quartz.Clock

	// Logger receives connection lifecycle and failure logs.
	Logger *log.Logger
}

// RemoteBackend executes batches on an external accelerator service over a
// websocket connection. Requests are matched to replies by id, so several
// calls can be in flight on one connection.
type RemoteBackend struct {
	conn    *websocket.Conn
	logger  *log.Logger
	clock   quartz.Clock
	timeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan frame

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// DialRemote connects to an accelerator service. http and https URLs are
// rewritten to their websocket schemes and the compute endpoint path.
func DialRemote(ctx context.Context, serverURL string, opts RemoteOptions) (*RemoteBackend, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("compute: invalid accelerator URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/compute"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("compute: dial accelerator: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRemoteTimeout
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	bctx, cancel := context.WithCancel(context.Background())
	b := &RemoteBackend{
		conn:    conn,
		logger:  opts.Logger.WithPrefix("compute-remote"),
		clock:   opts.Clock,
		timeout: opts.Timeout,
		pending: make(map[string]chan frame),
		ctx:     bctx,
		cancel:  cancel,
	}
	go b.readPump()

	b.logger.Info("Connected to accelerator", "url", u.String())
	return b, nil
}

// Name implements Backend
func (b *RemoteBackend) Name() string { return "remote" }

// BatchEquity implements Backend
func (b *RemoteBackend) BatchEquity(ctx context.Context, req EquityRequest) ([]equity.Result, error) {
	payload := equityPayload{
		Hands:     make([]string, len(req.Hands)),
		Board:     deck.FormatCards(req.Board),
		Opponents: req.Opponents,
		Samples:   req.Samples,
		Seed:      req.Seed,
	}
	for i, hand := range req.Hands {
		payload.Hands[i] = deck.FormatCards(hand)
	}

	var reply equityReply
	if err := b.call(ctx, kindBatchEquity, payload, &reply); err != nil {
		return nil, err
	}
	if len(reply.Results) != len(req.Hands) {
		return nil, fmt.Errorf("compute: accelerator returned %d results for %d hands", len(reply.Results), len(req.Hands))
	}

	results := make([]equity.Result, len(reply.Results))
	for i, r := range reply.Results {
		results[i] = equity.Result{WinProb: r.WinProb, TieProb: r.TieProb, Equity: r.Equity, Samples: r.Samples}
	}
	return results, nil
}

// BatchRegretUpdate implements Backend
func (b *RemoteBackend) BatchRegretUpdate(ctx context.Context, updates []RegretUpdate) ([]RegretResult, error) {
	var reply regretReply
	if err := b.call(ctx, kindBatchRegret, regretPayload{Updates: updates}, &reply); err != nil {
		return nil, err
	}
	if len(reply.Results) != len(updates) {
		return nil, fmt.Errorf("compute: accelerator returned %d results for %d updates", len(reply.Results), len(updates))
	}
	return reply.Results, nil
}

// call sends one request frame and waits for its reply, the request
// timeout, context cancellation, or connection loss, whichever comes first.
func (b *RemoteBackend) call(ctx context.Context, kind string, payload any, reply any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("compute: marshal %s request: %w", kind, err)
	}

	req := frame{ID: uuid.NewString(), Kind: kind, Data: data}
	ch := make(chan frame, 1)

	b.mu.Lock()
	b.pending[req.ID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	if err := b.write(req); err != nil {
		return err
	}

	timedOut := make(chan struct{})
	timer := b.clock.AfterFunc(b.timeout, func() { close(timedOut) })
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return fmt.Errorf("compute: accelerator: %s", resp.Error)
		}
		if err := json.Unmarshal(resp.Data, reply); err != nil {
			return fmt.Errorf("compute: decode %s reply: %w", kind, err)
		}
		return nil
	case <-timedOut:
		return fmt.Errorf("compute: %s timed out after %s", kind, b.timeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return ErrRemoteClosed
	}
}

func (b *RemoteBackend) write(f frame) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	_ = b.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := b.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("compute: write %s request: %w", f.Kind, err)
	}
	return nil
}

// readPump routes reply frames to their waiting callers. A read error ends
// the connection: every in-flight call fails with ErrRemoteClosed.
func (b *RemoteBackend) readPump() {
	defer b.cancel()

	for {
		var f frame
		if err := b.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Error("Accelerator connection lost", "error", err)
			}
			return
		}

		b.mu.Lock()
		ch, ok := b.pending[f.ID]
		b.mu.Unlock()

		if !ok {
			b.logger.Debug("Reply for unknown request", "id", f.ID, "kind", f.Kind)
			continue
		}

		select {
		case ch <- f:
		default:
		}
	}
}

// Close implements Backend
func (b *RemoteBackend) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		_ = b.conn.Close()
		b.logger.Info("Disconnected from accelerator")
	})
	return nil
}
