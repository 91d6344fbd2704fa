package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
)

// Handler serves compute frames over a websocket, delegating the work to a
// local backend. It lets a machine with spare cores act as the accelerator
// for trainers running elsewhere, and gives tests a real wire peer.
type Handler struct {
	backend  Backend
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewHandler creates a websocket handler around backend.
func NewHandler(backend Backend, logger *log.Logger) *Handler {
	return &Handler{
		backend: backend,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.WithPrefix("compute-serve"),
	}
}

// ServeHTTP implements http.Handler. Each connection is served by its own
// request loop; a failed request answers with an error frame and the
// connection stays up.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	h.logger.Info("Trainer connected", "remote", r.RemoteAddr)

	for {
		var req frame
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("Read failed", "error", err)
			}
			return
		}

		resp := h.handle(context.Background(), req)
		if err := conn.WriteJSON(resp); err != nil {
			h.logger.Error("Write failed", "error", err)
			return
		}
	}
}

// handle executes one request frame and builds its reply.
func (h *Handler) handle(ctx context.Context, req frame) frame {
	resp := frame{ID: req.ID, Kind: req.Kind}

	var (
		reply any
		err   error
	)
	switch req.Kind {
	case kindBatchEquity:
		reply, err = h.batchEquity(ctx, req.Data)
	case kindBatchRegret:
		reply, err = h.batchRegret(ctx, req.Data)
	default:
		err = fmt.Errorf("unknown frame kind %q", req.Kind)
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	data, err := json.Marshal(reply)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Data = data
	return resp
}

func (h *Handler) batchEquity(ctx context.Context, data json.RawMessage) (equityReply, error) {
	var payload equityPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return equityReply{}, fmt.Errorf("decode %s: %w", kindBatchEquity, err)
	}

	req := EquityRequest{
		Hands:     make([][]deck.Card, len(payload.Hands)),
		Opponents: payload.Opponents,
		Samples:   payload.Samples,
		Seed:      payload.Seed,
	}
	var err error
	if req.Board, err = deck.ParseCards(payload.Board); err != nil {
		return equityReply{}, fmt.Errorf("decode board: %w", err)
	}
	for i, hand := range payload.Hands {
		if req.Hands[i], err = deck.ParseCards(hand); err != nil {
			return equityReply{}, fmt.Errorf("decode hand %d: %w", i, err)
		}
	}

	results, err := h.backend.BatchEquity(ctx, req)
	if err != nil {
		return equityReply{}, err
	}

	reply := equityReply{Results: make([]equityResult, len(results))}
	for i, r := range results {
		reply.Results[i] = equityResult{WinProb: r.WinProb, TieProb: r.TieProb, Equity: r.Equity, Samples: r.Samples}
	}
	return reply, nil
}

func (h *Handler) batchRegret(ctx context.Context, data json.RawMessage) (regretReply, error) {
	var payload regretPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return regretReply{}, fmt.Errorf("decode %s: %w", kindBatchRegret, err)
	}

	results, err := h.backend.BatchRegretUpdate(ctx, payload.Updates)
	if err != nil {
		return regretReply{}, err
	}
	return regretReply{Results: results}, nil
}
