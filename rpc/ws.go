// Package rpc exposes a websocket endpoint clients use to watch a swap's
// status update over its lifetime, adapted from
// noot-atomic-swap/rpc/ws.go's wsServer. The original's net-discovery,
// offer-marketplace and external-signer subscriptions are dropped: peer
// discovery and an order-book marketplace are explicit non-goals of this
// module (peers already know each other's multiaddr out of band, and
// cmd/daemon offers a single fixed swap per run), and there is no
// external transaction signer since Bitcoin signing happens locally in
// protocol/alice and protocol/bob.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"

	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/swap"
)

var log = logging.Logger("rpc")

var errNoSwapWithID = errors.New("unable to find swap with given id")

const statusPollInterval = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Canceller lets the rpc server drive an ongoing swap's manual exit paths.
// Implemented by cmd/daemon's swapHandler, which tracks live SwapState
// values by ID; nil here (the default) means swap_cancel/swap_punish
// requests are rejected.
type Canceller interface {
	Cancel(id types.ID) error
	Punish(id types.ID) error
}

// request is the single request shape this server understands:
// `{"method":"swap_subscribeStatus"|"swap_cancel"|"swap_punish","params":{"id":"<swap id hex>"}}`.
type request struct {
	Method string `json:"method"`
	Params struct {
		ID string `json:"id"`
	} `json:"params"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves swap status subscriptions and manual cancel/punish
// requests over websockets.
type Server struct {
	ctx    context.Context
	sm     swap.Manager
	cancel Canceller
}

// NewServer constructs a status-subscription websocket Server. cancel may
// be nil, in which case swap_cancel/swap_punish requests are rejected.
func NewServer(ctx context.Context, sm swap.Manager, cancel Canceller) *Server {
	return &Server{ctx: ctx, sm: sm, cancel: cancel}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("failed to upgrade connection to websocket: %s", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	_, message, err := conn.ReadMessage()
	if err != nil {
		log.Warnf("failed to read websocket message: %s", err)
		return
	}

	var req request
	if err := json.Unmarshal(message, &req); err != nil {
		_ = writeError(conn, fmt.Errorf("failed to unmarshal request: %w", err))
		return
	}

	id, err := types.IDFromHex(req.Params.ID)
	if err != nil {
		_ = writeError(conn, fmt.Errorf("invalid swap id: %w", err))
		return
	}

	switch req.Method {
	case "swap_subscribeStatus":
		if err := s.subscribeSwapStatus(conn, id); err != nil {
			_ = writeError(conn, err)
		}
	case "swap_cancel":
		s.handleAction(conn, id, s.cancel.Cancel)
	case "swap_punish":
		s.handleAction(conn, id, s.cancel.Punish)
	default:
		_ = writeError(conn, fmt.Errorf("unsupported method %q", req.Method))
	}
}

// handleAction runs a single cancel/punish action and writes its outcome.
func (s *Server) handleAction(conn *websocket.Conn, id types.ID, action func(types.ID) error) {
	if s.cancel == nil {
		_ = writeError(conn, errors.New("this server does not support swap_cancel/swap_punish"))
		return
	}

	if err := action(id); err != nil {
		_ = writeError(conn, err)
		return
	}

	_ = writeResponse(conn, okResponse{OK: true})
}

// subscribeSwapStatus polls the swap manager for id's status and writes
// every change to conn until the swap reaches a terminal status or the
// connection's context is cancelled. There's no push notification on
// swap.Manager today (adding one would mean threading an observer
// through every state machine's stage transition), so this polls at
// statusPollInterval instead.
func (s *Server) subscribeSwapStatus(conn *websocket.Conn, id types.ID) error {
	if !s.sm.HasOngoingSwap(id) {
		return s.writeSwapExitStatus(conn, id)
	}

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var lastStatus types.Status
	first := true

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticker.C:
			info, err := s.sm.GetOngoingSwap(id)
			if err != nil {
				return s.writeSwapExitStatus(conn, id)
			}

			if first || info.Status != lastStatus {
				if err := writeResponse(conn, statusResponse{Status: info.Status.String()}); err != nil {
					return err
				}
				lastStatus = info.Status
				first = false
			}

			if !info.Status.IsOngoing() {
				return nil
			}
		}
	}
}

func (s *Server) writeSwapExitStatus(conn *websocket.Conn, id types.ID) error {
	info, err := s.sm.GetPastSwap(id)
	if err != nil || info == nil {
		return errNoSwapWithID
	}

	return writeResponse(conn, statusResponse{Status: info.Status.String()})
}

func writeResponse(conn *websocket.Conn, result interface{}) error {
	return conn.WriteJSON(result)
}

func writeError(conn *websocket.Conn, err error) error {
	return conn.WriteJSON(errorResponse{Error: err.Error()})
}
