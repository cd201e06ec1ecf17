package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/resumekit/airouter/internal/llm"
	"github.com/resumekit/airouter/internal/router"
)

// wsEvent is one message on the websocket stream. Exactly one event with
// final=true closes the exchange.
type wsEvent struct {
	Delta    string     `json:"delta,omitempty"`
	Final    bool       `json:"final,omitempty"`
	Usage    *llm.Usage `json:"usage,omitempty"`
	Provider string     `json:"provider,omitempty"`
	Degraded bool       `json:"degraded,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// handleWebSocket upgrades the connection, reads a single route request,
// and streams chunks back as JSON events. Closing the socket cancels the
// upstream stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The browser frontend is served from a different origin in
		// development.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readCtx, readCancel := context.WithTimeout(ctx, 10*time.Second)
	defer readCancel()

	var rr routeRequest
	if err := wsjson.Read(readCtx, conn, &rr); err != nil {
		conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return
	}
	if err := rr.validate(); err != nil {
		wsjson.Write(ctx, conn, wsEvent{Error: err.Error(), Final: true})
		conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return
	}

	ch, provider, err := s.router.RouteStream(ctx, rr.messages(), rr.taskConfig())
	if err != nil {
		wsjson.Write(ctx, conn, wsEvent{Error: err.Error(), Final: true})
		conn.Close(websocket.StatusInternalError, "routing failed")
		return
	}

	if err := wsjson.Write(ctx, conn, wsEvent{Provider: provider, Degraded: provider == router.FallbackProvider}); err != nil {
		return
	}

	for chunk := range ch {
		ev := wsEvent{Delta: chunk.Delta, Final: chunk.Final, Usage: chunk.Usage}
		if chunk.Err != nil {
			ev.Error = chunk.Err.Error()
		}
		if err := wsjson.Write(ctx, conn, ev); err != nil {
			// Consumer is gone; cancel so the producer releases its body.
			return
		}
	}

	conn.Close(websocket.StatusNormalClosure, "")
}
