package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/openvibe/pairrelay/internal/metrics"
	"github.com/openvibe/pairrelay/internal/registry"
)

// handleWS returns the upgrade handler for one role endpoint. The
// identifier is carried in the id query parameter; a missing identifier
// is rejected before the upgrade.
func (s *Server) handleWS(role registry.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id parameter", http.StatusBadRequest)
			return
		}

		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket accept failed", "role", role.String(), "id", id, "error", err)
			return
		}
		defer func() { _ = ws.CloseNow() }()

		s.handleConn(r.Context(), ws, id, role)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}
}

// handleConn drives one live connection: it subscribes to its role's
// channel for the identifier, then races inbound socket frames against
// outbound relay messages until either direction fails. Detach runs
// exactly once on the way out, whichever side ended the loop.
func (s *Server) handleConn(ctx context.Context, ws *websocket.Conn, id string, role registry.Role) {
	sub := s.reg.Subscribe(id, role)
	s.metrics.SetRegistryEntries(s.reg.Len())
	s.logger.Info("peer connected", "role", role.String(), "id", id)

	tracker := s.metrics.ConnectionOpened(role.String())
	start := time.Now()
	defer func() {
		s.reg.Unsubscribe(id, role, sub)
		s.metrics.SetRegistryEntries(s.reg.Len())
		tracker.Done(time.Since(start).Seconds())
		s.logger.Info("peer disconnected", "role", role.String(), "id", id)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Inbound frames are pumped by a separate goroutine so the loop below
	// can wait on the socket and the subscription together. Any read
	// error or non-text frame ends the pump, which ends the connection.
	inbound := make(chan string)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			typ, data, err := ws.Read(ctx)
			if err != nil {
				return
			}
			if typ != websocket.MessageText {
				return
			}
			select {
			case inbound <- string(data):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case text := <-inbound:
			s.forward(id, role, text)
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := ws.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

// forward relays one text frame to the opposite role of the identifier.
// The rendered payload is for the log only; the delivered bytes are
// always the original frame.
func (s *Server) forward(id string, from registry.Role, text string) {
	direction := from.String() + " -> " + from.Opposite().String()

	delivered, dropped := s.reg.Publish(id, from, text)
	if !delivered {
		s.metrics.MessagesDropped(metrics.ReasonNoPeer, 1)
		s.logger.Debug("no destination for message", "id", id, "direction", direction)
		return
	}

	s.metrics.MessageForwarded(direction)
	s.metrics.MessagesDropped(metrics.ReasonSlowConsumer, dropped)
	s.logger.Info("forwarded", "id", id, "direction", direction, "payload", renderPayload(text))
}
