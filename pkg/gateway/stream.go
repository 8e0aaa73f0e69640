package gateway

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harun/deepagent/internal/tracing"
	"github.com/harun/deepagent/pkg/planner"
)

// streamClient is one open websocket; busy is set while a session runs on it
type streamClient struct {
	conn *websocket.Conn
	busy atomic.Bool
}

// handleStream upgrades to a websocket and runs one session per received query,
// sending every state as it is produced and the result last.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}
	conn.SetReadLimit(maxBodyBytes)

	client := &streamClient{conn: conn}
	s.addStream(client)

	logger := tracing.LoggerFromContext(r.Context(), s.logger)
	logger.Info().Str("ip", clientIP(r)).Msg("Stream client connected")

	defer func() {
		s.removeStream(client)
		conn.Close()
		logger.Info().Msg("Stream client disconnected")
	}()

	// Sessions started over the stream are not tied to the upgrade request.
	sessionCtx := tracing.CloneContext(r.Context())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}

		req, err := decodeExecuteRequest(message)
		if err != nil {
			s.sendEvent(client, StreamEvent{Event: EventError, Error: err.Error()})
			continue
		}

		// busy is set before the shutdown check so Stop either skips this
		// client or the loop sees the flag.
		client.busy.Store(true)
		if s.shuttingDown() {
			client.busy.Store(false)
			s.sendEvent(client, StreamEvent{Event: EventError, Error: "server is shutting down"})
			s.closeStream(client)
			return
		}

		var sessionID string
		resp, err := s.runner.Stream(sessionCtx, req.Query, func(state planner.State) error {
			sessionID = state.SessionID
			// The session keeps running even when the client stops listening.
			s.sendEvent(client, StreamEvent{Event: EventState, State: &state})
			return nil
		})
		client.busy.Store(false)

		if err != nil {
			status, message := classifyRunError(err)
			if status == http.StatusInternalServerError {
				logger.Error().Err(err).Str("session_id", sessionID).Msg("Session failed")
			}
			s.sendEvent(client, StreamEvent{Event: EventError, Error: message})
		} else {
			s.sendEvent(client, StreamEvent{Event: EventResult, Result: resp})
		}

		// Stop skipped this client while it was busy.
		if s.shuttingDown() {
			s.closeStream(client)
			return
		}
	}
}

func (s *Server) sendEvent(client *streamClient, event StreamEvent) {
	if err := client.conn.WriteJSON(event); err != nil {
		s.logger.Debug().Err(err).Str("event", event.Event).Msg("Failed to send stream event")
	}
}

func (s *Server) addStream(client *streamClient) {
	s.streamsMu.Lock()
	s.streams[client] = struct{}{}
	s.streamsMu.Unlock()
}

func (s *Server) removeStream(client *streamClient) {
	s.streamsMu.Lock()
	delete(s.streams, client)
	s.streamsMu.Unlock()
}

// closeIdleStreams asks every client without a running session to go away
func (s *Server) closeIdleStreams() {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()

	for client := range s.streams {
		if client.busy.Load() {
			continue
		}
		s.closeStream(client)
	}
}

// closeStream sends a going-away close frame; the read loop then ends
func (s *Server) closeStream(client *streamClient) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	if err := client.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to close stream")
	}
}
