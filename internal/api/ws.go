package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBuffer       = 64
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleTicks streams tick events as JSON text frames.
// Optional ?symbols=AAPL,MSFT restricts the stream.
func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "tick stream not available",
		})
		return
	}
	filter := parseSymbols(r.URL.Query().Get("symbols"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		slog.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	if s.deps.Metrics != nil {
		s.deps.Metrics.IncrementStreams()
		defer s.deps.Metrics.DecrementStreams()
	}

	events, cancel := s.deps.Bus.Subscribe(streamBuffer)
	defer cancel()
	slog.Info("Tick stream opened", slog.String("remote", r.RemoteAddr))
	defer slog.Info("Tick stream closed", slog.String("remote", r.RemoteAddr))

	closed := make(chan struct{})
	go readLoop(conn, closed)

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteTimeout))
			return
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if filter != nil && !filter[ev.Symbol] {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("Tick stream write failed", slog.Any("error", err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed,
// and signals closed once the peer goes away.
func readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Tick stream read error", slog.Any("error", err))
			}
			return
		}
	}
}

func parseSymbols(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, sym := range strings.Split(raw, ",") {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			set[sym] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
