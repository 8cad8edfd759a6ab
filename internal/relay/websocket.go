package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/sevasetu/internal/logger"
)

const writeTimeout = 5 * time.Second

var errSinkClosed = errors.New("relay: sink closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the portal UI is served from another origin
	},
}

// wsSink writes JSON messages to one websocket connection.
type wsSink struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newWSSink(conn *websocket.Conn) *wsSink {
	return &wsSink{conn: conn, done: make(chan struct{})}
}

func (s *wsSink) Send(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return errSinkClosed
	default:
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

// Close sends a normal close frame and closes the connection. It is idempotent.
func (s *wsSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

// ServeWS upgrades the request and runs the push channel for sessionID until
// the run finishes, the peer disconnects or another subscriber replaces it.
//
// Inbound messages only reset the idle window; their content is ignored.
func (r *Relay) ServeWS(w http.ResponseWriter, req *http.Request, sessionID string) {
	if _, err := r.store.Get(sessionID); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Session not found"})
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", logger.String("session_id", sessionID), logger.Error(err))
		return
	}

	sink := newWSSink(conn)
	log := r.log.With(logger.String("session_id", sessionID))

	// The reader runs on its own goroutine: a read deadline would leave the
	// gorilla connection unusable, so the idle window is a timer instead.
	inbound := make(chan struct{}, 1)
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			select {
			case inbound <- struct{}{}:
			default:
			}
		}
	}()

	if replaced := r.Subscribe(sessionID, sink); replaced {
		log.Debug("websocket took over existing subscription")
	}
	log.Debug("websocket subscribed", logger.String("remote_addr", req.RemoteAddr))

	idle := time.NewTimer(r.idle)
	defer idle.Stop()

	for {
		select {
		case <-inbound:
			resetTimer(idle, r.idle)
		case <-idle.C:
			r.Heartbeat(sessionID, sink)
			idle.Reset(r.idle)
		case <-gone:
			r.Unsubscribe(sessionID, sink)
			_ = sink.Close()
			log.Debug("websocket peer disconnected")
			return
		case <-sink.done:
			// closed by the relay: run finished, replaced or delivery failed
			<-gone
			log.Debug("websocket closed by relay")
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
