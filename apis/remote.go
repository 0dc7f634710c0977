package apis

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/thiefmaster/matrixctl/render"
)

const maxImageBytes = 4 << 20

// Remote serves the control endpoints:
//
//	/ws     websocket; each text message is a JSON Request, replies and
//	        device messages are pushed back as JSON
//	/image  POST a png, gif or jpeg body to display it
//
// Only the most recent websocket connection is kept.
type Remote struct {
	logger   zerolog.Logger
	requests chan Request
	upgrader websocket.Upgrader

	mu     sync.Mutex
	active *websocket.Conn
}

func NewRemote(logger zerolog.Logger) *Remote {
	return &Remote{
		logger:   logger,
		requests: make(chan Request, 8),
		upgrader: websocket.Upgrader{CheckOrigin: sameHost},
	}
}

// sameHost accepts non-browser clients and pages served from the same host.
func sameHost(r *http.Request) bool {
	origin := r.Header["Origin"]
	if len(origin) == 0 {
		return true
	}
	u, err := url.Parse(origin[0])
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func (s *Remote) Requests() <-chan Request {
	return s.requests
}

func (s *Remote) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ws)
	mux.HandleFunc("/image", s.image)
	return mux
}

// ListenAndServe blocks until the listener fails.
func (s *Remote) ListenAndServe(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("remote control listening")
	return http.ListenAndServe(addr, s.Handler())
}

type reply struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Opcode  string `json:"opcode,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

func (s *Remote) ws(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.mu.Lock()
	if s.active != nil {
		s.logger.Debug().Msg("closing previous websocket conn")
		s.active.Close()
	}
	s.active = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.active == c {
			s.active = nil
		}
		s.mu.Unlock()
		c.Close()
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			s.logger.Debug().Err(err).Msg("websocket read failed")
			return
		}
		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			s.send(c, reply{Error: "invalid request: " + err.Error()})
			continue
		}
		if req.empty() {
			s.send(c, reply{Error: "empty request"})
			continue
		}
		s.requests <- req
		s.send(c, reply{OK: true})
	}
}

func (s *Remote) image(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m, err := render.Decode(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.requests <- Request{Image: m}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Remote) send(c *websocket.Conn, v reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.WriteJSON(v); err != nil {
		s.logger.Debug().Err(err).Msg("websocket write failed")
	}
}

// Notify forwards a device message to the connected client, if any.
func (s *Remote) Notify(opcode string, payload []byte) {
	s.mu.Lock()
	c := s.active
	s.mu.Unlock()
	if c == nil {
		s.logger.Debug().Str("opcode", opcode).Msg("no websocket client, discarding device message")
		return
	}
	s.send(c, reply{OK: true, Opcode: opcode, Payload: payload})
}
