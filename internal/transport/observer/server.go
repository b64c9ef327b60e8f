// Package observer serves the read-only websocket stream: tick digests,
// settled trades, and market offer refreshes. Sessions are fan-out only;
// nothing an observer sends can mutate the world.
package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/protocol"
)

// Info is the static part of the WELCOME message.
type Info struct {
	WorldID    string
	TickRateHz int
	Catalogs   protocol.CatalogDigests
}

type session struct {
	out     chan []byte
	markets atomic.Bool
	trades  atomic.Bool
}

type Server struct {
	info Info
	tick func() uint64
	log  *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	sessions map[string]*session
}

// NewServer builds an observer hub. tick reports the current tick for
// the WELCOME handshake; broadcasts are pushed by the server loop.
func NewServer(info Info, tick func() uint64, logger *log.Logger) *Server {
	return &Server{
		info:     info,
		tick:     tick,
		log:      logger,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// BroadcastTick fans a TICK message out to every session. Sessions that
// cannot keep up drop messages rather than stall the caller.
func (s *Server) BroadcastTick(b []byte) { s.broadcast(b, func(*session) bool { return true }) }

// BroadcastTrade fans a TRADE message out to sessions subscribed to trades.
func (s *Server) BroadcastTrade(b []byte) {
	s.broadcast(b, func(c *session) bool { return c.trades.Load() })
}

// BroadcastMarket fans a MARKET message out to sessions subscribed to markets.
func (s *Server) BroadcastMarket(b []byte) {
	s.broadcast(b, func(c *session) bool { return c.markets.Load() })
}

func (s *Server) broadcast(b []byte, want func(*session) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.sessions {
		if !want(c) {
			continue
		}
		select {
		case c.out <- b:
		default:
			// Slow observer; skip this message.
		}
	}
}

// Sessions reports the number of connected observers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) welcome() protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		WorldID:         s.info.WorldID,
		Tick:            s.tick(),
		TickRateHz:      s.info.TickRateHz,
		Catalogs:        s.info.Catalogs,
	}
}

// BootstrapHandler returns the WELCOME payload over plain HTTP so
// tooling can read digests without holding a websocket open.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.welcome())
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub protocol.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		c := &session{out: make(chan []byte, 4096)}
		c.markets.Store(sub.Markets)
		c.trades.Store(sub.Trades)

		welcome, err := json.Marshal(s.welcome())
		if err != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
			return
		}

		s.mu.Lock()
		s.sessions[sid] = c
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sid)
			s.mu.Unlock()
		}()

		done := make(chan struct{})
		var once sync.Once
		stop := func() { once.Do(func() { close(done) }) }
		defer stop()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-done:
					writeErr <- nil
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates to change the filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var upd protocol.SubscribeMsg
			if err := json.Unmarshal(msg, &upd); err != nil {
				continue
			}
			if upd.Type != protocol.TypeSubscribe || upd.ProtocolVersion != protocol.Version {
				continue
			}
			c.markets.Store(upd.Markets)
			c.trades.Store(upd.Trades)
		}

		stop()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
