package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MeKo-Tech/nusantaramap/internal/search"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// checkOrigin applies the CORS origin policy to WebSocket handshakes: any
// origin with AllowAllOrigins, otherwise localhost or the serving host.
// Requests without an Origin header come from non-browser clients.
func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAllOrigins {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return true
	}
	return strings.EqualFold(u.Host, r.Host)
}

// inbound is the client-to-server WebSocket message format.
type inbound struct {
	Type  string `json:"type"` // search, select_province, select_regency, select_search, clear_regency, reset, hover
	Query string `json:"query"`
	Name  string `json:"name"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Error("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.NewString())
	debouncer := search.NewDebouncer(s.cfg.SearchDelay, func(query string) {
		results, err := s.session.Search(query)
		if err != nil {
			c.push(Event{Type: EventError, Query: query, Error: err.Error()})
			return
		}
		c.push(Event{Type: EventSearchResults, Query: query, Results: results})
	})

	snap := s.session.Snapshot()
	c.push(Event{Type: EventHello, ClientID: c.id, State: &snap})
	s.hub.register(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(conn, c)
	}()

	s.readPump(conn, c, debouncer)

	debouncer.Stop()
	s.hub.unregister(c)
	<-done
}

func (s *Server) readPump(conn *websocket.Conn, c *client, debouncer *search.Debouncer) {
	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log().Warn("websocket read failed", "client_id", c.id, "error", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			c.push(Event{Type: EventError, Error: "invalid message format"})
			continue
		}
		s.dispatch(c, in, debouncer)
	}
}

func (s *Server) dispatch(c *client, in inbound, debouncer *search.Debouncer) {
	var err error
	switch in.Type {
	case "search":
		if !s.session.Options().ShowSearch {
			err = ErrSearchDisabled
			break
		}
		debouncer.Trigger(in.Query)
	case "select_province":
		_, _, err = s.session.SelectProvince(in.Name)
	case "select_regency":
		_, _, err = s.session.SelectRegency(in.Name)
	case "select_search":
		_, _, err = s.session.SelectSearchResult(in.Name)
	case "clear_regency":
		_, _, err = s.session.ClearRegency()
	case "reset":
		_, _, err = s.session.Reset()
	case "hover":
		_, _, err = s.session.Hover(in.Name)
	default:
		c.push(Event{Type: EventError, Error: "unknown message type: " + in.Type})
		return
	}
	if err != nil {
		c.push(Event{Type: EventError, Error: err.Error()})
	}
}

// writePump is the only writer on conn.
func (s *Server) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.log().Warn("websocket write failed", "client_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
