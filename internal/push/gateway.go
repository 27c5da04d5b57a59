package push

import (
	"net/http"
	"sync"

	"github.com/Vaibhavk18/backtesting-platform/internal/infrastructure"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Gateway bridges per-session backtest events from NATS to WebSocket
// clients. Clients register under a session id; the first client for a
// session opens the NATS subscription and the last one leaving closes it.
type Gateway struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	sessions map[string]map[*Client]bool
	natsSubs map[string]*nats.Subscription
	mu       sync.RWMutex
}

func NewGateway(js nats.JetStreamContext, logger *zap.Logger) *Gateway {
	return &Gateway{
		logger:   logger,
		js:       js,
		sessions: make(map[string]map[*Client]bool),
		natsSubs: make(map[string]*nats.Subscription),
	}
}

// ServeSession upgrades the connection and attaches it to a backtest
// session until the client disconnects.
func (g *Gateway) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}

	if err := g.register(sessionID, client); err != nil {
		g.logger.Error("failed to attach client to session",
			zap.String("session_id", sessionID), zap.Error(err))
		conn.Close()
		return
	}
	infrastructure.WSConnections.Inc()

	go g.writePump(client)
	g.readPump(sessionID, client)
}

func (g *Gateway) register(sessionID string, c *Client) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sessions[sessionID] == nil {
		g.sessions[sessionID] = make(map[*Client]bool)
		if err := g.subscribeSession(sessionID); err != nil {
			delete(g.sessions, sessionID)
			return err
		}
	}
	g.sessions[sessionID][c] = true
	g.logger.Info("client attached to backtest session", zap.String("session_id", sessionID))
	return nil
}

func (g *Gateway) unregister(sessionID string, c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	clients, ok := g.sessions[sessionID]
	if !ok {
		return
	}
	if _, attached := clients[c]; !attached {
		return
	}
	delete(clients, c)
	// Unblocks the client's writePump; it sends the close frame and exits.
	close(c.send)
	if len(clients) == 0 {
		if sub, ok := g.natsSubs[sessionID]; ok {
			sub.Unsubscribe()
			delete(g.natsSubs, sessionID)
			g.logger.Info("closed session subscription, no clients left",
				zap.String("session_id", sessionID))
		}
		delete(g.sessions, sessionID)
	}
}

func (g *Gateway) readPump(sessionID string, c *Client) {
	defer func() {
		g.unregister(sessionID, c)
		infrastructure.WSConnections.Dec()
		c.conn.Close()
	}()

	// Clients only listen; reads exist to detect disconnects.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) writePump(c *Client) {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (g *Gateway) subscribeSession(sessionID string) error {
	if g.js == nil {
		return nil
	}
	sub, err := g.js.Subscribe(subjectFor(sessionID), func(msg *nats.Msg) {
		g.mu.RLock()
		for c := range g.sessions[sessionID] {
			select {
			case c.send <- msg.Data:
			default:
				// Do not block, just drop if the client is slow.
			}
		}
		g.mu.RUnlock()
		msg.Ack()
	}, nats.ManualAck())

	if err != nil {
		return err
	}

	g.natsSubs[sessionID] = sub
	g.logger.Info("subscribed to session events", zap.String("session_id", sessionID))
	return nil
}

// sessionClientCount reports how many clients a session has; used by tests.
func (g *Gateway) sessionClientCount(sessionID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions[sessionID])
}
