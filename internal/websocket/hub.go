package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
	"github.com/satriahrh/sayword/internal/match"
	"github.com/satriahrh/sayword/internal/observe"
	"github.com/satriahrh/sayword/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	// the web client is served from a different origin than the API
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Dependencies are the services shared by every client of a hub. STT, TTS
// and Hints may be nil; the matching requests are then answered with an
// error.
type Dependencies struct {
	Words     []entities.Word
	Evaluator *match.Evaluator
	Results   *usecase.ResultService
	Hints     *usecase.HintService
	STT       repositories.SpeechToText
	TTS       repositories.TextToSpeech
	Metrics   *observe.Metrics

	// Audio is the default cloud recognizer configuration
	Audio          repositories.AudioConfig
	SilenceTimeout time.Duration
	// SettleDelay of zero releases the adjudication guard immediately
	SettleDelay time.Duration
	Clock       clock.Clock
}

// Hub maintains the set of active clients, one per player
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	deps   Dependencies
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(deps Dependencies, logger *zap.Logger) *Hub {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		deps:       deps,
		logger:     logger,
	}
}

// Run starts the hub's main loop. When ctx is done every client is closed.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			previous := h.clients[client.playerID]
			h.clients[client.playerID] = client
			h.mu.Unlock()

			if previous != nil {
				h.logger.Info("Replacing existing connection", zap.String("playerID", client.playerID))
				previous.enqueueJSON(CreateErrorMessage("replaced", "This game was opened somewhere else."))
				previous.close()
			} else {
				h.deps.Metrics.ActiveClients.Add(ctx, 1)
			}
			h.logger.Info("Client registered", zap.String("playerID", client.playerID))

		case client := <-h.unregister:
			h.mu.Lock()
			current, ok := h.clients[client.playerID]
			if ok && current == client {
				delete(h.clients, client.playerID)
			}
			h.mu.Unlock()

			client.close()
			if ok && current == client {
				h.deps.Metrics.ActiveClients.Add(ctx, -1)
				h.logger.Info("Client unregistered", zap.String("playerID", client.playerID))
			}

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return nil
		}
	}
}

// GetActivePlayers returns the IDs of connected players
func (h *Hub) GetActivePlayers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	players := make([]string, 0, len(h.clients))
	for id := range h.clients {
		players = append(players, id)
	}
	return players
}

// HandleWebSocket upgrades an authenticated request and starts the client
func HandleWebSocket(hub *Hub, c echo.Context, playerID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, playerID, logger.With(zap.String("playerID", playerID)))
	if !hub.add(client) {
		logger.Warn("Hub stopped, dropping connection")
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()

	return nil
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}
