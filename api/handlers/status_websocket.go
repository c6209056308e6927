package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/chapterd/pkg/dispatch"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	outboxSize   = 16
)

var (
	errClientClosed = errors.New("websocket client closed")
	errClientSlow   = errors.New("websocket client outbox full")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient adapts a websocket connection to dispatch.Client. Messages are
// queued and written by a single pump goroutine.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newWSClient(conn *websocket.Conn, logger *zap.Logger) *wsClient {
	id := uuid.New().String()
	return &wsClient{
		id:     id,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("client", id)),
	}
}

func (c *wsClient) ID() string {
	return c.id
}

// Send queues v for writing. Strings go out as is, anything else as JSON.
func (c *wsClient) Send(v any) error {
	var data []byte
	if s, ok := v.(string); ok {
		data = []byte(s)
	} else {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}

	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.outbox <- data:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errClientSlow
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.outbox:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Failed to write to websocket", zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// FeedHandler serves a dispatcher's status snapshots over websocket
type FeedHandler[T any] struct {
	dispatcher *dispatch.Dispatcher[T]
	logger     *zap.Logger
}

// NewFeedHandler creates a websocket handler for a status feed
func NewFeedHandler[T any](dispatcher *dispatch.Dispatcher[T], logger *zap.Logger) *FeedHandler[T] {
	return &FeedHandler[T]{dispatcher: dispatcher, logger: logger}
}

// Serve upgrades the connection, pushes the current snapshot and answers
// text commands until the peer goes away
func (h *FeedHandler[T]) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}

	client := newWSClient(conn, h.logger)
	defer client.Close()
	go client.writePump()

	h.dispatcher.AddClient(client)
	defer h.dispatcher.RemoveClient(client)

	h.logger.Info("WebSocket client connected",
		zap.String("client", client.ID()),
		zap.String("remote_addr", c.Request.RemoteAddr))

	h.dispatcher.HandleRequest(client, dispatch.CommandStatus)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("WebSocket client disconnected", zap.String("client", client.ID()), zap.Error(err))
			return
		}
		h.dispatcher.HandleRequest(client, string(msg))
	}
}
