// Package dispatch fans status snapshots out to connected clients.
package dispatch

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// CommandStatus asks for the current snapshot
const CommandStatus = "STATUS"

// HelpText is sent back for any unknown command
const HelpText = `Invalid command.
Supported commands are:
    - STATUS
       sends the current download status
`

// Client is a connected subscriber. Send must not block on a slow peer.
type Client interface {
	ID() string
	Send(v any) error
}

// Dispatcher keeps a set of clients and pushes snapshots of T to them. The
// snapshot is produced on demand by the status function.
type Dispatcher[T any] struct {
	name    string
	status  func() T
	clients map[string]Client
	mu      sync.RWMutex
	logger  *zap.Logger
}

// New creates a dispatcher named after the feed it serves
func New[T any](name string, status func() T, logger *zap.Logger) *Dispatcher[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher[T]{
		name:    name,
		status:  status,
		clients: make(map[string]Client),
		logger:  logger.With(zap.String("feed", name)),
	}
}

// AddClient registers a client. A client with the same id replaces the old one.
func (d *Dispatcher[T]) AddClient(c Client) {
	d.mu.Lock()
	d.clients[c.ID()] = c
	count := len(d.clients)
	d.mu.Unlock()

	d.logger.Debug("Client added", zap.String("client", c.ID()), zap.Int("clients", count))
}

// RemoveClient unregisters a client
func (d *Dispatcher[T]) RemoveClient(c Client) {
	d.removeID(c.ID())
}

func (d *Dispatcher[T]) removeID(id string) {
	d.mu.Lock()
	_, ok := d.clients[id]
	delete(d.clients, id)
	count := len(d.clients)
	d.mu.Unlock()

	if ok {
		d.logger.Debug("Client removed", zap.String("client", id), zap.Int("clients", count))
	}
}

// Len returns the number of connected clients
func (d *Dispatcher[T]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// NotifyClient sends one snapshot to a single client
func (d *Dispatcher[T]) NotifyClient(c Client, v T) {
	if err := c.Send(v); err != nil {
		d.logger.Warn("Dropping client after failed send", zap.String("client", c.ID()), zap.Error(err))
		d.removeID(c.ID())
	}
}

// NotifyAllClients sends a snapshot to every client. Clients that fail are
// removed; the rest still receive the snapshot.
func (d *Dispatcher[T]) NotifyAllClients(v T) {
	d.mu.RLock()
	clients := make([]Client, 0, len(d.clients))
	for _, c := range d.clients {
		clients = append(clients, c)
	}
	d.mu.RUnlock()

	for _, c := range clients {
		d.NotifyClient(c, v)
	}
}

// Broadcast sends the current snapshot to every client
func (d *Dispatcher[T]) Broadcast() {
	if d.Len() == 0 {
		return
	}
	d.NotifyAllClients(d.status())
}

// HandleRequest answers a text command sent by a client
func (d *Dispatcher[T]) HandleRequest(c Client, msg string) {
	switch strings.TrimSpace(msg) {
	case CommandStatus:
		d.NotifyClient(c, d.status())
	default:
		if err := c.Send(HelpText); err != nil {
			d.logger.Warn("Dropping client after failed send", zap.String("client", c.ID()), zap.Error(err))
			d.removeID(c.ID())
		}
	}
}
