package dispatch

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingClient struct {
	id   string
	fail bool
	mu   sync.Mutex
	sent []any
}

func (c *recordingClient) ID() string { return c.id }

func (c *recordingClient) Send(v any) error {
	if c.fail {
		return errors.New("connection closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *recordingClient) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.sent...)
}

type snapshot struct {
	Running bool
	Size    int
}

func newTestDispatcher(current *snapshot) *Dispatcher[snapshot] {
	return New("test", func() snapshot { return *current }, zap.NewNop())
}

func TestDispatcher_AddRemove(t *testing.T) {
	d := newTestDispatcher(&snapshot{})
	a := &recordingClient{id: "a"}
	b := &recordingClient{id: "b"}

	d.AddClient(a)
	d.AddClient(b)
	d.AddClient(a)
	assert.Equal(t, 2, d.Len())

	d.RemoveClient(a)
	assert.Equal(t, 1, d.Len())

	d.RemoveClient(a)
	assert.Equal(t, 1, d.Len())
}

func TestDispatcher_NotifyAllClients(t *testing.T) {
	d := newTestDispatcher(&snapshot{})
	a := &recordingClient{id: "a"}
	b := &recordingClient{id: "b"}
	d.AddClient(a)
	d.AddClient(b)

	d.NotifyAllClients(snapshot{Running: true, Size: 2})

	for _, c := range []*recordingClient{a, b} {
		msgs := c.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, snapshot{Running: true, Size: 2}, msgs[0])
	}
}

func TestDispatcher_FailingClientIsRemoved(t *testing.T) {
	d := newTestDispatcher(&snapshot{})
	good := &recordingClient{id: "good"}
	bad := &recordingClient{id: "bad", fail: true}
	d.AddClient(good)
	d.AddClient(bad)

	d.NotifyAllClients(snapshot{Size: 1})

	assert.Equal(t, 1, d.Len())
	assert.Len(t, good.messages(), 1)

	d.NotifyAllClients(snapshot{Size: 2})
	assert.Len(t, good.messages(), 2)
}

func TestDispatcher_HandleRequest(t *testing.T) {
	current := &snapshot{Running: true, Size: 3}
	d := newTestDispatcher(current)
	c := &recordingClient{id: "c"}
	d.AddClient(c)

	d.HandleRequest(c, "STATUS")
	d.HandleRequest(c, "PAUSE")

	msgs := c.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, snapshot{Running: true, Size: 3}, msgs[0])
	assert.Equal(t, HelpText, msgs[1])
}

func TestDispatcher_BroadcastUsesCurrentStatus(t *testing.T) {
	current := &snapshot{}
	d := newTestDispatcher(current)
	c := &recordingClient{id: "c"}
	d.AddClient(c)

	current.Size = 5
	d.Broadcast()

	msgs := c.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 5, msgs[0].(snapshot).Size)
}
