package common

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordLogger struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordLogger) add(level, msg string, kv []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, level+" "+formatLogMsg(msg, kv))
}

func (r *recordLogger) Debug(msg string, kv ...interface{}) { r.add("DEBUG", msg, kv) }
func (r *recordLogger) Info(msg string, kv ...interface{})  { r.add("INFO", msg, kv) }
func (r *recordLogger) Warn(msg string, kv ...interface{})  { r.add("WARN", msg, kv) }
func (r *recordLogger) Error(msg string, kv ...interface{}) { r.add("ERROR", msg, kv) }

func handleRaises(Event) error {
	return errors.New("Exception description")
}

func TestEventsBindFireOrder(t *testing.T) {
	ev := NewEvents(nil)
	var order []int

	ev.Bind(EventDIMSESent, func(Event) error { order = append(order, 1); return nil })
	ev.Bind(EventDIMSESent, func(Event) error { order = append(order, 2); return nil })
	ev.Bind(EventDIMSERecv, func(Event) error { order = append(order, 3); return nil })

	ev.Fire(Event{Name: EventDIMSESent})
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 2, ev.Len(EventDIMSESent))
	assert.Empty(t, ev.Handlers(EventFSMTransition))
}

func TestEventsUnbind(t *testing.T) {
	ev := NewEvents(nil)
	called := 0
	h := ev.Bind(EventDIMSERecv, func(Event) error { called++; return nil })

	require.Len(t, ev.Handlers(EventDIMSERecv), 1)
	assert.Equal(t, h.ID, ev.Handlers(EventDIMSERecv)[0].ID)

	assert.True(t, ev.Unbind(EventDIMSERecv, h))
	assert.False(t, ev.Unbind(EventDIMSERecv, h))
	ev.Fire(Event{Name: EventDIMSERecv})
	assert.Equal(t, 0, called)
	assert.Empty(t, ev.Bindings())
}

func TestEventsAttachSharesHandle(t *testing.T) {
	parent := NewEvents(nil)
	child := NewEvents(nil)

	h := parent.Bind(EventDIMSESent, func(Event) error { return nil })
	child.Attach(EventDIMSESent, h)
	child.Attach(EventDIMSESent, h)
	assert.Equal(t, 1, child.Len(EventDIMSESent))

	assert.True(t, child.Unbind(EventDIMSESent, h))
	assert.Equal(t, 1, parent.Len(EventDIMSESent))
}

func TestEventsHandlerFailureIsLogged(t *testing.T) {
	logger := &recordLogger{}
	ev := NewEvents(logger)

	ev.Bind(EventDIMSESent, handleRaises)
	ev.Bind(EventDIMSESent, func(Event) error { panic("boom") })
	after := false
	ev.Bind(EventDIMSESent, func(Event) error { after = true; return nil })

	assert.NotPanics(t, func() { ev.Fire(Event{Name: EventDIMSESent}) })
	assert.True(t, after)

	require.Len(t, logger.entries, 2)
	assert.Contains(t, logger.entries[0], "Exception raised in user's 'dimse-sent' event handler 'common.handleRaises'")
	assert.Contains(t, logger.entries[0], "Exception description")
	assert.Contains(t, logger.entries[1], "boom")
}

func TestEventsFireSetsTimestamp(t *testing.T) {
	ev := NewEvents(nil)
	var got Event
	ev.Bind(EventAborted, func(e Event) error { got = e; return nil })

	ev.Fire(Event{Name: EventAborted, Data: map[string]interface{}{"reason": 2}})
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, 2, got.Get("reason"))
	assert.Nil(t, got.Get("missing"))
}

func TestWithFields(t *testing.T) {
	logger := &recordLogger{}
	l := With(With(logger, "role", "requestor"), "peer", "127.0.0.1")

	l.Info("established", "contexts", 2)
	require.Len(t, logger.entries, 1)
	assert.Equal(t, "INFO established role=requestor peer=127.0.0.1 contexts=2", logger.entries[0])
}
