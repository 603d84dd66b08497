package broadcaster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross/infra/logger"
	exitwal "cross/infra/wal/exit"
)

type fakePublisher struct {
	mu      sync.Mutex
	fail    int
	sent    []string
	keys    []string
	closed  bool
}

func (f *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("broker down")
	}
	f.sent = append(f.sent, string(value))
	f.keys = append(f.keys, string(key))
	return nil
}

func (f *fakePublisher) Close() error { f.closed = true; return nil }

func (f *fakePublisher) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func openOutbox(t *testing.T) *exitwal.ExitWAL {
	t.Helper()
	w, err := exitwal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestFlushPublishesInOrderAndDeletes(t *testing.T) {
	w := openOutbox(t)
	_, err := w.Put(exitwal.TapeTopic, []byte("t1"), []byte("t2"))
	require.NoError(t, err)
	_, err = w.Put(exitwal.UserTopic("bob"), []byte("not tape"))
	require.NoError(t, err)

	pub := &fakePublisher{}
	b := New(w, pub, "BTC-USD", time.Second, WithLogger(logger.Discard()))

	sent, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"t1", "t2"}, pub.messages())
	assert.Equal(t, []string{"BTC-USD", "BTC-USD"}, pub.keys)

	left := 0
	require.NoError(t, w.Scan(exitwal.TapeTopic, func(exitwal.Entry) error { left++; return nil }))
	assert.Zero(t, left)

	sent, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestFlushRetriesAfterFailure(t *testing.T) {
	w := openOutbox(t)
	_, err := w.Put(exitwal.TapeTopic, []byte("t1"), []byte("t2"))
	require.NoError(t, err)

	pub := &fakePublisher{fail: 1}
	b := New(w, pub, "k", time.Second, WithLogger(logger.Discard()))

	sent, err := b.Flush(context.Background())
	require.Error(t, err)
	assert.Zero(t, sent)

	var states []exitwal.ExitState
	require.NoError(t, w.Scan(exitwal.TapeTopic, func(e exitwal.Entry) error {
		states = append(states, e.State)
		return nil
	}))
	assert.Equal(t, []exitwal.ExitState{exitwal.StateFailed, exitwal.StateNew}, states)

	sent, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"t1", "t2"}, pub.messages())
}

func TestExhaustedEntriesAreParked(t *testing.T) {
	w := openOutbox(t)
	_, err := w.Put(exitwal.TapeTopic, []byte("t1"))
	require.NoError(t, err)

	pub := &fakePublisher{fail: 2}
	b := New(w, pub, "k", time.Second, WithLogger(logger.Discard()), WithMaxRetries(2))

	for i := 0; i < 2; i++ {
		_, err := b.Flush(context.Background())
		require.Error(t, err)
	}
	sent, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, pub.messages())
}

func TestRunStopsWithContext(t *testing.T) {
	w := openOutbox(t)
	_, err := w.Put(exitwal.TapeTopic, []byte("t1"))
	require.NoError(t, err)

	pub := &fakePublisher{}
	b := New(w, pub, "k", 10*time.Millisecond, WithLogger(logger.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { b.Run(ctx); close(done) }()

	require.Eventually(t, func() bool { return len(pub.messages()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	require.NoError(t, b.Close())
	assert.True(t, pub.closed)
}
