package exit

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, dir string) *ExitWAL {
	t.Helper()
	w, err := Open(dir)
	require.NoError(t, err)
	return w
}

func payloads(t *testing.T, w *ExitWAL, topic string, states ...ExitState) []string {
	t.Helper()
	var out []string
	require.NoError(t, w.ScanByState(topic, func(e Entry) error {
		out = append(out, string(e.Payload))
		return nil
	}, states...))
	return out
}

func TestPutScanLifecycle(t *testing.T) {
	w := openTest(t, t.TempDir())
	defer w.Close()

	seqs, err := w.Put(TapeTopic, []byte("a"), []byte("b"), []byte("c"))
	require.NoError(t, err)
	require.Len(t, seqs, 3)
	_, err = w.Put(UserTopic("alice"), []byte("for alice"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, payloads(t, w, TapeTopic, StateNew))

	first, err := w.Get(TapeTopic, seqs[0])
	require.NoError(t, err)
	require.NoError(t, w.MarkSent(first))
	require.NoError(t, w.MarkAcked(first))

	second, err := w.Get(TapeTopic, seqs[1])
	require.NoError(t, err)
	require.NoError(t, w.MarkFailed(second))
	failed, err := w.Get(TapeTopic, seqs[1])
	require.NoError(t, err)
	assert.Equal(t, StateFailed, failed.State)
	assert.EqualValues(t, 1, failed.Retries)
	assert.Equal(t, "b", string(failed.Payload))
	assert.NotZero(t, failed.LastAttempt)

	assert.Equal(t, []string{"b", "c"}, payloads(t, w, TapeTopic, StateNew, StateFailed))

	n, err := w.DeleteAcked(TapeTopic)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = w.Get(TapeTopic, seqs[0])
	assert.True(t, errors.Is(err, pebble.ErrNotFound))

	assert.Equal(t, []string{"for alice"}, payloads(t, w, UserTopic("alice"), StateNew))
}

func TestUserTopicsDoNotOverlap(t *testing.T) {
	w := openTest(t, t.TempDir())
	defer w.Close()

	_, err := w.Put(UserTopic("a"), []byte("a"))
	require.NoError(t, err)
	_, err = w.Put(UserTopic("a/b"), []byte("a/b"))
	require.NoError(t, err)
	_, err = w.Put(UserTopic("ab"), []byte("ab"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, payloads(t, w, UserTopic("a"), StateNew))
	assert.Equal(t, []string{"a/b"}, payloads(t, w, UserTopic("a/b"), StateNew))
}

func TestSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	w := openTest(t, dir)
	seqs, err := w.Put(TapeTopic, []byte("x"), []byte("y"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w = openTest(t, dir)
	defer w.Close()
	next, err := w.Put(TapeTopic, []byte("z"))
	require.NoError(t, err)
	assert.Greater(t, next[0], seqs[1])
	assert.Equal(t, []string{"x", "y", "z"}, payloads(t, w, TapeTopic, StateNew))
}
