package entry

import (
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, dir string, segSize int64) *WAL {
	t.Helper()
	w, err := Open(Config{Dir: dir, SegmentSize: segSize})
	require.NoError(t, err)
	return w
}

func collect(t *testing.T, dir string, after uint64) ([]*Record, uint64) {
	t.Helper()
	var got []*Record
	last, err := Replay(dir, after, func(r *Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	return got, last
}

func TestAppendReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := openTest(t, dir, 1<<20)
	at := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)

	require.NoError(t, w.Append(NewRecord(RecordLimit, 1, at, []byte("a"))))
	require.NoError(t, w.Append(NewRecord(RecordCancel, 2, at, nil)))
	require.NoError(t, w.Append(NewRecord(RecordStop, 3, at, []byte("stop"))))
	require.NoError(t, w.Close())

	got, last := collect(t, dir, 0)
	require.Len(t, got, 3)
	assert.EqualValues(t, 3, last)
	assert.Equal(t, RecordCancel, got[1].Type)
	assert.Equal(t, []byte("stop"), got[2].Data)
	assert.True(t, got[0].At().Equal(at))

	tail, last := collect(t, dir, 2)
	require.Len(t, tail, 1)
	assert.EqualValues(t, 3, tail[0].Seq)
	assert.EqualValues(t, 3, last)
}

func TestReopenContinuesInNewSegment(t *testing.T) {
	dir := t.TempDir()
	w := openTest(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordLimit, 1, time.Now(), []byte("x"))))
	require.NoError(t, w.Close())

	w = openTest(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordMarket, 2, time.Now(), []byte("y"))))
	require.NoError(t, w.Close())

	segs, err := listSegments(dir)
	require.NoError(t, err)
	assert.Len(t, segs, 2)

	got, last := collect(t, dir, 0)
	assert.Len(t, got, 2)
	assert.EqualValues(t, 2, last)
}

func TestRotateAndTruncate(t *testing.T) {
	dir := t.TempDir()
	w := openTest(t, dir, 64)
	payload := make([]byte, 48)
	for seq := uint64(1); seq <= 6; seq++ {
		require.NoError(t, w.Append(NewRecord(RecordLimit, seq, time.Now(), payload)))
	}

	segs, err := listSegments(dir)
	require.NoError(t, err)
	require.Greater(t, len(segs), 2)

	removed, err := w.TruncateBefore(4)
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	got, _ := collect(t, dir, 0)
	require.NotEmpty(t, got)
	assert.EqualValues(t, 5, got[0].Seq)
	require.NoError(t, w.Close())
}

func TestTornTailIsIgnored(t *testing.T) {
	dir := t.TempDir()
	w := openTest(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordLimit, 1, time.Now(), []byte("ok"))))
	require.NoError(t, w.Append(NewRecord(RecordLimit, 2, time.Now(), []byte("torn"))))
	path := w.current.path
	require.NoError(t, w.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	got, last := collect(t, dir, 0)
	assert.Len(t, got, 1)
	assert.EqualValues(t, 1, last)
}

func TestCorruptRecordFails(t *testing.T) {
	dir := t.TempDir()
	w := openTest(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordLimit, 1, time.Now(), []byte("payload"))))
	path := w.current.path
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[headerSize] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Replay(dir, 0, func(*Record) error { return nil })
	assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
}

func tornWAL(t *testing.T, dir string) {
	t.Helper()
	w := openTest(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordLimit, 1, time.Now(), []byte("ok"))))
	require.NoError(t, w.Append(NewRecord(RecordLimit, 2, time.Now(), []byte("torn"))))
	path := w.current.path
	require.NoError(t, w.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))
}

func TestReopenAfterTornTail(t *testing.T) {
	dir := t.TempDir()
	tornWAL(t, dir)

	w := openTest(t, dir, 1<<20)
	got, last := collect(t, dir, 0)
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, last)

	require.NoError(t, w.Append(NewRecord(RecordMarket, 2, time.Now(), []byte("again"))))
	require.NoError(t, w.Close())

	// a second restart must not trip over the repaired segment
	w = openTest(t, dir, 1<<20)
	require.NoError(t, w.Close())
	got, last = collect(t, dir, 0)
	require.Len(t, got, 2)
	assert.EqualValues(t, 2, last)
	assert.Equal(t, []byte("again"), got[1].Data)
}

func TestTornSegmentFollowedByEmptySegments(t *testing.T) {
	dir := t.TempDir()
	tornWAL(t, dir)
	for _, idx := range []int{1, 2} {
		require.NoError(t, os.WriteFile(segmentPath(dir, idx), nil, 0o644))
	}

	got, last := collect(t, dir, 0)
	assert.Len(t, got, 1)
	assert.EqualValues(t, 1, last)
}
