package exit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Topics --------------------

// TapeTopic holds executions waiting to be published to the broker.
const TapeTopic = "tape"

// UserTopic holds notifications for an owner with no live session.
func UserTopic(owner string) string {
	return "user/" + url.PathEscape(owner)
}

// -------------------- Record --------------------

// Entry is one outbound message and its delivery state.
type Entry struct {
	Topic       string
	Seq         uint64
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// value layout: [state:1][retries:4][lastAttempt:8][payload]
const metaSize = 1 + 4 + 8

func encodeEntry(e Entry) []byte {
	buf := make([]byte, metaSize+len(e.Payload))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	copy(buf[metaSize:], e.Payload)
	return buf
}

func decodeEntry(topic string, seq uint64, b []byte) (Entry, error) {
	if len(b) < metaSize {
		return Entry{}, errors.Newf("outbox record %s/%d too short (%d bytes)", topic, seq, len(b))
	}
	return Entry{
		Topic:       topic,
		Seq:         seq,
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     bytes.Clone(b[metaSize:]),
	}, nil
}

// -------------------- WAL --------------------

// ExitWAL is a durable outbox on pebble. Keys are "<topic>/<seq>", so a
// topic scans in insertion order.
type ExitWAL struct {
	db  *pebble.DB
	seq atomic.Uint64
}

func Open(dir string) (*ExitWAL, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", dir)
	}
	w := &ExitWAL{db: db}
	if err := w.recoverSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// Put appends payloads to topic in one synced batch and returns their
// sequence numbers.
func (w *ExitWAL) Put(topic string, payloads ...[]byte) ([]uint64, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	b := w.db.NewBatch()
	defer b.Close()

	seqs := make([]uint64, len(payloads))
	for i, p := range payloads {
		seqs[i] = w.seq.Add(1)
		if err := b.Set(keyFor(topic, seqs[i]), encodeEntry(Entry{State: StateNew, Payload: p}), nil); err != nil {
			return nil, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return nil, errors.Wrapf(err, "commit outbox batch on %s", topic)
	}
	return seqs, nil
}

// UpdateState records a delivery attempt outcome, keeping the payload.
func (w *ExitWAL) UpdateState(topic string, seq uint64, state ExitState, retries uint32) error {
	e, err := w.Get(topic, seq)
	if err != nil {
		return err
	}
	e.State = state
	e.Retries = retries
	e.LastAttempt = time.Now().UnixNano()
	return w.db.Set(keyFor(topic, seq), encodeEntry(e), pebble.Sync)
}

func (w *ExitWAL) MarkSent(e Entry) error {
	return w.UpdateState(e.Topic, e.Seq, StateSent, e.Retries)
}

func (w *ExitWAL) MarkAcked(e Entry) error {
	return w.UpdateState(e.Topic, e.Seq, StateAcked, e.Retries)
}

func (w *ExitWAL) MarkFailed(e Entry) error {
	return w.UpdateState(e.Topic, e.Seq, StateFailed, e.Retries+1)
}

func (w *ExitWAL) Delete(topic string, seq uint64) error {
	return w.db.Delete(keyFor(topic, seq), pebble.Sync)
}

func (w *ExitWAL) Get(topic string, seq uint64) (Entry, error) {
	val, closer, err := w.db.Get(keyFor(topic, seq))
	if err != nil {
		return Entry{}, errors.Wrapf(err, "outbox %s/%d", topic, seq)
	}
	defer closer.Close()

	return decodeEntry(topic, seq, val)
}

// -------------------- Scan --------------------

// Scan visits every entry of topic in sequence order.
func (w *ExitWAL) Scan(topic string, fn func(Entry) error) error {
	prefix := []byte(topic + "/")
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: append(bytes.Clone(prefix), 0xff),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseSeq(iter.Key(), len(prefix))
		if err != nil {
			return err
		}
		e, err := decodeEntry(topic, seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

// ScanByState visits the entries of topic in any of the given states.
func (w *ExitWAL) ScanByState(topic string, fn func(Entry) error, states ...ExitState) error {
	return w.Scan(topic, func(e Entry) error {
		for _, s := range states {
			if e.State == s {
				return fn(e)
			}
		}
		return nil
	})
}

// DeleteAcked removes delivered entries of topic.
func (w *ExitWAL) DeleteAcked(topic string) (int, error) {
	var seqs []uint64
	err := w.ScanByState(topic, func(e Entry) error {
		seqs = append(seqs, e.Seq)
		return nil
	}, StateAcked)
	if err != nil {
		return 0, err
	}
	for _, s := range seqs {
		if err := w.Delete(topic, s); err != nil {
			return 0, err
		}
	}
	return len(seqs), nil
}

// -------------------- Helpers --------------------

func (w *ExitWAL) recoverSeq() error {
	iter, err := w.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()

	var hi uint64
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		i := bytes.LastIndexByte(k, '/')
		if i < 0 {
			continue
		}
		if seq, err := parseSeq(k, i+1); err == nil {
			hi = max(hi, seq)
		}
	}
	w.seq.Store(hi)
	return iter.Error()
}

func keyFor(topic string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s/%020d", topic, seq))
}

func parseSeq(key []byte, offset int) (uint64, error) {
	if offset > len(key) {
		return 0, errors.Newf("malformed outbox key %q", key)
	}
	return strconv.ParseUint(string(key[offset:]), 10, 64)
}
