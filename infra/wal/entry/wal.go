package entry

import (
	"encoding/binary"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// Sync fsyncs every append before it returns.
	Sync bool
}

// WAL is the append-only journal of accepted commands. A single writer
// appends; TruncateBefore may run from another goroutine.
type WAL struct {
	mu sync.Mutex

	cfg        Config
	current    *segment
	lastRotate time.Time
	closed     bool
}

// Open resumes the journal in a fresh segment after any existing ones, so
// segments never mix records from two process lifetimes. A record torn by
// a crash is cut off the newest segment first.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create wal dir %s", cfg.Dir)
	}
	if cfg.SegmentSize <= 0 {
		return nil, errors.Newf("segment size must be positive, got %d", cfg.SegmentSize)
	}

	existing, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if cut, err := repairTail(existing); err != nil {
		return nil, err
	} else if cut > 0 {
		slog.Warn("wal torn tail truncated", "dir", cfg.Dir, "bytes", cut)
	}
	next := 0
	if n := len(existing); n > 0 {
		next = existing[n-1].index + 1
	}

	seg, err := openSegment(cfg.Dir, next)
	if err != nil {
		return nil, errors.Wrap(err, "open wal segment")
	}

	return &WAL{
		cfg:        cfg,
		current:    seg,
		lastRotate: time.Now(),
	}, nil
}

func (w *WAL) Append(r *Record) error {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], checksum(buf[:headerSize+int(payloadLen)]))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("wal is closed")
	}
	if err := w.current.append(buf); err != nil {
		return errors.Wrapf(err, "append seq %d", r.Seq)
	}
	if w.cfg.Sync {
		if err := w.current.sync(); err != nil {
			return errors.Wrapf(err, "sync seq %d", r.Seq)
		}
	}

	if w.current.offset >= w.cfg.SegmentSize ||
		(w.cfg.SegmentDuration > 0 && time.Since(w.lastRotate) >= w.cfg.SegmentDuration) {
		return w.rotate()
	}
	return nil
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()

	seg, err := openSegment(w.cfg.Dir, w.current.index+1)
	if err != nil {
		return errors.Wrap(err, "rotate wal segment")
	}
	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// TruncateBefore removes closed segments whose records are all at or
// below seq. The open segment is always kept.
func (w *WAL) TruncateBefore(seq uint64) (removed int, err error) {
	w.mu.Lock()
	open := w.current.path
	w.mu.Unlock()

	files, err := listSegments(w.cfg.Dir)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if f.path == open {
			continue
		}
		maxSeq, err := maxSeqInSegment(f.path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(f.path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (w *WAL) Dir() string { return w.cfg.Dir }

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}
