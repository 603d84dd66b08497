package entry

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

var ErrCorrupt = errors.New("wal record corrupt")

type ReplayHandler func(*Record) error

// Replay feeds every record with a sequence above after to fn, in order,
// and returns the last sequence seen. A torn record at the end of the
// newest segment holding data ends the log; anywhere else it is an error.
func Replay(dir string, after uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := listSegments(dir)
	if err != nil {
		return 0, err
	}
	tail, _, err := lastNonEmpty(files)
	if err != nil {
		return 0, err
	}
	lastSeq = after

	for _, sf := range files {
		lastSeq, err = replaySegment(sf.path, sf.path == tail.path, lastSeq, after, fn)
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, tail bool, lastSeq, after uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	var prev uint64
	for {
		rec, err := readRecord(f)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lastSeq, nil
			}
			if tail && errors.Is(err, io.ErrUnexpectedEOF) {
				return lastSeq, nil
			}
			return lastSeq, errors.Wrapf(err, "segment %s", path)
		}

		if rec.Seq <= prev {
			return lastSeq, errors.Wrapf(ErrCorrupt, "non-monotonic seq %d after %d in %s", rec.Seq, prev, path)
		}
		prev = rec.Seq
		if rec.Seq <= after {
			continue
		}
		if rec.Seq <= lastSeq {
			return lastSeq, errors.Wrapf(ErrCorrupt, "non-monotonic seq %d after %d", rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])

	body := make([]byte, int(l)+4)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := body[:l]
	sum := binary.BigEndian.Uint32(body[l:])
	if checksum(append(header, payload...)) != sum {
		return nil, errors.Wrapf(ErrCorrupt, "crc mismatch at seq %d", seq)
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, nil
}
