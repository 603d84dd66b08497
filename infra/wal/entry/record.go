package entry

import "time"

type RecordType uint8

const (
	RecordLimit RecordType = iota + 1
	RecordMarket
	RecordStop
	RecordCancel
)

func (t RecordType) String() string {
	switch t {
	case RecordLimit:
		return "limit"
	case RecordMarket:
		return "market"
	case RecordStop:
		return "stop"
	case RecordCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Record is one journaled command. Time is the command's acceptance time
// so replay reproduces the same order timestamps.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, at time.Time, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: at.UnixNano(),
		Data: data,
	}
}

func (r *Record) At() time.Time {
	return time.Unix(0, r.Time).UTC()
}

// frame layout: [type:1][seq:8][time:8][len:4][payload][crc:4]
const headerSize = 1 + 8 + 8 + 4
