package service

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"cross/domain/orderbook"
	entrywal "cross/infra/wal/entry"
)

// Journal payloads are protobuf wire messages written without a schema:
//
//	1: owner (bytes)  2: side (varint)  3: size (varint)
//	4: price (varint) 5: order id (varint, cancel only)
const (
	fieldOwner   protowire.Number = 1
	fieldSide    protowire.Number = 2
	fieldSize    protowire.Number = 3
	fieldPrice   protowire.Number = 4
	fieldOrderID protowire.Number = 5
)

// Journal is the durable command log the sequencer appends to before
// applying a mutation.
type Journal interface {
	Append(r *entrywal.Record) error
	TruncateBefore(seq uint64) (int, error)
}

func recordTypeOf(op opKind) entrywal.RecordType {
	switch op {
	case opLimit:
		return entrywal.RecordLimit
	case opMarket:
		return entrywal.RecordMarket
	case opStop:
		return entrywal.RecordStop
	case opCancel:
		return entrywal.RecordCancel
	}
	panic(errors.AssertionFailedf("JOURNAL_CORRUPTION: %s is not journaled", op))
}

func opOf(t entrywal.RecordType) (opKind, error) {
	switch t {
	case entrywal.RecordLimit:
		return opLimit, nil
	case entrywal.RecordMarket:
		return opMarket, nil
	case entrywal.RecordStop:
		return opStop, nil
	case entrywal.RecordCancel:
		return opCancel, nil
	}
	return 0, errors.Newf("unknown record type %d", t)
}

func encodeRequest(req orderbook.Request) []byte {
	b := make([]byte, 0, 16+len(req.Owner))
	b = protowire.AppendTag(b, fieldOwner, protowire.BytesType)
	b = protowire.AppendString(b, req.Owner)
	b = protowire.AppendTag(b, fieldSide, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(req.Side))
	b = protowire.AppendTag(b, fieldSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(req.Size))
	if req.Price != 0 {
		b = protowire.AppendTag(b, fieldPrice, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(req.Price))
	}
	return b
}

func encodeCancel(id uint64) []byte {
	b := protowire.AppendTag(nil, fieldOrderID, protowire.VarintType)
	return protowire.AppendVarint(b, id)
}

// decodePayload reads a journal payload. Unknown fields are skipped.
func decodePayload(b []byte) (req orderbook.Request, id uint64, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return req, 0, errors.Wrap(protowire.ParseError(n), "journal tag")
		}
		b = b[n:]

		switch {
		case num == fieldOwner && typ == protowire.BytesType:
			var s string
			s, n = protowire.ConsumeString(b)
			req.Owner = s
		case typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			switch num {
			case fieldSide:
				req.Side = orderbook.Side(v)
			case fieldSize:
				req.Size = int64(v)
			case fieldPrice:
				req.Price = protowire.DecodeZigZag(v)
			case fieldOrderID:
				id = v
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return req, 0, errors.Wrapf(protowire.ParseError(n), "journal field %d", num)
		}
		b = b[n:]
	}
	return req, id, nil
}
