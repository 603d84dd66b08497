package entry

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// maxSeqInSegment returns the highest sequence in a segment. Used only to
// decide which segments a snapshot makes obsolete.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var last uint64
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return last, nil
			}
			return last, err
		}

		last = max(last, binary.BigEndian.Uint64(header[1:9]))
		payloadLen := binary.BigEndian.Uint32(header[17:21])

		if _, err := f.Seek(int64(payloadLen)+4, io.SeekCurrent); err != nil {
			return last, err
		}
	}
}
