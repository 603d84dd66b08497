package entry

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// repairTail cuts a torn record off the end of the newest segment holding
// data, leaving only whole frames. A checksum mismatch is not a torn write
// and is returned as ErrCorrupt.
func repairTail(files []segmentFile) (cut int64, err error) {
	tail, ok, err := lastNonEmpty(files)
	if err != nil || !ok {
		return 0, err
	}

	f, err := os.OpenFile(tail.path, os.O_RDWR, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}

	var valid int64
	for {
		rec, err := readRecord(f)
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return 0, errors.Wrapf(err, "segment %s", tail.path)
		}
		valid += int64(headerSize + len(rec.Data) + 4)
	}

	if err := f.Truncate(valid); err != nil {
		return 0, errors.Wrapf(err, "truncate torn tail of %s", tail.path)
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}
	return st.Size() - valid, nil
}

// lastNonEmpty returns the newest segment with at least one byte.
func lastNonEmpty(files []segmentFile) (segmentFile, bool, error) {
	for i := len(files) - 1; i >= 0; i-- {
		st, err := os.Stat(files[i].path)
		if err != nil {
			return segmentFile{}, false, err
		}
		if st.Size() > 0 {
			return files[i], true, nil
		}
	}
	return segmentFile{}, false, nil
}
