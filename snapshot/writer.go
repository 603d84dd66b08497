package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const fileName = "snapshot.bin"

type Writer struct {
	Dir string
}

// Write replaces the current image atomically: the new file is synced
// under a temporary name and renamed over the old one.
func (w *Writer) Write(s *Snapshot) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "create snapshot dir %s", w.Dir)
	}

	tmp, err := os.CreateTemp(w.Dir, fileName+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create snapshot temp file")
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(s); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "encode snapshot at seq %d", s.Seq)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return errors.Wrap(os.Rename(tmp.Name(), filepath.Join(w.Dir, fileName)), "publish snapshot")
}
