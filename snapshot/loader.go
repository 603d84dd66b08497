package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Load reads the image in dir. A missing image is not an error: it returns
// nil and recovery starts from an empty book.
func Load(dir string) (*Snapshot, error) {
	f, err := os.Open(filepath.Join(dir, fileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot")
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	if s.Version != Version {
		return nil, errors.Newf("snapshot version %d, want %d", s.Version, Version)
	}
	return &s, nil
}
