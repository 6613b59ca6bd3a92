package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

type stagedFile struct {
	path string
	tmp  string
}

// stageFile writes data to a temp file next to path, syncs it and runs verify
// on what was read back. The temp file is removed on any failure.
func stageFile(path string, data []byte, verify func([]byte) error) (*stagedFile, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	tmp := f.Name()

	fail := func(err error) (*stagedFile, error) {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		return fail(fmt.Errorf("%w: write %s: %v", ErrIOFailure, base, err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("%w: sync %s: %v", ErrIOFailure, base, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("%w: close %s: %v", ErrIOFailure, base, err)
	}

	if verify != nil {
		written, err := os.ReadFile(tmp)
		if err != nil {
			os.Remove(tmp)
			return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		if err := verify(written); err != nil {
			os.Remove(tmp)
			return nil, fmt.Errorf("verify %s: %w", base, err)
		}
	}
	return &stagedFile{path: path, tmp: tmp}, nil
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	f, err := stageFile(path, data, nil)
	if err != nil {
		return err
	}
	if err := os.Rename(f.tmp, f.path); err != nil {
		os.Remove(f.tmp)
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	syncDir(filepath.Dir(path))
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
