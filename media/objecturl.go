package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ObjectURL is a temporary addressable handle for an in-memory blob, backed by
// a temp file so external decoders can open it by path. The creator owns it
// and must Revoke it; revocation happens exactly once.
type ObjectURL struct {
	path string
	once sync.Once
	err  error
}

// NewObjectURL writes the blob into dir (the system temp dir when empty).
func NewObjectURL(dir string, f *FileHandle) (*ObjectURL, error) {
	ext := filepath.Ext(f.Name)
	tmp, err := os.CreateTemp(dir, "gowarp-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create object url: %w", err)
	}
	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write object url: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to close object url: %w", err)
	}
	return &ObjectURL{path: tmp.Name()}, nil
}

// Path returns the address of the handle.
func (o *ObjectURL) Path() string {
	return o.path
}

// Revoke frees the blob. Subsequent calls return the first result.
func (o *ObjectURL) Revoke() error {
	o.once.Do(func() {
		if err := os.Remove(o.path); err != nil && !os.IsNotExist(err) {
			o.err = fmt.Errorf("failed to revoke object url: %w", err)
		}
	})
	return o.err
}
