package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Disk is a Store backed by a directory tree, one subdirectory per Area
// under a single root. Writes go through a temp file and rename so a
// crash never leaves a partial artifact visible under its final name.
type Disk struct {
	root string
}

// NewDisk returns a Disk store rooted at root. Area directories are
// created lazily on write; call Init to create them eagerly at startup.
func NewDisk(root string) *Disk {
	return &Disk{root: root}
}

// Init creates the root and every area directory.
func (d *Disk) Init() error {
	for _, area := range Areas() {
		if err := os.MkdirAll(filepath.Join(d.root, string(area)), 0o755); err != nil {
			return fmt.Errorf("create %s area: %w", area, err)
		}
	}
	return nil
}

// Root returns the data root the store was created with.
func (d *Disk) Root() string {
	return d.root
}

// Path returns the filesystem path for an artifact.
func (d *Disk) Path(area Area, h Handle) string {
	return filepath.Join(d.root, string(area), string(h))
}

// Create writes r to a new artifact in area and returns its handle.
func (d *Disk) Create(area Area, ext string, r io.Reader) (Handle, error) {
	h := NewHandle(ext)
	if err := d.write(area, h, r); err != nil {
		return "", err
	}
	return h, nil
}

// Duplicate copies an existing artifact into dst under a fresh handle
// with the same extension.
func (d *Disk) Duplicate(src Area, h Handle, dst Area) (Handle, error) {
	in, err := d.Open(src, h)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out := NewHandle(h.Ext())
	if err := d.write(dst, out, in); err != nil {
		return "", err
	}
	return out, nil
}

// Open returns the artifact contents. The caller closes the reader.
func (d *Disk) Open(area Area, h Handle) (io.ReadCloser, error) {
	f, err := os.Open(d.Path(area, h))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, area, h)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Exists reports whether the artifact is present on disk.
func (d *Disk) Exists(area Area, h Handle) bool {
	_, err := os.Stat(d.Path(area, h))
	return err == nil
}

// Delete removes the artifact. Absent artifacts are ignored.
func (d *Disk) Delete(area Area, h Handle) error {
	err := os.Remove(d.Path(area, h))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// write lands content under a temp name in the target directory, then
// renames it into place.
func (d *Disk) write(area Area, h Handle, r io.Reader) error {
	dir := filepath.Join(d.root, string(area))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpName, d.Path(area, h)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}
