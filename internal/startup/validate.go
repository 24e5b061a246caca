package startup

import (
	"errors"
	"fmt"
	"os"
)

// ErrDataDirNotWritable is returned when the data directory cannot be
// created or written to.
var ErrDataDirNotWritable = errors.New("data directory not writable")

// ValidateDataDir checks that the artifact root exists (creating it if
// needed) and accepts writes, so a bad --data-dir fails at startup
// instead of on the first upload.
func ValidateDataDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrDataDirNotWritable, err)
	}

	probe, err := os.CreateTemp(path, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDataDirNotWritable, err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("%w: %v", ErrDataDirNotWritable, err)
	}
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: %v", ErrDataDirNotWritable, err)
	}

	return nil
}
