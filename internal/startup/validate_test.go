package startup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateDataDir_ExistingDir(t *testing.T) {
	if err := ValidateDataDir(t.TempDir()); err != nil {
		t.Errorf("ValidateDataDir() error = %v, want nil", err)
	}
}

func TestValidateDataDir_CreatesMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data")

	if err := ValidateDataDir(path); err != nil {
		t.Fatalf("ValidateDataDir() error = %v, want nil", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat after validate: %v", err)
	}
	if !info.IsDir() {
		t.Error("created path is not a directory")
	}
}

func TestValidateDataDir_LeavesNoProbeFiles(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateDataDir(dir); err != nil {
		t.Fatalf("ValidateDataDir() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("directory has %d leftover entries, want 0", len(entries))
	}
}

func TestValidateDataDir_NotWritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks do not apply")
	}

	dir := filepath.Join(t.TempDir(), "readonly")
	if err := os.Mkdir(dir, 0o555); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	err := ValidateDataDir(dir)
	if !errors.Is(err, ErrDataDirNotWritable) {
		t.Errorf("ValidateDataDir() error = %v, want ErrDataDirNotWritable", err)
	}
}
