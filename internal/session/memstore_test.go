package session

import (
	"bytes"
	"io"
	"sync"

	"github.com/Esmaill1/image-lab/internal/artifact"
)

// memStore is an in-memory artifact.Store for tests.
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte

	// failDuplicateTo makes Duplicate into the given area fail, to
	// exercise degraded paths.
	failDuplicateTo artifact.Area
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func storeKey(area artifact.Area, h artifact.Handle) string {
	return string(area) + "/" + string(h)
}

func (s *memStore) Create(area artifact.Area, ext string, r io.Reader) (artifact.Handle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	h := artifact.NewHandle(ext)
	s.mu.Lock()
	s.files[storeKey(area, h)] = data
	s.mu.Unlock()
	return h, nil
}

func (s *memStore) Duplicate(src artifact.Area, h artifact.Handle, dst artifact.Area) (artifact.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDuplicateTo != "" && dst == s.failDuplicateTo {
		return "", artifact.ErrWriteFailed
	}
	data, ok := s.files[storeKey(src, h)]
	if !ok {
		return "", artifact.ErrNotFound
	}
	out := artifact.NewHandle(h.Ext())
	s.files[storeKey(dst, out)] = bytes.Clone(data)
	return out, nil
}

func (s *memStore) Open(area artifact.Area, h artifact.Handle) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[storeKey(area, h)]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Exists(area artifact.Area, h artifact.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[storeKey(area, h)]
	return ok
}

func (s *memStore) Delete(area artifact.Area, h artifact.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, storeKey(area, h))
	return nil
}

func (s *memStore) Path(area artifact.Area, h artifact.Handle) string {
	return "mem://" + storeKey(area, h)
}

// put stores content under an exact handle, e.g. to pre-create a preview.
func (s *memStore) put(area artifact.Area, h artifact.Handle, data []byte) {
	s.mu.Lock()
	s.files[storeKey(area, h)] = data
	s.mu.Unlock()
}

// contents returns the stored bytes, or nil when absent.
func (s *memStore) contents(area artifact.Area, h artifact.Handle) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[storeKey(area, h)]
}

// size returns the total number of stored artifacts.
func (s *memStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
