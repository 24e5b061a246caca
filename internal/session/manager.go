// Package session tracks per-user edit state: the original upload, the
// ordered history of working copies, and the labels of the operations
// that produced them. All mutation goes through the Manager, which
// serializes transitions per session and owns artifact cleanup.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Esmaill1/image-lab/internal/artifact"
)

const (
	// MaxSessions bounds concurrent sessions. When full, the least
	// recently active session is evicted.
	MaxSessions = 1000

	// DefaultTimeout is how long a session survives without activity.
	DefaultTimeout = 24 * time.Hour

	// cleanupInterval is how often expired sessions are collected.
	cleanupInterval = 1 * time.Hour
)

var (
	// ErrNoSession indicates no active session exists for the id.
	ErrNoSession = errors.New("no active session")

	// ErrNothingToUndo indicates the history holds only the initial
	// working copy.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrArtifactMissing indicates a history entry vanished from the
	// store. The session is destroyed when this is detected.
	ErrArtifactMissing = errors.New("working image missing")

	// ErrOriginalMissing indicates the original upload vanished from
	// the store. The session is destroyed when this is detected.
	ErrOriginalMissing = errors.New("original image missing")
)

// Snapshot is a read-only view of a session taken under its lock.
type Snapshot struct {
	Original  artifact.Handle // pristine upload
	Current   artifact.Handle // top of the working history
	Processed artifact.Handle // latest download copy, zero if none yet
	Labels    []string        // one label per applied operation
	CanUndo   bool
}

// state is the mutable record for one session. mu serializes every
// transition, including the artifact production inside Apply, so
// concurrent requests on one session can never interleave a
// read-modify-write. The invariant len(labels) == len(history)-1 holds
// whenever mu is released.
type state struct {
	mu        sync.Mutex
	original  artifact.Handle
	history   []artifact.Handle
	labels    []string
	processed artifact.Handle
	cleared   bool

	// lastActivity is guarded by the Manager's lock, not mu.
	lastActivity time.Time
}

// ProduceFunc creates the next working artifact from the current one.
// It runs under the session lock, so at most one production is in
// flight per session.
type ProduceFunc func(current artifact.Handle) (artifact.Handle, error)

// Manager owns every session and the artifacts they reference.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*state

	store   artifact.Store
	log     *logrus.Logger
	timeout time.Duration

	cancelCleanup context.CancelFunc
	cleanupDone   chan struct{}
}

// NewManager creates a Manager and starts its expiry loop. Call
// Shutdown to stop the loop. A timeout of zero or less falls back to
// DefaultTimeout.
func NewManager(store artifact.Store, log *logrus.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := &Manager{
		sessions: make(map[string]*state),
		store:    store,
		log:      log,
		timeout:  timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelCleanup = cancel
	m.cleanupDone = make(chan struct{})
	go m.cleanupLoop(ctx)

	return m
}

// Start begins a fresh session for id around an uploaded original. Any
// existing session for the id is cleared first, artifacts included. The
// initial working copy is a duplicate of the upload, so the original is
// never written to again.
func (m *Manager) Start(id string, upload artifact.Handle) (Snapshot, error) {
	m.Clear(id)

	working, err := m.store.Duplicate(artifact.Uploads, upload, artifact.Working)
	if err != nil {
		return Snapshot{}, err
	}

	st := &state{
		original:     upload,
		history:      []artifact.Handle{working},
		labels:       []string{},
		lastActivity: time.Now(),
	}

	m.mu.Lock()
	var evictedID string
	var evicted *state
	if len(m.sessions) >= MaxSessions {
		evictedID, evicted = m.evictOldestLocked()
	}
	m.sessions[id] = st
	m.mu.Unlock()

	if evicted != nil {
		m.discard(evictedID, evicted, "evicted")
	}

	m.log.WithFields(logrus.Fields{
		"session":  id,
		"original": upload.String(),
	}).Info("session started")

	st.mu.Lock()
	defer st.mu.Unlock()
	return snapshotLocked(st), nil
}

// Apply runs one operation: it verifies the current working copy still
// exists, calls produce to create its successor, then appends the new
// entry and label. If produce fails the session is unchanged. If the
// current artifact has vanished the session is destroyed and
// ErrArtifactMissing returned.
func (m *Manager) Apply(id, label string, produce ProduceFunc) (Snapshot, error) {
	st, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cleared {
		return Snapshot{}, ErrNoSession
	}

	current := st.history[len(st.history)-1]
	if !m.store.Exists(artifact.Working, current) {
		m.teardownLocked(id, st)
		return Snapshot{}, ErrArtifactMissing
	}

	next, err := produce(current)
	if err != nil {
		return Snapshot{}, err
	}

	st.history = append(st.history, next)
	st.labels = append(st.labels, label)

	// Full-resolution download copy. Failure here downgrades the
	// session to preview-only until the next apply; it does not fail
	// the operation.
	if processed, err := m.store.Duplicate(artifact.Working, next, artifact.Processed); err != nil {
		m.log.WithError(err).WithField("session", id).Warn("processed copy failed")
	} else {
		st.processed = processed
	}

	return snapshotLocked(st), nil
}

// Undo pops the most recent operation and returns its label. The
// popped artifact and its preview are deleted immediately; nothing
// references them once the history shrinks. If the artifact being
// restored has vanished the session is destroyed and ErrArtifactMissing
// returned.
func (m *Manager) Undo(id string) (string, Snapshot, error) {
	st, err := m.get(id)
	if err != nil {
		return "", Snapshot{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cleared {
		return "", Snapshot{}, ErrNoSession
	}
	if len(st.history) < 2 {
		return "", Snapshot{}, ErrNothingToUndo
	}

	restored := st.history[len(st.history)-2]
	if !m.store.Exists(artifact.Working, restored) {
		m.teardownLocked(id, st)
		return "", Snapshot{}, ErrArtifactMissing
	}

	popped := st.history[len(st.history)-1]
	st.history = st.history[:len(st.history)-1]
	undone := st.labels[len(st.labels)-1]
	st.labels = st.labels[:len(st.labels)-1]

	m.deleteWorking(id, popped)

	return undone, snapshotLocked(st), nil
}

// Reset rewinds to a fresh duplicate of the original: the history
// becomes that single entry and the labels empty. Superseded working
// copies are deleted. If the original has vanished the session is
// destroyed and ErrOriginalMissing returned.
func (m *Manager) Reset(id string) (Snapshot, error) {
	st, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cleared {
		return Snapshot{}, ErrNoSession
	}

	if !m.store.Exists(artifact.Uploads, st.original) {
		m.teardownLocked(id, st)
		return Snapshot{}, ErrOriginalMissing
	}

	fresh, err := m.store.Duplicate(artifact.Uploads, st.original, artifact.Working)
	if err != nil {
		return Snapshot{}, err
	}

	old := st.history
	st.history = []artifact.Handle{fresh}
	st.labels = []string{}
	for _, h := range old {
		m.deleteWorking(id, h)
	}

	return snapshotLocked(st), nil
}

// Current returns a snapshot without modifying the session.
func (m *Manager) Current(id string) (Snapshot, error) {
	st, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cleared {
		return Snapshot{}, ErrNoSession
	}
	return snapshotLocked(st), nil
}

// Clear destroys the session and every artifact it references: the
// original, all working copies, their previews, and the processed
// copy. Clearing an absent session is a no-op. Deletion is
// best-effort; the reaper collects anything that survives.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	st, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cleared {
		return
	}
	st.cleared = true
	m.removeArtifacts(id, st)

	m.log.WithField("session", id).Info("session cleared")
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops the expiry loop and waits for it to exit. Sessions and
// their artifacts are left in place for the reaper.
func (m *Manager) Shutdown() {
	m.cancelCleanup()
	<-m.cleanupDone
}

// get fetches the session for id and refreshes its activity time.
func (m *Manager) get(id string) (*state, error) {
	m.mu.RLock()
	st, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}

	m.mu.Lock()
	st.lastActivity = time.Now()
	m.mu.Unlock()

	return st, nil
}

// snapshotLocked builds a Snapshot. st.mu must be held, and st must be
// live (history never empty).
func snapshotLocked(st *state) Snapshot {
	labels := make([]string, len(st.labels))
	copy(labels, st.labels)
	return Snapshot{
		Original:  st.original,
		Current:   st.history[len(st.history)-1],
		Processed: st.processed,
		Labels:    labels,
		CanUndo:   len(st.history) > 1,
	}
}

// teardownLocked destroys a session whose backing files have gone
// missing. st.mu must be held; m.mu must not be held. The map entry is
// removed so later calls see ErrNoSession.
func (m *Manager) teardownLocked(id string, st *state) {
	st.cleared = true

	m.mu.Lock()
	if m.sessions[id] == st {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	m.removeArtifacts(id, st)
	m.log.WithField("session", id).Warn("session destroyed, backing artifact missing")
}

// discard tears down a session already removed from the map by expiry
// or eviction.
func (m *Manager) discard(id string, st *state, reason string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cleared {
		return
	}
	st.cleared = true
	m.removeArtifacts(id, st)

	m.log.WithFields(logrus.Fields{
		"session": id,
		"reason":  reason,
	}).Info("session discarded")
}

// removeArtifacts deletes every file a session references. Failures are
// logged and left for the reaper. Caller holds st.mu.
func (m *Manager) removeArtifacts(id string, st *state) {
	del := func(area artifact.Area, h artifact.Handle) {
		if err := m.store.Delete(area, h); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"session":  id,
				"artifact": h.String(),
			}).Warn("artifact delete failed")
		}
	}

	if st.original != "" {
		del(artifact.Uploads, st.original)
		del(artifact.Previews, st.original.Preview())
	}
	for _, h := range st.history {
		del(artifact.Working, h)
		del(artifact.Previews, h.Preview())
	}
	if st.processed != "" {
		del(artifact.Processed, st.processed)
	}

	st.history = nil
	st.labels = nil
	st.processed = ""
}

// deleteWorking removes a working artifact and its derived preview.
func (m *Manager) deleteWorking(id string, h artifact.Handle) {
	for _, target := range []struct {
		area artifact.Area
		h    artifact.Handle
	}{
		{artifact.Working, h},
		{artifact.Previews, h.Preview()},
	} {
		if err := m.store.Delete(target.area, target.h); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"session":  id,
				"artifact": target.h.String(),
			}).Warn("artifact delete failed")
		}
	}
}

// evictOldestLocked removes the least recently active session from the
// map and returns it for teardown. m.mu must be held for writing.
func (m *Manager) evictOldestLocked() (string, *state) {
	var oldestID string
	var oldest *state
	for id, st := range m.sessions {
		if oldest == nil || st.lastActivity.Before(oldest.lastActivity) {
			oldestID = id
			oldest = st
		}
	}
	if oldest == nil {
		return "", nil
	}
	delete(m.sessions, oldestID)
	return oldestID, oldest
}

// cleanupLoop periodically expires inactive sessions until its context
// is cancelled.
func (m *Manager) cleanupLoop(ctx context.Context) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanupInactive()
		}
	}
}

// cleanupInactive removes sessions idle longer than the timeout.
func (m *Manager) cleanupInactive() {
	cutoff := time.Now().Add(-m.timeout)

	m.mu.Lock()
	expired := make(map[string]*state)
	for id, st := range m.sessions {
		if st.lastActivity.Before(cutoff) {
			expired[id] = st
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for id, st := range expired {
		m.discard(id, st, "expired")
	}
}
