package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// StartReaper launches a background loop that deletes artifacts older
// than maxAge from every area. Sessions delete their files best-effort,
// so orphans can accumulate; the reaper bounds how long they live. The
// loop stops when ctx is cancelled.
func (d *Disk) StartReaper(ctx context.Context, interval, maxAge time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Debug("artifact reaper stopped")
				return
			case <-ticker.C:
				d.Sweep(maxAge, log)
			}
		}
	}()
}

// Sweep removes every artifact whose modification time is older than
// maxAge and returns the number removed. Dotfiles are skipped so an
// in-flight temp write is never reaped.
func (d *Disk) Sweep(maxAge time.Duration, log *logrus.Logger) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, area := range Areas() {
		dir := filepath.Join(d.root, string(area))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				log.WithError(err).WithField("area", string(area)).Warn("reaper: read dir failed")
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				if !os.IsNotExist(err) {
					log.WithError(err).WithField("name", entry.Name()).Warn("reaper: delete failed")
				}
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		log.WithField("count", removed).Info("reaper removed stale artifacts")
	}
	return removed
}
