package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status is a point-in-time view of a recorder.
type Status struct {
	Time     time.Time `json:"time"`
	Name     string    `json:"name"`
	Uptime   string    `json:"uptime"`
	Recorded int64     `json:"recorded"`
	Stale    int64     `json:"stale"`
	Failed   int64     `json:"failed"`
	Entities int       `json:"entities"`

	// Rows waiting for the next database flush, for backends that batch.
	PendingSamples int `json:"pendingSamples,omitempty"`
	PendingTracks  int `json:"pendingTracks,omitempty"`
}

type pendingReporter interface {
	Pending() (samples, tracks int)
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	entities := len(r.tracks)
	r.mu.Unlock()

	st := Status{
		Time:     time.Now(),
		Name:     r.opts.Name,
		Uptime:   time.Since(r.started).Round(time.Second).String(),
		Recorded: r.recorded.Load(),
		Stale:    r.stale.Load(),
		Failed:   r.failed.Load(),
		Entities: entities,
	}
	if p, ok := r.backend.(pendingReporter); ok {
		st.PendingSamples, st.PendingTracks = p.Pending()
	}
	return st
}

// WriteStatus replaces path with the current status as indented JSON.
func (r *Recorder) WriteStatus(path string) error {
	data, err := json.MarshalIndent(r.Status(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return os.Rename(tmp, path)
}
