// Package gormstorage records telemetry through GORM. Rows are queued in
// memory and written in batches by a background writer.
package gormstorage

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/OCAP2/simbridge/internal/geo"
	"github.com/OCAP2/simbridge/internal/model"
	"github.com/OCAP2/simbridge/internal/model/convert"
	"github.com/OCAP2/simbridge/internal/queue"
	"github.com/OCAP2/simbridge/pkg/core"
)

const defaultFlushInterval = 2 * time.Second

// Options tunes the writer.
type Options struct {
	FlushInterval time.Duration
}

// Backend queues samples and tracks and writes them on an interval and at
// Close. A nil DB keeps everything in the queues.
type Backend struct {
	db   *gorm.DB
	opts Options
	log  zerolog.Logger

	samples *queue.Queue[model.EntitySample]
	tracks  *queue.Queue[model.EntityTrack]

	recordingID atomic.Uint64
	recorded    atomic.Uint64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

func New(db *gorm.DB, opts Options, log zerolog.Logger) *Backend {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		db:   db,
		opts: opts,
		log:  log,
		now:  time.Now,
	}
}

// Init creates the queues and starts the writer.
func (b *Backend) Init() error {
	b.samples = queue.New[model.EntitySample]()
	b.tracks = queue.New[model.EntityTrack]()
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.writer()
	return nil
}

// StartRecording inserts the recording row that later samples reference.
func (b *Backend) StartRecording(name, source string, started time.Time) error {
	if b.db == nil {
		return nil
	}
	rec := model.Recording{Name: name, Source: source, StartedAt: started}
	if err := b.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to insert recording: %w", err)
	}
	b.recordingID.Store(uint64(rec.ID))
	b.log.Info().Uint("recordingId", rec.ID).Str("name", name).Msg("Recording started")
	return nil
}

// RecordingID is the current recording row, 0 before StartRecording.
func (b *Backend) RecordingID() uint {
	return uint(b.recordingID.Load())
}

func (b *Backend) RecordSnapshot(snap *core.SimulationSnapshot) error {
	b.samples.Push(convert.SnapshotToSamples(*snap, b.RecordingID(), b.now())...)
	b.recorded.Add(1)
	return nil
}

func (b *Backend) RecordTrack(tr *geo.Trajectory) error {
	if tr.Len() < 2 {
		return nil
	}
	b.tracks.Push(convert.TrackToModel(tr, b.RecordingID()))
	return nil
}

// Pending reports queued rows not yet written.
func (b *Backend) Pending() (samples, tracks int) {
	return b.samples.Len(), b.tracks.Len()
}

// Flush writes every queued row now.
func (b *Backend) Flush() {
	if b.db == nil {
		return
	}
	writeQueue(b.db, b.samples, "entity samples", b.log)
	writeQueue(b.db, b.tracks, "entity tracks", b.log)
}

func (b *Backend) writer() {
	defer close(b.done)
	ticker := time.NewTicker(b.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// Close stops the writer, flushes what is left and closes the recording row.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.stop == nil {
			return
		}
		close(b.stop)
		<-b.done
		b.Flush()
		err = b.endRecording()
	})
	return err
}

func (b *Backend) endRecording() error {
	id := b.RecordingID()
	if b.db == nil || id == 0 {
		return nil
	}
	err := b.db.Model(&model.Recording{}).Where("id = ?", id).Updates(map[string]any{
		"ended_at":  sql.NullTime{Time: b.now(), Valid: true},
		"snapshots": b.recorded.Load(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close recording %d: %w", id, err)
	}
	return nil
}

// writeQueue drains q in one transaction. On failure the rows go back on
// the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger) {
	if q.Empty() {
		return
	}

	items := q.GetAndEmpty()
	start := time.Now()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("table", name).Int("rows", len(items)).Msg("Error writing rows")
		tx.Rollback()
		q.Push(items...)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log.Error().Err(err).Str("table", name).Msg("Error committing rows")
		q.Push(items...)
		return
	}
	log.Debug().Str("table", name).Int("rows", len(items)).Dur("duration", time.Since(start)).Msg("Wrote rows")
}
