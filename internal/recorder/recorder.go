// Package recorder drains telemetry into a storage backend.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/simbridge/internal/codec"
	"github.com/OCAP2/simbridge/internal/dispatcher"
	"github.com/OCAP2/simbridge/internal/geo"
	"github.com/OCAP2/simbridge/internal/logging"
	intotel "github.com/OCAP2/simbridge/internal/otel"
	"github.com/OCAP2/simbridge/internal/parser"
	"github.com/OCAP2/simbridge/internal/storage"
	"github.com/OCAP2/simbridge/pkg/core"
)

const instrumentationName = "github.com/OCAP2/simbridge/internal/recorder"

// RecordCommand is the dispatcher command carrying one frame's codec text.
const RecordCommand = ":RECORD:SNAPSHOT:"

const (
	DefaultPoll  = 50 * time.Millisecond
	defaultQueue = 1000
)

// Source is the consumer side of a telemetry subscription.
type Source interface {
	IsDataAvailable() bool
	TakeNext() (core.SimulationSnapshot, error)
}

// Options configures a Recorder.
type Options struct {
	Name        string // recording name, defaults to "recording"
	Source      string // publisher address kept with the recording
	Poll        time.Duration
	QueueSize   int
	StatusFile  string // rewritten every StatusEvery when set
	StatusEvery time.Duration
}

// Recorder drains every buffered frame on each poll, oldest first, and
// hands frames newer than the last recorded one to the backend through a
// buffered dispatcher queue.
type Recorder struct {
	src     Source
	backend storage.Backend
	opts    Options
	log     zerolog.Logger

	d      *dispatcher.Dispatcher
	parser *parser.Parser

	last    float64 // newest timestamp handed to the queue
	mu      sync.Mutex
	tracks  map[string]*geo.Trajectory
	started time.Time

	recorded atomic.Int64
	stale    atomic.Int64
	failed   atomic.Int64

	recordedCounter metric.Int64Counter
	staleCounter    metric.Int64Counter

	closeOnce sync.Once
	closeErr  error
}

// New creates a recorder, registers its queue and starts the recording on
// backends that keep recording metadata. The backend must already be
// initialized.
func New(src Source, backend storage.Backend, opts Options, log zerolog.Logger) (*Recorder, error) {
	if opts.Name == "" {
		opts.Name = "recording"
	}
	if opts.Poll <= 0 {
		opts.Poll = DefaultPoll
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueue
	}
	if opts.StatusEvery <= 0 {
		opts.StatusEvery = time.Second
	}

	d, err := dispatcher.New(logging.NewZerologAdapter(log))
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	r := &Recorder{
		src:     src,
		backend: backend,
		opts:    opts,
		log:     log,
		d:       d,
		parser:  parser.NewParser(nil),
		last:    -1,
		tracks:  make(map[string]*geo.Trajectory),
		started: time.Now(),

		recordedCounter: intotel.Counter(instrumentationName, "recorder.snapshots.recorded", "Snapshots written to storage"),
		staleCounter:    intotel.Counter(instrumentationName, "recorder.snapshots.stale", "Frames skipped as already recorded"),
	}
	r.RegisterHandlers(d)

	if rs, ok := backend.(storage.RecordingStarter); ok {
		if err := rs.StartRecording(opts.Name, opts.Source, r.started); err != nil {
			d.Close()
			return nil, fmt.Errorf("start recording: %w", err)
		}
	}
	return r, nil
}

// RegisterHandlers registers the recording queue. A full queue blocks the
// drain instead of dropping frames.
func (r *Recorder) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(RecordCommand, r.handleRecord, dispatcher.Buffered(r.opts.QueueSize), dispatcher.Blocking())
}

func (r *Recorder) handleRecord(e dispatcher.Event) (any, error) {
	snap, err := r.parser.ParseSnapshot(e.Args)
	if err != nil {
		r.failed.Add(1)
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if err := r.backend.RecordSnapshot(&snap); err != nil {
		r.failed.Add(1)
		r.log.Error().Err(err).Float64("timestamp", snap.Timestamp).Msg("Failed to record snapshot")
		return nil, err
	}

	r.mu.Lock()
	for name, s := range snap.Entities {
		tr, ok := r.tracks[name]
		if !ok {
			tr = geo.NewTrajectory(name)
			r.tracks[name] = tr
		}
		tr.Append(snap.Timestamp, geo.FromState(s))
	}
	r.mu.Unlock()

	r.recorded.Add(1)
	r.recordedCounter.Add(context.Background(), 1)
	return nil, nil
}

// Run polls the source until ctx is done, then takes one last drain.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Poll)
	defer ticker.Stop()

	var status <-chan time.Time
	if r.opts.StatusFile != "" {
		st := time.NewTicker(r.opts.StatusEvery)
		defer st.Stop()
		status = st.C
	}

	for {
		select {
		case <-ctx.Done():
			r.Drain()
			return
		case <-ticker.C:
			r.Drain()
		case <-status:
			if err := r.WriteStatus(r.opts.StatusFile); err != nil {
				r.log.Warn().Err(err).Str("path", r.opts.StatusFile).Msg("Could not write status file")
			}
		}
	}
}

// Drain takes every buffered frame and queues the new ones in timestamp
// order. It returns how many were queued.
func (r *Recorder) Drain() int {
	var batch []core.SimulationSnapshot
	for r.src.IsDataAvailable() {
		snap, err := r.src.TakeNext()
		if err != nil {
			break
		}
		batch = append(batch, snap)
	}
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Timestamp < batch[j].Timestamp })

	queued := 0
	for _, snap := range batch {
		if snap.Timestamp <= r.last {
			r.stale.Add(1)
			r.staleCounter.Add(context.Background(), 1)
			continue
		}
		text, err := codec.EncodeString(snap)
		if err != nil {
			r.log.Warn().Err(err).Float64("timestamp", snap.Timestamp).Msg("Could not encode frame")
			continue
		}
		if _, err := r.d.Dispatch(dispatcher.Event{Command: RecordCommand, Args: []string{text}}); err != nil {
			r.log.Error().Err(err).Msg("Frame not queued")
			continue
		}
		r.last = snap.Timestamp
		queued++
	}
	return queued
}

// Close drains the queue, writes entity tracks to backends that keep them
// and closes the backend. Safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.d.Close()

		var errs []error
		if tw, ok := r.backend.(storage.TrackRecorder); ok {
			for _, tr := range r.Tracks() {
				if err := tw.RecordTrack(tr); err != nil {
					errs = append(errs, fmt.Errorf("track %s: %w", tr.Entity, err))
				}
			}
		}
		if err := r.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
		r.closeErr = errors.Join(errs...)

		if r.opts.StatusFile != "" {
			if err := r.WriteStatus(r.opts.StatusFile); err != nil {
				r.log.Warn().Err(err).Msg("Could not write final status")
			}
		}
		st := r.Status()
		r.log.Info().Int64("recorded", st.Recorded).Int64("stale", st.Stale).Int64("failed", st.Failed).Msg("Recorder closed")
	})
	return r.closeErr
}

// Tracks returns the accumulated entity paths in name order.
func (r *Recorder) Tracks() []*geo.Trajectory {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*geo.Trajectory, 0, len(r.tracks))
	for _, tr := range r.tracks {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}
