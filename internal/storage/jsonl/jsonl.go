// Package jsonl records snapshots as JSON lines, zstd-compressed by default,
// in files rotated on a fixed period.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/geo"
	"github.com/OCAP2/simbridge/pkg/core"
)

const (
	prefix       = "telemetry"
	periodLayout = "20060102-150405"
)

// Record is one line of a recording file. Exactly one of Snapshot and
// Track is set.
type Record struct {
	Received time.Time                `json:"received"`
	Snapshot *core.SimulationSnapshot `json:"snapshot,omitempty"`
	Track    *Track                   `json:"track,omitempty"`
}

// Track is the path of one entity, written when the recording closes.
type Track struct {
	Entity string  `json:"entity"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Points int     `json:"points"`
	WKT    string  `json:"wkt"` // EPSG:3857 LINESTRING Z
}

type Backend struct {
	cfg config.JSONLConfig
	log zerolog.Logger
	now func() time.Time

	mu      sync.Mutex
	period  time.Time
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	written []string
}

func New(cfg config.JSONLConfig, log zerolog.Logger) *Backend {
	return &Backend{cfg: cfg, log: log, now: time.Now}
}

func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

func (b *Backend) RecordSnapshot(snap *core.SimulationSnapshot) error {
	now := b.now()
	cp := *snap
	return b.write(now, Record{Received: now, Snapshot: &cp})
}

func (b *Backend) RecordTrack(tr *geo.Trajectory) error {
	if tr.Len() < 2 {
		return nil
	}
	start, end := tr.Span()
	now := b.now()
	return b.write(now, Record{Received: now, Track: &Track{
		Entity: tr.Entity,
		Start:  start,
		End:    end,
		Points: tr.Len(),
		WKT:    tr.LineString().AsText(),
	}})
}

// Files lists every file written so far, oldest first.
func (b *Backend) Files() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.written...)
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Backend) write(now time.Time, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	period := now.UTC()
	if b.cfg.Rotate > 0 {
		period = period.Truncate(b.cfg.Rotate)
	}
	if b.w == nil || (b.cfg.Rotate > 0 && !period.Equal(b.period)) {
		if err := b.rotateLocked(period); err != nil {
			return err
		}
	}

	if _, err := b.w.Write(data); err != nil {
		return err
	}
	if err := b.w.WriteByte('\n'); err != nil {
		return err
	}
	return b.w.Flush()
}

func (b *Backend) path(period time.Time) string {
	name := fmt.Sprintf("%s-%s.jsonl", prefix, period.Format(periodLayout))
	if b.cfg.CompressOutput {
		name += ".zst"
	}
	return filepath.Join(b.cfg.OutputDir, name)
}

func (b *Backend) rotateLocked(period time.Time) error {
	if err := b.closeLocked(); err != nil {
		return err
	}
	path := b.path(period)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	var out io.Writer = f
	if b.cfg.CompressOutput {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return err
		}
		b.enc = enc
		out = enc
	}
	b.f = f
	b.w = bufio.NewWriterSize(out, 128*1024)
	b.period = period
	b.written = append(b.written, path)
	b.log.Debug().Str("path", path).Msg("Opened recording file")
	return nil
}

func (b *Backend) closeLocked() error {
	var err error
	if b.w != nil {
		err = b.w.Flush()
		b.w = nil
	}
	if b.enc != nil {
		if encErr := b.enc.Close(); encErr != nil && err == nil {
			err = encErr
		}
		b.enc = nil
	}
	if b.f != nil {
		if fErr := b.f.Close(); fErr != nil && err == nil {
			err = fErr
		}
		b.f = nil
	}
	return err
}

// ReadFile decodes every record of one recording file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}

	var out []Record
	d := json.NewDecoder(r)
	for {
		var rec Record
		if err := d.Decode(&rec); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, fmt.Errorf("%s: record %d: %w", path, len(out), err)
		}
		out = append(out, rec)
	}
}

// ReadDir decodes every recording file in dir in file name order.
func ReadDir(dir string) ([]Record, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var out []Record
	for _, m := range matches {
		recs, err := ReadFile(m)
		if err != nil {
			return out, err
		}
		out = append(out, recs...)
	}
	return out, nil
}
