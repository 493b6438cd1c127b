package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	v1 "github.com/OCAP2/simbridge/internal/storage/memory/export/v1"
)

func (b *Backend) exportLocked(ended time.Time) (string, error) {
	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	doc := v1.Build(v1.RecordingData{
		Name:      b.name,
		Source:    b.source,
		StartedAt: b.startedAt,
		EndedAt:   ended,
		Snapshots: b.snapshots,
		Tracks:    b.tracks,
	})

	name := fmt.Sprintf("%s_%s.json", safeName(b.name), b.startedAt.UTC().Format("20060102_150405"))
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	path := filepath.Join(b.cfg.OutputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}
	defer f.Close()

	if !b.cfg.CompressOutput {
		return path, writeJSON(f, doc)
	}
	gz := gzip.NewWriter(f)
	if err := writeJSON(gz, doc); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("close gzip: %w", err)
	}
	return path, nil
}

func writeJSON(w io.Writer, doc v1.Export) error {
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// ReadExport loads a document written at Close.
func ReadExport(path string) (v1.Export, error) {
	var doc v1.Export
	f, err := os.Open(path)
	if err != nil {
		return doc, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return doc, err
		}
		defer gz.Close()
		r = gz
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode export: %w", err)
	}
	return doc, nil
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
