package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"

	"github.com/OCAP2/simbridge/internal/config"
)

// NewGraylogWriter opens a GELF UDP writer when the sink is enabled. It
// returns nil, nil when disabled.
func NewGraylogWriter(cfg config.GraylogConfig, facility string) (*gelf.Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	w, err := gelf.NewWriter(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("graylog %s: %w", cfg.Address, err)
	}
	if facility != "" {
		w.Facility = facility
	}
	return w, nil
}
