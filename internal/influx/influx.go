package influx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/pkg/core"
)

// MeasurementEntityState is the measurement every entity sample is written to.
const MeasurementEntityState = "entity_state"

// ErrDisabled is returned by Connect when influx is switched off in config.
var ErrDisabled = errors.New("influx is disabled")

const retention = 60 * 60 * 24 * 90

// Manager writes telemetry points to InfluxDB, or to a gzip'd line-protocol
// backup file when the server cannot be reached.
type Manager struct {
	cfg    config.InfluxConfig
	Logger zerolog.Logger

	mu           sync.Mutex
	client       influxdb2.Client
	writer       influxdb2_api.WriteAPI
	backupFile   *os.File
	BackupWriter *gzip.Writer
	IsValid      bool
}

func NewManager(cfg config.InfluxConfig, log zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, Logger: log}
}

// URL is the server address built from the configured protocol, host and port.
func (m *Manager) URL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Connect pings the server. On failure it opens the backup file instead and
// still returns nil so recording can go on.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.client = influxdb2.NewClientWithOptions(m.URL(), m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.Logger.Warn().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("url", m.URL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.cfg.BackupPath == "" {
		return errors.New("influx backup path not set")
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.BackupPath), 0o755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	f, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = f
	m.BackupWriter = gzip.NewWriter(f)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		if org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org); err != nil {
			return fmt.Errorf("create organization %s: %w", m.cfg.Org, err)
		}
	}

	buckets := m.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = buckets.CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retention,
		})
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errs <-chan error) {
		for err := range errs {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())
}

// WritePoint sends a point to the server or appends it to the backup.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return errors.New("influx client not initialized and backup writer not available")
	}
	line := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to influx backup file: %w", err)
	}
	return nil
}

// WriteSnapshot writes one point per entity, stamped with the receive time.
func (m *Manager) WriteSnapshot(snap core.SimulationSnapshot, received time.Time) error {
	var errs []error
	for _, name := range snap.Names() {
		if err := m.WritePoint(EntityPoint(name, snap.Entities[name], snap.Timestamp, received)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EntityPoint builds the point for one entity state. Scalar additional
// fields become fields of their own; nested values are skipped.
func EntityPoint(entity string, s core.EntityState, simTime float64, ts time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementEntityState).
		AddTag("entity", entity).
		AddField("sim_time", simTime).
		AddField("latitude", s.Latitude).
		AddField("longitude", s.Longitude).
		AddField("altitude_m", s.HeightM).
		AddField("roll_rad", s.RollRad).
		AddField("pitch_rad", s.PitchRad).
		AddField("yaw_rad", s.YawRad).
		SetTime(ts)

	keys := make([]string, 0, len(s.Additional))
	for k := range s.Additional {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := s.Additional[k].(type) {
		case float64, float32, int, int64, bool, string:
			p.AddField(k, v)
		}
	}
	return p
}

// Close flushes pending writes and closes the client or backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.IsValid = false

	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}
