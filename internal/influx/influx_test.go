package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/pkg/core"
)

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(l.Addr().String())
	require.NoError(t, l.Close())
	return port
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop())
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestURL(t *testing.T) {
	m := NewManager(config.InfluxConfig{Protocol: "https", Host: "influx", Port: "8086"}, zerolog.Nop())
	assert.Equal(t, "https://influx:8086", m.URL())
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "nested", "influx_backup.lp.gz")
	m := NewManager(config.InfluxConfig{
		Enabled:    true,
		Protocol:   "http",
		Host:       "127.0.0.1",
		Port:       closedPort(t),
		Token:      "t",
		Org:        "simbridge",
		Bucket:     "telemetry",
		BackupPath: backup,
	}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	received := time.Unix(1700000000, 0)
	snap := core.NewSnapshot(3.5, map[string]core.EntityState{
		"lead": {Latitude: 52, Longitude: 4, HeightM: 1000},
		"wing": {Latitude: 52.1, Longitude: 4.1, HeightM: 900},
	})
	require.NoError(t, m.WriteSnapshot(snap, received))
	require.NoError(t, m.Close())

	lines := readLines(t, backup)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "entity_state,entity=lead ")
	assert.Contains(t, lines[0], "altitude_m=1000")
	assert.Contains(t, lines[1], "entity=wing")
	assert.Contains(t, lines[1], " 1700000000000000000")
}

func TestWritePoint_NoSink(t *testing.T) {
	m := NewManager(config.InfluxConfig{Enabled: true}, zerolog.Nop())
	assert.Error(t, m.WritePoint(influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1)))
	assert.NoError(t, m.Close())
}

func TestEntityPoint(t *testing.T) {
	ts := time.Unix(10, 0)
	p := EntityPoint("lead", core.EntityState{
		Latitude: 52, Longitude: 4, HeightM: 100, YawRad: 1.5,
		Additional: map[string]any{
			"Throttle": 0.75,
			"Gear":     true,
			"Mode":     "cruise",
			"Nested":   map[string]any{"a": 1.0},
		},
	}, 2.5, ts)

	assert.Equal(t, MeasurementEntityState, p.Name())
	assert.Equal(t, ts, p.Time())

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 2.5, fields["sim_time"])
	assert.Equal(t, 1.5, fields["yaw_rad"])
	assert.Equal(t, 0.75, fields["Throttle"])
	assert.Equal(t, true, fields["Gear"])
	assert.Equal(t, "cruise", fields["Mode"])
	assert.NotContains(t, fields, "Nested")

	require.Len(t, p.TagList(), 1)
	assert.Equal(t, "lead", p.TagList()[0].Value)
}
