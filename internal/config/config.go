package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/OCAP2/simbridge/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "simbridge.cfg.json"

// TelemetryConfig holds the snapshot pub/sub settings.
type TelemetryConfig struct {
	Address    string        `json:"address" mapstructure:"address"`
	Path       string        `json:"path" mapstructure:"path"`
	BufferSize int           `json:"bufferSize" mapstructure:"bufferSize"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	Backoff    time.Duration `json:"backoff" mapstructure:"backoff"`
	Pace       time.Duration `json:"pace" mapstructure:"pace"`
}

// CommandConfig holds the request/reply channel settings.
type CommandConfig struct {
	URL     string        `json:"url" mapstructure:"url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// BackendConfig holds the reference backend settings.
type BackendConfig struct {
	Address    string             `json:"address" mapstructure:"address"`
	AssetsFile string             `json:"assetsFile" mapstructure:"assetsFile"`
	Poll       time.Duration      `json:"poll" mapstructure:"poll"`
	Origin     core.GeoCoordinate `json:"origin" mapstructure:"-"`
}

// MissionConfig holds the scripted mission settings.
type MissionConfig struct {
	Name           string             `json:"name" mapstructure:"name"`
	Dt             float64            `json:"dt" mapstructure:"dt"`
	Realtime       bool               `json:"realtime" mapstructure:"realtime"`
	MaxSteps       int                `json:"maxSteps" mapstructure:"maxSteps"`
	Aircraft       string             `json:"aircraft" mapstructure:"aircraft"`
	Origin         core.GeoCoordinate `json:"origin" mapstructure:"-"`
	TerrainHeightM float64            `json:"terrainHeight" mapstructure:"terrainHeight"`
	Cleanup        bool               `json:"cleanup" mapstructure:"cleanup"`
	FreezeLifetime time.Duration      `json:"freezeLifetime" mapstructure:"freezeLifetime"`
}

// JSONLConfig holds compressed JSON-lines recording settings.
type JSONLConfig struct {
	OutputDir      string        `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool          `json:"compressOutput" mapstructure:"compressOutput"`
	Rotate         time.Duration `json:"rotate" mapstructure:"rotate"`
}

// MemoryConfig holds settings for the in-memory recorder, which exports one
// JSON document per recording at Close.
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite recording settings. An empty Path records to
// memory and dumps to DumpPath every DumpInterval.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// StorageConfig selects and configures the recording backend.
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	Poll          time.Duration `json:"poll" mapstructure:"poll"`
	JSONL         JSONLConfig   `json:"jsonl" mapstructure:"jsonl"`
	Memory        MemoryConfig  `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig  `json:"sqlite" mapstructure:"sqlite"`
	DB            DBConfig      `json:"-" mapstructure:"-"`
	Influx        InfluxConfig  `json:"-" mapstructure:"-"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds the GELF log sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./simlogs")

	viper.SetDefault("telemetry.address", "127.0.0.1:5555")
	viper.SetDefault("telemetry.path", "/telemetry")
	viper.SetDefault("telemetry.bufferSize", 10)
	viper.SetDefault("telemetry.timeout", "1s")
	viper.SetDefault("telemetry.backoff", "500ms")
	viper.SetDefault("telemetry.pace", "0s")

	viper.SetDefault("command.url", "ws://127.0.0.1:5556/command")
	viper.SetDefault("command.timeout", "5s")

	viper.SetDefault("backend.address", "127.0.0.1:5556")
	viper.SetDefault("backend.assetsFile", "")
	viper.SetDefault("backend.poll", "20ms")
	viper.SetDefault("backend.origin.latitude", 0.0)
	viper.SetDefault("backend.origin.longitude", 0.0)
	viper.SetDefault("backend.origin.height", 0.0)

	viper.SetDefault("mission.name", "doublet")
	viper.SetDefault("mission.dt", 1.0/30)
	viper.SetDefault("mission.realtime", true)
	viper.SetDefault("mission.maxSteps", 0)
	viper.SetDefault("mission.aircraft", "Assets/Airplanes/F16")
	viper.SetDefault("mission.origin.latitude", 52.0)
	viper.SetDefault("mission.origin.longitude", 4.0)
	viper.SetDefault("mission.origin.height", 0.0)
	viper.SetDefault("mission.terrainHeight", 0.0)
	viper.SetDefault("mission.cleanup", true)
	viper.SetDefault("mission.freezeLifetime", "-1s")

	viper.SetDefault("storage.type", "jsonl")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.poll", "50ms")
	viper.SetDefault("storage.jsonl.outputDir", "./recordings")
	viper.SetDefault("storage.jsonl.compressOutput", true)
	viper.SetDefault("storage.jsonl.rotate", "1h")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./recordings/telemetry.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "simbridge")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "simbridge")
	viper.SetDefault("influx.bucket", "telemetry")
	viper.SetDefault("influx.backupPath", "./recordings/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "simbridge")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// unmarshal decodes one section. viper.UnmarshalKey would return only the
// file's copy of a section and drop defaults for keys the file omits, so the
// section is taken from the merged settings instead.
func unmarshal[T any](key string) T {
	var out T
	section, _ := viper.AllSettings()[strings.ToLower(key)].(map[string]any)
	sub := viper.New()
	if err := sub.MergeConfigMap(section); err != nil {
		return out
	}
	_ = sub.Unmarshal(&out)
	return out
}

// GetTelemetryConfig returns the telemetry section.
func GetTelemetryConfig() TelemetryConfig { return unmarshal[TelemetryConfig]("telemetry") }

// GetCommandConfig returns the command section.
func GetCommandConfig() CommandConfig { return unmarshal[CommandConfig]("command") }

// GetBackendConfig returns the backend section.
func GetBackendConfig() BackendConfig {
	cfg := unmarshal[BackendConfig]("backend")
	cfg.Origin = getGeo("backend.origin")
	return cfg
}

// GetMissionConfig returns the mission section.
func GetMissionConfig() MissionConfig {
	cfg := unmarshal[MissionConfig]("mission")
	cfg.Origin = getGeo("mission.origin")
	return cfg
}

// GetStorageConfig returns the storage section with the database and
// influx connection settings filled in.
func GetStorageConfig() StorageConfig {
	cfg := unmarshal[StorageConfig]("storage")
	cfg.DB = unmarshal[DBConfig]("db")
	cfg.Influx = unmarshal[InfluxConfig]("influx")
	return cfg
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig { return unmarshal[OTelConfig]("otel") }

// GetGraylogConfig returns the graylog section.
func GetGraylogConfig() GraylogConfig { return unmarshal[GraylogConfig]("graylog") }

// getGeo reads a lowercase latitude/longitude/height block; the core type
// carries the backend's capitalized JSON names.
func getGeo(key string) core.GeoCoordinate {
	return core.GeoCoordinate{
		Latitude:  viper.GetFloat64(key + ".latitude"),
		Longitude: viper.GetFloat64(key + ".longitude"),
		Height:    viper.GetFloat64(key + ".height"),
	}
}
