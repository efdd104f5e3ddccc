// Package config provides configuration management for cliparr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultServerHost        = "0.0.0.0"
	DefaultServerPort        = 8000
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisNamespace    = "cliparr"
	DefaultQueueName         = "default"
	DefaultDatabaseDriver    = "sqlite"
	DefaultDatabaseDSN       = "data/cliparr.db"
	DefaultFFmpegPath        = "ffmpeg"
	DefaultFFprobePath       = "ffprobe"
	DefaultYTDLPPath         = "yt-dlp"
	DefaultASREndpoint       = "http://localhost:8080"
	DefaultASRModel          = "large-v3"
	DefaultASRBeamSize       = 5
	DefaultASRSampleRate     = 16000
	DefaultWorkerName        = "opus-caption-worker"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultBackupSchedule    = "0 0 2 * * *" // Daily at 2 AM (6-field cron with seconds)
	DefaultSweepSchedule     = "0 30 3 * * *"
	DefaultBackupRetention   = 7
	DefaultCanvasWidth       = 1080
	DefaultCanvasHeight      = 1920
	DefaultAutoCanvasWidth   = 720
	DefaultAutoCanvasHeight  = 1280
	DefaultAutoZoom          = 3.0
	DefaultFitBlurSigma      = 15
	DefaultSquareBlurSigma   = 20
	DefaultSquareInsetHeight = 1200
	DefaultSquareRaiseOffset = 100
	DefaultFrameStride       = 30
	DefaultMaxSampledFrames  = 300
	DefaultMinClipLength     = 15.0
	DefaultMaxClipLength     = 90.0
	DefaultTargetClipLength  = 30.0
	DefaultDownloadRetries   = 3
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Media       MediaConfig       `mapstructure:"media"`
	Downloader  DownloaderConfig  `mapstructure:"downloader"`
	ASR         ASRConfig         `mapstructure:"asr"`
	Vision      VisionConfig      `mapstructure:"vision"`
	Sentiment   ServiceConfig     `mapstructure:"sentiment"`
	Translate   ServiceConfig     `mapstructure:"translate"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ReadTimeout     Duration `mapstructure:"read_timeout"`
	WriteTimeout    Duration `mapstructure:"write_timeout"`
	ShutdownTimeout Duration `mapstructure:"shutdown_timeout"`
	WithWorker      bool     `mapstructure:"with_worker"`
}

// Address returns the server listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig contains job broker connection settings.
type RedisConfig struct {
	Addr              string   `mapstructure:"addr"`
	Password          string   `mapstructure:"password"`
	DB                int      `mapstructure:"db"`
	Namespace         string   `mapstructure:"namespace"`
	Queue             string   `mapstructure:"queue"`
	DialTimeout       Duration `mapstructure:"dial_timeout"`
	ReadTimeout       Duration `mapstructure:"read_timeout"`
	WriteTimeout      Duration `mapstructure:"write_timeout"`
	PoolSize          int      `mapstructure:"pool_size"`
	MinIdleConns      int      `mapstructure:"min_idle_conns"`
	TerminalRetention Duration `mapstructure:"terminal_retention"`
}

// DatabaseConfig contains clip library database settings.
type DatabaseConfig struct {
	Driver          string   `mapstructure:"driver"`
	DSN             string   `mapstructure:"dsn"`
	MaxOpenConns    int      `mapstructure:"max_open_conns"`
	MaxIdleConns    int      `mapstructure:"max_idle_conns"`
	ConnMaxLifetime Duration `mapstructure:"conn_max_lifetime"`
	LogQueries      bool     `mapstructure:"log_queries"`
}

// StorageConfig contains filesystem layout settings.
type StorageConfig struct {
	BaseDir   string   `mapstructure:"base_dir"`
	OutputDir string   `mapstructure:"output_dir"`
	TempDir   string   `mapstructure:"temp_dir"`
	Retention Duration `mapstructure:"retention"`
}

// MediaConfig contains ffmpeg toolchain settings.
type MediaConfig struct {
	FFmpegPath        string   `mapstructure:"ffmpeg_path"`
	FFprobePath       string   `mapstructure:"ffprobe_path"`
	ProbeTimeout      Duration `mapstructure:"probe_timeout"`
	ExtractTimeout    Duration `mapstructure:"extract_timeout"`
	ClipStageTimeout  Duration `mapstructure:"clip_stage_timeout"`
	ReapTimeout       Duration `mapstructure:"reap_timeout"`
	CanvasWidth       int      `mapstructure:"canvas_width"`
	CanvasHeight      int      `mapstructure:"canvas_height"`
	AutoCanvasWidth   int      `mapstructure:"auto_canvas_width"`
	AutoCanvasHeight  int      `mapstructure:"auto_canvas_height"`
	AutoZoom          float64  `mapstructure:"auto_zoom"`
	FitBlurSigma      int      `mapstructure:"fit_blur_sigma"`
	SquareBlurSigma   int      `mapstructure:"square_blur_sigma"`
	SquareInsetHeight int      `mapstructure:"square_inset_height"`
	SquareRaiseOffset int      `mapstructure:"square_raise_offset"`
}

// DownloaderConfig contains yt-dlp settings. MaxFileSize of zero means
// no limit.
type DownloaderConfig struct {
	BinaryPath  string   `mapstructure:"binary_path"`
	Timeout     Duration `mapstructure:"timeout"`
	Retries     int      `mapstructure:"retries"`
	RetryDelay  Duration `mapstructure:"retry_delay"`
	InfoTimeout Duration `mapstructure:"info_timeout"`
	MaxFileSize ByteSize `mapstructure:"max_file_size"`
}

// ASRConfig contains speech recognition service settings.
type ASRConfig struct {
	Endpoint   string   `mapstructure:"endpoint"`
	Model      string   `mapstructure:"model"`
	BeamSize   int      `mapstructure:"beam_size"`
	SampleRate int      `mapstructure:"sample_rate"`
	Timeout    Duration `mapstructure:"timeout"`
}

// VisionConfig contains face detection settings. DetectorCommand is an
// external executable invoked per sampled frame; it must print a JSON array
// of detections to stdout.
type VisionConfig struct {
	DetectorCommand string   `mapstructure:"detector_command"`
	FrameStride     int      `mapstructure:"frame_stride"`
	MaxFrames       int      `mapstructure:"max_frames"`
	SampleTimeout   Duration `mapstructure:"sample_timeout"`
}

// ServiceConfig describes an optional auxiliary HTTP service.
type ServiceConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Endpoint string   `mapstructure:"endpoint"`
	Timeout  Duration `mapstructure:"timeout"`
}

// PipelineConfig contains clip selection defaults. Request fields override
// these per job.
type PipelineConfig struct {
	MinClipLength    float64 `mapstructure:"min_clip_length"`
	MaxClipLength    float64 `mapstructure:"max_clip_length"`
	TargetClipLength float64 `mapstructure:"target_clip_length"`
	MaxClips         int     `mapstructure:"max_clips"`
	MinScore         float64 `mapstructure:"min_score"`
	DefaultTemplate  string  `mapstructure:"default_template"`
	Thumbnails       bool    `mapstructure:"thumbnails"`
}

// WorkerConfig contains worker loop settings.
type WorkerConfig struct {
	Name              string   `mapstructure:"name"`
	Queue             string   `mapstructure:"queue"`
	HeartbeatInterval Duration `mapstructure:"heartbeat_interval"`
	ClaimTimeout      Duration `mapstructure:"claim_timeout"`
}

// CatalogConfig contains caption template catalog settings.
type CatalogConfig struct {
	TemplatesFile string `mapstructure:"templates_file"`
}

// BackupConfig contains clip library backup settings.
type BackupConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Schedule       string `mapstructure:"schedule"`
	OutputDir      string `mapstructure:"output_dir"`
	RetentionCount int    `mapstructure:"retention_count"`
}

// MaintenanceConfig contains retention sweep settings.
type MaintenanceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// SetDefaults sets default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.with_worker", false)

	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.namespace", DefaultRedisNamespace)
	v.SetDefault("redis.queue", DefaultQueueName)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.terminal_retention", "24h")

	v.SetDefault("database.driver", DefaultDatabaseDriver)
	v.SetDefault("database.dsn", DefaultDatabaseDSN)
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_queries", false)

	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("storage.output_dir", "data/outputs")
	v.SetDefault("storage.temp_dir", "data/tmp")
	v.SetDefault("storage.retention", "7d")

	v.SetDefault("media.ffmpeg_path", DefaultFFmpegPath)
	v.SetDefault("media.ffprobe_path", DefaultFFprobePath)
	v.SetDefault("media.probe_timeout", "30s")
	v.SetDefault("media.extract_timeout", "5m")
	v.SetDefault("media.clip_stage_timeout", "10m")
	v.SetDefault("media.reap_timeout", "20s")
	v.SetDefault("media.canvas_width", DefaultCanvasWidth)
	v.SetDefault("media.canvas_height", DefaultCanvasHeight)
	v.SetDefault("media.auto_canvas_width", DefaultAutoCanvasWidth)
	v.SetDefault("media.auto_canvas_height", DefaultAutoCanvasHeight)
	v.SetDefault("media.auto_zoom", DefaultAutoZoom)
	v.SetDefault("media.fit_blur_sigma", DefaultFitBlurSigma)
	v.SetDefault("media.square_blur_sigma", DefaultSquareBlurSigma)
	v.SetDefault("media.square_inset_height", DefaultSquareInsetHeight)
	v.SetDefault("media.square_raise_offset", DefaultSquareRaiseOffset)

	v.SetDefault("downloader.binary_path", DefaultYTDLPPath)
	v.SetDefault("downloader.timeout", "30m")
	v.SetDefault("downloader.retries", DefaultDownloadRetries)
	v.SetDefault("downloader.retry_delay", "3s")
	v.SetDefault("downloader.info_timeout", "30s")
	v.SetDefault("downloader.max_file_size", "0")

	v.SetDefault("asr.endpoint", DefaultASREndpoint)
	v.SetDefault("asr.model", DefaultASRModel)
	v.SetDefault("asr.beam_size", DefaultASRBeamSize)
	v.SetDefault("asr.sample_rate", DefaultASRSampleRate)
	v.SetDefault("asr.timeout", "45m")

	v.SetDefault("vision.detector_command", "")
	v.SetDefault("vision.frame_stride", DefaultFrameStride)
	v.SetDefault("vision.max_frames", DefaultMaxSampledFrames)
	v.SetDefault("vision.sample_timeout", "2m")

	v.SetDefault("sentiment.enabled", false)
	v.SetDefault("sentiment.endpoint", "")
	v.SetDefault("sentiment.timeout", "30s")

	v.SetDefault("translate.enabled", false)
	v.SetDefault("translate.endpoint", "")
	v.SetDefault("translate.timeout", "30s")

	v.SetDefault("pipeline.min_clip_length", DefaultMinClipLength)
	v.SetDefault("pipeline.max_clip_length", DefaultMaxClipLength)
	v.SetDefault("pipeline.target_clip_length", DefaultTargetClipLength)
	v.SetDefault("pipeline.max_clips", 0)
	v.SetDefault("pipeline.min_score", 0.0)
	v.SetDefault("pipeline.default_template", "Hormozi")
	v.SetDefault("pipeline.thumbnails", true)

	v.SetDefault("worker.name", DefaultWorkerName)
	v.SetDefault("worker.queue", DefaultQueueName)
	v.SetDefault("worker.heartbeat_interval", "30s")
	v.SetDefault("worker.claim_timeout", "5s")

	v.SetDefault("catalog.templates_file", "")

	v.SetDefault("backup.enabled", false)
	v.SetDefault("backup.schedule", DefaultBackupSchedule)
	v.SetDefault("backup.output_dir", "data/backups")
	v.SetDefault("backup.retention_count", DefaultBackupRetention)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", DefaultSweepSchedule)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Load reads configuration from file, environment and defaults.
// Priority: env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/cliparr")
		v.AddConfigPath("$HOME/.cliparr")
	}

	v.SetEnvPrefix("CLIPARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file found; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeOptions()); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// decodeOptions extends viper's decode hooks so Duration and ByteSize
// fields accept human-readable strings ("90s", "7d", "2GB") from files,
// environment variables and defaults.
func decodeOptions() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.Redis.Namespace == "" {
		return fmt.Errorf("redis namespace is required")
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("invalid database driver: %s (must be sqlite, postgres, or mysql)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.Storage.OutputDir == "" {
		return fmt.Errorf("storage output_dir is required")
	}
	if c.Storage.TempDir == "" {
		return fmt.Errorf("storage temp_dir is required")
	}

	if c.Media.CanvasWidth <= 0 || c.Media.CanvasHeight <= 0 {
		return fmt.Errorf("invalid canvas size: %dx%d", c.Media.CanvasWidth, c.Media.CanvasHeight)
	}
	if c.Media.AutoZoom <= 0 {
		return fmt.Errorf("auto_zoom must be positive")
	}

	if c.ASR.Endpoint == "" {
		return fmt.Errorf("asr endpoint is required")
	}
	if c.ASR.SampleRate <= 0 {
		return fmt.Errorf("asr sample_rate must be positive")
	}

	if c.Downloader.Retries < 0 {
		return fmt.Errorf("downloader retries must not be negative")
	}

	p := c.Pipeline
	if p.MinClipLength <= 0 || p.MinClipLength > p.MaxClipLength {
		return fmt.Errorf("pipeline clip lengths must satisfy 0 < min <= max")
	}
	if p.TargetClipLength < p.MinClipLength || p.TargetClipLength > p.MaxClipLength {
		return fmt.Errorf("pipeline target_clip_length must fall within [min, max]")
	}

	if c.Worker.Name == "" {
		return fmt.Errorf("worker name is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
