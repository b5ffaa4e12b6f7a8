// Package config provides configuration management for hyperagent.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for hyperagent.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Agent holds the decision-cycle thresholds.
	Agent AgentConfig `mapstructure:"agent"`

	// Vector is the hypervector space configuration.
	Vector VectorConfig `mapstructure:"vector"`

	// Memory is the working and episodic memory configuration.
	Memory MemoryConfig `mapstructure:"memory"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// EventBus is the event publication configuration.
	EventBus EventBusConfig `mapstructure:"eventbus"`

	// Runner paces the background cycle loop.
	Runner RunnerConfig `mapstructure:"runner"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`

	// WebSocket is the event stream configuration.
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// WebSocketConfig holds the /ws/events stream settings.
type WebSocketConfig struct {
	// Enabled mounts the event stream endpoint.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins lists extra origins allowed to upgrade. Same-host
	// origins are always allowed.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// BufferSize is the per-client outbound queue length.
	BufferSize int `mapstructure:"buffer_size" validate:"min=0"`

	// PingInterval is how often idle clients are pinged.
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// AgentConfig holds every threshold the decision cycle uses. All of them are
// hot-reloadable.
type AgentConfig struct {
	// ImpasseThreshold flags a decision whose best total is below it.
	ImpasseThreshold float64 `mapstructure:"impasse_threshold" validate:"gte=0,lte=1"`

	// TieEpsilon flags a decision whose top two totals are closer than it.
	TieEpsilon float64 `mapstructure:"tie_epsilon" validate:"gte=0,lte=1"`

	// SemanticFloor is the minimum goal/tool similarity for semantic eligibility.
	SemanticFloor float64 `mapstructure:"semantic_floor" validate:"gte=0,lte=1"`

	// GenericMultiplier scales similarity into a base score for unprofiled tools.
	GenericMultiplier float64 `mapstructure:"generic_multiplier" validate:"gte=0,lte=2"`

	// PressureHigh is the memory pressure above which recall is boosted.
	PressureHigh float64 `mapstructure:"pressure_high" validate:"gte=0,lte=1"`

	// UnexploredDegree is the largest degree a query target may have.
	UnexploredDegree int `mapstructure:"unexplored_degree" validate:"min=0"`

	// CompleteBoth completes a goal when both progress signals reach it.
	CompleteBoth float64 `mapstructure:"complete_both" validate:"gte=0,lte=1"`

	// CompleteEither completes a goal when either progress signal reaches it.
	CompleteEither float64 `mapstructure:"complete_either" validate:"gte=0,lte=1"`

	// AdvanceThreshold marks progress when the best signal reaches it.
	AdvanceThreshold float64 `mapstructure:"advance_threshold" validate:"gte=0,lte=1"`

	// KeywordCompleteRatio is the matched-keyword share that completes a goal
	// in the keyword fallback.
	KeywordCompleteRatio float64 `mapstructure:"keyword_complete_ratio" validate:"gte=0,lte=1"`

	// RecallK is the number of episodes recalled during observation.
	RecallK int `mapstructure:"recall_k" validate:"min=0"`

	// Spread bounds the spreading activation run during orientation.
	Spread SpreadConfig `mapstructure:"spread"`

	// MaxTriples caps the triples gathered during orientation.
	MaxTriples int `mapstructure:"max_triples" validate:"min=1"`
}

// SpreadConfig bounds spreading activation.
type SpreadConfig struct {
	MaxDepth  int     `mapstructure:"max_depth" validate:"min=0"`
	Decay     float64 `mapstructure:"decay" validate:"gte=0,lte=1"`
	Threshold float64 `mapstructure:"threshold" validate:"gte=0,lte=1"`
	Limit     int     `mapstructure:"limit" validate:"min=0"`
}

// VectorConfig holds hypervector space settings.
type VectorConfig struct {
	// Dimension is the vector width in bits, rounded up to a multiple of 64.
	Dimension int `mapstructure:"dimension" validate:"min=64"`

	// Seed makes every generated vector reproducible.
	Seed uint64 `mapstructure:"seed"`
}

// MemoryConfig holds working and episodic memory settings.
type MemoryConfig struct {
	// WorkingCapacity bounds the working-memory log.
	WorkingCapacity int `mapstructure:"working_capacity" validate:"min=1"`

	// RecentWindow is how many recent entries an observation lists.
	RecentWindow int `mapstructure:"recent_window" validate:"min=0"`

	// RecallTopK is the default number of episodes returned by a search.
	RecallTopK int `mapstructure:"recall_top_k" validate:"min=1"`

	// MinScore drops fused results below this score.
	MinScore float64 `mapstructure:"min_score" validate:"gte=0"`

	// VectorWeight is the weight for hypervector search in hybrid retrieval.
	VectorWeight float64 `mapstructure:"vector_weight" validate:"gte=0,lte=1"`

	// BM25Weight is the weight for BM25 search in hybrid retrieval.
	BM25Weight float64 `mapstructure:"bm25_weight" validate:"gte=0,lte=1"`

	// BM25 tunes text scoring.
	BM25 BM25Config `mapstructure:"bm25"`

	// ForgetThreshold drops episodes whose strength decays below it.
	ForgetThreshold float64 `mapstructure:"forget_threshold" validate:"gte=0,lte=1"`

	// DefaultStability is the initial episode stability in hours.
	DefaultStability float64 `mapstructure:"default_stability" validate:"gt=0"`

	// DecayInterval is how often episode strength decays. Zero disables the loop.
	DecayInterval time.Duration `mapstructure:"decay_interval"`

	// ConsolidateAt triggers consolidation when working memory fill reaches it.
	ConsolidateAt float64 `mapstructure:"consolidate_at" validate:"gte=0,lte=1"`

	// ConsolidateEvery triggers consolidation every N cycles. Zero disables it.
	ConsolidateEvery uint64 `mapstructure:"consolidate_every"`
}

// BM25Config holds BM25 algorithm parameters.
type BM25Config struct {
	// K1 controls term frequency saturation.
	K1 float64 `mapstructure:"k1" validate:"gt=0"`

	// B controls document length normalization.
	B float64 `mapstructure:"b" validate:"gte=0,lte=1"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Type is the storage backend (memory, badger).
	Type string `mapstructure:"type" validate:"oneof=memory badger"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size"`

	// NumVersionsToKeep is the number of versions to keep per key.
	NumVersionsToKeep int `mapstructure:"num_versions_to_keep"`
}

// EventBusConfig selects where agent events are published.
type EventBusConfig struct {
	// Type is the bus implementation (memory, redis).
	Type string `mapstructure:"type" validate:"oneof=memory redis"`

	// Buffer is the per-subscriber channel size of the memory bus.
	Buffer int `mapstructure:"buffer" validate:"min=1"`

	// Redis is the Redis connection for the redis bus.
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`

	// ChannelPrefix namespaces the pub/sub channels.
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// RunnerConfig paces the background loop that drives cycles.
type RunnerConfig struct {
	// Enabled starts the loop with the engine.
	Enabled bool `mapstructure:"enabled"`

	// CyclesPerSecond is the sustained cycle rate.
	CyclesPerSecond float64 `mapstructure:"cycles_per_second" validate:"gt=0"`

	// Burst is the number of cycles allowed back to back.
	Burst int `mapstructure:"burst" validate:"min=1"`

	// MaxCycles stops the loop after N cycles. Zero runs forever.
	MaxCycles uint64 `mapstructure:"max_cycles"`

	// IdleInterval is the wait after a cycle finds no active goal.
	IdleInterval time.Duration `mapstructure:"idle_interval"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter (otlpgrpc).
	Exporter string `mapstructure:"exporter" validate:"oneof=otlpgrpc"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Headers are sent with every export request.
	Headers map[string]string `mapstructure:"headers"`

	// Timeout bounds each export request.
	Timeout time.Duration `mapstructure:"timeout"`

	// Sampler is always_on, always_off or parentbased_traceidratio.
	Sampler string `mapstructure:"sampler" validate:"oneof=always_on always_off parentbased_traceidratio"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Storage: %s}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Storage.Type)
}
