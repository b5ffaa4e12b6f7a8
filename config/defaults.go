package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "hyperagent",
			Version:     "dev",
			Environment: "development",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 15 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			WebSocket: WebSocketConfig{
				Enabled:      true,
				BufferSize:   64,
				PingInterval: 30 * time.Second,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Agent: AgentConfig{
			ImpasseThreshold:     0.15,
			TieEpsilon:           0.02,
			SemanticFloor:        0.55,
			GenericMultiplier:    0.7,
			PressureHigh:         0.7,
			UnexploredDegree:     3,
			CompleteBoth:         0.60,
			CompleteEither:       0.70,
			AdvanceThreshold:     0.53,
			KeywordCompleteRatio: 0.5,
			RecallK:              3,
			Spread: SpreadConfig{
				MaxDepth:  2,
				Decay:     0.5,
				Threshold: 0.1,
				Limit:     20,
			},
			MaxTriples: 50,
		},
		Vector: VectorConfig{
			Dimension: 10048,
			Seed:      42,
		},
		Memory: MemoryConfig{
			WorkingCapacity:  256,
			RecentWindow:     8,
			RecallTopK:       5,
			VectorWeight:     0.7,
			BM25Weight:       0.3,
			BM25:             BM25Config{K1: 1.5, B: 0.75},
			ForgetThreshold:  0.1,
			DefaultStability: 168,
			DecayInterval:    time.Hour,
			ConsolidateAt:    0.8,
			ConsolidateEvery: 25,
		},
		Storage: StorageConfig{
			Type: "memory",
			Badger: BadgerConfig{
				Path:              "./data/badger",
				SyncWrites:        true,
				ValueLogFileSize:  1 << 28, // 256MB
				NumVersionsToKeep: 1,
			},
		},
		EventBus: EventBusConfig{
			Type:   "memory",
			Buffer: 256,
			Redis: RedisConfig{
				Address:       "localhost:6379",
				ChannelPrefix: "hyperagent",
			},
		},
		Runner: RunnerConfig{
			Enabled:         true,
			CyclesPerSecond: 2,
			Burst:           1,
			IdleInterval:    2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlpgrpc",
			Endpoint:   "localhost:4317",
			Timeout:    5 * time.Second,
			Sampler:    "parentbased_traceidratio",
			SampleRate: 0.1,
		},
	}
}
