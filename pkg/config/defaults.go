package config

const (
	defaultStorageDriver = "sqlite"

	defaultReasonerProvider = "ollama"
	defaultReasonerTarget   = "http://localhost:11434"

	defaultThreshold    = 30
	defaultHistoryLimit = 30

	defaultAPIListen = ":8080"

	defaultBrokers = "localhost:9092"
	defaultTopic   = "chronos.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Reasoner: ReasonerConfig{
			Provider: defaultReasonerProvider,
			Target:   defaultReasonerTarget,
		},
		Historian: HistorianConfig{
			Threshold:    defaultThreshold,
			HistoryLimit: defaultHistoryLimit,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			Enabled: false,
			Brokers: defaultBrokers,
			Topic:   defaultTopic,
		},
	}
}
