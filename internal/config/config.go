// Package config provides configuration types and loading for withme.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Model      ModelConfig      `json:"model"`
	Providers  ProvidersConfig  `json:"providers"`
	Storage    StorageConfig    `json:"storage"`
	Queue      QueueConfig      `json:"queue"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Engagement EngagementConfig `json:"engagement"`
	Notify     NotifyConfig     `json:"notify"`
	Server     ServerConfig     `json:"server"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Host string `json:"host" envconfig:"HOST"`
	Port int    `json:"port" envconfig:"PORT"`
}

// PathsConfig groups filesystem locations.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	DBPath  string `json:"dbPath" envconfig:"DB_PATH"`
}

// ModelConfig groups LLM chat settings.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// ProvidersConfig contains external API credentials and endpoints.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `json:"openai"`
	Fal    FalConfig    `json:"fal"`
}

// OpenAIConfig configures the OpenAI-compatible completion provider.
type OpenAIConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase" envconfig:"API_BASE"`
}

// FalConfig configures the image generation provider. An empty APIKey
// switches the orchestrator into deterministic fallback mode.
type FalConfig struct {
	APIKey       string        `json:"apiKey" envconfig:"API_KEY"`
	APIBase      string        `json:"apiBase" envconfig:"API_BASE"`
	PollInterval time.Duration `json:"pollInterval"`
	MaxPolls     int           `json:"maxPolls" envconfig:"MAX_POLLS"`
}

// StorageConfig configures durable object storage for published assets.
type StorageConfig struct {
	SupabaseURL string `json:"supabaseUrl" envconfig:"SUPABASE_URL"`
	ServiceKey  string `json:"serviceKey" envconfig:"SERVICE_KEY"`
	Bucket      string `json:"bucket" envconfig:"BUCKET"`
}

// QueueConfig configures the Kafka-backed job queue.
type QueueConfig struct {
	Brokers       string `json:"brokers" envconfig:"BROKERS"`
	JobTopic      string `json:"jobTopic" envconfig:"JOB_TOPIC"`
	UpdateTopic   string `json:"updateTopic" envconfig:"UPDATE_TOPIC"`
	ConsumerGroup string `json:"consumerGroup" envconfig:"CONSUMER_GROUP"`
}

// SchedulerConfig configures background sweeps.
type SchedulerConfig struct {
	Enabled              bool          `json:"enabled" envconfig:"ENABLED"`
	TickInterval         time.Duration `json:"tickInterval"`
	SemanticRefreshHours int           `json:"semanticRefreshHours" envconfig:"SEMANTIC_REFRESH_HOURS"`
	DailyEventHour       int           `json:"dailyEventHour" envconfig:"DAILY_EVENT_HOUR"`
	LockPath             string        `json:"lockPath"`
}

// EngagementConfig groups behavior thresholds.
type EngagementConfig struct {
	ImageAffinityThreshold float64 `json:"imageAffinityThreshold" envconfig:"IMAGE_AFFINITY_THRESHOLD"`
	InitiationDailyCap     int     `json:"initiationDailyCap" envconfig:"INITIATION_DAILY_CAP"`
	RecentMessageWindow    int     `json:"recentMessageWindow" envconfig:"RECENT_MESSAGE_WINDOW"`
}

// NotifyConfig groups outbound notification settings.
type NotifyConfig struct {
	FCMServerKey string `json:"fcmServerKey" envconfig:"FCM_SERVER_KEY"`
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// DefaultConfig returns a config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Name:        "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{APIBase: "https://api.openai.com/v1"},
			Fal: FalConfig{
				APIBase:      "https://queue.fal.run",
				PollInterval: 2 * time.Second,
				MaxPolls:     30,
			},
		},
		Storage: StorageConfig{Bucket: "agent-avatars"},
		Queue: QueueConfig{
			JobTopic:      "withme.image.jobs",
			UpdateTopic:   "withme.image.updates",
			ConsumerGroup: "withme-workers",
		},
		Scheduler: SchedulerConfig{
			Enabled:              true,
			TickInterval:         60 * time.Second,
			SemanticRefreshHours: 6,
			DailyEventHour:       8,
		},
		Engagement: EngagementConfig{
			ImageAffinityThreshold: 0.60,
			InitiationDailyCap:     2,
			RecentMessageWindow:    20,
		},
		Server: ServerConfig{Host: "127.0.0.1", Port: 8490},
	}
}
