package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Notion   NotionConfig   `mapstructure:"notion" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Webhook  WebhookConfig  `mapstructure:"webhook" validate:"required"`
	Job      JobConfig      `mapstructure:"job" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// NotionConfig contains the workspace integration settings: the API
// token, the request budget, and the database IDs the pipeline reads
// from and writes to.
type NotionConfig struct {
	Token     string  `mapstructure:"token" validate:"required"`
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`

	// NotesDBID is the Notes / Extracts database queried during notes
	// fusion. Empty disables the fusion step.
	NotesDBID string `mapstructure:"notes_db_id"`

	// TreeNodesDBID is the Tree Nodes database that taxonomy nodes are
	// synced into. Required for tree and approve jobs.
	TreeNodesDBID string `mapstructure:"tree_nodes_db_id"`

	// KnowledgePagesDBID is the Knowledge Pages database. When set,
	// generated pages also get an entry there.
	KnowledgePagesDBID string `mapstructure:"knowledge_pages_db_id"`

	// BlockBatchSize caps how many blocks one append call carries.
	BlockBatchSize int `mapstructure:"block_batch_size" validate:"gt=0,lte=100"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey  string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName     string `mapstructure:"model_name" validate:"required"`
	PromptVersion string `mapstructure:"prompt_version" validate:"required"`
}

// WebhookConfig contains the settings for inbound job submission.
type WebhookConfig struct {
	Secret string `mapstructure:"secret" validate:"required,min=16"`
}

// JobConfig contains the job queue and retry settings.
type JobConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gte=1,lte=10"`
	QueueSize   int `mapstructure:"queue_size" validate:"required,gte=1"`
}
