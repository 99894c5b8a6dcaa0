package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Provider ProviderConfig `mapstructure:"provider" validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine"   validate:"required"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Notifier NotifierConfig `mapstructure:"notifier"`
}

// ServerConfig contains all HTTP-server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost                  int    `mapstructure:"bcrypt_cost"                    validate:"omitempty,gte=4,lte=31"`
}

// ProviderConfig contains settings for the external image generation provider.
type ProviderConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`
	OutputDir    string `mapstructure:"output_dir"     validate:"required"`
}

// EngineConfig contains the retry and recovery engine settings. The two
// budget/backoff groups configure the foreground (request-blocking) tier and
// the background (scheduler) tier respectively.
type EngineConfig struct {
	TickIntervalSeconds   int     `mapstructure:"tick_interval_seconds"    validate:"required,gt=0"`
	MaxConcurrentTasks    int     `mapstructure:"max_concurrent_tasks"     validate:"required,gt=0"`
	MaxRetries            int     `mapstructure:"max_retries"              validate:"required,gt=0"`
	MaxTaskAgeHours       int     `mapstructure:"max_task_age_hours"       validate:"required,gt=0"`
	FailedCooldownMinutes int     `mapstructure:"failed_cooldown_minutes"  validate:"required,gt=0"`
	StuckThresholdMinutes int     `mapstructure:"stuck_threshold_minutes"  validate:"required,gt=0"`
	PerCallTimeoutMinutes int     `mapstructure:"per_call_timeout_minutes" validate:"required,gt=0"`
	BackoffMultiplier     float64 `mapstructure:"backoff_multiplier"       validate:"required,gt=1"`

	ForegroundBudgetMinutes     int `mapstructure:"foreground_budget_minutes"      validate:"required,gt=0"`
	ForegroundInitialDelaySecs  int `mapstructure:"foreground_initial_delay_secs"  validate:"required,gt=0"`
	ForegroundMaxDelaySecs      int `mapstructure:"foreground_max_delay_secs"      validate:"required,gt=0"`
	BackgroundBudgetMinutes     int `mapstructure:"background_budget_minutes"      validate:"required,gt=0"`
	BackgroundInitialDelaySecs  int `mapstructure:"background_initial_delay_secs"  validate:"required,gt=0"`
	BackgroundMaxDelaySecs      int `mapstructure:"background_max_delay_secs"      validate:"required,gt=0"`
}

// PricingConfig maps task kinds to the amount debited on success, in cents.
// Kinds absent from the map fall back to DefaultCost.
type PricingConfig struct {
	DefaultCost int64            `mapstructure:"default_cost" validate:"gte=0"`
	Costs       map[string]int64 `mapstructure:"costs"`
}

// NotifierConfig contains settings for the outbound outcome notifier.
// An empty WebhookURL disables outbound notifications.
type NotifierConfig struct {
	WebhookURL     string `mapstructure:"webhook_url" validate:"omitempty,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
}
