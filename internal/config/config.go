package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Privy    PrivyConfig
	Twitter  TwitterConfig
	AI       AIConfig
	Solana   SolanaConfig
	Ledger   LedgerConfig
	Jobs     JobsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port         string
	FrontendURLs []string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Environment string
	JWTSecret   string
	CipherKey   string
}

// IsProduction reports whether the app runs with production settings.
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// PrivyConfig holds identity provider settings
type PrivyConfig struct {
	AppID           string
	AppSecret       string
	VerificationKey string // PEM encoded ES256 public key
	BaseURL         string
}

// TwitterConfig holds X.com API and OAuth2 client settings
type TwitterConfig struct {
	BaseURL      string
	BearerToken  string
	ClientID     string
	ClientSecret string
}

// AIConfig holds text generation settings
type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// SolanaConfig holds RPC settings
type SolanaConfig struct {
	Network string
	RPCURL  string
}

// LedgerConfig holds the entitlement and ledger policy knobs
type LedgerConfig struct {
	SplitScale            int32
	AllowNegativeHoldings bool
	StrictWithdrawals     bool
	TrialDays             int
	MonthlyPlanAmount     decimal.Decimal
}

// JobsConfig holds scheduler settings
type JobsConfig struct {
	ProfileRefreshSpec  string
	TokenRefreshSpec    string
	GenerateTweetsSpec  string
	PostTweetsSpec      string
	PostTweetsInterval  time.Duration
	ProfileRefreshEvery time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "development")

	postInterval := 30 * time.Minute
	if env == "production" {
		postInterval = 180 * time.Minute
	}

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "agent_ledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			FrontendURLs: getEnvList("FRONTEND_URLS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		App: AppConfig{
			Environment: env,
			JWTSecret:   getEnv("JWT_SECRET", ""),
			CipherKey:   getEnv("CIPHER_KEY", ""),
		},
		Privy: PrivyConfig{
			AppID:           getEnv("PRIVY_APP_ID", ""),
			AppSecret:       getEnv("PRIVY_APP_SECRET", ""),
			VerificationKey: getEnv("PRIVY_VERIFICATION_KEY", ""),
			BaseURL:         getEnv("PRIVY_BASE_URL", "https://auth.privy.io"),
		},
		Twitter: TwitterConfig{
			BaseURL:      getEnv("TWITTER_API_URL", "https://api.twitter.com"),
			BearerToken:  getEnv("TWITTER_BEARER_TOKEN", ""),
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
		},
		AI: AIConfig{
			BaseURL: getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("AI_API_KEY", ""),
			Model:   getEnv("AI_MODEL", "gpt-4o-mini"),
		},
		Solana: SolanaConfig{
			Network: getEnv("SOLANA_NETWORK", "devnet"),
			RPCURL:  getEnv("SOLANA_RPC_URL", ""),
		},
		Ledger: LedgerConfig{
			SplitScale:            int32(getEnvInt("LEDGER_SPLIT_SCALE", 9)),
			AllowNegativeHoldings: getEnvBool("LEDGER_ALLOW_NEGATIVE_HOLDINGS", true),
			StrictWithdrawals:     getEnvBool("LEDGER_STRICT_WITHDRAWALS", false),
			TrialDays:             getEnvInt("TRIAL_DAYS", 7),
			MonthlyPlanAmount:     getEnvDecimal("MONTHLY_PLAN_AMOUNT", decimal.NewFromInt(100)),
		},
		Jobs: JobsConfig{
			ProfileRefreshSpec:  getEnv("JOB_PROFILE_REFRESH_SPEC", "0 */6 * * *"),
			TokenRefreshSpec:    getEnv("JOB_TOKEN_REFRESH_SPEC", "0 * * * *"),
			GenerateTweetsSpec:  getEnv("JOB_GENERATE_TWEETS_SPEC", "0 * * * *"),
			PostTweetsSpec:      getEnv("JOB_POST_TWEETS_SPEC", "* * * * *"),
			PostTweetsInterval:  getEnvDuration("JOB_POST_TWEETS_INTERVAL", postInterval),
			ProfileRefreshEvery: getEnvDuration("JOB_PROFILE_REFRESH_PACE", 3*time.Second),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.Ledger.SplitScale < 0 || config.Ledger.SplitScale > 18 {
		return nil, fmt.Errorf("LEDGER_SPLIT_SCALE must be between 0 and 18")
	}

	if config.Ledger.TrialDays <= 0 {
		return nil, fmt.Errorf("TRIAL_DAYS must be positive")
	}

	if config.Ledger.MonthlyPlanAmount.IsNegative() {
		return nil, fmt.Errorf("MONTHLY_PLAN_AMOUNT must not be negative")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value, err := decimal.NewFromString(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
