package config

import (
	"strings"

	apperrors "sirius/pkg/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database drivers accepted in DATABASE_DRIVER
const (
	DatabaseDriverMongo  = "mongo"
	DatabaseDriverNeo4j  = "neo4j"
	DatabaseDriverMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	// App
	Environment     string `mapstructure:"ENVIRONMENT"`
	ApplicationName string `mapstructure:"APPLICATION_NAME"`
	Port            string `mapstructure:"PORT"`

	// Document store
	DatabaseDriver          string `mapstructure:"DATABASE_DRIVER"`
	MongoDBConnectionString string `mapstructure:"MONGO_DB_CONNECTION_STRING"`
	DatabaseName            string `mapstructure:"DATABASE_NAME"`
	Neo4jURI                string `mapstructure:"NEO4J_URI"`
	Neo4jUser               string `mapstructure:"NEO4J_USER"`
	Neo4jPassword           string `mapstructure:"NEO4J_PASSWORD"`

	// Cache
	RedisURL string `mapstructure:"REDIS_URL"`

	// Azure
	AzureKeyVaultURL string `mapstructure:"AZURE_KEY_VAULT_URL"`

	// Discord
	DiscordBotToken            string `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordServerOwnerUsername string `mapstructure:"DISCORD_SERVER_OWNER_USERNAME"`

	// Wise
	WisePrimaryAccountAPIKey   string `mapstructure:"WISE_PRIMARY_ACCOUNT_API_KEY"`
	WiseSecondaryAccountAPIKey string `mapstructure:"WISE_SECONDARY_ACCOUNT_API_KEY"`
	WiseSandboxAccountAPIKey   string `mapstructure:"WISE_SANDBOX_ACCOUNT_API_KEY"`

	// Microsoft Entra ID
	EntraIDClientID    string `mapstructure:"ENTRA_ID_CLIENT_ID"`
	EntraIDTenantID    string `mapstructure:"ENTRA_ID_TENANT_ID"`
	EntraIDRedirectURL string `mapstructure:"ENTRA_ID_REDIRECT_URL"`

	// AI
	OpenAIAPIKey string `mapstructure:"OPENAI_API_KEY"`

	// Twilio
	TwilioAccountSID     string `mapstructure:"TWILLO_ACCOUNT_SID"`
	TwilioAuthToken      string `mapstructure:"TWILLO_AUTH_TOKEN"`
	TwilioWhatsAppNumber string `mapstructure:"TWILLO_WHATSAPP_NUMBER"`
	TwilioSMSNumber      string `mapstructure:"TWILLO_SMS_NUMBER"`
}

var keys = []string{
	"ENVIRONMENT", "APPLICATION_NAME", "PORT",
	"DATABASE_DRIVER", "MONGO_DB_CONNECTION_STRING", "DATABASE_NAME",
	"NEO4J_URI", "NEO4J_USER", "NEO4J_PASSWORD",
	"REDIS_URL", "AZURE_KEY_VAULT_URL",
	"DISCORD_BOT_TOKEN", "DISCORD_SERVER_OWNER_USERNAME",
	"WISE_PRIMARY_ACCOUNT_API_KEY", "WISE_SECONDARY_ACCOUNT_API_KEY", "WISE_SANDBOX_ACCOUNT_API_KEY",
	"ENTRA_ID_CLIENT_ID", "ENTRA_ID_TENANT_ID", "ENTRA_ID_REDIRECT_URL",
	"OPENAI_API_KEY",
	"TWILLO_ACCOUNT_SID", "TWILLO_AUTH_TOKEN", "TWILLO_WHATSAPP_NUMBER", "TWILLO_SMS_NUMBER",
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENVIRONMENT", "Development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_DRIVER", DatabaseDriverMongo)
	v.SetDefault("NEO4J_USER", "neo4j")

	// Unmarshal only sees keys viper knows about
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.NewConfigValidationFailed("environment", err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks combinations that must hold regardless of which vendor clients are used.
// Vendor credentials are checked lazily by each client.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DatabaseDriverMongo, DatabaseDriverMemory:
	case DatabaseDriverNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
	default:
		return apperrors.NewConfigValidationFailed("DATABASE_DRIVER", "must be one of mongo, neo4j, memory")
	}
	return nil
}

// Require returns value, or a ConfigMissingRequiredError naming key when value is empty.
// Vendor clients call it on first use, so only the credentials a process uses must be set.
func Require(key, value string) (string, error) {
	if value == "" {
		return "", apperrors.NewConfigMissingRequired(key)
	}
	return value, nil
}

// DatabaseNameOrDefault falls back to the application name
func (c *Config) DatabaseNameOrDefault() string {
	if c.DatabaseName != "" {
		return c.DatabaseName
	}
	return c.ApplicationName
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "Production"
}

// IsTest returns true if running against test infrastructure
func (c *Config) IsTest() bool {
	return c.Environment == "Test"
}

// IsCICDPipeline returns true inside the CI/CD pipeline
func (c *Config) IsCICDPipeline() bool {
	return c.Environment == "CI/CD Pipeline"
}

// IsDevelopment returns true if running in development mode; a CI/CD pipeline counts as development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "Development" || c.IsCICDPipeline()
}
