package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Neo4jSettings configuration for the graph store connection
type Neo4jSettings struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// QuerySettings configuration for codebase queries
type QuerySettings struct {
	MaxResults int `mapstructure:"max_results"`
}

// Settings application settings
type Settings struct {
	Transport string        `mapstructure:"transport"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Auth      AuthSettings  `mapstructure:"auth"`
	Neo4j     Neo4jSettings `mapstructure:"neo4j"`
	Query     QuerySettings `mapstructure:"query"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	// Neo4j defaults match a local bolt instance
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("query.max_results", 200)

	// Environment variables
	v.SetEnvPrefix("CREW_MCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("auth.type", "CREW_MCP_AUTH_TYPE")
	_ = v.BindEnv("auth.basic.username", "CREW_MCP_AUTH_BASIC_USERNAME")
	_ = v.BindEnv("auth.basic.password", "CREW_MCP_AUTH_BASIC_PASSWORD")
	_ = v.BindEnv("auth.api_keys", "CREW_MCP_AUTH_API_KEYS")

	// Neo4j env var bindings; the unprefixed NEO4J_* forms are the ones
	// the indexing job already reads, so both spellings are accepted.
	_ = v.BindEnv("neo4j.uri", "CREW_MCP_NEO4J_URI", "NEO4J_URI")
	_ = v.BindEnv("neo4j.username", "CREW_MCP_NEO4J_USERNAME", "NEO4J_USERNAME")
	_ = v.BindEnv("neo4j.password", "CREW_MCP_NEO4J_PASSWORD", "NEO4J_PASSWORD")
	_ = v.BindEnv("neo4j.database", "CREW_MCP_NEO4J_DATABASE", "NEO4J_DATABASE")

	_ = v.BindEnv("query.max_results", "CREW_MCP_QUERY_MAX_RESULTS")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("transport", flags.Lookup("transport"))
		_ = v.BindPFlag("host", flags.Lookup("host"))
		_ = v.BindPFlag("port", flags.Lookup("port"))
		_ = v.BindPFlag("auth.type", flags.Lookup("auth-type"))
		_ = v.BindPFlag("auth.basic.username", flags.Lookup("auth-basic-username"))
		_ = v.BindPFlag("auth.basic.password", flags.Lookup("auth-basic-password"))
		_ = v.BindPFlag("auth.api_keys", flags.Lookup("auth-api-keys"))

		_ = v.BindPFlag("neo4j.uri", flags.Lookup("neo4j-uri"))
		_ = v.BindPFlag("neo4j.username", flags.Lookup("neo4j-username"))
		_ = v.BindPFlag("neo4j.password", flags.Lookup("neo4j-password"))
		_ = v.BindPFlag("neo4j.database", flags.Lookup("neo4j-database"))

		_ = v.BindPFlag("query.max_results", flags.Lookup("query-max-results"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv("CREW_MCP_AUTH_API_KEYS")
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}
	settings.Auth.APIKeys = filterEmptyStrings(settings.Auth.APIKeys)

	return &settings, nil
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete config.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	if err := validateNeo4jSettings(&s.Neo4j); err != nil {
		return err
	}

	if s.Query.MaxResults <= 0 {
		return errors.New("query-max-results must be positive")
	}

	return nil
}

// validateNeo4jSettings validates the graph store connection configuration
func validateNeo4jSettings(n *Neo4jSettings) error {
	if n.URI == "" {
		return errors.New("neo4j-uri cannot be empty")
	}
	if !strings.Contains(n.URI, "://") {
		return errors.New("neo4j-uri must be a bolt:// or neo4j:// URI, got: " + n.URI)
	}
	if n.Username == "" {
		return errors.New("neo4j-username cannot be empty")
	}
	if n.Database == "" {
		return errors.New("neo4j-database cannot be empty")
	}
	return nil
}
