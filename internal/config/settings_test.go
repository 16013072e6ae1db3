package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadSettings_Defaults(t *testing.T) {
	_ = os.Unsetenv("CREW_MCP_PORT")
	_ = os.Unsetenv("CREW_MCP_AUTH_TYPE")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", settings.Port)
	}
	if settings.Auth.Type != AuthTypeNone {
		t.Errorf("Expected default auth type '%s', got '%s'", AuthTypeNone, settings.Auth.Type)
	}
	if settings.Transport != "stdio" {
		t.Errorf("Expected default transport 'stdio', got '%s'", settings.Transport)
	}
	if settings.Host != "0.0.0.0" {
		t.Errorf("Expected default host '0.0.0.0', got '%s'", settings.Host)
	}
	if settings.Neo4j.URI != "bolt://localhost:7687" {
		t.Errorf("Expected default neo4j uri, got '%s'", settings.Neo4j.URI)
	}
	if settings.Neo4j.Database != "neo4j" {
		t.Errorf("Expected default neo4j database, got '%s'", settings.Neo4j.Database)
	}
	if settings.Query.MaxResults != 200 {
		t.Errorf("Expected default max results 200, got %d", settings.Query.MaxResults)
	}
}

func TestLoadSettings_EnvVars(t *testing.T) {
	t.Setenv("CREW_MCP_PORT", "9090")
	t.Setenv("CREW_MCP_AUTH_TYPE", "basic")
	t.Setenv("CREW_MCP_AUTH_BASIC_USERNAME", "admin")
	t.Setenv("CREW_MCP_NEO4J_URI", "neo4j://graph:7687")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", settings.Port)
	}
	if settings.Auth.Type != AuthTypeBasic {
		t.Errorf("Expected auth type '%s', got '%s'", AuthTypeBasic, settings.Auth.Type)
	}
	if settings.Auth.Basic.Username != "admin" {
		t.Errorf("Expected username 'admin', got '%s'", settings.Auth.Basic.Username)
	}
	if settings.Neo4j.URI != "neo4j://graph:7687" {
		t.Errorf("Expected overridden neo4j uri, got '%s'", settings.Neo4j.URI)
	}
}

func TestLoadSettings_UnprefixedNeo4jEnvVars(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://shared:7687")
	t.Setenv("NEO4J_PASSWORD", "s3cret")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Neo4j.URI != "bolt://shared:7687" {
		t.Errorf("Expected the shared NEO4J_URI honored, got '%s'", settings.Neo4j.URI)
	}
	if settings.Neo4j.Password != "s3cret" {
		t.Errorf("Expected the shared NEO4J_PASSWORD honored, got '%s'", settings.Neo4j.Password)
	}
}

func TestLoadSettings_PrefixedNeo4jEnvVarWins(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://shared:7687")
	t.Setenv("CREW_MCP_NEO4J_URI", "bolt://own:7687")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Neo4j.URI != "bolt://own:7687" {
		t.Errorf("Expected the prefixed variable to win, got '%s'", settings.Neo4j.URI)
	}
}

func TestLoadSettings_APIKeys_EnvVar(t *testing.T) {
	t.Setenv("CREW_MCP_AUTH_API_KEYS", "key1, key2,key3")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if len(settings.Auth.APIKeys) != 3 {
		t.Fatalf("Expected 3 API keys, got %d", len(settings.Auth.APIKeys))
	}
	for i, want := range []string{"key1", "key2", "key3"} {
		if settings.Auth.APIKeys[i] != want {
			t.Errorf("Expected %s, got '%s'", want, settings.Auth.APIKeys[i])
		}
	}
}

func TestLoadSettings_EnvFile(t *testing.T) {
	content := []byte("host=127.0.0.2\nport=7000")
	tmpEnv := ".env"
	if err := os.WriteFile(tmpEnv, content, 0644); err != nil {
		t.Fatalf("Failed to create .env file: %v", err)
	}
	defer func() { _ = os.Remove(tmpEnv) }()

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Host != "127.0.0.2" {
		t.Errorf("Expected host 127.0.0.2, got %s", settings.Host)
	}
	if settings.Port != 7000 {
		t.Errorf("Expected port 7000, got %d", settings.Port)
	}
}

func TestLoadSettings_InvalidConfig(t *testing.T) {
	t.Setenv("CREW_MCP_PORT", "not-a-number")

	_, err := LoadSettings()
	if err == nil {
		t.Fatal("Expected error for invalid port type")
	}
}

func TestLoadSettingsWithFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("transport", "", "")
	flags.String("host", "", "")
	flags.Int("port", 0, "")
	flags.String("auth-type", "", "")
	flags.String("auth-basic-username", "", "")
	flags.String("auth-basic-password", "", "")
	flags.StringSlice("auth-api-keys", nil, "")
	flags.String("neo4j-uri", "", "")
	flags.String("neo4j-username", "", "")
	flags.String("neo4j-password", "", "")
	flags.String("neo4j-database", "", "")
	flags.Int("query-max-results", 0, "")

	if err := flags.Parse([]string{
		"--transport", "sse",
		"--port", "9999",
		"--neo4j-uri", "bolt://flagged:7687",
		"--query-max-results", "25",
	}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	settings, err := LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Transport != "sse" {
		t.Errorf("Expected transport 'sse', got '%s'", settings.Transport)
	}
	if settings.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", settings.Port)
	}
	if settings.Neo4j.URI != "bolt://flagged:7687" {
		t.Errorf("Expected flagged neo4j uri, got '%s'", settings.Neo4j.URI)
	}
	if settings.Query.MaxResults != 25 {
		t.Errorf("Expected max results 25, got %d", settings.Query.MaxResults)
	}
}

func TestLoadSettingsWithFlags_FlagBeatsEnv(t *testing.T) {
	t.Setenv("CREW_MCP_NEO4J_DATABASE", "envdb")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("neo4j-database", "", "")
	if err := flags.Parse([]string{"--neo4j-database", "flagdb"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	settings, err := LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if settings.Neo4j.Database != "flagdb" {
		t.Errorf("Expected the CLI flag to win, got '%s'", settings.Neo4j.Database)
	}
}

func validSettings() *Settings {
	return &Settings{
		Transport: "stdio",
		Auth:      AuthSettings{Type: AuthTypeNone},
		Neo4j: Neo4jSettings{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "password",
			Database: "neo4j",
		},
		Query: QuerySettings{MaxResults: 200},
	}
}

func TestValidateSettings_Valid(t *testing.T) {
	if err := ValidateSettings(validSettings()); err != nil {
		t.Errorf("Expected valid settings, got: %v", err)
	}
}

func TestValidateSettings_Transport(t *testing.T) {
	s := validSettings()
	s.Transport = "websocket"
	if err := ValidateSettings(s); err == nil {
		t.Error("Expected error for unknown transport")
	}
}

func TestValidateSettings_AuthMatrix(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"none with basic creds", func(s *Settings) {
			s.Auth.Basic.Username = "admin"
		}, true},
		{"none with api keys", func(s *Settings) {
			s.Auth.APIKeys = []string{"k"}
		}, true},
		{"basic complete", func(s *Settings) {
			s.Auth.Type = AuthTypeBasic
			s.Auth.Basic = BasicAuthSettings{Username: "admin", Password: "secret"}
		}, false},
		{"basic missing password", func(s *Settings) {
			s.Auth.Type = AuthTypeBasic
			s.Auth.Basic.Username = "admin"
		}, true},
		{"basic with api keys", func(s *Settings) {
			s.Auth.Type = AuthTypeBasic
			s.Auth.Basic = BasicAuthSettings{Username: "admin", Password: "secret"}
			s.Auth.APIKeys = []string{"k"}
		}, true},
		{"apikey complete", func(s *Settings) {
			s.Auth.Type = AuthTypeAPIKey
			s.Auth.APIKeys = []string{"k"}
		}, false},
		{"apikey without keys", func(s *Settings) {
			s.Auth.Type = AuthTypeAPIKey
		}, true},
		{"unknown type", func(s *Settings) {
			s.Auth.Type = "oauth"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_Neo4j(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty uri", func(s *Settings) { s.Neo4j.URI = "" }},
		{"uri without scheme", func(s *Settings) { s.Neo4j.URI = "localhost:7687" }},
		{"empty username", func(s *Settings) { s.Neo4j.Username = "" }},
		{"empty database", func(s *Settings) { s.Neo4j.Database = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			if err := ValidateSettings(s); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestValidateSettings_MaxResults(t *testing.T) {
	s := validSettings()
	s.Query.MaxResults = 0
	if err := ValidateSettings(s); err == nil {
		t.Error("Expected error for non-positive max results")
	}
}
