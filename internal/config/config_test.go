package config

import (
	"os"
	"reflect"
	"testing"
)

// testOptions represents a test configuration structure.
type testOptions struct {
	Config string `help:"Config file path"`

	// Basic types
	StringField string   `toml:"test.string_field" env:"MIXDECK_STRING_FIELD"`
	BoolField   bool     `toml:"test.bool_field" env:"MIXDECK_BOOL_FIELD"`
	IntField    int      `toml:"test.int_field" env:"MIXDECK_INT_FIELD"`
	SliceField  []string `toml:"test.slice_field" env:"MIXDECK_SLICE_FIELD"`

	// Nested config
	NestedString string `toml:"nested.value" env:"MIXDECK_NESTED_VALUE"`

	// External key without a project prefix
	SidecarName string `toml:"sidecar.name" env:"SIDECAR_NAME"`
}

func writeTempTOML(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "config_*.toml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, writeErr := tmpFile.WriteString(content); writeErr != nil {
		t.Fatalf("Failed to write to temp file: %v", writeErr)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTempTOML(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
slice_field = ["item1", "item2", "item3"]

[nested]
value = "nested value"

[sidecar]
name = "mix"
`)

	config := &testOptions{
		Config: path,
	}

	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "hello world" {
		t.Errorf("Expected StringField to be 'hello world', got '%s'", config.StringField)
	}

	if !config.BoolField {
		t.Errorf("Expected BoolField to be true, got %v", config.BoolField)
	}

	if config.IntField != 42 {
		t.Errorf("Expected IntField to be 42, got %d", config.IntField)
	}

	expectedSlice := []string{"item1", "item2", "item3"}
	if !reflect.DeepEqual(config.SliceField, expectedSlice) {
		t.Errorf("Expected SliceField to be %v, got %v", expectedSlice, config.SliceField)
	}

	if config.NestedString != "nested value" {
		t.Errorf("Expected NestedString to be 'nested value', got '%s'", config.NestedString)
	}

	if config.SidecarName != "mix" {
		t.Errorf("Expected SidecarName to be 'mix', got '%s'", config.SidecarName)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("MIXDECK_STRING_FIELD", "env string")
	t.Setenv("MIXDECK_BOOL_FIELD", "false")
	t.Setenv("MIXDECK_INT_FIELD", "123")
	t.Setenv("MIXDECK_SLICE_FIELD", "a,b,c")
	t.Setenv("MIXDECK_NESTED_VALUE", "env nested")
	t.Setenv("SIDECAR_NAME", "otherworker")

	config := &testOptions{}

	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env string" {
		t.Errorf("Expected StringField to be 'env string', got '%s'", config.StringField)
	}

	if config.BoolField {
		t.Errorf("Expected BoolField to be false, got %v", config.BoolField)
	}

	if config.IntField != 123 {
		t.Errorf("Expected IntField to be 123, got %d", config.IntField)
	}

	expectedSlice := []string{"a", "b", "c"}
	if !reflect.DeepEqual(config.SliceField, expectedSlice) {
		t.Errorf("Expected SliceField to be %v, got %v", expectedSlice, config.SliceField)
	}

	if config.SidecarName != "otherworker" {
		t.Errorf("Expected SidecarName to be 'otherworker', got '%s'", config.SidecarName)
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	path := writeTempTOML(t, `
[test]
string_field = "from file"

[sidecar]
name = "mix"
`)

	t.Setenv("SIDECAR_NAME", "env-worker")

	config := &testOptions{Config: path}

	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "from file" {
		t.Errorf("Expected StringField from file, got '%s'", config.StringField)
	}

	// Env var wins over the TOML value
	if config.SidecarName != "env-worker" {
		t.Errorf("Expected SidecarName 'env-worker', got '%s'", config.SidecarName)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := &testOptions{
		Config:      "/nonexistent/path/config.toml",
		StringField: "default kept",
	}

	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}

	if config.StringField != "default kept" {
		t.Errorf("Expected defaults preserved, got '%s'", config.StringField)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeTempTOML(t, `this is not [valid toml`)

	config := &testOptions{Config: path}

	if err := LoadConfig(config, nil); err == nil {
		t.Fatal("Expected error for invalid TOML")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Port", "port"},
		{"SidecarName", "sidecar-name"},
		{"LoggingLevel", "logging-level"},
		{"ReadyTimeout", "ready-timeout"},
	}

	for _, tt := range tests {
		if got := fieldNameToFlag(tt.input); got != tt.want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeTempTOML(t, `
[logging]
level = "debug"
format = "json"
sidecar = "warn"
api = "error"
`)

	cfg := LoadLoggingConfig(path)

	if cfg.Level != "debug" {
		t.Errorf("Expected level 'debug', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Expected format 'json', got '%s'", cfg.Format)
	}
	if cfg.Modules["sidecar"] != "warn" {
		t.Errorf("Expected sidecar module 'warn', got '%s'", cfg.Modules["sidecar"])
	}
	if cfg.Modules["api"] != "error" {
		t.Errorf("Expected api module 'error', got '%s'", cfg.Modules["api"])
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("/nonexistent/config.toml")

	if cfg.Level != "info" {
		t.Errorf("Expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "text" {
		t.Errorf("Expected default format 'text', got '%s'", cfg.Format)
	}
}
