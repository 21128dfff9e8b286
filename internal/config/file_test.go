package config

import "testing"

func TestInterpolateEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")
	t.Setenv("API_TOKEN", "secret123")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple variable", "${TEST_VAR}", "test-value"},
		{"variable in string", "prefix-${TEST_VAR}-suffix", "prefix-test-value-suffix"},
		{"multiple variables", "${TEST_VAR}:${API_TOKEN}", "test-value:secret123"},
		{"unset variable", "${NONEXISTENT_VAR}", ""},
		{"default value", "${NONEXISTENT_VAR:-default}", "default"},
		{"default value not used when set", "${TEST_VAR:-default}", "test-value"},
		{"empty default", "${NONEXISTENT_VAR:-}", ""},
		{"no variables", "plain string", "plain string"},
		{"bare dollar", "$TEST_VAR", "$TEST_VAR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InterpolateEnvVars(tt.input); got != tt.expected {
				t.Errorf("InterpolateEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadFile_InterpolatesProviderSettings(t *testing.T) {
	t.Setenv("TEST_NS", "ns9.example.com")

	path := writeFile(t, "config.yaml", `
providers:
  rfc2136:
    server: ${TEST_NS}:53
    timeout: 10
users: []
`)

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := fc.Providers["rfc2136"]["server"]; got != "ns9.example.com:53" {
		t.Errorf("server = %v", got)
	}
	// Non-string values are left for conversion.
	if got, ok := fc.Providers["rfc2136"]["timeout"].(int); !ok || got != 10 {
		t.Errorf("timeout = %#v", fc.Providers["rfc2136"]["timeout"])
	}
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"30s", false},
		{"1m30s", false},
		{"45", false},
		{"soon", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := parseTimeout(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseTimeout(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}
