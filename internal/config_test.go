package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestQueueConfig_EmptyBackendDefaultsMemory(t *testing.T) {
	cfg := QueueConfig{Size: 10}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty backend should default to memory: %v", err)
	}
	if cfg.Backend != QueueBackendMemory {
		t.Errorf("backend = %q, want %q", cfg.Backend, QueueBackendMemory)
	}
}

func TestQueueConfig_MemoryRequiresSize(t *testing.T) {
	cfg := QueueConfig{Backend: QueueBackendMemory}
	if err := cfg.Validate(); err == nil {
		t.Fatal("memory backend without size should fail")
	}
}

func TestQueueConfig_RedisRequiresURL(t *testing.T) {
	cfg := QueueConfig{Backend: QueueBackendRedis}
	if err := cfg.Validate(); err == nil {
		t.Fatal("redis backend without url should fail")
	}

	cfg.Redis.URL = "redis://localhost:6379/0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("redis backend with url should pass: %v", err)
	}
}

func TestQueueConfig_UnknownBackend(t *testing.T) {
	cfg := QueueConfig{Backend: "kafka", Size: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail")
	}
}

func TestResolverConfig_Bounds(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*ResolverConfig)
	}{
		{"zero workers", func(c *ResolverConfig) { c.Workers = 0 }},
		{"too many workers", func(c *ResolverConfig) { c.Workers = 65 }},
		{"zero concurrency", func(c *ResolverConfig) { c.Concurrency = 0 }},
		{"short timeout", func(c *ResolverConfig) { c.Timeout = time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Resolver
			tt.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestFullConfig_ResolverErrorPrefixed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Resolver.Workers = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "resolver") {
		t.Fatalf("expected resolver error, got %v", err)
	}
}
