package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		KISAppKey:      "key",
		KISAppSecret:   "secret",
		KISAccountNo:   "12345678-01",
		DiscordWebhook: "https://discord.com/api/webhooks/x/y",
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}

	missingKey := validConfig()
	missingKey.KISAppKey = ""
	if err := missingKey.Validate(); err == nil {
		t.Error("Expected an error for a missing app key")
	}

	missingHook := validConfig()
	missingHook.DiscordWebhook = ""
	if err := missingHook.Validate(); err == nil {
		t.Error("Expected an error for a missing webhook")
	}
}

func TestAccountParts(t *testing.T) {
	tests := []struct {
		in       string
		cano     string
		prdt     string
		wantErr  bool
	}{
		{"12345678-01", "12345678", "01", false},
		{"12345678-22", "12345678", "22", false},
		{"1234567801", "", "", true},
		{"1234-01", "", "", true},
		{"12345678-", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		cfg := validConfig()
		cfg.KISAccountNo = tt.in
		cano, prdt, err := cfg.AccountParts()
		if (err != nil) != tt.wantErr {
			t.Errorf("AccountParts(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if cano != tt.cano || prdt != tt.prdt {
			t.Errorf("AccountParts(%q) = (%q, %q), want (%q, %q)", tt.in, cano, prdt, tt.cano, tt.prdt)
		}
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_BAD_INT", "not-a-number")

	if got := getEnv("TEST_STR", "fallback"); got != "hello" {
		t.Errorf("getEnv = %q", got)
	}
	if got := getEnv("TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv fallback = %q", got)
	}
	if got := getEnvAsInt("TEST_INT", 0); got != 42 {
		t.Errorf("getEnvAsInt = %d", got)
	}
	if got := getEnvAsInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt with garbage = %d, want fallback", got)
	}
	if got := getEnvAsBool("TEST_BOOL", false); !got {
		t.Error("getEnvAsBool = false, want true")
	}
	if got := getEnvAsDuration("TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvAsDuration = %v", got)
	}
}
