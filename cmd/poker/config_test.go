package main

import (
	"io"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		transport:   transportMemory,
		joinTimeout: time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"ws transport", func(c *Config) { c.transport = transportWS }, ""},
		{"nats transport", func(c *Config) { c.transport = transportNATS }, ""},
		{"unknown transport", func(c *Config) { c.transport = "carrier-pigeon" }, "invalid transport"},
		{"lowercase room", func(c *Config) { c.room = "ab12" }, ""},
		{"room too short", func(c *Config) { c.room = "ab" }, "invalid room code"},
		{"room with symbols", func(c *Config) { c.room = "ab-12" }, "invalid room code"},
		{"zero timeout", func(c *Config) { c.joinTimeout = 0 }, "invalid join timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewCmdFlagDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatal(err)
	}

	if cfg.transport != transportWS {
		t.Errorf("transport = %q, want ws", cfg.transport)
	}
	if cfg.joinTimeout != 10*time.Second {
		t.Errorf("joinTimeout = %s, want 10s", cfg.joinTimeout)
	}
	if cfg.natsPrefix != "poker" {
		t.Errorf("natsPrefix = %q, want poker", cfg.natsPrefix)
	}
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("POKER_ROOM", "xy99")
	t.Setenv("POKER_TRANSPORT", "memory")
	t.Setenv("POKER_JOIN_TIMEOUT", "3s")
	t.Setenv("POKER_SPECTATOR", "true")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.room != "xy99" {
		t.Errorf("room = %q, want xy99", cfg.room)
	}
	if cfg.transport != transportMemory {
		t.Errorf("transport = %q, want memory", cfg.transport)
	}
	if cfg.joinTimeout != 3*time.Second {
		t.Errorf("joinTimeout = %s, want 3s", cfg.joinTimeout)
	}
	if !cfg.spectator {
		t.Error("spectator should be set from the environment")
	}
}

func TestNewCmdFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("POKER_NAME", "Env Name")

	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags([]string{"--name", "Flag Name"}); err != nil {
		t.Fatal(err)
	}
	if cfg.name != "Flag Name" {
		t.Errorf("name = %q, want the flag value", cfg.name)
	}
}

func TestNewCmdRejectsInvalidTransport(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	cmd.SetArgs([]string{"--transport", "smoke-signals"})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(io.Discard)

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid transport") {
		t.Fatalf("expected invalid transport error, got %v", err)
	}
}
