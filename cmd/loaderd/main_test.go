package main

import (
	"testing"
)

func TestDaemonConfigDefaults(t *testing.T) {
	cfg := &daemonConfig{}
	cfg.Name = serviceName
	cfg.ApplyDefaults()

	if cfg.Version == "" {
		t.Error("expected a default version")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Observability.Endpoint != "localhost:4318" {
		t.Errorf("expected default telemetry endpoint, got %s", cfg.Observability.Endpoint)
	}
	if cfg.Builtin.TokenGuard.Secret == "" {
		t.Error("expected a development token guard secret")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaulted config must validate, got %v", err)
	}
}

func TestDaemonConfigValidateTelemetry(t *testing.T) {
	cfg := &daemonConfig{}
	cfg.Name = serviceName
	cfg.ApplyDefaults()
	cfg.Observability.Enabled = true
	cfg.Observability.SampleRate = 3.0

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range sample rate")
	}
}
