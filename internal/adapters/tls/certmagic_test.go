package tls

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewManagerDisabled(t *testing.T) {
	m, err := NewManager(Config{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if m.Enabled() || m.TLSConfig() != nil {
		t.Error("disabled manager should not produce a TLS config")
	}
	if err := m.ManageCertificates(context.Background()); err != nil {
		t.Errorf("ManageCertificates() error = %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no domains", Config{Enabled: true, Email: "ops@example.com"}},
		{"no email", Config{Enabled: true, Domains: []string{"lens.example.com"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg, discardLogger()); err == nil {
				t.Error("NewManager() should fail")
			}
		})
	}
}

func TestNewManagerEnabled(t *testing.T) {
	m, err := NewManager(Config{
		Enabled:  true,
		Domains:  []string{"lens.example.com"},
		Email:    "ops@example.com",
		CacheDir: t.TempDir(),
		Staging:  true,
		DNS:      DNSConfig{SubscriptionID: "sub", ResourceGroupName: "rg"},
	}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	cfg := m.TLSConfig()
	if cfg == nil || cfg.GetCertificate == nil {
		t.Fatal("TLSConfig() should serve certificates dynamically")
	}
	if cfg.NextProtos[0] != "h2" {
		t.Errorf("NextProtos = %v", cfg.NextProtos)
	}
}
