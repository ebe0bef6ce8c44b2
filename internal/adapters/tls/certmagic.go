// Package tls obtains and renews certificates with CertMagic using Azure DNS
// for DNS-01 challenges.
package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"
)

// Config holds TLS configuration.
type Config struct {
	Enabled  bool
	Domains  []string
	Email    string
	CacheDir string
	Staging  bool // Use Let's Encrypt staging environment
	DNS      DNSConfig
}

// DNSConfig holds Azure DNS provider configuration for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string
	ResourceGroupName string
	ClientID          string // User Assigned Managed Identity client ID (optional)
}

// Manager owns the certificate configuration for the API listener.
type Manager struct {
	config Config
	magic  *certmagic.Config
	logger *slog.Logger
}

// NewManager validates cfg and prepares an ACME issuer. A disabled config
// yields a Manager whose TLSConfig is nil.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	m := &Manager{config: cfg, logger: logger}
	if !cfg.Enabled {
		return m, nil
	}

	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("TLS enabled but no domains specified")
	}
	if cfg.Email == "" {
		return nil, fmt.Errorf("TLS enabled but no email specified")
	}

	magic := certmagic.NewDefault()
	if cfg.CacheDir != "" {
		magic.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}

	ca := certmagic.LetsEncryptProductionCA
	if cfg.Staging {
		ca = certmagic.LetsEncryptStagingCA
	}

	// An empty client ID selects the system assigned managed identity.
	provider := &azure.Provider{
		SubscriptionId:    cfg.DNS.SubscriptionID,
		ResourceGroupName: cfg.DNS.ResourceGroupName,
		ClientId:          cfg.DNS.ClientID,
	}

	issuer := certmagic.NewACMEIssuer(magic, certmagic.ACMEIssuer{
		CA:     ca,
		Email:  cfg.Email,
		Agreed: true,
		DNS01Solver: &certmagic.DNS01Solver{
			DNSManager: certmagic.DNSManager{DNSProvider: provider},
		},
	})
	magic.Issuers = []certmagic.Issuer{issuer}

	m.magic = magic
	return m, nil
}

// Enabled reports whether TLS is configured.
func (m *Manager) Enabled() bool { return m.magic != nil }

// Domains returns the managed domain names.
func (m *Manager) Domains() []string { return m.config.Domains }

// TLSConfig returns the listener configuration, or nil when disabled.
func (m *Manager) TLSConfig() *tls.Config {
	if m.magic == nil {
		return nil
	}
	cfg := m.magic.TLSConfig()
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"h2", "http/1.1"}
	}
	return cfg
}

// ManageCertificates obtains or loads certificates for every domain and
// keeps them renewed in the background.
func (m *Manager) ManageCertificates(ctx context.Context) error {
	if m.magic == nil {
		return nil
	}

	m.logger.Info("obtaining certificates", "domains", m.config.Domains, "staging", m.config.Staging)
	if err := m.magic.ManageSync(ctx, m.config.Domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}
	m.logger.Info("certificates obtained successfully")
	return nil
}
