package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/acme/autocert"

	"creator-auth/internal/config"
	"creator-auth/internal/util"
)

var ErrNoCertificate = errors.New("no TLS certificate available")

// Manager picks a certificate per handshake: ACME when enabled, then the configured key
// pair, then (outside production) a self-signed development certificate.
type Manager struct {
	server     config.ServerConfig
	production bool
	autoCert   *autocert.Manager

	devOnce sync.Once
	devCert *tls.Certificate
	devErr  error
}

func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		server:     cfg.Server,
		production: cfg.IsProduction(),
	}
	if m.server.EnableTLS && m.server.AutoCert {
		m.setupAutoCert()
	}
	return m
}

func (m *Manager) setupAutoCert() {
	if err := os.MkdirAll(m.server.AutoCertDir, 0o700); err != nil {
		util.Warn("Could not create autocert directory", util.ErrorField(err))
		return
	}

	m.autoCert = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(m.server.Domain),
		Cache:      autocert.DirCache(m.server.AutoCertDir),
		Email:      m.server.Email,
	}

	util.Info("AutoCert configured",
		util.String("domain", m.server.Domain),
		util.String("cache_dir", m.server.AutoCertDir))
}

func (m *Manager) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if m.autoCert != nil {
		cert, err := m.autoCert.GetCertificate(hello)
		if err == nil {
			return cert, nil
		}
		util.Warn("AutoCert certificate unavailable", util.ErrorField(err))
	}

	if m.server.CertFile != "" && m.server.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(m.server.CertFile, m.server.KeyFile)
		if err == nil {
			return &cert, nil
		}
		util.Warn("Failed to load TLS key pair", util.ErrorField(err))
	}

	if m.production {
		return nil, ErrNoCertificate
	}
	return m.selfSigned()
}

func (m *Manager) selfSigned() (*tls.Certificate, error) {
	m.devOnce.Do(func() {
		hosts := []string{m.server.Domain, "localhost", "127.0.0.1", "::1"}
		cert, err := NewDevCertGenerator(m.server.AutoCertDir).GenerateCert(hosts)
		if err != nil {
			m.devErr = fmt.Errorf("failed to generate self-signed certificate: %w", err)
			return
		}
		m.devCert = &cert
	})
	return m.devCert, m.devErr
}

func (m *Manager) TLSConfig() *tls.Config {
	cfg := &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}
	if m.autoCert != nil {
		cfg.NextProtos = append(cfg.NextProtos, "acme-tls/1")
	}
	return cfg
}

// AutocertManager is nil unless ACME is enabled; main mounts its HTTP-01 handler on the
// plain port.
func (m *Manager) AutocertManager() *autocert.Manager {
	return m.autoCert
}
