package tls

import (
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-auth/internal/config"
)

func TestDevCertGeneratorWritesAndReuses(t *testing.T) {
	dir := t.TempDir()
	gen := NewDevCertGenerator(dir)

	first, err := gen.GenerateCert([]string{"localhost", "127.0.0.1"})
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(first.Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, leaf.DNSNames, "localhost")
	require.Len(t, leaf.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", leaf.IPAddresses[0].String())

	second, err := gen.GenerateCert([]string{"localhost"})
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0])
}

func TestManagerFallsBackToSelfSignedOutsideProduction(t *testing.T) {
	cfg := &config.Config{
		Environment: "development",
		Server:      config.ServerConfig{Domain: "localhost", AutoCertDir: t.TempDir()},
	}
	m := NewManager(cfg)

	cert, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	require.NoError(t, err)
	require.NotNil(t, cert)

	again, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	require.NoError(t, err)
	assert.Same(t, cert, again)
}

func TestManagerRefusesSelfSignedInProduction(t *testing.T) {
	cfg := &config.Config{
		Environment: "production",
		Server:      config.ServerConfig{Domain: "auth.example.com", AutoCertDir: t.TempDir()},
	}

	_, err := NewManager(cfg).GetCertificate(&tls.ClientHelloInfo{ServerName: "auth.example.com"})
	assert.ErrorIs(t, err, ErrNoCertificate)
}
