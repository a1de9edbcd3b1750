package server

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSANs(t *testing.T) {
	tests := []struct {
		addr  string
		extra []string
		want  []string
	}{
		{"127.0.0.1:8443", nil, []string{"127.0.0.1"}},
		{"prover.internal:8443", []string{"10.0.0.7"}, []string{"prover.internal", "10.0.0.7"}},
		{":8443", nil, []string{"localhost", "127.0.0.1", "::1"}},
		{"0.0.0.0:8443", []string{"localhost", "build-host"}, []string{"localhost", "127.0.0.1", "::1", "build-host"}},
		{"[::]:8443", nil, []string{"localhost", "127.0.0.1", "::1"}},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, SANs(tt.addr, tt.extra))
		})
	}
}

func TestServerTLSGenerated(t *testing.T) {
	tests := []struct {
		keyType string
		check   func(t *testing.T, key interface{})
	}{
		{"", func(t *testing.T, key interface{}) { assert.IsType(t, &ecdsa.PrivateKey{}, key) }},
		{KeyECDSA, func(t *testing.T, key interface{}) { assert.IsType(t, &ecdsa.PrivateKey{}, key) }},
		{KeyEd25519, func(t *testing.T, key interface{}) { assert.IsType(t, ed25519.PrivateKey{}, key) }},
		{KeyRSA, func(t *testing.T, key interface{}) { assert.IsType(t, &rsa.PrivateKey{}, key) }},
	}

	for _, tt := range tests {
		t.Run("key="+tt.keyType, func(t *testing.T) {
			cfg, err := ServerTLS("prover.internal:8443", TLSOptions{
				Hosts:    []string{"10.1.2.3"},
				ValidFor: 2 * time.Hour,
				KeyType:  tt.keyType,
			})
			require.NoError(t, err)
			require.Len(t, cfg.Certificates, 1)

			cert := cfg.Certificates[0]
			tt.check(t, cert.PrivateKey)

			leaf := cert.Leaf
			require.NotNil(t, leaf)
			assert.Equal(t, []string{"prover.internal"}, leaf.DNSNames)
			require.Len(t, leaf.IPAddresses, 1)
			assert.Equal(t, "10.1.2.3", leaf.IPAddresses[0].String())
			assert.WithinDuration(t, time.Now().Add(2*time.Hour), leaf.NotAfter, time.Minute)
			assert.NoError(t, leaf.VerifyHostname("prover.internal"))
		})
	}

	_, err := ServerTLS("127.0.0.1:0", TLSOptions{KeyType: "dsa"})
	assert.Error(t, err)
}

func TestServerTLSFromFiles(t *testing.T) {
	generated, err := generate([]string{"localhost"}, time.Hour, KeyECDSA)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(generated.PrivateKey)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: generated.Certificate[0]}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

	cfg, err := ServerTLS("127.0.0.1:0", TLSOptions{CertFile: certFile, KeyFile: keyFile, KeyType: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, generated.Certificate[0], cfg.Certificates[0].Certificate[0])

	_, err = ServerTLS("127.0.0.1:0", TLSOptions{CertFile: certFile, KeyFile: filepath.Join(dir, "missing.pem")})
	assert.Error(t, err)
}
