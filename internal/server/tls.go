package server

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// Key types accepted for generated certificates.
const (
	KeyECDSA   = "ecdsa"
	KeyEd25519 = "ed25519"
	KeyRSA     = "rsa"
)

// TLSOptions selects the certificate the proof service presents. When
// CertFile is set the pair is loaded from disk; otherwise a certificate is
// generated in memory for the listen address plus Hosts.
type TLSOptions struct {
	CertFile string
	KeyFile  string
	Hosts    []string
	ValidFor time.Duration
	KeyType  string
}

// ServerTLS builds the TLS configuration for a service listening on addr.
func ServerTLS(addr string, opts TLSOptions) (*tls.Config, error) {
	var (
		cert tls.Certificate
		err  error
	)
	if opts.CertFile != "" {
		cert, err = tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load certificate: %w", err)
		}
	} else {
		cert, err = generate(SANs(addr, opts.Hosts), opts.ValidFor, opts.KeyType)
		if err != nil {
			return nil, fmt.Errorf("generate certificate: %w", err)
		}
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS13}, nil
}

// SANs lists the subject alternative names for a listener on addr. A
// wildcard or empty host means every loopback name; extra hosts are
// appended without duplicates.
func SANs(addr string, extra []string) []string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	var names []string
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		names = []string{"localhost", "127.0.0.1", "::1"}
	} else {
		names = []string{host}
	}

	for _, h := range extra {
		dup := false
		for _, n := range names {
			if n == h {
				dup = true
				break
			}
		}
		if !dup && h != "" {
			names = append(names, h)
		}
	}
	return names
}

func generate(hosts []string, validFor time.Duration, keyType string) (tls.Certificate, error) {
	if validFor <= 0 {
		validFor = 24 * time.Hour
	}

	key, err := newKey(keyType)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: hosts[0], Organization: []string{"orizon-prove"}},
		NotBefore:    now.Add(-5 * time.Minute),
		NotAfter:     now.Add(validFor),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if _, ok := key.(*rsa.PrivateKey); ok {
		tmpl.KeyUsage |= x509.KeyUsageKeyEncipherment
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return tls.Certificate{}, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, nil
}

func newKey(keyType string) (crypto.Signer, error) {
	switch keyType {
	case "", KeyECDSA:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case KeyEd25519:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, err
	case KeyRSA:
		return rsa.GenerateKey(rand.Reader, 2048)
	default:
		return nil, fmt.Errorf("unknown key type %q", keyType)
	}
}
