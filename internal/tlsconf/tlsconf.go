// Package tlsconf manages the local TLS material: a self-signed CA, a server
// certificate for localhost signed by that CA, and optional installation of
// the CA into the OS trust store so clients accept the server certificate.
package tlsconf

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	caCertFile     = "ca.crt"
	caKeyFile      = "ca.key"
	serverCertFile = "server.crt"
	serverKeyFile  = "server.key"

	caValidity     = 10 * 365 * 24 * time.Hour
	serverValidity = 825 * 24 * time.Hour
)

// EnsureCerts generates the CA and server certificate under dir unless all
// four PEM files already exist. It reports whether new material was
// generated, so callers know a freshly minted CA still needs trusting.
func EnsureCerts(dir string, logger zerolog.Logger) (bool, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, fmt.Errorf("creating cert dir: %w", err)
	}

	paths := []string{
		filepath.Join(dir, caCertFile),
		filepath.Join(dir, caKeyFile),
		filepath.Join(dir, serverCertFile),
		filepath.Join(dir, serverKeyFile),
	}
	allExist := true
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			allExist = false
			break
		}
	}
	if allExist {
		logger.Info().Msg("TLS certificates already exist, skipping generation")
		return false, nil
	}

	logger.Info().Msg("generating local CA and server certificate")

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return false, fmt.Errorf("generating CA key: %w", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber: newSerial(),
		Subject: pkix.Name{
			CommonName:   "Setu Local CA",
			Organization: []string{"Setu"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(caValidity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		return false, fmt.Errorf("creating CA certificate: %w", err)
	}
	if err := writeCertAndKey(dir, caCertFile, caKeyFile, caDER, caKey); err != nil {
		return false, err
	}

	serverKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return false, fmt.Errorf("generating server key: %w", err)
	}
	serverTmpl := &x509.Certificate{
		SerialNumber: newSerial(),
		Subject: pkix.Name{
			CommonName: "Setu CardDAV Server",
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(serverValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1)},
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return false, fmt.Errorf("parsing CA certificate: %w", err)
	}
	serverDER, err := x509.CreateCertificate(rand.Reader, serverTmpl, caCert, &serverKey.PublicKey, caKey)
	if err != nil {
		return false, fmt.Errorf("creating server certificate: %w", err)
	}
	if err := writeCertAndKey(dir, serverCertFile, serverKeyFile, serverDER, serverKey); err != nil {
		return false, err
	}

	logger.Info().
		Str("ca_crt", filepath.Join(dir, caCertFile)).
		Str("server_crt", filepath.Join(dir, serverCertFile)).
		Msg("TLS certificates generated")
	return true, nil
}

// Load reads server.crt and server.key from dir and builds a server
// tls.Config. ALPN is pinned to HTTP/1.1, CardDAV clients do not speak h2.
func Load(dir string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(dir, serverCertFile),
		filepath.Join(dir, serverKeyFile),
	)
	if err != nil {
		return nil, fmt.Errorf("loading server certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}, nil
}

func newSerial() *big.Int {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return serial
}

func writeCertAndKey(dir, certName, keyName string, der []byte, key *ecdsa.PrivateKey) error {
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(filepath.Join(dir, certName), certPEM, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", certName, err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", keyName, err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(filepath.Join(dir, keyName), keyPEM, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", keyName, err)
	}
	return nil
}
