// Package tlsutils generates the self-signed certificate the server uses when none is configured.
package tlsutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const defaultValidity = 30 * 24 * time.Hour

// SelfSignedCertificate is a certificate and key pair written to a temporary directory.
type SelfSignedCertificate struct {
	CertFile string
	KeyFile  string
	dir      string
}

// Remove deletes the certificate files.
func (c *SelfSignedCertificate) Remove() error {
	return os.RemoveAll(c.dir)
}

// GenerateSelfSignedCertificate writes a new certificate for the given host names
// and IP addresses. Without hosts the certificate is issued for localhost.
func GenerateSelfSignedCertificate(hosts ...string) (*SelfSignedCertificate, error) {
	certPEM, keyPEM, err := generateCertificate(hosts, time.Now(), defaultValidity)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "online-vad-tls-")
	if err != nil {
		return nil, fmt.Errorf("create certificate dir: %w", err)
	}

	c := &SelfSignedCertificate{
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
		dir:      dir,
	}

	for file, data := range map[string][]byte{c.CertFile: certPEM, c.KeyFile: keyPEM} {
		if err := os.WriteFile(file, data, 0o600); err != nil {
			_ = c.Remove()
			return nil, fmt.Errorf("write certificate: %w", err)
		}
	}

	return c, nil
}

func generateCertificate(hosts []string, notBefore time.Time, validity time.Duration) ([]byte, []byte, error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1", "::1"}
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ECDSA key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   hosts[0],
			Organization: []string{"online-vad"},
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal ECDSA private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return certPEM, keyPEM, nil
}
