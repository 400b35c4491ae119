// internal/config/tls.go
package config

import (
	"crypto/tls"
	"fmt"
	"os"
)

// LoadTLS builds a server TLS config from PEM files. A non-empty
// intermediate is appended to the certificate to form the served chain.
func LoadTLS(certFile, keyFile, intermediateFile string) (*tls.Config, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	if intermediateFile != "" {
		chain, err := os.ReadFile(intermediateFile)
		if err != nil {
			return nil, fmt.Errorf("read intermediate: %w", err)
		}
		certPEM = append(append(certPEM, '\n'), chain...)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
