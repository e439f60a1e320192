package transport

import "crypto/tls"

// NewTLSConfig loads a certificate/key pair and returns a config with
// SSLv2, SSLv3, TLS 1.0, and TLS 1.1 disabled, matching the floor the
// original service enforced.
func NewTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
