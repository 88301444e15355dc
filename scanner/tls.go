// Copyright 2024 The ManLab Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scanner

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/raulshma/manlab/network"
)

// tlsInspectTimeout bounds the TLS handshake once the TCP connection
// is up.
const tlsInspectTimeout = 10 * time.Second

// tlsDialTimeout and tlsDialRetries bound each connect attempt and how
// many attempts RetryDialer makes before giving up, per the same
// "retry quickly instead of failing outright" idiom the teacher's
// RetryDialer was written for when waiting on a booting machine — a
// TLS endpoint that's mid-restart behaves the same way.
const (
	tlsDialTimeout = 3 * time.Second
	tlsDialRetries = 3
)

// InspectCertificate connects to host:port (port defaults to 443),
// performs a TLS handshake with certificate verification disabled
// (InspectCertificate reports chain validity itself; it must still be
// able to inspect expired, self-signed, or otherwise invalid chains),
// and returns every certificate presented along with how many days
// remain on the leaf.
func (e *Engine) InspectCertificate(host string, port int) (CertificateChainResult, error) {
	if port == 0 {
		port = 443
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	dialer := network.NewRetryDialer()
	dialer.Timeout = tlsDialTimeout
	dialer.Retries = tlsDialRetries

	rawConn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return CertificateChainResult{}, fmt.Errorf("tls dial %s: %w", addr, err)
	}

	tlsConn := tls.Client(rawConn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
	})
	if err := tlsConn.SetDeadline(time.Now().Add(tlsInspectTimeout)); err != nil {
		tlsConn.Close()
		return CertificateChainResult{}, fmt.Errorf("tls set deadline %s: %w", addr, err)
	}
	if err := tlsConn.Handshake(); err != nil {
		tlsConn.Close()
		return CertificateChainResult{}, fmt.Errorf("tls handshake %s: %w", addr, err)
	}
	defer tlsConn.Close()

	state := tlsConn.ConnectionState()
	certs := state.PeerCertificates
	if len(certs) == 0 {
		return CertificateChainResult{Host: host}, fmt.Errorf("no certificates presented by %s:%d", host, port)
	}

	chain := make([]CertificateInfo, len(certs))
	for i, cert := range certs {
		chain[i] = certInfo(cert)
	}

	leaf := certs[0]
	now := time.Now()
	daysRemaining := int(leaf.NotAfter.Sub(now).Hours() / 24)
	isValid := now.After(leaf.NotBefore) && now.Before(leaf.NotAfter)

	return CertificateChainResult{
		Host:          host,
		Chain:         chain,
		DaysRemaining: daysRemaining,
		IsValidNow:    isValid,
	}, nil
}

func certInfo(cert *x509.Certificate) CertificateInfo {
	thumbprint := sha1.Sum(cert.Raw)
	isSelfSigned := cert.Issuer.String() == cert.Subject.String()

	return CertificateInfo{
		Subject:            cert.Subject.String(),
		Issuer:             cert.Issuer.String(),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		Thumbprint:         fmt.Sprintf("%x", thumbprint),
		Serial:             cert.SerialNumber.String(),
		SubjectAltNames:    cert.DNSNames,
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		PublicKeyAlgorithm: cert.PublicKeyAlgorithm.String(),
		KeySize:            publicKeySize(cert),
		IsSelfSigned:       isSelfSigned,
	}
}

func publicKeySize(cert *x509.Certificate) int {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return pub.N.BitLen()
	case *ecdsa.PublicKey:
		return pub.Curve.Params().BitSize
	case ed25519.PublicKey:
		return len(pub) * 8
	default:
		return 0
	}
}
