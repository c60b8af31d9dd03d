package crypto

import (
	"crypto/sha256"
	"crypto/x509"
	"testing"
)

func TestNewSelfSignedTlsEd25519Default(t *testing.T) {
	cert, err := NewSelfSignedTls(TlsSelfSignedOptions{})
	if err != nil {
		t.Fatalf("NewSelfSignedTls failed: %v", err)
	}
	if cert.SNI == "" {
		t.Fatalf("expected a generated SNI when none was given")
	}

	parsed, err := x509.ParseCertificate(cert.CertDER)
	if err != nil {
		t.Fatalf("expected a parseable DER certificate: %v", err)
	}
	if parsed.SignatureAlgorithm != x509.PureEd25519 {
		t.Fatalf("expected the default algorithm to be Ed25519, got %v", parsed.SignatureAlgorithm)
	}

	wantDigest := sha256.Sum256(cert.CertDER)
	if cert.Digest != wantDigest {
		t.Fatalf("expected digest to be the SHA-256 of the leaf certificate DER")
	}
}

func TestNewSelfSignedTlsEcdsaP256(t *testing.T) {
	cert, err := NewSelfSignedTls(TlsSelfSignedOptions{Algorithm: TlsAlgorithmEcdsaP256})
	if err != nil {
		t.Fatalf("NewSelfSignedTls failed: %v", err)
	}

	parsed, err := x509.ParseCertificate(cert.CertDER)
	if err != nil {
		t.Fatalf("expected a parseable DER certificate: %v", err)
	}
	if parsed.SignatureAlgorithm != x509.ECDSAWithSHA256 {
		t.Fatalf("expected the EcdsaP256 option to sign with ECDSA-SHA256, got %v", parsed.SignatureAlgorithm)
	}
}

func TestNewSelfSignedTlsHonorsSNIOverride(t *testing.T) {
	cert, err := NewSelfSignedTls(TlsSelfSignedOptions{SNIOverride: "override.example.test"})
	if err != nil {
		t.Fatalf("NewSelfSignedTls failed: %v", err)
	}
	if cert.SNI != "override.example.test" {
		t.Fatalf("expected SNIOverride to be used verbatim, got %q", cert.SNI)
	}
}
