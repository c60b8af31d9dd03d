package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Connoropolous/lair-keystore/lairerr"
)

// TlsAlgorithm selects the certificate key/signature algorithm.
type TlsAlgorithm int

const (
	// TlsAlgorithmEd25519 signs the certificate with an Ed25519 key (default).
	TlsAlgorithmEd25519 TlsAlgorithm = iota
	// TlsAlgorithmEcdsaP256 signs the certificate with an ECDSA P-256 key.
	TlsAlgorithmEcdsaP256
)

// DefaultCertValidity is the lifetime given to a freshly generated
// self-signed certificate.
const DefaultCertValidity = 10 * 365 * 24 * time.Hour

// TlsDigestAlgorithm names the hash used to digest a certificate's leaf DER
// encoding (spec.md §9's second Open Question). Recorded in the store
// header so a future migration can tell which algorithm produced an
// existing entry's digest.
const TlsDigestAlgorithm = "SHA-256"

// SelfSignedCert is the output of generating a fresh TLS identity: the
// SNI it was issued for, its DER encoding, the DER-encoded private key,
// and the SHA-256 digest of the leaf certificate.
type SelfSignedCert struct {
	SNI        string
	CertDER    []byte
	PrivKeyDER []byte
	Digest     [32]byte
}

// TlsSelfSignedOptions configures self-signed certificate generation.
type TlsSelfSignedOptions struct {
	// Algorithm selects the key/signature scheme. Zero value is Ed25519.
	Algorithm TlsAlgorithm
	// SNIOverride, when non-empty, is used verbatim as the certificate's
	// SNI instead of a freshly generated random label.
	SNIOverride string
	// Validity overrides DefaultCertValidity when non-zero.
	Validity time.Duration
}

// NewSelfSignedTls generates a fresh self-signed TLS certificate and its
// private key per opts. The SNI is either opts.SNIOverride or a random
// label drawn from the system CSPRNG.
func NewSelfSignedTls(opts TlsSelfSignedOptions) (*SelfSignedCert, error) {
	logger := logrus.WithFields(logrus.Fields{
		"function":  "NewSelfSignedTls",
		"package":   "crypto",
		"algorithm": opts.Algorithm,
	})

	sni := opts.SNIOverride
	if sni == "" {
		label, err := randomSNILabel()
		if err != nil {
			return nil, err
		}
		sni = label
	}

	validity := opts.Validity
	if validity == 0 {
		validity = DefaultCertValidity
	}

	signer, pub, sigAlgo, err := generateTlsKeyPair(opts.Algorithm)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, lairerr.Wrap(lairerr.EntropyUnavailable, "generating certificate serial", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: sni},
		DNSNames:              []string{sni},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		SignatureAlgorithm:    sigAlgo,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, pub, signer)
	if err != nil {
		return nil, lairerr.Wrap(lairerr.KeyDerivationFailed, "creating self-signed certificate", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(signer)
	if err != nil {
		return nil, lairerr.Wrap(lairerr.KeyDerivationFailed, "marshalling certificate private key", err)
	}

	digest := sha256.Sum256(certDER)

	logger.WithFields(logrus.Fields{
		"sni":            sni,
		"digest_preview": hex.EncodeToString(digest[:8]),
		"operation":      "tls_self_signed_success",
	}).Debug("generated self-signed tls certificate")

	return &SelfSignedCert{
		SNI:        sni,
		CertDER:    certDER,
		PrivKeyDER: privDER,
		Digest:     digest,
	}, nil
}

func generateTlsKeyPair(algo TlsAlgorithm) (signer any, pub any, sigAlgo x509.SignatureAlgorithm, err error) {
	switch algo {
	case TlsAlgorithmEcdsaP256:
		key, genErr := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if genErr != nil {
			return nil, nil, 0, lairerr.Wrap(lairerr.EntropyUnavailable, "generating ecdsa-p256 key", genErr)
		}
		return key, &key.PublicKey, x509.ECDSAWithSHA256, nil
	case TlsAlgorithmEd25519:
		pub, priv, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return nil, nil, 0, lairerr.Wrap(lairerr.EntropyUnavailable, "generating ed25519 tls key", genErr)
		}
		return priv, pub, x509.PureEd25519, nil
	default:
		return nil, nil, 0, lairerr.New(lairerr.BadInput, fmt.Sprintf("unsupported tls algorithm %d", algo))
	}
}

func randomSNILabel() (string, error) {
	var raw [12]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", lairerr.Wrap(lairerr.EntropyUnavailable, "generating random sni label", err)
	}
	return fmt.Sprintf("%s.lair-keystore.local", hex.EncodeToString(raw[:])), nil
}
