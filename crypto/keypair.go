package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/Connoropolous/lair-keystore/lairerr"
)

// X25519KeyPair is a NaCl box key-agreement key pair.
type X25519KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// NewX25519FromEntropy creates a new random X25519 key pair from the system
// CSPRNG.
func NewX25519FromEntropy() (*X25519KeyPair, error) {
	logger := logrus.WithFields(logrus.Fields{
		"function": "NewX25519FromEntropy",
		"package":  "crypto",
	})

	logger.Debug("generating new x25519 key pair")

	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"error":      err.Error(),
			"error_type": "key_generation_failed",
			"operation":  "box.GenerateKey",
		}).Error("failed to generate x25519 key pair")
		return nil, lairerr.Wrap(lairerr.EntropyUnavailable, "generating x25519 key pair", err)
	}

	kp := &X25519KeyPair{
		Public:  *publicKey,
		Private: *privateKey,
	}

	logger.WithFields(logrus.Fields{
		"public_key_preview": fmt.Sprintf("%x", kp.Public[:8]),
		"operation":          "key_generation_success",
	}).Debug("x25519 key pair generated")

	return kp, nil
}

// DeriveX25519Public recomputes the public point for a private scalar,
// matching the pub_key = scalar_base_mult(priv_key) invariant.
func DeriveX25519Public(priv [32]byte) [32]byte {
	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &priv)
	return pub
}

// IsZeroX25519Key reports whether key is the all-zero scalar, the one value
// box.GenerateKey never produces and loaders should treat as corrupt state.
func IsZeroX25519Key(key [32]byte) bool {
	return isZeroKey(key)
}

func isZeroKey(key [32]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
