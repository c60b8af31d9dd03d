package crypto

import (
	"crypto/rand"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/box"

	"github.com/Connoropolous/lair-keystore/lairerr"
)

// NonceSize is the size of a crypto-box nonce in bytes.
const NonceSize = 24

// CryptoBoxCiphertext is the result of a CryptoBoxSeal call: a fresh nonce
// and the authenticated ciphertext it was sealed under.
type CryptoBoxCiphertext struct {
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

// CryptoBoxSeal authenticates and encrypts plaintext from senderPriv to
// recipientPub with a freshly generated random nonce. Two calls over the
// same plaintext always differ in both nonce and ciphertext.
func CryptoBoxSeal(senderPriv, recipientPub [32]byte, plaintext []byte) (*CryptoBoxCiphertext, error) {
	logger := logrus.WithFields(logrus.Fields{
		"function":     "CryptoBoxSeal",
		"package":      "crypto",
		"message_size": len(plaintext),
	})

	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		logger.WithError(err).Error("failed to generate crypto-box nonce")
		return nil, lairerr.Wrap(lairerr.EntropyUnavailable, "generating crypto-box nonce", err)
	}

	sealed := box.Seal(nil, plaintext, &nonce, &recipientPub, &senderPriv)

	logger.WithFields(logrus.Fields{
		"ciphertext_size": len(sealed),
		"operation":       "crypto_box_seal_success",
	}).Debug("crypto-box seal complete")

	return &CryptoBoxCiphertext{Nonce: nonce, Ciphertext: sealed}, nil
}

// CryptoBoxOpen authenticates and decrypts a ciphertext sealed by senderPub
// to recipientPriv. An authentication failure — including a mismatched
// claimed sender — returns (nil, false, nil): "absent", never an error, so
// an attacker cannot distinguish failure modes from response latency. Only
// a nil or empty ciphertext returns BadInput; the nonce is a fixed-size
// array and cannot have the wrong length.
func CryptoBoxOpen(recipientPriv, senderPub [32]byte, ct *CryptoBoxCiphertext) ([]byte, bool, error) {
	if ct == nil || len(ct.Ciphertext) == 0 {
		return nil, false, lairerr.New(lairerr.BadInput, "crypto-box ciphertext is empty")
	}

	plaintext, ok := box.Open(nil, ct.Ciphertext, &ct.Nonce, &senderPub, &recipientPriv)
	if !ok {
		return nil, false, nil
	}
	return plaintext, true, nil
}
