// Package sealer implements the keystore's at-rest encryption: each sealed
// file is independently encrypted under a key derived from the unlock
// passphrase, authenticated, with its own random salt.
//
// Adapted from the teacher's directory-wide EncryptedKeyStore (one shared
// salt file, one derived key for the whole data directory) into two pure
// functions over a per-call salt, matching the keystore's
// seal(plaintext, passphrase) / unseal(bytes, passphrase) contract.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/Connoropolous/lair-keystore/crypto"
	"github.com/Connoropolous/lair-keystore/internal/obslog"
	"github.com/Connoropolous/lair-keystore/lairerr"
)

const (
	// PBKDF2Iterations is the number of key-derivation rounds applied to
	// the unlock passphrase (NIST SP 800-132 minimum for PBKDF2-HMAC-SHA256
	// as of this writing).
	PBKDF2Iterations = 100_000
	// FormatVersion is the on-disk sealed-blob format version.
	FormatVersion = 1
	// SaltSize is the size in bytes of the per-file random salt.
	SaltSize = 32
)

// header layout: [version:2][salt:SaltSize][nonce:gcm.NonceSize][ciphertext+tag]
const headerVersionSize = 2

// Seal authenticates and encrypts plaintext under a key derived from
// passphrase, with a fresh random salt and nonce. The output is
// self-contained: Unseal needs only the passphrase to recover plaintext.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	logger := obslog.New("sealer", "Seal")

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		logger.WithError(err, "entropy_unavailable", "rand.Read salt").Error("failed to generate salt")
		return nil, lairerr.Wrap(lairerr.EntropyUnavailable, "generating sealer salt", err)
	}

	key := deriveKey(passphrase, salt)
	defer crypto.ZeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, lairerr.Wrap(lairerr.SealFailed, "constructing aes cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, lairerr.Wrap(lairerr.SealFailed, "constructing gcm mode", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, lairerr.Wrap(lairerr.EntropyUnavailable, "generating sealer nonce", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, headerVersionSize+SaltSize+len(nonce)+len(ciphertext))
	var versionBuf [headerVersionSize]byte
	binary.LittleEndian.PutUint16(versionBuf[:], FormatVersion)
	out = append(out, versionBuf[:]...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	logger.WithField("sealed_size", len(out)).Debug("sealed blob")
	return out, nil
}

// Unseal authenticates and decrypts a blob produced by Seal. Authentication
// failure (wrong passphrase or corrupted data) is reported as UnsealFailed.
func Unseal(sealed, passphrase []byte) ([]byte, error) {
	logger := obslog.New("sealer", "Unseal")

	if len(sealed) < headerVersionSize+SaltSize {
		return nil, lairerr.New(lairerr.UnsealFailed, "sealed blob too short")
	}

	version := binary.LittleEndian.Uint16(sealed[0:headerVersionSize])
	if version != FormatVersion {
		return nil, lairerr.New(lairerr.UnsealFailed, "unsupported sealed blob version")
	}

	salt := sealed[headerVersionSize : headerVersionSize+SaltSize]
	rest := sealed[headerVersionSize+SaltSize:]

	key := deriveKey(passphrase, salt)
	defer crypto.ZeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, lairerr.Wrap(lairerr.UnsealFailed, "constructing aes cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, lairerr.Wrap(lairerr.UnsealFailed, "constructing gcm mode", err)
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return nil, lairerr.New(lairerr.UnsealFailed, "sealed blob too short for nonce")
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		logger.WithError(err, "auth_failed", "gcm.Open").Error("unseal authentication failed")
		return nil, lairerr.Wrap(lairerr.UnsealFailed, "wrong passphrase or corrupted data", err)
	}

	return plaintext, nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, PBKDF2Iterations, 32, sha256.New)
}
