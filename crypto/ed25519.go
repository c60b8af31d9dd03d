package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/Connoropolous/lair-keystore/lairerr"
)

// SignatureSize is the size of a detached Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// Ed25519KeyPair holds a 32-byte Ed25519 seed and its derived public key.
type Ed25519KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// NewEd25519FromEntropy fills a fresh 32-byte seed from the system CSPRNG
// and derives the matching public key.
func NewEd25519FromEntropy() (*Ed25519KeyPair, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, lairerr.Wrap(lairerr.EntropyUnavailable, "reading ed25519 seed", err)
	}

	priv := ed25519.NewKeyFromSeed(seed[:])
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		ZeroBytes(seed[:])
		return nil, lairerr.New(lairerr.KeyDerivationFailed, "ed25519 public key derivation failed")
	}

	kp := &Ed25519KeyPair{}
	copy(kp.Private[:], seed[:])
	copy(kp.Public[:], pub)
	ZeroBytes(seed[:])
	return kp, nil
}

// SignEd25519 produces a detached signature over message using the 32-byte
// seed priv. Deterministic: equal (priv, message) always yields equal sig.
func SignEd25519(priv [32]byte, message []byte) ([SignatureSize]byte, error) {
	if isZero32(priv) {
		return [SignatureSize]byte{}, lairerr.New(lairerr.BadInput, "ed25519 private key is all zero")
	}

	edPriv := ed25519.NewKeyFromSeed(priv[:])
	sig := ed25519.Sign(edPriv, message)

	var out [SignatureSize]byte
	copy(out[:], sig)
	return out, nil
}

// VerifyEd25519 reports whether sig is a valid signature over message under
// pub. Cryptographic rejection is reported as false, never an error; the
// fixed-size key and signature arrays rule out wrong-length inputs, so the
// error result is always nil.
func VerifyEd25519(pub [32]byte, message []byte, sig [SignatureSize]byte) (bool, error) {
	return ed25519.Verify(pub[:], message, sig[:]), nil
}

func isZero32(b [32]byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
