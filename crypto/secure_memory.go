package crypto

import (
	"crypto/subtle"
	"errors"
	"runtime"
)

// SecureWipe overwrites data in place with zeros using a constant-time XOR
// that the compiler cannot optimize away (x XOR x = 0). It returns an error
// if data is nil.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	// Overwrite the data with zeros using XOR operation
	// subtle.XORBytes performs constant-time XOR that compilers cannot optimize away
	// XORing data with itself: x XOR x = 0
	subtle.XORBytes(data, data, data)

	// Prevent compiler from optimizing out the zeroing
	runtime.KeepAlive(data)

	return nil
}

// ZeroBytes erases data, ignoring the nil-slice error from SecureWipe.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}

// WipeX25519KeyPair securely erases the private scalar of kp.
func WipeX25519KeyPair(kp *X25519KeyPair) error {
	if kp == nil {
		return errors.New("cannot wipe nil key pair")
	}
	return SecureWipe(kp.Private[:])
}

// WipeEd25519KeyPair securely erases the private seed of kp.
func WipeEd25519KeyPair(kp *Ed25519KeyPair) error {
	if kp == nil {
		return errors.New("cannot wipe nil key pair")
	}
	return SecureWipe(kp.Private[:])
}
