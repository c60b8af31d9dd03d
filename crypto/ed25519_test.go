package crypto

import (
	"bytes"
	"testing"
)

func TestSignEd25519VerifyRoundTrip(t *testing.T) {
	kp, err := NewEd25519FromEntropy()
	if err != nil {
		t.Fatalf("NewEd25519FromEntropy failed: %v", err)
	}

	message := []byte("test-data")
	sig, err := SignEd25519(kp.Private, message)
	if err != nil {
		t.Fatalf("SignEd25519 failed: %v", err)
	}

	ok, err := VerifyEd25519(kp.Public, message, sig)
	if err != nil {
		t.Fatalf("VerifyEd25519 failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected a signature over its own message to verify")
	}
}

func TestVerifyEd25519RejectsFlippedBit(t *testing.T) {
	kp, err := NewEd25519FromEntropy()
	if err != nil {
		t.Fatalf("NewEd25519FromEntropy failed: %v", err)
	}

	message := []byte("test-data")
	sig, err := SignEd25519(kp.Private, message)
	if err != nil {
		t.Fatalf("SignEd25519 failed: %v", err)
	}

	flipped := sig
	flipped[0] ^= 0x01

	ok, err := VerifyEd25519(kp.Public, message, flipped)
	if err != nil {
		t.Fatalf("VerifyEd25519 returned an error instead of false: %v", err)
	}
	if ok {
		t.Fatalf("expected a one-bit-flipped signature to fail verification")
	}
}

func TestVerifyEd25519RejectsWrongMessage(t *testing.T) {
	kp, err := NewEd25519FromEntropy()
	if err != nil {
		t.Fatalf("NewEd25519FromEntropy failed: %v", err)
	}

	sig, err := SignEd25519(kp.Private, []byte("test-data"))
	if err != nil {
		t.Fatalf("SignEd25519 failed: %v", err)
	}

	ok, err := VerifyEd25519(kp.Public, []byte("different-data"), sig)
	if err != nil {
		t.Fatalf("VerifyEd25519 returned an error instead of false: %v", err)
	}
	if ok {
		t.Fatalf("expected verification under a different message to fail")
	}
}

func TestSignEd25519IsDeterministic(t *testing.T) {
	kp, err := NewEd25519FromEntropy()
	if err != nil {
		t.Fatalf("NewEd25519FromEntropy failed: %v", err)
	}

	message := []byte("test-data")
	sig1, err := SignEd25519(kp.Private, message)
	if err != nil {
		t.Fatalf("SignEd25519 failed: %v", err)
	}
	sig2, err := SignEd25519(kp.Private, message)
	if err != nil {
		t.Fatalf("SignEd25519 failed: %v", err)
	}

	if !bytes.Equal(sig1[:], sig2[:]) {
		t.Fatalf("expected signing the same (priv, message) twice to be byte-identical")
	}
}

func TestSignEd25519RejectsZeroPrivateKey(t *testing.T) {
	var zero [32]byte
	if _, err := SignEd25519(zero, []byte("test-data")); err == nil {
		t.Fatalf("expected SignEd25519 to reject an all-zero private key")
	}
}
