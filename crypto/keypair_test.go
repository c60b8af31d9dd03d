package crypto

import "testing"

func TestDeriveX25519PublicMatchesGeneratedKeyPair(t *testing.T) {
	kp, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}

	derived := DeriveX25519Public(kp.Private)
	if derived != kp.Public {
		t.Fatalf("expected DeriveX25519Public to reproduce the generated public key")
	}
}

func TestIsZeroX25519Key(t *testing.T) {
	var zero [32]byte
	if !IsZeroX25519Key(zero) {
		t.Fatalf("expected the all-zero scalar to be reported as zero")
	}

	kp, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}
	if IsZeroX25519Key(kp.Private) {
		t.Fatalf("expected a freshly generated private key not to be all-zero")
	}
}

func TestNewX25519FromEntropyProducesDistinctKeyPairs(t *testing.T) {
	kp1, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}
	kp2, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}

	if kp1.Private == kp2.Private || kp1.Public == kp2.Public {
		t.Fatalf("expected two independently generated key pairs to differ")
	}
}
