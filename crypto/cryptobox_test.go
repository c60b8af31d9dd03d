package crypto

import (
	"bytes"
	"testing"
)

func TestCryptoBoxSealOpenRoundTrip(t *testing.T) {
	alice, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}
	bob, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}

	plaintext := []byte("crypto box payload")
	ct, err := CryptoBoxSeal(alice.Private, bob.Public, plaintext)
	if err != nil {
		t.Fatalf("CryptoBoxSeal failed: %v", err)
	}

	got, ok, err := CryptoBoxOpen(bob.Private, alice.Public, ct)
	if err != nil {
		t.Fatalf("CryptoBoxOpen returned an error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a legitimately sealed box to open")
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("expected opened plaintext %q, got %q", plaintext, got)
	}
}

func TestCryptoBoxSealIsNonDeterministic(t *testing.T) {
	alice, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}
	bob, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}

	plaintext := []byte("same plaintext every time")
	ct1, err := CryptoBoxSeal(alice.Private, bob.Public, plaintext)
	if err != nil {
		t.Fatalf("CryptoBoxSeal failed: %v", err)
	}
	ct2, err := CryptoBoxSeal(alice.Private, bob.Public, plaintext)
	if err != nil {
		t.Fatalf("CryptoBoxSeal failed: %v", err)
	}

	if ct1.Nonce == ct2.Nonce {
		t.Fatalf("expected two sealings of the same plaintext to use distinct nonces")
	}
	if bytes.Equal(ct1.Ciphertext, ct2.Ciphertext) {
		t.Fatalf("expected two sealings of the same plaintext to produce distinct ciphertexts")
	}
}

func TestCryptoBoxOpenWithWrongSenderReturnsAbsent(t *testing.T) {
	alice, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}
	bob, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}
	carol, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}

	ct, err := CryptoBoxSeal(alice.Private, bob.Public, []byte("secret"))
	if err != nil {
		t.Fatalf("CryptoBoxSeal failed: %v", err)
	}

	plaintext, ok, err := CryptoBoxOpen(bob.Private, carol.Public, ct)
	if err != nil {
		t.Fatalf("CryptoBoxOpen should report absent, not an error, for the wrong sender: %v", err)
	}
	if ok || plaintext != nil {
		t.Fatalf("expected opening under the wrong claimed sender to return absent")
	}

	// a failed open leaves nothing behind: a legitimate open of the same box
	// still succeeds right after it.
	plaintext, ok, err = CryptoBoxOpen(bob.Private, alice.Public, ct)
	if err != nil {
		t.Fatalf("CryptoBoxOpen failed on the legitimate retry: %v", err)
	}
	if !ok || string(plaintext) != "secret" {
		t.Fatalf("expected the legitimate open to still succeed after a failed one")
	}
}

func TestCryptoBoxOpenRejectsEmptyCiphertext(t *testing.T) {
	alice, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}
	bob, err := NewX25519FromEntropy()
	if err != nil {
		t.Fatalf("NewX25519FromEntropy failed: %v", err)
	}

	if _, _, err := CryptoBoxOpen(bob.Private, alice.Public, &CryptoBoxCiphertext{}); err == nil {
		t.Fatalf("expected CryptoBoxOpen to reject an empty ciphertext as BadInput")
	}
}
