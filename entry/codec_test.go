package entry

import "testing"

func TestEncodeDecodeTlsRoundTrip(t *testing.T) {
	original := &Entry{
		Kind: KindTlsCert,
		Tls: &TlsData{
			SNI:        "svc.lair-keystore.local",
			CertDER:    []byte{0x30, 0x82, 0x01, 0x00},
			PrivKeyDER: []byte{0x30, 0x81, 0x00},
			Digest:     [32]byte{1, 2, 3, 4},
			Options:    TlsOptions{Algorithm: "Ed25519", SNIOverride: ""},
		},
	}

	decoded, err := decode(5, encode(original))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.Index != 5 || decoded.Kind != KindTlsCert {
		t.Fatalf("decoded entry header mismatch: %+v", decoded)
	}
	if decoded.Tls.SNI != original.Tls.SNI {
		t.Fatalf("SNI mismatch: got %q want %q", decoded.Tls.SNI, original.Tls.SNI)
	}
	if string(decoded.Tls.CertDER) != string(original.Tls.CertDER) {
		t.Fatalf("CertDER mismatch")
	}
	if decoded.Tls.Digest != original.Tls.Digest {
		t.Fatalf("Digest mismatch")
	}
	if decoded.Tls.Options.Algorithm != original.Tls.Options.Algorithm {
		t.Fatalf("Algorithm mismatch")
	}
}

func TestEncodeDecodeSignEd25519RoundTrip(t *testing.T) {
	original := &Entry{
		Kind:        KindSignEd25519,
		SignEd25519: &SignEd25519Data{Private: [32]byte{1}, Public: [32]byte{2}},
	}

	decoded, err := decode(1, encode(original))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.SignEd25519.Private != original.SignEd25519.Private {
		t.Fatalf("Private mismatch")
	}
	if decoded.SignEd25519.Public != original.SignEd25519.Public {
		t.Fatalf("Public mismatch")
	}
}

func TestDecodeRejectsMalformedRecord(t *testing.T) {
	if _, err := decode(1, []byte{byte(KindSignEd25519), 1, 2, 3}); err == nil {
		t.Fatalf("expected decode to reject a truncated sign_ed25519 record")
	}
	if _, err := decode(1, nil); err == nil {
		t.Fatalf("expected decode to reject an empty record")
	}
	if _, err := decode(1, []byte{99}); err == nil {
		t.Fatalf("expected decode to reject an unknown kind tag")
	}
}
