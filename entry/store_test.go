package entry

import (
	"testing"
)

func TestOpenEmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, []byte("passphrase"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.LastIndex() != Invalid {
		t.Fatalf("expected LastIndex() == 0 for empty store, got %d", s.LastIndex())
	}
	if s.KindOf(0) != KindInvalid {
		t.Fatalf("expected KindOf(0) == KindInvalid")
	}
}

func TestAppendAssignsSequentialIndices(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, []byte("passphrase"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	e1 := &Entry{Kind: KindSignEd25519, SignEd25519: &SignEd25519Data{Public: [32]byte{1}}}
	idx1, err := s.Append(e1)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if idx1 != 1 {
		t.Fatalf("expected first index to be 1, got %d", idx1)
	}

	e2 := &Entry{Kind: KindX25519, X25519: &X25519Data{Public: [32]byte{2}}}
	idx2, err := s.Append(e2)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if idx2 != 2 {
		t.Fatalf("expected second index to be 2, got %d", idx2)
	}

	if s.LastIndex() != 2 {
		t.Fatalf("expected LastIndex() == 2, got %d", s.LastIndex())
	}
	if s.KindOf(1) != KindSignEd25519 {
		t.Fatalf("expected KindOf(1) == KindSignEd25519, got %v", s.KindOf(1))
	}
	if s.KindOf(2) != KindX25519 {
		t.Fatalf("expected KindOf(2) == KindX25519, got %v", s.KindOf(2))
	}
}

func TestStoreReopenReconstructsIndices(t *testing.T) {
	dir := t.TempDir()
	passphrase := []byte("passphrase")

	s, err := Open(dir, passphrase)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	signPub := [32]byte{9, 9, 9}
	if _, err := s.Append(&Entry{Kind: KindSignEd25519, SignEd25519: &SignEd25519Data{Private: [32]byte{1}, Public: signPub}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	tlsDigest := [32]byte{7, 7, 7}
	if _, err := s.Append(&Entry{Kind: KindTlsCert, Tls: &TlsData{SNI: "example.local", Digest: tlsDigest, CertDER: []byte("cert"), PrivKeyDER: []byte("key")}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	reopened, err := Open(dir, passphrase)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}

	if reopened.LastIndex() != 2 {
		t.Fatalf("expected reconstructed LastIndex() == 2, got %d", reopened.LastIndex())
	}
	if idx := reopened.FindSignByPub(signPub); idx != 1 {
		t.Fatalf("expected FindSignByPub to return index 1, got %d", idx)
	}
	if idx := reopened.FindTlsBySNI("example.local"); idx != 2 {
		t.Fatalf("expected FindTlsBySNI to return index 2, got %d", idx)
	}
	if idx := reopened.FindTlsByDigest(tlsDigest); idx != 2 {
		t.Fatalf("expected FindTlsByDigest to return index 2, got %d", idx)
	}

	got := reopened.Get(1)
	if got == nil || got.SignEd25519.Public != signPub {
		t.Fatalf("reconstructed entry 1 does not match original")
	}
}

func TestFindUnknownKeyReturnsInvalid(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, []byte("passphrase"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if idx := s.FindSignByPub([32]byte{1, 2, 3}); idx != Invalid {
		t.Fatalf("expected FindSignByPub on empty store to return Invalid, got %d", idx)
	}
	if s.Get(999) != nil {
		t.Fatalf("expected Get on out-of-range index to return nil")
	}
}

func TestEarliestTlsSniWinsOnCollision(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, []byte("passphrase"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := s.Append(&Entry{Kind: KindTlsCert, Tls: &TlsData{SNI: "dup.local", Digest: [32]byte{1}}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := s.Append(&Entry{Kind: KindTlsCert, Tls: &TlsData{SNI: "dup.local", Digest: [32]byte{2}}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if idx := s.FindTlsBySNI("dup.local"); idx != 1 {
		t.Fatalf("expected earliest index 1 to win SNI collision, got %d", idx)
	}
}
