package service

import (
	"context"
	"time"

	"github.com/Connoropolous/lair-keystore/entry"
	"github.com/Connoropolous/lair-keystore/ipc"
	"github.com/Connoropolous/lair-keystore/lairerr"

	libcrypto "github.com/Connoropolous/lair-keystore/crypto"
)

// requestTimeout bounds how long a single dispatch may take as a whole: the
// same deadline covers the passphrase wait in ensureStoreOpen and any
// CPU-bound crypto work the request runs afterwards.
const requestTimeout = 30 * time.Second

// dispatch decodes one request frame, runs it, and replies on the same
// correlation ID. It runs on the single service-actor goroutine (run), so
// the Store and the passphrase gate's Pending wait both serialize here by
// construction: only one request at a time ever touches s.store.
func (s *Server) dispatch(conn *ipc.Conn, frame ipc.Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	r := ipc.NewPayloadReader(frame.Payload)

	switch frame.Kind {
	case ipc.KindServerInfo:
		s.handleServerInfo(conn, frame)
	case ipc.KindLastEntryIndex:
		s.handleLastEntryIndex(ctx, conn, frame)
	case ipc.KindEntryType:
		s.handleEntryType(ctx, conn, frame, r)
	case ipc.KindTlsCertNewFromEntropy:
		s.handleTlsCertNewFromEntropy(ctx, conn, frame, r)
	case ipc.KindTlsCertGet:
		s.handleTlsCertGet(ctx, conn, frame, r)
	case ipc.KindTlsCertGetCertByIndex:
		s.handleTlsCertGetCertByIndex(ctx, conn, frame, r)
	case ipc.KindTlsCertGetCertBySNI:
		s.handleTlsCertGetCertBySNI(ctx, conn, frame, r)
	case ipc.KindTlsCertGetCertByDigest:
		s.handleTlsCertGetCertByDigest(ctx, conn, frame, r)
	case ipc.KindTlsCertGetPrivKeyByIndex:
		s.handleTlsCertGetPrivKeyByIndex(ctx, conn, frame, r)
	case ipc.KindTlsCertGetPrivKeyBySNI:
		s.handleTlsCertGetPrivKeyBySNI(ctx, conn, frame, r)
	case ipc.KindTlsCertGetPrivKeyByDigest:
		s.handleTlsCertGetPrivKeyByDigest(ctx, conn, frame, r)
	case ipc.KindSignEd25519NewFromEntropy:
		s.handleSignEd25519NewFromEntropy(ctx, conn, frame)
	case ipc.KindSignEd25519Get:
		s.handleSignEd25519Get(ctx, conn, frame, r)
	case ipc.KindSignEd25519SignByIndex:
		s.handleSignEd25519SignByIndex(ctx, conn, frame, r)
	case ipc.KindSignEd25519SignByPubKey:
		s.handleSignEd25519SignByPubKey(ctx, conn, frame, r)
	case ipc.KindX25519NewFromEntropy:
		s.handleX25519NewFromEntropy(ctx, conn, frame)
	case ipc.KindX25519Get:
		s.handleX25519Get(ctx, conn, frame, r)
	case ipc.KindCryptoBoxByIndex:
		s.handleCryptoBoxByIndex(ctx, conn, frame, r)
	case ipc.KindCryptoBoxByPubKey:
		s.handleCryptoBoxByPubKey(ctx, conn, frame, r)
	case ipc.KindCryptoBoxOpenByIndex:
		s.handleCryptoBoxOpenByIndex(ctx, conn, frame, r)
	case ipc.KindCryptoBoxOpenByPubKey:
		s.handleCryptoBoxOpenByPubKey(ctx, conn, frame, r)
	default:
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownRequest, "unrecognized request kind"))
	}
}

func (s *Server) handleServerInfo(conn *ipc.Conn, frame ipc.Frame) {
	w := ipc.NewPayloadWriter().PutString(s.info.Name).PutString(s.info.Version)
	replyOK(conn, frame, ipc.KindServerInfo.Reply(), w)
}

// ensureStoreOpen opens the Store on first use, requesting the unlock
// passphrase from whichever connection triggered it. Subsequent calls,
// including ones racing in from other connections, return immediately once
// the gate is Held.
func (s *Server) ensureStoreOpen(ctx context.Context, conn *ipc.Conn) (*entry.Store, error) {
	if s.store != nil {
		return s.store, nil
	}

	s.setPassphraseWaiter(conn)
	defer s.clearPassphraseWaiter(conn)

	passphrase, err := s.gate.Get(ctx, func(ctx context.Context) (string, error) {
		reply, err := conn.Send(ctx, ipc.KindRequestUnlockPassphrase, nil)
		if err != nil {
			return "", err
		}
		r, err := decodeResult(reply.Payload)
		if err != nil {
			return "", err
		}
		return r.GetString()
	})
	if err != nil {
		return nil, err
	}

	store, err := entry.Open(s.dir, []byte(passphrase))
	if err != nil {
		return nil, err
	}
	s.store = store
	return store, nil
}

func (s *Server) handleLastEntryIndex(ctx context.Context, conn *ipc.Conn, frame ipc.Frame) {
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	w := ipc.NewPayloadWriter().PutUint32(uint32(store.LastIndex()))
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleEntryType(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	index, err := r.GetUint32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	kind := store.KindOf(entry.Index(index))
	w := ipc.NewPayloadWriter().PutByte(byte(kind))
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleTlsCertNewFromEntropy(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	algorithm, err := r.GetString()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	sniOverride, err := r.GetString()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	algo, err := parseTlsAlgorithm(algorithm)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	cert, err := libcrypto.Submit(ctx, s.pool, func() (*libcrypto.SelfSignedCert, error) {
		return libcrypto.NewSelfSignedTls(libcrypto.TlsSelfSignedOptions{Algorithm: algo, SNIOverride: sniOverride})
	})
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	index, err := store.Append(&entry.Entry{
		Kind: entry.KindTlsCert,
		Tls: &entry.TlsData{
			SNI:        cert.SNI,
			CertDER:    cert.CertDER,
			PrivKeyDER: cert.PrivKeyDER,
			Digest:     cert.Digest,
			Options:    entry.TlsOptions{Algorithm: algorithm, SNIOverride: sniOverride},
		},
	})
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	w := ipc.NewPayloadWriter().PutUint32(uint32(index)).Put32(cert.Digest).PutString(cert.SNI)
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func parseTlsAlgorithm(s string) (libcrypto.TlsAlgorithm, error) {
	switch s {
	case "", "ed25519":
		return libcrypto.TlsAlgorithmEd25519, nil
	case "ecdsa_p256":
		return libcrypto.TlsAlgorithmEcdsaP256, nil
	default:
		return 0, lairerr.New(lairerr.BadInput, "unrecognized tls algorithm: "+s)
	}
}

func (s *Server) handleTlsCertGet(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	index, err := r.GetUint32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	e := store.Get(entry.Index(index))
	if e == nil || e.Kind != entry.KindTlsCert {
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownKey, "no tls entry at that index"))
		return
	}
	w := ipc.NewPayloadWriter().
		PutString(e.Tls.SNI).
		PutBytes(e.Tls.CertDER).
		Put32(e.Tls.Digest).
		PutString(e.Tls.Options.Algorithm).
		PutString(e.Tls.Options.SNIOverride)
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) tlsEntryByIndex(ctx context.Context, conn *ipc.Conn, r *ipc.PayloadReader) (*entry.TlsData, error) {
	index, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		return nil, err
	}
	e := store.Get(entry.Index(index))
	if e == nil || e.Kind != entry.KindTlsCert {
		return nil, lairerr.New(lairerr.UnknownKey, "no tls entry at that index")
	}
	return e.Tls, nil
}

func (s *Server) tlsEntryBySNI(ctx context.Context, conn *ipc.Conn, r *ipc.PayloadReader) (*entry.TlsData, error) {
	sni, err := r.GetString()
	if err != nil {
		return nil, err
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		return nil, err
	}
	idx := store.FindTlsBySNI(sni)
	if idx == entry.Invalid {
		return nil, lairerr.New(lairerr.UnknownKey, "no tls entry with that sni")
	}
	return store.Get(idx).Tls, nil
}

func (s *Server) tlsEntryByDigest(ctx context.Context, conn *ipc.Conn, r *ipc.PayloadReader) (*entry.TlsData, error) {
	digest, err := r.Get32()
	if err != nil {
		return nil, err
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		return nil, err
	}
	idx := store.FindTlsByDigest(digest)
	if idx == entry.Invalid {
		return nil, lairerr.New(lairerr.UnknownKey, "no tls entry with that digest")
	}
	return store.Get(idx).Tls, nil
}

func (s *Server) handleTlsCertGetCertByIndex(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	tls, err := s.tlsEntryByIndex(ctx, conn, r)
	replyTlsCert(conn, frame, tls, err)
}

func (s *Server) handleTlsCertGetCertBySNI(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	tls, err := s.tlsEntryBySNI(ctx, conn, r)
	replyTlsCert(conn, frame, tls, err)
}

func (s *Server) handleTlsCertGetCertByDigest(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	tls, err := s.tlsEntryByDigest(ctx, conn, r)
	replyTlsCert(conn, frame, tls, err)
}

func replyTlsCert(conn *ipc.Conn, frame ipc.Frame, tls *entry.TlsData, err error) {
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	w := ipc.NewPayloadWriter().PutBytes(tls.CertDER)
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleTlsCertGetPrivKeyByIndex(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	tls, err := s.tlsEntryByIndex(ctx, conn, r)
	replyTlsPrivKey(conn, frame, tls, err)
}

func (s *Server) handleTlsCertGetPrivKeyBySNI(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	tls, err := s.tlsEntryBySNI(ctx, conn, r)
	replyTlsPrivKey(conn, frame, tls, err)
}

func (s *Server) handleTlsCertGetPrivKeyByDigest(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	tls, err := s.tlsEntryByDigest(ctx, conn, r)
	replyTlsPrivKey(conn, frame, tls, err)
}

func replyTlsPrivKey(conn *ipc.Conn, frame ipc.Frame, tls *entry.TlsData, err error) {
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	w := ipc.NewPayloadWriter().PutBytes(tls.PrivKeyDER)
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleSignEd25519NewFromEntropy(ctx context.Context, conn *ipc.Conn, frame ipc.Frame) {
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	kp, err := libcrypto.Submit(ctx, s.pool, libcrypto.NewEd25519FromEntropy)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	index, err := store.Append(&entry.Entry{
		Kind:        entry.KindSignEd25519,
		SignEd25519: &entry.SignEd25519Data{Private: kp.Private, Public: kp.Public},
	})
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	w := ipc.NewPayloadWriter().PutUint32(uint32(index)).Put32(kp.Public)
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleSignEd25519Get(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	index, err := r.GetUint32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	e := store.Get(entry.Index(index))
	if e == nil || e.Kind != entry.KindSignEd25519 {
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownKey, "no sign_ed25519 entry at that index"))
		return
	}
	w := ipc.NewPayloadWriter().Put32(e.SignEd25519.Public)
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleSignEd25519SignByIndex(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	index, err := r.GetUint32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	message, err := r.GetBytes()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	e := store.Get(entry.Index(index))
	if e == nil || e.Kind != entry.KindSignEd25519 {
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownKey, "no sign_ed25519 entry at that index"))
		return
	}
	signAndReply(ctx, s, conn, frame, e.SignEd25519.Private, message)
}

func (s *Server) handleSignEd25519SignByPubKey(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	pub, err := r.Get32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	message, err := r.GetBytes()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	idx := store.FindSignByPub(pub)
	if idx == entry.Invalid {
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownKey, "no sign_ed25519 entry with that public key"))
		return
	}
	signAndReply(ctx, s, conn, frame, store.Get(idx).SignEd25519.Private, message)
}

func signAndReply(ctx context.Context, s *Server, conn *ipc.Conn, frame ipc.Frame, priv [32]byte, message []byte) {
	sig, err := libcrypto.Submit(ctx, s.pool, func() ([libcrypto.SignatureSize]byte, error) {
		return libcrypto.SignEd25519(priv, message)
	})
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	w := ipc.NewPayloadWriter().PutBytes(sig[:])
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleX25519NewFromEntropy(ctx context.Context, conn *ipc.Conn, frame ipc.Frame) {
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	kp, err := libcrypto.Submit(ctx, s.pool, libcrypto.NewX25519FromEntropy)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	index, err := store.Append(&entry.Entry{
		Kind:   entry.KindX25519,
		X25519: &entry.X25519Data{Private: kp.Private, Public: kp.Public},
	})
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	w := ipc.NewPayloadWriter().PutUint32(uint32(index)).Put32(kp.Public)
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleX25519Get(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	index, err := r.GetUint32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	e := store.Get(entry.Index(index))
	if e == nil || e.Kind != entry.KindX25519 {
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownKey, "no x25519 entry at that index"))
		return
	}
	w := ipc.NewPayloadWriter().Put32(e.X25519.Public)
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleCryptoBoxByIndex(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	senderIndex, err := r.GetUint32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	recipientPub, err := r.Get32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	plaintext, err := r.GetBytes()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	e := store.Get(entry.Index(senderIndex))
	if e == nil || e.Kind != entry.KindX25519 {
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownKey, "no x25519 entry at that index"))
		return
	}
	cryptoBoxAndReply(ctx, s, conn, frame, e.X25519.Private, recipientPub, plaintext)
}

func (s *Server) handleCryptoBoxByPubKey(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	senderPub, err := r.Get32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	recipientPub, err := r.Get32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	plaintext, err := r.GetBytes()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	idx := store.FindX25519ByPub(senderPub)
	if idx == entry.Invalid {
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownKey, "no x25519 entry with that public key"))
		return
	}
	cryptoBoxAndReply(ctx, s, conn, frame, store.Get(idx).X25519.Private, recipientPub, plaintext)
}

func cryptoBoxAndReply(ctx context.Context, s *Server, conn *ipc.Conn, frame ipc.Frame, senderPriv, recipientPub [32]byte, plaintext []byte) {
	ct, err := libcrypto.Submit(ctx, s.pool, func() (*libcrypto.CryptoBoxCiphertext, error) {
		return libcrypto.CryptoBoxSeal(senderPriv, recipientPub, plaintext)
	})
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	w := ipc.NewPayloadWriter().PutBytes(ct.Nonce[:]).PutBytes(ct.Ciphertext)
	replyOK(conn, frame, frame.Kind.Reply(), w)
}

func (s *Server) handleCryptoBoxOpenByIndex(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	recipientIndex, err := r.GetUint32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	senderPub, ct, err := readCryptoBoxOpenArgs(r)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	e := store.Get(entry.Index(recipientIndex))
	if e == nil || e.Kind != entry.KindX25519 {
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownKey, "no x25519 entry at that index"))
		return
	}
	cryptoBoxOpenAndReply(ctx, s, conn, frame, e.X25519.Private, senderPub, ct)
}

func (s *Server) handleCryptoBoxOpenByPubKey(ctx context.Context, conn *ipc.Conn, frame ipc.Frame, r *ipc.PayloadReader) {
	recipientPub, err := r.Get32()
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	senderPub, ct, err := readCryptoBoxOpenArgs(r)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	store, err := s.ensureStoreOpen(ctx, conn)
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}
	idx := store.FindX25519ByPub(recipientPub)
	if idx == entry.Invalid {
		replyErr(conn, frame, frame.Kind.Reply(), lairerr.New(lairerr.UnknownKey, "no x25519 entry with that public key"))
		return
	}
	cryptoBoxOpenAndReply(ctx, s, conn, frame, store.Get(idx).X25519.Private, senderPub, ct)
}

func readCryptoBoxOpenArgs(r *ipc.PayloadReader) (senderPub [32]byte, ct *libcrypto.CryptoBoxCiphertext, err error) {
	senderPub, err = r.Get32()
	if err != nil {
		return
	}
	nonce, err := r.GetBytes()
	if err != nil {
		return
	}
	ciphertext, err := r.GetBytes()
	if err != nil {
		return
	}
	ct = &libcrypto.CryptoBoxCiphertext{Ciphertext: ciphertext}
	copy(ct.Nonce[:], nonce)
	return senderPub, ct, nil
}

// cryptoBoxOpenAndReply replies with a found flag rather than an error on
// authentication failure — a ciphertext that does not authenticate under the
// given keys (wrong recipient, wrong sender, or tampered) comes back as
// "absent" on the wire, not as an error. A recipient the store holds no
// entry for is rejected earlier by the caller with UnknownKey.
func cryptoBoxOpenAndReply(ctx context.Context, s *Server, conn *ipc.Conn, frame ipc.Frame, recipientPriv, senderPub [32]byte, ct *libcrypto.CryptoBoxCiphertext) {
	plaintext, err := libcrypto.Submit(ctx, s.pool, func() ([]byte, error) {
		pt, ok, err := libcrypto.CryptoBoxOpen(recipientPriv, senderPub, ct)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return pt, nil
	})
	if err != nil {
		replyErr(conn, frame, frame.Kind.Reply(), err)
		return
	}

	w := ipc.NewPayloadWriter()
	if plaintext == nil {
		w.PutByte(0).PutBytes(nil)
	} else {
		w.PutByte(1).PutBytes(plaintext)
	}
	replyOK(conn, frame, frame.Kind.Reply(), w)
}
