// Package crypto implements the cryptographic primitives behind the
// keystore: Ed25519 signing, X25519 key agreement, crypto-box sealing, and
// self-signed TLS certificate generation.
//
// Every primitive here is a pure function operating on byte arrays already
// held in memory; none of them touch a filesystem or a socket. Callers that
// must not block an I/O loop on an expensive operation (certificate
// generation in particular) should run it through a [WorkerPool].
//
// # Key Generation
//
//	edKeyPair, err := crypto.NewEd25519FromEntropy()
//	x25519KeyPair, err := crypto.NewX25519FromEntropy()
//
// # Signing
//
//	sig, err := crypto.SignEd25519(edKeyPair.Private, message)
//	ok, err := crypto.VerifyEd25519(edKeyPair.Public, message, sig)
//
// # Crypto Box
//
//	ct, err := crypto.CryptoBoxSeal(senderPriv, recipientPub, plaintext)
//	plaintext, ok, err := crypto.CryptoBoxOpen(recipientPriv, senderPub, ct)
//
// A failed authentication check on open is reported as ok == false, err ==
// nil, never as an error: the keystore protocol treats a forged or corrupted
// box the same as an absent one.
//
// # Self-Signed TLS
//
//	cert, err := crypto.NewSelfSignedTls(crypto.TlsSelfSignedOptions{})
//
// # Secure Memory Handling
//
// Sensitive key material should be wiped after use:
//
//	defer crypto.WipeEd25519KeyPair(edKeyPair)
//	defer crypto.WipeX25519KeyPair(x25519KeyPair)
//
// [SecureWipe] uses crypto/subtle so the compiler cannot optimize the
// zeroing away.
package crypto
