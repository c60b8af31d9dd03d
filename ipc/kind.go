package ipc

// Kind identifies a frame's payload shape. Every request kind has a
// matching reply kind offset by replyBit; the event kind for the
// passphrase callback follows the same convention so it can be ack'd on
// the same correlation ID.
type Kind uint32

const replyBit Kind = 1 << 16

// IsReply reports whether k is the reply-side tag of a request/reply pair.
func (k Kind) IsReply() bool { return k&replyBit != 0 }

// Reply returns the reply-side tag for a request kind.
func (k Kind) Reply() Kind { return k | replyBit }

// Request kinds, one per spec.md §4.5 operation.
const (
	KindUnknown Kind = iota
	KindServerInfo
	KindLastEntryIndex
	KindEntryType
	KindTlsCertNewFromEntropy
	KindTlsCertGet
	KindTlsCertGetCertByIndex
	KindTlsCertGetCertBySNI
	KindTlsCertGetCertByDigest
	KindTlsCertGetPrivKeyByIndex
	KindTlsCertGetPrivKeyBySNI
	KindTlsCertGetPrivKeyByDigest
	KindSignEd25519NewFromEntropy
	KindSignEd25519Get
	KindSignEd25519SignByIndex
	KindSignEd25519SignByPubKey
	KindX25519NewFromEntropy
	KindX25519Get
	KindCryptoBoxByIndex
	KindCryptoBoxByPubKey
	KindCryptoBoxOpenByIndex
	KindCryptoBoxOpenByPubKey

	// KindRequestUnlockPassphrase is server-initiated: the server sends it
	// (with no payload) to request the unlock passphrase; the client
	// replies on the same correlation ID with KindRequestUnlockPassphrase's
	// reply tag carrying the passphrase, or an error frame.
	KindRequestUnlockPassphrase

	// KindError is not sent by this module: an error reply carries the
	// request's own reply tag, with a leading error status byte followed by
	// the error kind string and a human-readable message.
	KindError
)
