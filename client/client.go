// Package client is the keystore's own consumer of the ipc protocol: a
// thin, synchronous wrapper that dials the Unix domain socket, answers the
// server's passphrase callback, and exposes one method per request kind.
package client

import (
	"context"
	"net"

	"github.com/Connoropolous/lair-keystore/internal/obslog"
	"github.com/Connoropolous/lair-keystore/ipc"
	"github.com/Connoropolous/lair-keystore/lairerr"
)

// PassphraseHandler answers the server's unlock-passphrase callback. It is
// invoked at most once per Client for as long as the server's gate stays
// Held, on whichever Client first triggers a store open.
type PassphraseHandler func(ctx context.Context) (string, error)

// Client is a connected handle to one keystore server instance.
type Client struct {
	conn    *ipc.Conn
	handler PassphraseHandler
	logger  *obslog.Logger
}

// Dial connects to the keystore listening on socketPath and starts the
// background loop that answers RequestUnlockPassphrase events with
// handler.
func Dial(ctx context.Context, socketPath string, handler PassphraseHandler) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, lairerr.Wrap(lairerr.Shutdown, "dialing keystore socket", err)
	}

	c := &Client{
		conn:    ipc.NewConn(nc),
		handler: handler,
		logger:  obslog.New("client", "Client"),
	}
	go c.eventLoop()
	return c, nil
}

// Close disconnects from the server.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) eventLoop() {
	for frame := range c.conn.Events() {
		switch frame.Kind {
		case ipc.KindRequestUnlockPassphrase:
			go c.answerPassphraseRequest(frame)
		default:
			c.logger.WithField("kind", frame.Kind).Warn("unrecognized server-initiated event")
		}
	}
}

func (c *Client) answerPassphraseRequest(frame ipc.Frame) {
	ctx := context.Background()
	passphrase, err := c.handler(ctx)
	if err != nil {
		w := ipc.NewPayloadWriter().PutByte(statusError).PutString(string(lairerr.PassphraseRefused)).PutString(err.Error())
		c.conn.Reply(frame, ipc.KindRequestUnlockPassphrase, w.Bytes())
		return
	}
	w := ipc.NewPayloadWriter().PutByte(statusOK).PutString(passphrase)
	c.conn.Reply(frame, ipc.KindRequestUnlockPassphrase, w.Bytes())
}

func (c *Client) call(ctx context.Context, kind ipc.Kind, req *ipc.PayloadWriter) (*ipc.PayloadReader, error) {
	var payload []byte
	if req != nil {
		payload = req.Bytes()
	}
	reply, err := c.conn.Send(ctx, kind, payload)
	if err != nil {
		return nil, err
	}
	return decodeResult(reply.Payload)
}

// ServerInfo is the name and version reported by ServerInfo.
type ServerInfo struct {
	Name    string
	Version string
}

func (c *Client) ServerInfo(ctx context.Context) (ServerInfo, error) {
	r, err := c.call(ctx, ipc.KindServerInfo, nil)
	if err != nil {
		return ServerInfo{}, err
	}
	name, err := r.GetString()
	if err != nil {
		return ServerInfo{}, err
	}
	version, err := r.GetString()
	if err != nil {
		return ServerInfo{}, err
	}
	return ServerInfo{Name: name, Version: version}, nil
}

func (c *Client) LastEntryIndex(ctx context.Context) (uint32, error) {
	r, err := c.call(ctx, ipc.KindLastEntryIndex, nil)
	if err != nil {
		return 0, err
	}
	return r.GetUint32()
}

func (c *Client) EntryType(ctx context.Context, index uint32) (byte, error) {
	req := ipc.NewPayloadWriter().PutUint32(index)
	r, err := c.call(ctx, ipc.KindEntryType, req)
	if err != nil {
		return 0, err
	}
	return r.GetByte()
}

// TlsCertOptions configures TlsCertNewFromEntropy. Algorithm is "ed25519"
// (default) or "ecdsa_p256"; SNIOverride, if non-empty, fixes the SNI
// instead of drawing a random one.
type TlsCertOptions struct {
	Algorithm   string
	SNIOverride string
}

// NewTlsCertResult is the outcome of generating a fresh self-signed
// certificate.
type NewTlsCertResult struct {
	Index  uint32
	Digest [32]byte
	SNI    string
}

func (c *Client) TlsCertNewFromEntropy(ctx context.Context, opts TlsCertOptions) (NewTlsCertResult, error) {
	req := ipc.NewPayloadWriter().PutString(opts.Algorithm).PutString(opts.SNIOverride)
	r, err := c.call(ctx, ipc.KindTlsCertNewFromEntropy, req)
	if err != nil {
		return NewTlsCertResult{}, err
	}
	index, err := r.GetUint32()
	if err != nil {
		return NewTlsCertResult{}, err
	}
	digest, err := r.Get32()
	if err != nil {
		return NewTlsCertResult{}, err
	}
	sni, err := r.GetString()
	if err != nil {
		return NewTlsCertResult{}, err
	}
	return NewTlsCertResult{Index: index, Digest: digest, SNI: sni}, nil
}

// TlsCertInfo is the metadata TlsCertGet returns for an already-generated
// certificate.
type TlsCertInfo struct {
	SNI         string
	CertDER     []byte
	Digest      [32]byte
	Algorithm   string
	SNIOverride string
}

func (c *Client) TlsCertGet(ctx context.Context, index uint32) (TlsCertInfo, error) {
	req := ipc.NewPayloadWriter().PutUint32(index)
	r, err := c.call(ctx, ipc.KindTlsCertGet, req)
	if err != nil {
		return TlsCertInfo{}, err
	}
	sni, err := r.GetString()
	if err != nil {
		return TlsCertInfo{}, err
	}
	certDER, err := r.GetBytes()
	if err != nil {
		return TlsCertInfo{}, err
	}
	digest, err := r.Get32()
	if err != nil {
		return TlsCertInfo{}, err
	}
	algorithm, err := r.GetString()
	if err != nil {
		return TlsCertInfo{}, err
	}
	sniOverride, err := r.GetString()
	if err != nil {
		return TlsCertInfo{}, err
	}
	return TlsCertInfo{SNI: sni, CertDER: certDER, Digest: digest, Algorithm: algorithm, SNIOverride: sniOverride}, nil
}

func (c *Client) TlsCertGetCertByIndex(ctx context.Context, index uint32) ([]byte, error) {
	req := ipc.NewPayloadWriter().PutUint32(index)
	return c.getBytes(ctx, ipc.KindTlsCertGetCertByIndex, req)
}

func (c *Client) TlsCertGetCertBySNI(ctx context.Context, sni string) ([]byte, error) {
	req := ipc.NewPayloadWriter().PutString(sni)
	return c.getBytes(ctx, ipc.KindTlsCertGetCertBySNI, req)
}

func (c *Client) TlsCertGetCertByDigest(ctx context.Context, digest [32]byte) ([]byte, error) {
	req := ipc.NewPayloadWriter().Put32(digest)
	return c.getBytes(ctx, ipc.KindTlsCertGetCertByDigest, req)
}

func (c *Client) TlsCertGetPrivKeyByIndex(ctx context.Context, index uint32) ([]byte, error) {
	req := ipc.NewPayloadWriter().PutUint32(index)
	return c.getBytes(ctx, ipc.KindTlsCertGetPrivKeyByIndex, req)
}

func (c *Client) TlsCertGetPrivKeyBySNI(ctx context.Context, sni string) ([]byte, error) {
	req := ipc.NewPayloadWriter().PutString(sni)
	return c.getBytes(ctx, ipc.KindTlsCertGetPrivKeyBySNI, req)
}

func (c *Client) TlsCertGetPrivKeyByDigest(ctx context.Context, digest [32]byte) ([]byte, error) {
	req := ipc.NewPayloadWriter().Put32(digest)
	return c.getBytes(ctx, ipc.KindTlsCertGetPrivKeyByDigest, req)
}

func (c *Client) getBytes(ctx context.Context, kind ipc.Kind, req *ipc.PayloadWriter) ([]byte, error) {
	r, err := c.call(ctx, kind, req)
	if err != nil {
		return nil, err
	}
	return r.GetBytes()
}

// NewSignEd25519Result is the outcome of generating a fresh signing key.
type NewSignEd25519Result struct {
	Index     uint32
	PublicKey [32]byte
}

func (c *Client) SignEd25519NewFromEntropy(ctx context.Context) (NewSignEd25519Result, error) {
	r, err := c.call(ctx, ipc.KindSignEd25519NewFromEntropy, nil)
	if err != nil {
		return NewSignEd25519Result{}, err
	}
	index, err := r.GetUint32()
	if err != nil {
		return NewSignEd25519Result{}, err
	}
	pub, err := r.Get32()
	if err != nil {
		return NewSignEd25519Result{}, err
	}
	return NewSignEd25519Result{Index: index, PublicKey: pub}, nil
}

func (c *Client) SignEd25519Get(ctx context.Context, index uint32) ([32]byte, error) {
	req := ipc.NewPayloadWriter().PutUint32(index)
	r, err := c.call(ctx, ipc.KindSignEd25519Get, req)
	if err != nil {
		return [32]byte{}, err
	}
	return r.Get32()
}

func (c *Client) SignEd25519SignByIndex(ctx context.Context, index uint32, message []byte) ([]byte, error) {
	req := ipc.NewPayloadWriter().PutUint32(index).PutBytes(message)
	return c.getBytes(ctx, ipc.KindSignEd25519SignByIndex, req)
}

func (c *Client) SignEd25519SignByPubKey(ctx context.Context, pub [32]byte, message []byte) ([]byte, error) {
	req := ipc.NewPayloadWriter().Put32(pub).PutBytes(message)
	return c.getBytes(ctx, ipc.KindSignEd25519SignByPubKey, req)
}

// NewX25519Result is the outcome of generating a fresh key-agreement key.
type NewX25519Result struct {
	Index     uint32
	PublicKey [32]byte
}

func (c *Client) X25519NewFromEntropy(ctx context.Context) (NewX25519Result, error) {
	r, err := c.call(ctx, ipc.KindX25519NewFromEntropy, nil)
	if err != nil {
		return NewX25519Result{}, err
	}
	index, err := r.GetUint32()
	if err != nil {
		return NewX25519Result{}, err
	}
	pub, err := r.Get32()
	if err != nil {
		return NewX25519Result{}, err
	}
	return NewX25519Result{Index: index, PublicKey: pub}, nil
}

func (c *Client) X25519Get(ctx context.Context, index uint32) ([32]byte, error) {
	req := ipc.NewPayloadWriter().PutUint32(index)
	r, err := c.call(ctx, ipc.KindX25519Get, req)
	if err != nil {
		return [32]byte{}, err
	}
	return r.Get32()
}

// CryptoBoxResult is a sealed crypto-box payload: a fresh nonce and the
// authenticated ciphertext.
type CryptoBoxResult struct {
	Nonce      [24]byte
	Ciphertext []byte
}

func (c *Client) CryptoBoxByIndex(ctx context.Context, senderIndex uint32, recipientPub [32]byte, plaintext []byte) (CryptoBoxResult, error) {
	req := ipc.NewPayloadWriter().PutUint32(senderIndex).Put32(recipientPub).PutBytes(plaintext)
	return c.cryptoBox(ctx, ipc.KindCryptoBoxByIndex, req)
}

func (c *Client) CryptoBoxByPubKey(ctx context.Context, senderPub, recipientPub [32]byte, plaintext []byte) (CryptoBoxResult, error) {
	req := ipc.NewPayloadWriter().Put32(senderPub).Put32(recipientPub).PutBytes(plaintext)
	return c.cryptoBox(ctx, ipc.KindCryptoBoxByPubKey, req)
}

func (c *Client) cryptoBox(ctx context.Context, kind ipc.Kind, req *ipc.PayloadWriter) (CryptoBoxResult, error) {
	r, err := c.call(ctx, kind, req)
	if err != nil {
		return CryptoBoxResult{}, err
	}
	nonce, err := r.GetBytes()
	if err != nil {
		return CryptoBoxResult{}, err
	}
	ciphertext, err := r.GetBytes()
	if err != nil {
		return CryptoBoxResult{}, err
	}
	var out CryptoBoxResult
	copy(out.Nonce[:], nonce)
	out.Ciphertext = ciphertext
	return out, nil
}

// CryptoBoxOpenByIndex opens a box addressed to recipientIndex. A nil,
// false result means the ciphertext did not authenticate under senderPub —
// indistinguishable on the wire from a wrong recipient key.
func (c *Client) CryptoBoxOpenByIndex(ctx context.Context, recipientIndex uint32, senderPub [32]byte, box CryptoBoxResult) ([]byte, bool, error) {
	req := ipc.NewPayloadWriter().PutUint32(recipientIndex).Put32(senderPub).PutBytes(box.Nonce[:]).PutBytes(box.Ciphertext)
	return c.cryptoBoxOpen(ctx, ipc.KindCryptoBoxOpenByIndex, req)
}

func (c *Client) CryptoBoxOpenByPubKey(ctx context.Context, recipientPub, senderPub [32]byte, box CryptoBoxResult) ([]byte, bool, error) {
	req := ipc.NewPayloadWriter().Put32(recipientPub).Put32(senderPub).PutBytes(box.Nonce[:]).PutBytes(box.Ciphertext)
	return c.cryptoBoxOpen(ctx, ipc.KindCryptoBoxOpenByPubKey, req)
}

func (c *Client) cryptoBoxOpen(ctx context.Context, kind ipc.Kind, req *ipc.PayloadWriter) ([]byte, bool, error) {
	r, err := c.call(ctx, kind, req)
	if err != nil {
		return nil, false, err
	}
	found, err := r.GetByte()
	if err != nil {
		return nil, false, err
	}
	plaintext, err := r.GetBytes()
	if err != nil {
		return nil, false, err
	}
	if found == 0 {
		return nil, false, nil
	}
	return plaintext, true, nil
}
