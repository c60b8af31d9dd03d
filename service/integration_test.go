package service_test

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Connoropolous/lair-keystore/client"
	"github.com/Connoropolous/lair-keystore/service"
)

// startServer spins up a Server on a fresh Unix socket in t.TempDir() and
// tears it down when the test ends.
func startServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "socket")

	srv := service.NewServer(dir, service.ServerInfo{Name: "lair-keystore", Version: "test"})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, socketPath) }()

	require.Eventually(t, func() bool {
		_, err := net.Dial("unix", socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "server never started listening")

	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return socketPath
}

func connectClient(t *testing.T, socketPath string) *client.Client {
	t.Helper()
	c, err := client.Dial(context.Background(), socketPath, func(ctx context.Context) (string, error) {
		return "passphrase", nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServerInfoAndEntryKinds(t *testing.T) {
	socketPath := startServer(t)
	c1 := connectClient(t, socketPath)
	c2 := connectClient(t, socketPath)
	ctx := context.Background()

	info1, err := c1.ServerInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, "lair-keystore", info1.Name)
	require.Equal(t, "test", info1.Version)

	info2, err := c2.ServerInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, info1, info2)

	last, err := c1.LastEntryIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(0), last)

	kind, err := c1.EntryType(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, byte(0), kind) // KindInvalid
}

func TestTlsCertTripleLookup(t *testing.T) {
	socketPath := startServer(t)
	c := connectClient(t, socketPath)
	ctx := context.Background()

	created, err := c.TlsCertNewFromEntropy(ctx, client.TlsCertOptions{})
	require.NoError(t, err)
	require.Equal(t, uint32(1), created.Index)

	last, err := c.LastEntryIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), last)

	kind, err := c.EntryType(ctx, created.Index)
	require.NoError(t, err)
	require.Equal(t, byte(1), kind) // KindTlsCert

	info, err := c.TlsCertGet(ctx, created.Index)
	require.NoError(t, err)
	require.Equal(t, created.SNI, info.SNI)
	require.Equal(t, created.Digest, info.Digest)

	cert1, err := c.TlsCertGetCertByIndex(ctx, created.Index)
	require.NoError(t, err)
	cert2, err := c.TlsCertGetCertBySNI(ctx, created.SNI)
	require.NoError(t, err)
	cert3, err := c.TlsCertGetCertByDigest(ctx, created.Digest)
	require.NoError(t, err)
	require.True(t, bytes.Equal(cert1, cert2))
	require.True(t, bytes.Equal(cert2, cert3))

	pk1, err := c.TlsCertGetPrivKeyByIndex(ctx, created.Index)
	require.NoError(t, err)
	pk2, err := c.TlsCertGetPrivKeyBySNI(ctx, created.SNI)
	require.NoError(t, err)
	pk3, err := c.TlsCertGetPrivKeyByDigest(ctx, created.Digest)
	require.NoError(t, err)
	require.True(t, bytes.Equal(pk1, pk2))
	require.True(t, bytes.Equal(pk2, pk3))
}

func TestEd25519SignRoundTripAcrossConnections(t *testing.T) {
	socketPath := startServer(t)
	c1 := connectClient(t, socketPath)
	c2 := connectClient(t, socketPath)
	ctx := context.Background()

	created, err := c1.SignEd25519NewFromEntropy(ctx)
	require.NoError(t, err)

	pub2, err := c1.SignEd25519Get(ctx, created.Index)
	require.NoError(t, err)
	require.Equal(t, created.PublicKey, pub2)

	message := []byte("test-data")

	sig1, err := c1.SignEd25519SignByIndex(ctx, created.Index, message)
	require.NoError(t, err)
	sig2, err := c1.SignEd25519SignByPubKey(ctx, created.PublicKey, message)
	require.NoError(t, err)
	require.Equal(t, sig1, sig2)

	sig3, err := c2.SignEd25519SignByIndex(ctx, created.Index, message)
	require.NoError(t, err)
	sig4, err := c2.SignEd25519SignByPubKey(ctx, created.PublicKey, message)
	require.NoError(t, err)
	require.Equal(t, sig2, sig3)
	require.Equal(t, sig3, sig4)
}

func TestCryptoBoxNonDeterminismAndCrossClientOpen(t *testing.T) {
	socketPath := startServer(t)
	c1 := connectClient(t, socketPath)
	c2 := connectClient(t, socketPath)
	ctx := context.Background()

	alice, err := c1.X25519NewFromEntropy(ctx)
	require.NoError(t, err)
	bob, err := c1.X25519NewFromEntropy(ctx)
	require.NoError(t, err)

	message := []byte("test-data")

	box1, err := c1.CryptoBoxByIndex(ctx, alice.Index, bob.PublicKey, message)
	require.NoError(t, err)
	box2, err := c1.CryptoBoxByPubKey(ctx, alice.PublicKey, bob.PublicKey, message)
	require.NoError(t, err)
	box3, err := c2.CryptoBoxByIndex(ctx, alice.Index, bob.PublicKey, message)
	require.NoError(t, err)

	require.NotEqual(t, box1.Nonce, box2.Nonce)
	require.NotEqual(t, box1.Nonce, box3.Nonce)
	require.False(t, bytes.Equal(box1.Ciphertext, box2.Ciphertext))

	opened1, found1, err := c1.CryptoBoxOpenByIndex(ctx, bob.Index, alice.PublicKey, box1)
	require.NoError(t, err)
	require.True(t, found1)
	require.Equal(t, message, opened1)

	opened2, found2, err := c2.CryptoBoxOpenByPubKey(ctx, bob.PublicKey, alice.PublicKey, box2)
	require.NoError(t, err)
	require.True(t, found2)
	require.Equal(t, message, opened2)
}

func TestCryptoBoxOpenWrongRecipientReturnsAbsent(t *testing.T) {
	socketPath := startServer(t)
	c := connectClient(t, socketPath)
	ctx := context.Background()

	alice, err := c.X25519NewFromEntropy(ctx)
	require.NoError(t, err)
	bob, err := c.X25519NewFromEntropy(ctx)
	require.NoError(t, err)
	carol, err := c.X25519NewFromEntropy(ctx)
	require.NoError(t, err)

	box, err := c.CryptoBoxByIndex(ctx, alice.Index, bob.PublicKey, []byte("test-data"))
	require.NoError(t, err)

	plaintext, found, err := c.CryptoBoxOpenByPubKey(ctx, carol.PublicKey, alice.PublicKey, box)
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, plaintext)

	// A failed open must not hang or wedge the connection: the next
	// request on the same client still completes normally.
	plaintext2, found2, err := c.CryptoBoxOpenByPubKey(ctx, bob.PublicKey, alice.PublicKey, box)
	require.NoError(t, err)
	require.True(t, found2)
	require.Equal(t, []byte("test-data"), plaintext2)
}

func TestPassphraseCallbackFiresOnce(t *testing.T) {
	socketPath := startServer(t)
	ctx := context.Background()

	var calls int
	c, err := client.Dial(ctx, socketPath, func(ctx context.Context) (string, error) {
		calls++
		return "passphrase", nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	_, err = c.X25519NewFromEntropy(ctx)
	require.NoError(t, err)
	_, err = c.X25519NewFromEntropy(ctx)
	require.NoError(t, err)
	_, err = c.SignEd25519NewFromEntropy(ctx)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}
