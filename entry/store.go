package entry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/Connoropolous/lair-keystore/crypto"
	"github.com/Connoropolous/lair-keystore/internal/obslog"
	"github.com/Connoropolous/lair-keystore/internal/sealer"
	"github.com/Connoropolous/lair-keystore/lairerr"
)

// Store is the append-only, indexed collection of entries for one data
// directory. It is the sole owner of the on-disk entry files and the
// authoritative source for the four secondary indices. A Store is safe for
// concurrent use: reads take the shared lock, and Append holds the exclusive
// lock for its whole write-then-index sequence, so concurrent Appends are
// serialized and each receives a distinct index.
type Store struct {
	mu         sync.RWMutex
	dir        string
	passphrase []byte
	header     Header

	entries []*Entry // entries[i] holds index i+1

	signByPub   map[[32]byte]Index
	x25519ByPub map[[32]byte]Index
	tlsBySNI    map[string]Index
	tlsByDigest map[[32]byte]Index
}

// Open reconstructs a Store by enumerating dir in index order, unsealing
// each entry file with passphrase. A fresh, empty directory yields an empty
// Store with LastIndex() == 0.
func Open(dir string, passphrase []byte) (*Store, error) {
	logger := obslog.New("entry", "Open")

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.WithError(err, "store_read_failed", "os.ReadDir").Error("failed to enumerate data directory")
		return nil, lairerr.Wrap(lairerr.StoreReadFailed, "enumerating data directory", err)
	}

	indices := make([]int, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || de.Name() == HeaderFileName {
			continue
		}
		n, err := strconv.Atoi(de.Name())
		if err != nil {
			continue // not an entry file (socket, header, etc.)
		}
		indices = append(indices, n)
	}
	sort.Ints(indices)

	header, err := readOrCreateHeader(dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:         dir,
		passphrase:  append([]byte(nil), passphrase...),
		header:      header,
		signByPub:   make(map[[32]byte]Index),
		x25519ByPub: make(map[[32]byte]Index),
		tlsBySNI:    make(map[string]Index),
		tlsByDigest: make(map[[32]byte]Index),
	}

	for _, n := range indices {
		want := Index(len(s.entries) + 1)
		if Index(n) != want {
			return nil, lairerr.New(lairerr.StoreReadFailed,
				fmt.Sprintf("data directory has a gap in the index sequence: expected %d, found %d", want, n))
		}

		sealed, err := os.ReadFile(filepath.Join(dir, entryFileName(n)))
		if err != nil {
			return nil, lairerr.Wrap(lairerr.StoreReadFailed, "reading entry file", err)
		}
		plaintext, err := sealer.Unseal(sealed, passphrase)
		if err != nil {
			return nil, err
		}
		e, err := decode(Index(n), plaintext)
		if err != nil {
			return nil, err
		}
		if err := verifyIntegrity(e); err != nil {
			return nil, err
		}
		s.indexEntry(e)
		s.entries = append(s.entries, e)
	}

	logger.WithField("entry_count", len(s.entries)).Info("entry store opened")
	return s, nil
}

func entryFileName(index int) string {
	return fmt.Sprintf("%010d", index)
}

// verifyIntegrity re-derives an X25519 entry's public point from its
// private scalar, matching the pub_key = scalar_base_mult(priv_key)
// invariant, and rejects the all-zero scalar no legitimate key generation
// ever produces. Corruption here means the data directory was tampered
// with or written by an incompatible version.
func verifyIntegrity(e *Entry) error {
	if e.Kind != KindX25519 {
		return nil
	}
	if crypto.IsZeroX25519Key(e.X25519.Private) {
		return lairerr.New(lairerr.StoreReadFailed, fmt.Sprintf("entry %d has an all-zero x25519 private key", e.Index))
	}
	if derived := crypto.DeriveX25519Public(e.X25519.Private); derived != e.X25519.Public {
		return lairerr.New(lairerr.StoreReadFailed, fmt.Sprintf("entry %d public key does not match its private scalar", e.Index))
	}
	return nil
}

// indexEntry updates the secondary indices for e. If a TLS SNI collides
// with an already-indexed entry, the earliest index wins, per the
// store-integrity invariant asserted at load.
func (s *Store) indexEntry(e *Entry) {
	switch e.Kind {
	case KindSignEd25519:
		if _, exists := s.signByPub[e.SignEd25519.Public]; !exists {
			s.signByPub[e.SignEd25519.Public] = e.Index
		}
	case KindX25519:
		if _, exists := s.x25519ByPub[e.X25519.Public]; !exists {
			s.x25519ByPub[e.X25519.Public] = e.Index
		}
	case KindTlsCert:
		if _, exists := s.tlsBySNI[e.Tls.SNI]; !exists {
			s.tlsBySNI[e.Tls.SNI] = e.Index
		}
		if _, exists := s.tlsByDigest[e.Tls.Digest]; !exists {
			s.tlsByDigest[e.Tls.Digest] = e.Index
		}
	}
}

// Append assigns the next index to e, persists it, and updates the
// secondary indices atomically with the index assignment. On write
// failure, the index is not published and the counter does not advance.
func (s *Store) Append(e *Entry) (Index, error) {
	logger := obslog.New("entry", "Append")

	s.mu.Lock()
	defer s.mu.Unlock()

	next := Index(len(s.entries) + 1)
	e.Index = next

	plaintext := encode(e)
	sealed, err := sealer.Seal(plaintext, s.passphrase)
	if err != nil {
		return Invalid, err
	}

	path := filepath.Join(s.dir, entryFileName(int(next)))
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		logger.WithError(err, "store_write_failed", "os.WriteFile").Error("failed to persist entry")
		return Invalid, lairerr.Wrap(lairerr.StoreWriteFailed, "writing entry file", err)
	}

	s.entries = append(s.entries, e)
	s.indexEntry(e)

	logger.WithFields(obslog.OperationFields("append", "success", map[string]interface{}{"index": uint32(next), "kind": e.Kind.String()})).
		Info("entry appended")
	return next, nil
}

// Get returns the entry at index, or nil if index is out of range
// (including Invalid).
func (s *Store) Get(index Index) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index == Invalid || int(index) > len(s.entries) {
		return nil
	}
	return s.entries[index-1]
}

// KindOf returns the Kind of the entry at index, or KindInvalid if index is
// out of range.
func (s *Store) KindOf(index Index) Kind {
	e := s.Get(index)
	if e == nil {
		return KindInvalid
	}
	return e.Kind
}

// Header returns the data directory's store header: schema version and
// sealer parameters, recorded once on first Open and read back on every
// reopen since, per spec.md §6.
func (s *Store) Header() Header {
	return s.header
}

// LastIndex returns the highest assigned index, or Invalid (0) for an empty
// store.
func (s *Store) LastIndex() Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Index(len(s.entries))
}

// FindSignByPub returns the index of the Ed25519 entry with the given
// public key, or Invalid if none exists.
func (s *Store) FindSignByPub(pub [32]byte) Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signByPub[pub]
}

// FindX25519ByPub returns the index of the X25519 entry with the given
// public key, or Invalid if none exists.
func (s *Store) FindX25519ByPub(pub [32]byte) Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.x25519ByPub[pub]
}

// FindTlsBySNI returns the index of the TLS entry with the given SNI, or
// Invalid if none exists.
func (s *Store) FindTlsBySNI(sni string) Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tlsBySNI[sni]
}

// FindTlsByDigest returns the index of the TLS entry with the given
// certificate digest, or Invalid if none exists.
func (s *Store) FindTlsByDigest(digest [32]byte) Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tlsByDigest[digest]
}
