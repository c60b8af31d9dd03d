package entry

import (
	"encoding/binary"
	"fmt"

	"github.com/Connoropolous/lair-keystore/lairerr"
)

// encode renders e as a self-describing binary record: a one-byte kind tag
// followed by kind-specific fixed and length-prefixed fields, little-endian
// throughout. This is the plaintext handed to internal/sealer.Seal before
// being written to disk.
func encode(e *Entry) []byte {
	buf := []byte{byte(e.Kind)}

	switch e.Kind {
	case KindSignEd25519:
		buf = append(buf, e.SignEd25519.Private[:]...)
		buf = append(buf, e.SignEd25519.Public[:]...)
	case KindX25519:
		buf = append(buf, e.X25519.Private[:]...)
		buf = append(buf, e.X25519.Public[:]...)
	case KindTlsCert:
		buf = appendLenPrefixed(buf, []byte(e.Tls.SNI))
		buf = appendLenPrefixed(buf, e.Tls.CertDER)
		buf = appendLenPrefixed(buf, e.Tls.PrivKeyDER)
		buf = append(buf, e.Tls.Digest[:]...)
		buf = appendLenPrefixed(buf, []byte(e.Tls.Options.Algorithm))
		buf = appendLenPrefixed(buf, []byte(e.Tls.Options.SNIOverride))
	}
	return buf
}

// decode is the inverse of encode. index is supplied by the caller (the
// entry file's name), not stored in the encoding itself.
func decode(index Index, data []byte) (*Entry, error) {
	if len(data) < 1 {
		return nil, lairerr.New(lairerr.StoreReadFailed, "entry record is empty")
	}

	kind := Kind(data[0])
	rest := data[1:]

	switch kind {
	case KindSignEd25519:
		if len(rest) != 64 {
			return nil, lairerr.New(lairerr.StoreReadFailed, "malformed sign_ed25519 entry record")
		}
		d := &SignEd25519Data{}
		copy(d.Private[:], rest[:32])
		copy(d.Public[:], rest[32:64])
		return &Entry{Index: index, Kind: kind, SignEd25519: d}, nil

	case KindX25519:
		if len(rest) != 64 {
			return nil, lairerr.New(lairerr.StoreReadFailed, "malformed x25519 entry record")
		}
		d := &X25519Data{}
		copy(d.Private[:], rest[:32])
		copy(d.Public[:], rest[32:64])
		return &Entry{Index: index, Kind: kind, X25519: d}, nil

	case KindTlsCert:
		sni, rest, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		certDER, rest, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		privKeyDER, rest, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		if len(rest) < 32 {
			return nil, lairerr.New(lairerr.StoreReadFailed, "malformed tls entry record: missing digest")
		}
		var digest [32]byte
		copy(digest[:], rest[:32])
		rest = rest[32:]
		algo, rest, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		sniOverride, _, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		d := &TlsData{
			SNI:        string(sni),
			CertDER:    certDER,
			PrivKeyDER: privKeyDER,
			Digest:     digest,
			Options: TlsOptions{
				Algorithm:   string(algo),
				SNIOverride: string(sniOverride),
			},
		}
		return &Entry{Index: index, Kind: kind, Tls: d}, nil

	default:
		return nil, lairerr.New(lairerr.StoreReadFailed, fmt.Sprintf("unknown entry kind tag %d", data[0]))
	}
}

func appendLenPrefixed(buf, field []byte) []byte {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(field)))
	buf = append(buf, length[:]...)
	return append(buf, field...)
}

func readLenPrefixed(buf []byte) (field, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, lairerr.New(lairerr.StoreReadFailed, "truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(n) {
		return nil, nil, lairerr.New(lairerr.StoreReadFailed, "truncated length-prefixed field")
	}
	return buf[:n], buf[n:], nil
}
