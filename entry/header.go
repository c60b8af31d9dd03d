package entry

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Connoropolous/lair-keystore/crypto"
	"github.com/Connoropolous/lair-keystore/internal/obslog"
	"github.com/Connoropolous/lair-keystore/internal/sealer"
	"github.com/Connoropolous/lair-keystore/lairerr"
)

// HeaderFileName is the small, unencrypted, directory-wide metadata file
// spec.md §6 requires alongside the socket and entry files: it records the
// schema version and sealer parameters future tooling needs to read this
// data directory's entries correctly.
const HeaderFileName = "store_header"

// HeaderSchemaVersion is the store format's schema version. It is bumped
// whenever the entry record encoding or sealer parameters change in a way
// that makes an old data directory unreadable by a newer build.
const HeaderSchemaVersion uint16 = 1

// Header is the store header's decoded form.
type Header struct {
	SchemaVersion      uint16
	PBKDF2Iterations   uint32
	TlsDigestAlgorithm string
}

func defaultHeader() Header {
	return Header{
		SchemaVersion:      HeaderSchemaVersion,
		PBKDF2Iterations:   uint32(sealer.PBKDF2Iterations),
		TlsDigestAlgorithm: crypto.TlsDigestAlgorithm,
	}
}

func headerPath(dir string) string {
	return filepath.Join(dir, HeaderFileName)
}

// readOrCreateHeader reads dir's store header, writing the current
// defaults as a fresh header if dir has none yet (a brand-new data
// directory, or one written before this field existed).
func readOrCreateHeader(dir string) (Header, error) {
	logger := obslog.New("entry", "readOrCreateHeader")

	raw, err := os.ReadFile(headerPath(dir))
	if os.IsNotExist(err) {
		h := defaultHeader()
		if err := writeHeader(dir, h); err != nil {
			return Header{}, err
		}
		logger.WithFields(obslog.OperationFields("create_header", "success", map[string]interface{}{
			"schema_version": h.SchemaVersion, "tls_digest_algorithm": h.TlsDigestAlgorithm,
		})).Info("wrote fresh store header")
		return h, nil
	}
	if err != nil {
		logger.WithError(err, "store_read_failed", "os.ReadFile").Error("failed to read store header")
		return Header{}, lairerr.Wrap(lairerr.StoreReadFailed, "reading store header", err)
	}

	h, err := decodeHeader(raw)
	if err != nil {
		return Header{}, err
	}
	if h.SchemaVersion != HeaderSchemaVersion {
		return Header{}, lairerr.New(lairerr.StoreReadFailed,
			fmt.Sprintf("data directory has schema version %d, this build supports %d", h.SchemaVersion, HeaderSchemaVersion))
	}
	return h, nil
}

func writeHeader(dir string, h Header) error {
	if err := os.WriteFile(headerPath(dir), encodeHeader(h), 0o600); err != nil {
		return lairerr.Wrap(lairerr.StoreWriteFailed, "writing store header", err)
	}
	return nil
}

// encodeHeader renders h with the same length-prefixed, little-endian
// binary convention entry.encode uses for entry records.
func encodeHeader(h Header) []byte {
	buf := make([]byte, 0, 6+len(h.TlsDigestAlgorithm))
	var versionBuf [2]byte
	binary.LittleEndian.PutUint16(versionBuf[:], h.SchemaVersion)
	buf = append(buf, versionBuf[:]...)
	var iterBuf [4]byte
	binary.LittleEndian.PutUint32(iterBuf[:], h.PBKDF2Iterations)
	buf = append(buf, iterBuf[:]...)
	buf = appendLenPrefixed(buf, []byte(h.TlsDigestAlgorithm))
	return buf
}

func decodeHeader(data []byte) (Header, error) {
	if len(data) < 6 {
		return Header{}, lairerr.New(lairerr.StoreReadFailed, "store header record is truncated")
	}
	version := binary.LittleEndian.Uint16(data[0:2])
	iterations := binary.LittleEndian.Uint32(data[2:6])
	algo, _, err := readLenPrefixed(data[6:])
	if err != nil {
		return Header{}, err
	}
	return Header{
		SchemaVersion:      version,
		PBKDF2Iterations:   iterations,
		TlsDigestAlgorithm: string(algo),
	}, nil
}
