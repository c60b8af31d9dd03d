package client

import (
	"github.com/Connoropolous/lair-keystore/ipc"
	"github.com/Connoropolous/lair-keystore/lairerr"
)

// Mirrors service/result.go's wire convention: a leading status byte, then
// either the reply fields or a kind string plus message.
const (
	statusOK    byte = 0
	statusError byte = 1
)

func decodeResult(payload []byte) (*ipc.PayloadReader, error) {
	if len(payload) == 0 {
		return nil, lairerr.New(lairerr.ProtocolViolation, "empty reply payload")
	}
	status := payload[0]
	r := ipc.NewPayloadReader(payload[1:])
	if status == statusOK {
		return r, nil
	}
	kindStr, err := r.GetString()
	if err != nil {
		return nil, err
	}
	message, err := r.GetString()
	if err != nil {
		return nil, err
	}
	return nil, lairerr.New(lairerr.Kind(kindStr), message)
}
