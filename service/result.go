package service

import (
	"github.com/Connoropolous/lair-keystore/ipc"
	"github.com/Connoropolous/lair-keystore/lairerr"
)

// Every reply payload leads with a one-byte status: statusOK or
// statusError. This lets the client tell a successful empty payload apart
// from an error without a second round trip.
const (
	statusOK    byte = 0
	statusError byte = 1
)

func replyOK(conn *ipc.Conn, frame ipc.Frame, kind ipc.Kind, fields *ipc.PayloadWriter) error {
	payload := append([]byte{statusOK}, fields.Bytes()...)
	return conn.Reply(frame, kind, payload)
}

func replyErr(conn *ipc.Conn, frame ipc.Frame, kind ipc.Kind, err error) error {
	k, ok := lairerr.KindOf(err)
	if !ok {
		k = lairerr.Shutdown
	}
	w := ipc.NewPayloadWriter().PutByte(statusError).PutString(string(k)).PutString(err.Error())
	return conn.Reply(frame, kind, w.Bytes())
}

// decodeResult is the client-side counterpart: it strips the status byte
// and, on failure, reconstructs a *lairerr.Error from the wire.
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
