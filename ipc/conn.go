package ipc

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Connoropolous/lair-keystore/internal/obslog"
	"github.com/Connoropolous/lair-keystore/lairerr"
)

// EventQueueBound is the bounded per-connection queue for server-initiated
// frames (the passphrase callback, and any future event kind). Exceeding it
// closes the connection with Backpressure, per spec.md §4.4/§5.
const EventQueueBound = 32

// Conn is a full-duplex, correlation-ID-multiplexed connection: either side
// may originate a frame and await its reply, and either side may receive a
// frame it did not originate (an "event") and must answer it by calling
// Reply with the same correlation ID.
//
// A request/reply pair and an event/ack pair use the same mechanism: the
// originator registers a pending responder keyed by correlation ID before
// writing the frame; the peer's read loop either delivers a reply-tagged
// frame to that table, or — for a frame it did not originate — hands it to
// the Events channel for the local handler to process and answer.
type Conn struct {
	nc net.Conn

	nextID uint64

	mu      sync.Mutex
	pending map[uint64]chan Frame
	closed  bool
	closeCh chan struct{}

	writeMu sync.Mutex

	events chan Frame

	logger *obslog.Logger
}

// NewConn wraps nc and starts its read loop. Call Close when done.
func NewConn(nc net.Conn) *Conn {
	c := &Conn{
		nc:      nc,
		pending: make(map[uint64]chan Frame),
		closeCh: make(chan struct{}),
		events:  make(chan Frame, EventQueueBound),
		logger:  obslog.New("ipc", "Conn"),
	}
	go c.readLoop()
	return c
}

// Events returns the channel of frames this connection did not originate —
// server-initiated callbacks on a client Conn, or (symmetrically) any
// future client-initiated out-of-band frame on a server Conn.
func (c *Conn) Events() <-chan Frame { return c.events }

// Send writes a frame with a fresh correlation ID and kind, then blocks for
// the matching reply or ctx cancellation.
func (c *Conn) Send(ctx context.Context, kind Kind, payload []byte) (Frame, error) {
	id := atomic.AddUint64(&c.nextID, 1)
	replyCh := make(chan Frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Frame{}, lairerr.New(lairerr.Shutdown, "connection closed")
	}
	c.pending[id] = replyCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.writeFrame(Frame{CorrelationID: id, Kind: kind, Payload: payload}); err != nil {
		return Frame{}, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-c.closeCh:
		return Frame{}, lairerr.New(lairerr.Shutdown, "connection closed while awaiting reply")
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Reply answers an event frame previously received on Events(), echoing its
// correlation ID with kind's reply tag.
func (c *Conn) Reply(event Frame, kind Kind, payload []byte) error {
	return c.writeFrame(Frame{CorrelationID: event.CorrelationID, Kind: kind.Reply(), Payload: payload})
}

func (c *Conn) writeFrame(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteFrame(c.nc, f)
}

// readLoop is the sole sender on c.events; it closes that channel on exit
// so consumers ranging over Events() terminate cleanly.
func (c *Conn) readLoop() {
	defer close(c.events)
	defer c.Close()
	for {
		frame, err := ReadFrame(c.nc)
		if err != nil {
			if err != io.EOF {
				c.logger.WithError(err, "protocol_violation", "ReadFrame").Warn("connection read failed")
			}
			return
		}

		if frame.Kind.IsReply() {
			c.mu.Lock()
			ch, ok := c.pending[frame.CorrelationID]
			c.mu.Unlock()
			if ok {
				ch <- frame
			}
			continue
		}

		select {
		case c.events <- frame:
		default:
			c.logger.Warn("event queue full, closing connection for backpressure")
			return
		}
	}
}

// Close terminates the connection and unblocks any pending Send calls.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.closeCh)
	return c.nc.Close()
}
