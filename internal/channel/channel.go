// Package channel implements the length-prefixed framing protocol
// that carries requests and replies between the worker pool and its
// workers (spec.md § 4.1, § 6). The frame format is a fixed 8-byte
// ASCII hexadecimal length header followed by an opaque payload — no
// magic, no version, no checksum, since the channel is trusted
// (same process tree, parent and worker).
//
// Workers in this repository are goroutines rather than OS processes
// (see internal/pool), so the duplex byte stream underneath a Channel
// is a net.Pipe() rather than a socketpair. Nothing in the framing
// itself assumes that — a Channel wraps any net.Conn.
package channel

import (
	"encoding/hex"
	"io"
	"net"
	"time"

	"github.com/mshroom/RecordManager/internal/record"
)

const headerLen = 8

// MaxPayload is the largest payload representable by an 8-hex-digit
// length header (2^32 - 1 bytes), per spec.md § 4.1.
const MaxPayload = 1<<32 - 1

// Channel is one end of a framed duplex byte stream.
type Channel struct {
	conn net.Conn
}

// New wraps conn as a framed Channel.
func New(conn net.Conn) *Channel {
	return &Channel{conn: conn}
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// ReadBlocking reads exactly one frame, blocking until it is
// complete. It fails with a *record.ChannelClosedError if the peer
// closes the connection before the 8-byte header is fully read, and
// with a *record.ChannelProtocolError if the header is not
// zero-padded hex.
func (c *Channel) ReadBlocking() ([]byte, error) {
	header := make([]byte, headerLen)
	if err := readFull(c.conn, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &record.ChannelClosedError{}
		}
		return nil, err
	}

	n, err := hex.DecodeString(string(header))
	if err != nil || len(n) != 4 {
		return nil, &record.ChannelProtocolError{Header: string(header)}
	}
	length := int(n[0])<<24 | int(n[1])<<16 | int(n[2])<<8 | int(n[3])

	payload := make([]byte, length)
	if err := readFull(c.conn, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &record.ChannelClosedError{}
		}
		return nil, err
	}
	return payload, nil
}

// ReadNonBlocking returns (nil, nil) if no frame header arrives within
// pollWait, otherwise it behaves like ReadBlocking for the
// remainder of that frame. Readiness is checked with a short read
// deadline rather than the source's coarse 1s-select/10µs-backoff
// loop — spec.md § 9 explicitly permits proper readiness notification
// in place of that.
func (c *Channel) ReadNonBlocking(pollWait time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(pollWait)); err != nil {
		return nil, err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	header := make([]byte, headerLen)
	if err := readFull(c.conn, header); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &record.ChannelClosedError{}
		}
		return nil, err
	}

	n, err := hex.DecodeString(string(header))
	if err != nil || len(n) != 4 {
		return nil, &record.ChannelProtocolError{Header: string(header)}
	}
	length := int(n[0])<<24 | int(n[1])<<16 | int(n[2])<<8 | int(n[3])

	// The rest of the frame is expected imminently once the header has
	// arrived; read it out under the blocking path.
	c.conn.SetReadDeadline(time.Time{})
	payload := make([]byte, length)
	if err := readFull(c.conn, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &record.ChannelClosedError{}
		}
		return nil, err
	}
	return payload, nil
}

// Write writes one frame: an 8-byte hex length header followed by
// payload, looping until every byte is flushed. A short write after a
// successful partial write surfaces as *record.ChannelBrokenError.
func (c *Channel) Write(payload []byte) error {
	if len(payload) > MaxPayload {
		return &record.ChannelProtocolError{Header: "payload too large"}
	}

	header := make([]byte, 4)
	l := len(payload)
	header[0] = byte(l >> 24)
	header[1] = byte(l >> 16)
	header[2] = byte(l >> 8)
	header[3] = byte(l)
	hexHeader := []byte(hex.EncodeToString(header))

	if err := writeFull(c.conn, hexHeader); err != nil {
		return err
	}
	return writeFull(c.conn, payload)
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

func writeFull(w io.Writer, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n
		if err != nil {
			if total > 0 && total < len(buf) {
				return &record.ChannelBrokenError{Written: total, Want: len(buf)}
			}
			return err
		}
		if n == 0 {
			return &record.ChannelBrokenError{Written: total, Want: len(buf)}
		}
	}
	return nil
}

// Pipe returns a connected pair of in-process Channels, analogous to
// a local socketpair, for wiring a worker goroutine to its parent.
func Pipe() (parent *Channel, worker *Channel) {
	a, b := net.Pipe()
	return New(a), New(b)
}
