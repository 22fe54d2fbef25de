package orient

import (
	"errors"
	"io"

	"github.com/go-orient/orient/orienterr"
	"github.com/go-orient/orient/orientconfig"
	"github.com/go-orient/orient/protocol"
	"github.com/go-orient/orient/wire"
)

// readUntil accumulates bytes from r into *buf until decode succeeds,
// growing buf by 4KiB chunks. It is used only during the synchronous Dial
// bootstrap (handshake and initial schema fetch), before the agent loop
// and its incremental tail buffer take over.
func readUntil[T any](r io.Reader, buf *[]byte, decode func([]byte) (T, []byte, error)) (T, error) {
	for {
		v, rest, err := decode(*buf)
		if err == nil {
			*buf = rest
			return v, nil
		}
		if !errors.Is(err, wire.ErrNeedMore) {
			var zero T
			return zero, err
		}
		chunk := make([]byte, 4096)
		n, rerr := r.Read(chunk)
		if n > 0 {
			*buf = append(*buf, chunk[:n]...)
			continue
		}
		if rerr != nil {
			var zero T
			return zero, rerr
		}
	}
}

// handshake performs the synchronous connect/db_open exchange. It is run
// once from Dial, before the agent loop starts, since there is no pipeline
// yet to race against.
func (c *Conn) handshake() error {
	var buf []byte

	version, err := readUntil(c.netConn, &buf, protocol.DecodeProtocolVersion)
	if err != nil {
		return &orienterr.TransportError{Err: err}
	}
	if version < c.opts.MinProtocolVersion {
		return orienterr.ErrUnsupportedProtocol
	}

	params := protocol.HandshakeParams{
		ClientName:    c.opts.ClientName,
		DriverVersion: c.opts.DriverVersion,
		ProtocolShort: version,
		ClientID:      c.opts.ClientID,
		User:          c.opts.User,
		Password:      c.opts.Password,
	}

	var frame []byte
	if c.opts.Target.Kind == orientconfig.DatabaseTarget {
		frame = protocol.EncodeDBOpen(params, c.opts.Target.DatabaseName, string(c.opts.Target.DatabaseKind))
	} else {
		frame = protocol.EncodeConnect(params)
	}
	if _, err := c.netConn.Write(frame); err != nil {
		return &orienterr.TransportError{Err: err}
	}

	hdr, err := readUntil(c.netConn, &buf, protocol.DecodeHeader)
	if err != nil {
		return &orienterr.TransportError{Err: err}
	}
	if hdr.Status == protocol.StatusError {
		errPayload, err := readUntil(c.netConn, &buf, protocol.DecodeErrorPayload)
		if err != nil {
			return &orienterr.TransportError{Err: err}
		}
		if len(errPayload.Entries) > 0 {
			first := errPayload.Entries[0]
			return &orienterr.AuthFailedError{Class: first.Class, Message: first.Message}
		}
		return errPayload
	}

	reply, err := readUntil(c.netConn, &buf, protocol.DecodeHandshakeReply)
	if err != nil {
		return &orienterr.TransportError{Err: err}
	}
	c.sessionID.Store(reply.SessionID)

	if c.opts.Target.Kind == orientconfig.DatabaseTarget {
		if _, err := readUntil(c.netConn, &buf, protocol.DecodeDBOpenMetadata); err != nil {
			return &orienterr.TransportError{Err: err}
		}
	}

	c.tail = buf
	return nil
}
