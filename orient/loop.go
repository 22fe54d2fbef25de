package orient

import (
	"errors"
	"fmt"

	"github.com/go-orient/orient/orienterr"
	"github.com/go-orient/orient/protocol"
	"github.com/go-orient/orient/wire"
)

// markSchemaFetch tags a request as the internal schema refetch FetchSchema
// issues, so drainDecode routes its reply through parseGlobalProperties
// instead of delivering a raw RecordLoadResult to the caller.
func markSchemaFetch(req request) request {
	req.isSchemaFetch = true
	return req
}

// readPump is the only goroutine that ever calls netConn.Read. It feeds raw
// chunks to loop over c.chunks and reports the terminal read error, if any,
// over c.readErrCh.
func (c *Conn) readPump() {
	buf := make([]byte, 4096)
	for {
		n, err := c.netConn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.chunks <- chunk:
			case <-c.closedCh:
				return
			}
		}
		if err != nil {
			select {
			case c.readErrCh <- err:
			case <-c.closedCh:
			}
			return
		}
	}
}

// loop is the single goroutine that owns the socket, the pending queue, and
// the decode tail buffer for the lifetime of a Ready connection. It never
// blocks on a caller; every interaction happens over the channels in Conn.
func (c *Conn) loop() {
	defer close(c.closedCh)
	defer c.netConn.Close()

	for {
		select {
		case req := <-c.requests:
			if err := c.handleSend(req); err != nil {
				c.shutdownWith(&orienterr.TransportError{Err: err})
				return
			}
		case chunk := <-c.chunks:
			c.tail = append(c.tail, chunk...)
			if c.drainDecode() {
				return
			}
		case err := <-c.readErrCh:
			c.shutdownWith(&orienterr.TransportError{Err: err})
			return
		case <-c.stopCh:
			c.state.Store(int32(Draining))
			c.shutdownWith(orienterr.ErrClosed)
			return
		}
	}
}

// handleSend writes one request's frame to the socket and, unless it was
// fire-and-forget, reserves its reply slot at the tail of the queue.
// tx_commit gets its transaction id injected here, never by the caller, so
// ids are assigned in the exact order frames hit the wire.
func (c *Conn) handleSend(req request) error {
	args := req.args
	if req.op.Code == protocol.OpTxCommit {
		args = append([]protocol.Arg{protocol.Int(c.nextTxID())}, args...)
	}

	frame := protocol.EncodeRequest(req.op.Code, c.sessionID.Load(), args)
	if _, err := c.netConn.Write(frame); err != nil {
		return err
	}

	if req.reply != nil {
		c.queue.pushBack(queueEntry{op: req.op, reply: req.reply, isSchemaFetch: req.isSchemaFetch})
	}
	return nil
}

func (c *Conn) nextTxID() int32 {
	id := c.txCounter
	c.txCounter++
	return id
}

// drainDecode attempts to fully decode and dispatch every response frame
// that can be completed from the current tail, in FIFO order against the
// pending queue. It returns, with the tail left untouched, as soon as the
// head of the queue needs more bytes than are currently buffered.
//
// A decode failure is per-call (delivered to that entry's caller) and
// never tears down the session, with one exception: a failed schema
// fetch — decode error, record not found, or a malformed globalProperties
// payload — disconnects the whole session, same as a transport error,
// since every other operation on a Database-scope session depends on the
// schema being current. The returned fatal flag tells loop to stop
// selecting once that happens; the socket itself is closed by loop's
// deferred close, not by drainDecode.
func (c *Conn) drainDecode() (fatal bool) {
	for {
		entry, ok := c.queue.front()
		if !ok {
			return false
		}

		value, rest, err := c.decodeEntry(entry)
		if err != nil {
			if errors.Is(err, wire.ErrNeedMore) {
				return false
			}
			if entry.isSchemaFetch {
				c.shutdownWith(err)
				return true
			}
			c.queue.popFront()
			c.tail = rest
			c.deliver(entry, callResult{err: err})
			continue
		}

		c.queue.popFront()
		c.tail = rest

		if entry.isSchemaFetch {
			result := value.(protocol.RecordLoadResult)
			if !result.Found || result.Primary.Doc == nil {
				c.shutdownWith(fmt.Errorf("%w: schema record not found", orienterr.ErrMalformedResponse))
				c.deliver(entry, callResult{err: orienterr.ErrClosed})
				return true
			}
			schema, perr := parseGlobalProperties(result.Primary.Doc)
			if perr != nil {
				c.shutdownWith(perr)
				c.deliver(entry, callResult{err: orienterr.ErrClosed})
				return true
			}
			c.schema.Store(schema)
			c.deliver(entry, callResult{})
			continue
		}

		c.deliver(entry, callResult{value: value})
	}
}

func (c *Conn) deliver(entry queueEntry, res callResult) {
	if entry.reply != nil {
		entry.reply <- res
	}
}

// decodeEntry decodes the single response frame at the head of c.tail
// according to the grammar entry.op names. On a decode error — including
// wire.ErrNeedMore — rest is c.tail, unmodified: a partial decode never
// advances the buffer. The one exception is a complete status-1 frame: its
// error payload is consumed and returned as the *orienterr.ServerError.
func (c *Conn) decodeEntry(entry queueEntry) (any, []byte, error) {
	hdr, rest, err := protocol.DecodeHeader(c.tail)
	if err != nil {
		return nil, c.tail, err
	}

	switch hdr.Status {
	case protocol.StatusPush:
		return nil, c.tail, fmt.Errorf("%w: unexpected push notification frame", orienterr.ErrMalformedResponse)

	case protocol.StatusError:
		errPayload, rest2, err := protocol.DecodeErrorPayload(rest)
		if err != nil {
			return nil, c.tail, err
		}
		return nil, rest2, errPayload

	case protocol.StatusOK:
		return c.decodePayload(entry, rest)

	default:
		return nil, c.tail, fmt.Errorf("%w: unknown status byte %d", orienterr.ErrMalformedResponse, hdr.Status)
	}
}

func (c *Conn) decodePayload(entry queueEntry, b []byte) (any, []byte, error) {
	schema := c.schema.Load()

	if entry.isSchemaFetch {
		v, rest, err := protocol.DecodeRecordLoad(b, nil)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil
	}

	switch entry.op.Name {
	case "db_size":
		v, rest, err := protocol.DecodeDBSize(b)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "db_countrecords":
		v, rest, err := protocol.DecodeDBCountRecords(b)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "db_exist":
		v, rest, err := protocol.DecodeDBExist(b)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "db_list":
		v, rest, err := protocol.DecodeDBList(b, schema)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "record_load", "record_load_if_version_not_latest":
		v, rest, err := protocol.DecodeRecordLoad(b, schema)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "record_create":
		v, rest, err := protocol.DecodeRecordCreate(b)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "record_update":
		v, rest, err := protocol.DecodeRecordUpdate(b)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "record_delete":
		v, rest, err := protocol.DecodeRecordDelete(b)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "command":
		v, rest, err := protocol.DecodeCommand(b, schema)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "tx_commit":
		v, rest, err := protocol.DecodeTxCommit(b)
		if err != nil {
			return nil, c.tail, err
		}
		return v, rest, nil

	case "db_create", "db_drop", "db_close", "db_reload":
		// These carry no payload beyond the header in this core: db_reload's
		// real cluster-metadata body is out of scope, and the rest have
		// never returned one.
		return nil, b, nil

	default:
		return nil, c.tail, fmt.Errorf("%w: no decoder registered for op %q", orienterr.ErrMalformedResponse, entry.op.Name)
	}
}

// shutdownWith tears the connection down: the socket is closed by loop's
// deferred call, session state is reset so a later Dial starts clean, and
// every queued caller is replied to with orienterr.ErrClosed — cause is
// logged, never handed to the caller, per the rule that a queued caller
// always sees exactly one Closed reply regardless of why the session died.
func (c *Conn) shutdownWith(cause error) {
	c.state.Store(int32(Disconnected))
	c.sessionID.Store(-1)
	c.txCounter = 1
	c.queue.drain(func(e queueEntry) {
		c.deliver(e, callResult{err: orienterr.ErrClosed})
	})
	c.logger.Warn().Err(cause).Msg("orient: session closed")
}
