// Package orient implements the OrientDB binary-protocol connection state
// machine: the stateful session that owns a socket, authenticates,
// pipelines in-flight requests, reads streaming bytes and incrementally
// parses responses, fetches and caches schema, assigns transaction ids, and
// cancels in-flight requests on disconnect.
//
// The connection is single-threaded and cooperative internally — one
// goroutine (loop) owns the socket, the decode buffer, and the pending
// queue. Callers interact only through Operation, NoResponseOperation,
// FetchSchema, and Stop, which hand work to that goroutine over channels
// and never touch its state directly.
package orient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/go-orient/orient/orienterr"
	"github.com/go-orient/orient/orientconfig"
	"github.com/go-orient/orient/protocol"
	"github.com/go-orient/orient/record"
)

// Conn is an open session against either an OrientDB server or a specific
// database. Obtain one with Dial; release it with Stop.
type Conn struct {
	opts   orientconfig.Options
	logger zerolog.Logger

	netConn net.Conn

	state     atomic.Int32
	sessionID atomic.Int32
	schema    atomic.Pointer[record.Schema]

	// txCounter, queue, and tail are owned exclusively by loop and must
	// never be touched from another goroutine.
	txCounter int32
	queue     pendingQueue
	tail      []byte

	requests   chan request
	chunks     chan []byte
	readErrCh  chan error
	stopOnce   sync.Once
	stopCh     chan struct{}
	closedCh   chan struct{}
}

type request struct {
	op            protocol.Op
	args          []protocol.Arg
	reply         chan callResult
	isSchemaFetch bool
}

// State reports the connection's current lifecycle stage.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Dial opens a TCP connection to opts.Host:opts.Port, performs the
// handshake (connect for a server target, db_open for a database target),
// and — for a database target — fetches the schema before returning. The
// returned Conn is in the Ready state.
func Dial(ctx context.Context, opts orientconfig.Options, logger zerolog.Logger) (*Conn, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	dialer := net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	netConn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", opts.Host, opts.Port))
	if err != nil {
		return nil, &orienterr.TransportError{Err: err}
	}
	tuneSocketBuffers(netConn, opts.SocketOpts)

	return newConn(netConn, opts, logger)
}

// newConn runs the handshake and, for a database target, the schema
// bootstrap over an already-open net.Conn, then starts the agent loop.
// Split out from Dial so tests can drive the state machine over an
// in-memory net.Pipe instead of a real socket.
func newConn(netConn net.Conn, opts orientconfig.Options, logger zerolog.Logger) (*Conn, error) {
	c := &Conn{
		opts:      opts,
		logger:    logger,
		netConn:   netConn,
		txCounter: 1,
		requests:  make(chan request),
		chunks:    make(chan []byte, 16),
		readErrCh: make(chan error, 1),
		stopCh:    make(chan struct{}),
		closedCh:  make(chan struct{}),
	}
	c.sessionID.Store(-1)
	c.state.Store(int32(Connecting))

	if err := c.handshake(); err != nil {
		netConn.Close()
		c.state.Store(int32(Disconnected))
		return nil, err
	}
	c.state.Store(int32(Authenticated))

	if opts.Target.Kind == orientconfig.DatabaseTarget {
		if err := c.bootstrapSchema(); err != nil {
			netConn.Close()
			c.state.Store(int32(Disconnected))
			return nil, err
		}
	}
	c.state.Store(int32(Ready))

	go c.readPump()
	go c.loop()

	return c, nil
}

// Operation issues a request and blocks for its reply, honoring ctx's
// deadline (callers should derive ctx from context.WithTimeout(parent,
// opts.Timeout) when they want the configured default applied).
//
// On ctx expiring before the reply arrives, Operation returns
// orienterr.ErrTimeout; the pending slot is not removed from the queue —
// the server's eventual reply is still decoded and discarded once it
// arrives, preserving the ordering guarantee for every other pipelined
// call.
func (c *Conn) Operation(ctx context.Context, op protocol.Op, args []protocol.Arg) (any, error) {
	if err := c.checkScope(op); err != nil {
		return nil, err
	}
	if c.State() != Ready {
		return nil, orienterr.ErrClosed
	}

	req := request{op: op, args: args, reply: make(chan callResult, 1)}
	select {
	case c.requests <- req:
	case <-c.closedCh:
		return nil, orienterr.ErrClosed
	case <-ctx.Done():
		return nil, orienterr.ErrTimeout
	}

	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, orienterr.ErrTimeout
	case <-c.closedCh:
		return nil, orienterr.ErrClosed
	}
}

// NoResponseOperation sends a fire-and-forget request such as shutdown: the
// frame is written but no queue slot is reserved for a reply, since the
// server does not answer these on the normal response channel (shutdown,
// for instance, simply closes the socket).
func (c *Conn) NoResponseOperation(op protocol.Op, args []protocol.Arg) error {
	if err := c.checkScope(op); err != nil {
		return err
	}
	if c.State() != Ready {
		return orienterr.ErrClosed
	}
	req := request{op: op, args: args, reply: nil}
	select {
	case c.requests <- req:
		return nil
	case <-c.closedCh:
		return orienterr.ErrClosed
	}
}

// FetchSchema issues an internal schema refetch and blocks until it
// completes, replacing the cached schema wholesale on success. Higher
// layers call this after receiving orienterr.ErrUnknownPropertyID and then
// retry the original call.
func (c *Conn) FetchSchema(ctx context.Context) error {
	if c.State() != Ready {
		return orienterr.ErrClosed
	}
	req := request{op: protocol.RecordLoad, args: schemaFetchArgs(), reply: make(chan callResult, 1)}
	select {
	case c.requests <- markSchemaFetch(req):
	case <-c.closedCh:
		return orienterr.ErrClosed
	case <-ctx.Done():
		return orienterr.ErrTimeout
	}
	select {
	case res := <-req.reply:
		return res.err
	case <-ctx.Done():
		return orienterr.ErrTimeout
	case <-c.closedCh:
		return orienterr.ErrClosed
	}
}

// Stop requests a graceful shutdown: the agent finishes any writes already
// in flight, closes the socket, and replies orienterr.ErrClosed to every
// queued caller. Stop blocks until the agent has exited.
func (c *Conn) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.closedCh
}

func (c *Conn) checkScope(op protocol.Op) error {
	wantDB := c.opts.Target.Kind == orientconfig.DatabaseTarget
	opWantsDB := op.Scope == protocol.DatabaseScope
	if wantDB != opWantsDB {
		return orienterr.ErrWrongScope
	}
	return nil
}

func tuneSocketBuffers(conn net.Conn, opts orientconfig.SocketOpts) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	// Request fixed 1 MiB send/recv buffers; the kernel's current buffer
	// sizes are not queried or compared. Failures here are non-fatal, the
	// OS default is still usable.
	const maxBuf = 1 << 20
	_ = tc.SetReadBuffer(maxBuf)
	_ = tc.SetWriteBuffer(maxBuf)
	if opts.KeepAlive > 0 {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(opts.KeepAlive)
	}
}
