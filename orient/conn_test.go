package orient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-orient/orient/orienterr"
	"github.com/go-orient/orient/orientconfig"
	"github.com/go-orient/orient/protocol"
	"github.com/go-orient/orient/record"
	"github.com/go-orient/orient/wire"
)

func header(status byte, sessionID int32) []byte {
	buf := wire.PutInt8(nil, int8(status))
	return wire.PutInt32(buf, sessionID)
}

func handshakeReplyBytes(sessionID int32) []byte {
	buf := wire.PutInt32(nil, sessionID)
	return wire.PutBytes(buf, nil) // null token
}

func dbOpenMetadataBytes() []byte {
	buf := wire.PutInt16(nil, 0) // zero clusters
	buf = wire.PutBytes(buf, nil)
	buf = wire.PutString(buf, "3.0.0")
	return buf
}

func recordResultBytes(version int32, content []byte) []byte {
	buf := wire.PutInt8(nil, int8('d'))
	buf = wire.PutInt32(buf, version)
	return wire.PutBytes(buf, content)
}

func emptySchemaRecordBytes() []byte {
	content, err := record.Encode(&record.Document{}, nil)
	if err != nil {
		panic(err)
	}
	buf := wire.PutBool(nil, true) // found
	buf = append(buf, recordResultBytes(1, content)...)
	return wire.PutBool(buf, false) // no supplementary records
}

func serverTestOpts(port int) orientconfig.Options {
	opts := orientconfig.Default()
	opts.Host = "unused"
	opts.Port = port
	opts.User = "root"
	opts.Password = "root"
	opts.Timeout = 2 * time.Second
	return opts
}

// dialOverPipe drives newConn over an in-memory net.Pipe, playing the
// server side of the handshake (and, for a database target, the schema
// bootstrap record_load) itself so individual tests only need to script
// what happens once the connection reaches Ready. Each phase is a
// read-then-write pair — never one giant pre-written blob — since
// net.Pipe is an unbuffered rendezvous: a Write that outruns what the
// peer is currently trying to read deadlocks.
func dialOverPipe(t *testing.T, opts orientconfig.Options, sessionID int32, serve func(server net.Conn)) *Conn {
	t.Helper()
	client, server := net.Pipe()

	go func() {
		buf := make([]byte, 4096)

		server.Write(wire.PutInt16(nil, 28))
		if _, err := server.Read(buf); err != nil { // consumes the connect/db_open request
			return
		}
		server.Write(header(protocol.StatusOK, -1))
		server.Write(handshakeReplyBytes(sessionID))
		if opts.Target.Kind == orientconfig.DatabaseTarget {
			server.Write(dbOpenMetadataBytes())

			if _, err := server.Read(buf); err != nil { // consumes the schema bootstrap request
				return
			}
			server.Write(header(protocol.StatusOK, sessionID))
			server.Write(emptySchemaRecordBytes())
		}
		if serve != nil {
			serve(server)
		}
	}()

	conn, err := newConn(client, opts, zerolog.Nop())
	require.NoError(t, err)
	return conn
}

func TestDialServerScopeHandshake(t *testing.T) {
	opts := serverTestOpts(2424)
	opts.Target = orientconfig.Target{Kind: orientconfig.ServerTarget}

	conn := dialOverPipe(t, opts, 7, nil)
	defer conn.Stop()

	assert.Equal(t, Ready, conn.State())
	assert.EqualValues(t, 7, conn.sessionID.Load())
}

func TestDialDatabaseScopeFetchesSchema(t *testing.T) {
	opts := serverTestOpts(2424)
	opts.Target = orientconfig.Target{Kind: orientconfig.DatabaseTarget, DatabaseName: "test", DatabaseKind: orientconfig.DocumentDatabase}

	conn := dialOverPipe(t, opts, 9, nil)
	defer conn.Stop()

	assert.Equal(t, Ready, conn.State())
	require.NotNil(t, conn.schema.Load())
	assert.Equal(t, 0, conn.schema.Load().Len())
}

func TestUnsupportedProtocolVersionRejected(t *testing.T) {
	opts := serverTestOpts(2424)
	opts.Target = orientconfig.Target{Kind: orientconfig.ServerTarget}
	opts.MinProtocolVersion = 30

	client, server := net.Pipe()
	go func() {
		server.Write(wire.PutInt16(nil, 28))
	}()

	_, err := newConn(client, opts, zerolog.Nop())
	assert.ErrorIs(t, err, orienterr.ErrUnsupportedProtocol)
}

// TestPipeliningCoalescedSegments issues two concurrent calls and has the
// fake server write both replies in a single Write, verifying both frames
// are decoded and each caller receives exactly one of the two results even
// though the two response frames arrive glued together.
func TestPipeliningCoalescedSegments(t *testing.T) {
	opts := serverTestOpts(2424)
	opts.Target = orientconfig.Target{Kind: orientconfig.DatabaseTarget, DatabaseName: "test", DatabaseKind: orientconfig.DocumentDatabase}

	conn := dialOverPipe(t, opts, 9, func(server net.Conn) {
		buf := make([]byte, 4096)
		var received int
		for received < 2 {
			n, err := server.Read(buf)
			if err != nil {
				return
			}
			received += countFrames(buf[:n])
		}
		var reply []byte
		reply = append(reply, header(protocol.StatusOK, 9)...)
		reply = append(reply, wire.PutInt64(nil, 100)...)
		reply = append(reply, header(protocol.StatusOK, 9)...)
		reply = append(reply, wire.PutInt64(nil, 200)...)
		server.Write(reply)
	})
	defer conn.Stop()

	ctx := context.Background()
	type result struct {
		v   any
		err error
	}
	results := make(chan result, 2)
	go func() {
		v, err := conn.Operation(ctx, protocol.DBSize, nil)
		results <- result{v, err}
	}()
	go func() {
		v, err := conn.Operation(ctx, protocol.DBSize, nil)
		results <- result{v, err}
	}()

	var values []int64
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		values = append(values, r.v.(int64))
	}
	assert.ElementsMatch(t, []int64{100, 200}, values)
}

// countFrames is a crude request counter for the fake server: every db_size
// request frame sent by handleSend is exactly op_code(1) + session_id(4) =
// 5 bytes with no arguments.
func countFrames(b []byte) int {
	return len(b) / 5
}

// TestAbruptDisconnectRepliesClosed verifies that when the transport dies
// with a call still queued, the caller gets orienterr.ErrClosed rather than
// hanging.
func TestAbruptDisconnectRepliesClosed(t *testing.T) {
	opts := serverTestOpts(2424)
	opts.Target = orientconfig.Target{Kind: orientconfig.DatabaseTarget, DatabaseName: "test", DatabaseKind: orientconfig.DocumentDatabase}

	conn := dialOverPipe(t, opts, 9, func(server net.Conn) {
		buf := make([]byte, 4096)
		server.Read(buf) // consume the db_size request, then go silent
		server.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := conn.Operation(ctx, protocol.DBSize, nil)
	assert.ErrorIs(t, err, orienterr.ErrClosed)
}

// TestTxCommitAssignsMonotonicIDs verifies the transaction id allocator
// issues 1, then 2, never reusing an id within the session.
func TestTxCommitAssignsMonotonicIDs(t *testing.T) {
	opts := serverTestOpts(2424)
	opts.Target = orientconfig.Target{Kind: orientconfig.DatabaseTarget, DatabaseName: "test", DatabaseKind: orientconfig.DocumentDatabase}

	var seenTxIDs []int32
	conn := dialOverPipe(t, opts, 9, func(server net.Conn) {
		buf := make([]byte, 4096)
		for i := 0; i < 2; i++ {
			n, err := server.Read(buf)
			if err != nil {
				return
			}
			// frame: op_code(1) session_id(4) tx_id(4)
			frame := buf[:n]
			txID, _, decodeErr := wire.Int32(frame[5:9])
			if decodeErr != nil {
				return
			}
			seenTxIDs = append(seenTxIDs, txID)

			var reply []byte
			reply = append(reply, header(protocol.StatusOK, 9)...)
			reply = append(reply, wire.PutInt32(nil, 0)...) // zero created
			reply = append(reply, wire.PutInt32(nil, 0)...) // zero updated
			server.Write(reply)
		}
	})
	defer conn.Stop()

	ctx := context.Background()
	_, err := conn.Operation(ctx, protocol.TxCommit, nil)
	require.NoError(t, err)
	_, err = conn.Operation(ctx, protocol.TxCommit, nil)
	require.NoError(t, err)

	require.Len(t, seenTxIDs, 2)
	assert.EqualValues(t, 1, seenTxIDs[0])
	assert.EqualValues(t, 2, seenTxIDs[1])
}

func TestStopDrainsQueueWithClosed(t *testing.T) {
	opts := serverTestOpts(2424)
	opts.Target = orientconfig.Target{Kind: orientconfig.ServerTarget}

	conn := dialOverPipe(t, opts, 7, func(server net.Conn) {
		buf := make([]byte, 4096)
		server.Read(buf) // consume the request but never reply
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Operation(ctx, protocol.DBList, nil)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	conn.Stop()

	err := <-errCh
	assert.ErrorIs(t, err, orienterr.ErrClosed)
	assert.Equal(t, Disconnected, conn.State())
}

// TestFetchSchemaSendsSameArgsAsBootstrap verifies FetchSchema's request
// frame is byte-identical to the one bootstrapSchema sent at Dial time —
// same RID, fetch plan, ignore-cache and load-tombstones flags — not a
// bare record_load with no arguments.
func TestFetchSchemaSendsSameArgsAsBootstrap(t *testing.T) {
	opts := serverTestOpts(2424)
	opts.Target = orientconfig.Target{Kind: orientconfig.DatabaseTarget, DatabaseName: "test", DatabaseKind: orientconfig.DocumentDatabase}

	wantArgs := protocol.EncodeRequest(protocol.RecordLoad.Code, 9, schemaFetchArgs())

	var gotArgs []byte
	conn := dialOverPipe(t, opts, 9, func(server net.Conn) {
		buf := make([]byte, 4096)
		n, err := server.Read(buf)
		if err != nil {
			return
		}
		gotArgs = append([]byte(nil), buf[:n]...)
		server.Write(header(protocol.StatusOK, 9))
		server.Write(emptySchemaRecordBytes())
	})
	defer conn.Stop()

	require.NoError(t, conn.FetchSchema(context.Background()))
	assert.Equal(t, wantArgs, gotArgs)
}

// TestFetchSchemaFailureDisconnectsSession verifies that a schema record
// reported missing by the server tears the whole session down, replying
// orienterr.ErrClosed both to the FetchSchema caller and to the session's
// state, rather than leaving the session Ready with a stale schema.
func TestFetchSchemaFailureDisconnectsSession(t *testing.T) {
	opts := serverTestOpts(2424)
	opts.Target = orientconfig.Target{Kind: orientconfig.DatabaseTarget, DatabaseName: "test", DatabaseKind: orientconfig.DocumentDatabase}

	conn := dialOverPipe(t, opts, 9, func(server net.Conn) {
		buf := make([]byte, 4096)
		if _, err := server.Read(buf); err != nil { // consumes FetchSchema's request
			return
		}
		server.Write(header(protocol.StatusOK, 9))
		server.Write(wire.PutBool(nil, false)) // record not found
	})
	defer conn.Stop()

	err := conn.FetchSchema(context.Background())
	assert.ErrorIs(t, err, orienterr.ErrClosed)
	assert.Equal(t, Disconnected, conn.State())
}
