package orient

import "github.com/go-orient/orient/protocol"

// callResult is what a pending call's reply channel eventually receives.
// value's concrete type depends on the op (see decodeEntry); err is one of
// the orienterr kinds.
type callResult struct {
	value any
	err   error
}

// queueEntry is one pending response slot: either a user request tagged
// with the op whose grammar decodes its reply, or an internal schema
// fetch. This is a single tagged-variant type, not two parallel queues, so
// that ordering across kinds is preserved — a schema fetch and a user
// request can legitimately race during reconnect and must still be
// answered in send order.
type queueEntry struct {
	isSchemaFetch bool
	op            protocol.Op
	reply         chan callResult
}

// pendingQueue is the FIFO of in-flight requests awaiting a response.
// Insertion at the tail happens when a request is sent; removal from the
// head happens once its response has been fully parsed. Its length always
// equals the number of unreplied requests currently on the wire.
type pendingQueue struct {
	entries []queueEntry
}

func (q *pendingQueue) pushBack(e queueEntry) {
	q.entries = append(q.entries, e)
}

func (q *pendingQueue) front() (queueEntry, bool) {
	if len(q.entries) == 0 {
		return queueEntry{}, false
	}
	return q.entries[0], true
}

func (q *pendingQueue) popFront() {
	if len(q.entries) == 0 {
		return
	}
	q.entries = q.entries[1:]
}

func (q *pendingQueue) len() int {
	return len(q.entries)
}

// drain replies orienterr.ErrClosed (via fn) to every queued caller and
// empties the queue, for use on disconnect.
func (q *pendingQueue) drain(fn func(queueEntry)) {
	for _, e := range q.entries {
		fn(e)
	}
	q.entries = nil
}
