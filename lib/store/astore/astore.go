// Package astore makes a store safe for concurrent use by handing it
// to a single owner goroutine, the actor. Callers enqueue typed
// requests into a multi-producer mailbox together with a reply
// channel; the actor applies them to the wrapped store one at a time
// in arrival order and sends back the response.
//
// This replaces locks entirely: the wrapped store, its log file and
// its byte counter are only ever touched by the actor goroutine, which
// makes the "persisted state is a prefix of the in-memory state"
// invariant trivial to uphold. A reply observed by a caller implies the
// operation is visible to every request enqueued afterwards, from any
// goroutine.
//
// Shutdown drains: Close stops the mailbox, requests already accepted
// are still served, then the actor closes the wrapped store (and with
// it the log writer) and exits. Requests racing with Close fail with
// RetCStoreClosed.
package astore

import (
	"sync"

	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/util"
)

// --------------------------------------------------------------------------
// Request/Response Types
// --------------------------------------------------------------------------

type opType int

const (
	opSet opType = iota
	opGet
	opDelete
	opScan
	opSnapshot
	opInfo
)

// request is one mailbox entry. resp has capacity 1 so the actor never
// blocks on a caller that went away.
type request struct {
	op     opType
	key    []byte
	value  []byte
	prefix []byte
	resp   chan response
}

type response struct {
	value   []byte
	found   bool
	existed bool
	keys    [][]byte
	gen     uint64
	info    store.StoreInfo
	err     error
}

// --------------------------------------------------------------------------
// Actor Store
// --------------------------------------------------------------------------

// Store wraps an inner store.IStore with an owning actor goroutine.
// It implements store.IStore itself and is safe for concurrent use.
type Store struct {
	inner    store.IStore
	mailbox  *util.LockFreeMPSC[request]
	done     chan struct{}
	closeErr error
	once     sync.Once
}

// New wraps inner in an actor and starts the owner goroutine. From
// this point on the inner store must not be used directly.
func New(inner store.IStore) *Store {
	a := &Store{
		inner:   inner,
		mailbox: util.NewLockFreeMPSC[request](),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// run is the actor loop. It is the only goroutine that ever touches
// the inner store.
func (a *Store) run() {
	for req := range a.mailbox.Recv() {
		a.apply(req)
	}

	// mailbox closed and drained: final close of the inner store (and
	// with it the log writer)
	a.closeErr = a.inner.Close()
	close(a.done)
}

// apply executes one request against the inner store and replies
func (a *Store) apply(req *request) {
	var resp response

	switch req.op {
	case opSet:
		resp.err = a.inner.Set(req.key, req.value)
	case opGet:
		resp.value, resp.found, resp.err = a.inner.Get(req.key)
	case opDelete:
		resp.existed, resp.err = a.inner.Delete(req.key)
	case opScan:
		resp.keys, resp.err = a.inner.Scan(req.prefix)
	case opSnapshot:
		resp.gen, resp.err = a.inner.Snapshot()
	case opInfo:
		resp.info, resp.err = a.inner.Info()
	}

	req.resp <- resp
}

// send enqueues a request and waits for the reply. If the actor shuts
// down while the request is in flight, the call fails with
// RetCStoreClosed instead of blocking forever.
func (a *Store) send(req request) response {
	req.resp = make(chan response, 1)

	if !a.mailbox.Push(&req) {
		return response{err: store.NewError(store.RetCStoreClosed, "store is closed")}
	}

	select {
	case resp := <-req.resp:
		return resp
	case <-a.done:
		// the actor exited; the request may have been dropped in the
		// shutdown race, but a queued reply still wins
		select {
		case resp := <-req.resp:
			return resp
		default:
			return response{err: store.NewError(store.RetCStoreClosed, "store is closed")}
		}
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (a *Store) Set(key, value []byte) error {
	return a.send(request{op: opSet, key: key, value: value}).err
}

func (a *Store) Get(key []byte) ([]byte, bool, error) {
	resp := a.send(request{op: opGet, key: key})
	return resp.value, resp.found, resp.err
}

func (a *Store) Delete(key []byte) (bool, error) {
	resp := a.send(request{op: opDelete, key: key})
	return resp.existed, resp.err
}

func (a *Store) Scan(prefix []byte) ([][]byte, error) {
	resp := a.send(request{op: opScan, prefix: prefix})
	return resp.keys, resp.err
}

func (a *Store) Snapshot() (uint64, error) {
	resp := a.send(request{op: opSnapshot})
	return resp.gen, resp.err
}

func (a *Store) Info() (store.StoreInfo, error) {
	resp := a.send(request{op: opInfo})
	return resp.info, resp.err
}

// Close shuts the actor down: the mailbox stops accepting requests,
// everything already enqueued is drained, then the inner store is
// closed. Close blocks until the actor has exited and is safe to call
// more than once.
func (a *Store) Close() error {
	a.once.Do(func() {
		a.mailbox.Close()
	})
	<-a.done
	return a.closeErr
}
