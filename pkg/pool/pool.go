// Package pool implements the Allocated Header pool (C5): a fixed-size
// set of reusable AH buffers shared by every connection on one thread,
// admitted under fair-share and per-peer-quota rules. Grounded on
// _examples/WhileEndless-go-rawhttp/pkg/transport's hostPool (a mutex +
// sync.Cond guarded idle list partitioned by sync.Map) for the locking
// and wait/signal mechanism, re-targeted from "reusable TCP connections
// keyed by host" to "a fixed AH free list with FIFO fairness" per
// _examples/original_source/lib/roles/http/parsers.c's
// lws_header_table_attach / __lws_header_table_detach.
package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/WhileEndless/hparsecore/pkg/ah"
	"github.com/WhileEndless/hparsecore/pkg/constants"
	"github.com/WhileEndless/hparsecore/pkg/metrics"
	"github.com/WhileEndless/hparsecore/pkg/wsi"
)

// Config configures one Pool.
type Config struct {
	// Capacity is the pool's total AH count ("max_http_header_pool").
	Capacity int
	// HeaderDataSize is C, each AH's scratch buffer size in bytes
	// ("max_http_header_data").
	HeaderDataSize int
	// PerPeerLimit caps how many AHs a single wsi.Connection.Peer may
	// hold at once. It is only consulted to construct a private
	// PeerQuota when PeerQuota below is nil; if PeerQuota is set,
	// PerPeerLimit is ignored (the quota's own limit governs instead,
	// since it may be shared with other Pools that were built with a
	// different PerPeerLimit value by mistake). Zero means unlimited.
	PerPeerLimit int
	// PeerQuota is the context lock (spec §5): the per-peer AH counter,
	// shared across every per-thread Pool in the process so a peer's
	// quota is enforced process-wide rather than per-thread. Nil
	// constructs a private PeerQuota scoped to this one Pool, from
	// PerPeerLimit — correct for a single-Pool deployment or a test,
	// but it will not see AHs the same peer holds on a different Pool.
	PeerQuota *PeerQuota
	// HeldTooLong is the diagnostic-only threshold (spec §9); exceeding
	// it only makes Detach call Logger, it never forces a detach.
	HeldTooLong time.Duration
	// EventLoop and Timer are optional; when nil, Attach/Detach skip
	// the corresponding notification (useful for tests that don't care
	// about read-readiness suppression or idle timers).
	EventLoop wsi.EventLoop
	Timer     wsi.TimerService
	// Logger receives a one-line diagnostic when a detach finds the
	// connection held its AH past HeldTooLong. Nil disables logging.
	Logger func(format string, args ...any)
}

// Stats is a read-only snapshot of pool occupancy, in the shape of the
// teacher's PoolStats.
type Stats struct {
	InUse      int
	Free       int
	Waiting    int
	Created    uint64
	WaitEvents uint64
}

// waiter is one parked entry on the FIFO wait list.
type waiter struct {
	conn  *wsi.Connection
	timer *metrics.Timer
	next  *waiter
}

// Pool is one per-thread AH pool. A process with N service threads
// constructs N independent Pools, exactly as lws gives each pt (per-
// thread struct) its own ah_list/ah_waiting_list.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg Config

	free []*ah.AH // idle AHs, available for immediate attach

	// waitHead is the head of the FIFO wait list. New waiters are pushed
	// onto the head (matching
	// _lws_header_ensure_we_are_on_waiting_list's
	// "wsi->http.ah_wait_list = pt->http.ah_wait_list" head-insertion);
	// detach scans the whole list and hands the AH to the last eligible
	// node found, which — because arrival is head-first — is the
	// oldest arrival when no per-peer quota excludes it. See DESIGN.md's
	// "Wait-list fairness" entry.
	waitHead *waiter

	statCreated    uint64
	statWaitEvents uint64
}

// New constructs a Pool with cfg's capacity of freshly allocated AHs.
func New(cfg Config) *Pool {
	if cfg.Capacity <= 0 {
		cfg.Capacity = constants.DefaultMaxHTTPHeaderPool
	}
	if cfg.HeaderDataSize <= 0 {
		cfg.HeaderDataSize = constants.DefaultMaxHTTPHeaderData
	}
	if cfg.HeldTooLong <= 0 {
		cfg.HeldTooLong = constants.HeldTooLongThreshold
	}
	if cfg.PeerQuota == nil {
		cfg.PeerQuota = NewPeerQuota(cfg.PerPeerLimit)
	}

	p := &Pool{
		cfg:  cfg,
		free: make([]*ah.AH, 0, cfg.Capacity),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < cfg.Capacity; i++ {
		p.free = append(p.free, ah.New(cfg.HeaderDataSize))
		p.statCreated++
	}
	return p
}

// Attach binds an AH to conn, either immediately (an AH is free and
// conn's peer is under quota) or by parking conn on the wait list and
// blocking the calling goroutine until Detach hands one over. It does
// not call the EventLoop while parked; event-loop code should call
// AttachNonBlocking below, which never blocks.
func (p *Pool) Attach(conn *wsi.Connection) (*ah.AH, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if a, ok := p.tryAttachLocked(conn); ok {
			return a, nil
		}
		p.parkLocked(conn)
		p.cond.Wait()
		p.unparkLocked(conn)
	}
}

// AttachNonBlocking is the event-loop-friendly counterpart to Attach: it
// returns immediately. If ok is true, a is bound and ready. If ok is
// false, conn has been parked on the wait list and its EventLoop's
// DisableRead was called (if one is configured); the caller must not
// touch a (which is nil) until a later Requeue callback, at which point
// it should call AttachNonBlocking again.
func (p *Pool) AttachNonBlocking(conn *wsi.Connection) (a *ah.AH, ok bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if a, ok := p.tryAttachLocked(conn); ok {
		return a, true, nil
	}
	p.parkLocked(conn)
	if p.cfg.EventLoop != nil {
		p.cfg.EventLoop.DisableRead(conn.FDSSlot)
	}
	return nil, false, nil
}

// tryAttachLocked attempts an immediate attach under the caller's held
// lock. Reports ok=false (no AH, no error) when the pool or the peer's
// quota is exhausted.
func (p *Pool) tryAttachLocked(conn *wsi.Connection) (*ah.AH, bool) {
	if conn.AH != nil {
		return conn.AH, true
	}
	if !p.peerEligibleLocked(conn.Peer) {
		return nil, false
	}
	if len(p.free) == 0 {
		return nil, false
	}

	n := len(p.free)
	a := p.free[n-1]
	p.free = p.free[:n-1]
	a.Reset()
	a.InUse = true
	a.AssignedAt = time.Now().UnixNano()

	conn.AH = a
	p.cfg.PeerQuota.acquire(conn.Peer)

	if p.cfg.Timer != nil {
		p.cfg.Timer.ArmIdleAH(conn.FDSSlot)
	}
	if p.cfg.EventLoop != nil {
		p.cfg.EventLoop.EnableRead(conn.FDSSlot)
	}
	return a, true
}

// peerEligibleLocked reports whether conn's peer is still under its
// quota. Called only while p.mu (the pt-lock) is already held; it
// takes and releases p.cfg.PeerQuota's own lock (the leaf context
// lock) entirely within that scope, per spec §5's nesting order.
func (p *Pool) peerEligibleLocked(peer string) bool {
	return p.cfg.PeerQuota.eligible(peer)
}

// parkLocked pushes conn onto the head of the wait list (spec §4.5,
// matching parsers.c's head-insertion) and starts its wait-time timer.
func (p *Pool) parkLocked(conn *wsi.Connection) {
	for w := p.waitHead; w != nil; w = w.next {
		if w.conn == conn {
			return // already parked
		}
	}
	t := metrics.NewTimer()
	w := &waiter{conn: conn, timer: t, next: p.waitHead}
	p.waitHead = w
	p.statWaitEvents++
}

// unparkLocked removes conn from the wait list if Detach (running on
// another goroutine) has already handed it an AH and called cond.Broadcast.
func (p *Pool) unparkLocked(conn *wsi.Connection) {
	p.removeWaiterLocked(conn)
}

func (p *Pool) removeWaiterLocked(conn *wsi.Connection) {
	var prev *waiter
	for w := p.waitHead; w != nil; w = w.next {
		if w.conn == conn {
			if prev == nil {
				p.waitHead = w.next
			} else {
				prev.next = w.next
			}
			return
		}
		prev = w
	}
}

// Detach releases conn's AH back to the pool, or (if the wait list holds
// an eligible waiter) hands it directly to that waiter instead of ever
// returning it to the free list — matching __lws_header_table_detach's
// scan-and-reassign behavior, never creating a free/attach round trip
// when a waiter is already queued.
func (p *Pool) Detach(conn *wsi.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a := conn.AH
	if a == nil {
		return
	}
	conn.AH = nil
	p.cfg.PeerQuota.release(conn.Peer)

	if p.cfg.Timer != nil {
		p.cfg.Timer.Disarm(conn.FDSSlot)
	}

	if p.cfg.Logger != nil {
		held := time.Duration(time.Now().UnixNano() - a.AssignedAt)
		if held > p.cfg.HeldTooLong {
			p.cfg.Logger("pool: connection held AH for %v (threshold %v)", held, p.cfg.HeldTooLong)
		}
	}
	a.InUse = false

	if target := p.detachLocked(); target != nil {
		a.Reset()
		a.InUse = true
		a.AssignedAt = time.Now().UnixNano()
		target.conn.AH = a
		p.cfg.PeerQuota.acquire(target.conn.Peer)
		if p.cfg.Timer != nil {
			p.cfg.Timer.ArmIdleAH(target.conn.FDSSlot)
		}
		if p.cfg.EventLoop != nil {
			p.cfg.EventLoop.EnableRead(target.conn.FDSSlot)
			p.cfg.EventLoop.Requeue(target.conn.FDSSlot)
		}
		p.cond.Broadcast()
		return
	}

	p.free = append(p.free, a)
	p.cond.Broadcast()
}

// detachLocked scans the entire wait list and returns the last eligible
// waiter found (i.e. the oldest arrival, since new waiters are pushed
// onto the head), removing it from the list. Returns nil if no waiter
// is eligible (or the list is empty).
func (p *Pool) detachLocked() *waiter {
	var chosen *waiter
	var chosenPrev *waiter
	var prev *waiter
	for w := p.waitHead; w != nil; w = w.next {
		if p.peerEligibleLocked(w.conn.Peer) {
			chosen = w
			chosenPrev = prev
		}
		prev = w
	}
	if chosen == nil {
		return nil
	}
	if chosenPrev == nil {
		p.waitHead = chosen.next
	} else {
		chosenPrev.next = chosen.next
	}
	chosen.timer.EndWait()
	return chosen
}

// Stats returns a point-in-time snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	waiting := 0
	for w := p.waitHead; w != nil; w = w.next {
		waiting++
	}
	inUse := p.cfg.Capacity - len(p.free)
	return Stats{
		InUse:      inUse,
		Free:       len(p.free),
		Waiting:    waiting,
		Created:    atomic.LoadUint64(&p.statCreated),
		WaitEvents: p.statWaitEvents,
	}
}
