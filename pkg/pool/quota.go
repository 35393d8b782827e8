package pool

import "sync"

// PeerQuota is the context lock: a single counter registry shared by
// every per-thread Pool in a process. spec §5 distinguishes two locks
// because a peer's connections can land on different threads' Pools,
// so a per-Pool peer count only bounds that peer's usage of one
// thread — not the process-wide total spec §5's count_ah invariant
// describes. A *PeerQuota constructed once and passed into every
// Pool's Config closes that gap.
//
// Lock nesting is strict: every Pool method that touches a PeerQuota
// already holds its own mu (the pt-lock) before calling in here, and
// releases this lock (the leaf context lock) before releasing its own
// — mirroring _lws_header_table_detach's context->lock being taken
// only inside an already-held pt->lock, and dropped first on unwind.
type PeerQuota struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

// NewPeerQuota constructs a quota enforcing limit concurrent AHs per
// peer across every Pool it is shared with. limit <= 0 means
// unlimited: eligible always reports true (acquire and release still
// keep the per-peer counts).
func NewPeerQuota(limit int) *PeerQuota {
	return &PeerQuota{limit: limit, counts: make(map[string]int)}
}

// eligible reports whether peer is still under limit. An empty peer
// key is always eligible (no per-peer tracking requested).
func (q *PeerQuota) eligible(peer string) bool {
	if q.limit <= 0 || peer == "" {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[peer] < q.limit
}

// acquire records that peer now holds one more AH, across whichever
// Pool is calling. The caller must already have confirmed eligible.
func (q *PeerQuota) acquire(peer string) {
	if peer == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.counts[peer]++
}

// release records that peer has given back one AH.
func (q *PeerQuota) release(peer string) {
	if peer == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.counts[peer] > 0 {
		q.counts[peer]--
		if q.counts[peer] == 0 {
			delete(q.counts, peer)
		}
	}
}
