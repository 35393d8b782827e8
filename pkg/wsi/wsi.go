// Package wsi models the external connection handle the AH pool and
// parser operate on. It deliberately carries only the fields parsers.c's
// struct lws actually touches for header parsing (http.ah, ah_wait_list,
// position_in_fds_table, peer, role/state bits, hdr_parsing_completed),
// not a general-purpose connection abstraction.
package wsi

import (
	"golang.org/x/net/idna"

	"github.com/WhileEndless/hparsecore/pkg/ah"
)

// Role narrows which of the parser's behaviors apply to a Connection:
// an HTTP/2 mux substream shares one physical socket (and therefore one
// peer quota) with its siblings, and the parser's cookie-lookup algorithm
// (pkg/query) branches on whether a :method pseudo-header token is
// present at all, which only ever happens for a mux substream.
type Role int

const (
	// RoleH1 is a plain HTTP/1.1 connection, one request at a time.
	RoleH1 Role = iota
	// RoleMuxSubstream is one logical request multiplexed over a shared
	// transport (e.g. an HTTP/2 stream); its AH is still a private,
	// per-stream resource, but peer-quota accounting keys off the shared
	// transport, not the substream.
	RoleMuxSubstream
)

// Connection is the handle pkg/pool and pkg/parser act on. It is not
// safe for concurrent use by more than the one goroutine that owns the
// connection plus the pool's own internal bookkeeping (which only ever
// writes AH, and reads FDSSlot and Peer, while holding the pool's lock).
type Connection struct {
	// AH is the header buffer currently bound to this connection, or
	// nil if none is attached (parked on a wait list, or the connection
	// hasn't asked for one yet).
	AH *ah.AH

	// WaitNext is a next-link slot for a wait list of connections. The
	// pool does not set or read it: pkg/pool keeps its wait list in its
	// own waiter records.
	WaitNext *Connection

	// FDSSlot is this connection's position in the owning event loop's
	// file-descriptor table, mirroring lws's position_in_fds_table; the
	// pool uses it only to identify which socket to suppress/resume
	// read-readiness for while parked.
	FDSSlot int

	// Peer identifies the remote endpoint this connection quotas
	// against. Built with HostKey, not a raw address string, so two
	// connections from equivalent but differently-encoded hostnames
	// collide on the same quota bucket.
	Peer string

	IsServer       bool
	IsMuxSubstream bool
	Role           Role

	// HdrParsingCompleted mirrors lws's hdr_parsing_completed bit. Neither
	// pkg/parser nor pkg/pool sets or reads it; the parser reports
	// end-of-headers through Parser.Complete.
	HdrParsingCompleted bool
}

// EventLoop is the small collaborator interface the pool uses to
// suppress and resume a parked connection's read-readiness, following
// the teacher's pattern (transport.go's *net.Resolver) of naming an
// out-of-process dependency as a minimal interface rather than
// depending on a concrete event-loop package.
type EventLoop interface {
	// DisableRead stops delivering read-readiness for the connection at
	// the given fds slot; called when a connection is parked on the
	// wait list with no AH to parse into.
	DisableRead(fdsSlot int)
	// EnableRead resumes read-readiness once an AH has been handed to
	// the connection.
	EnableRead(fdsSlot int)
	// Requeue schedules the connection to be serviced again on the
	// event loop's own thread, used when an AH becomes available for a
	// waiter from a detach happening on a different thread/callback.
	Requeue(fdsSlot int)
}

// TimerService arms and disarms the idle-while-holding-an-AH timer.
// pkg/pool arms it on every attach or handoff and disarms it on detach,
// passing no duration: the timer's length and what happens on expiry
// are the collaborator's own policy. (The pool's HeldTooLong threshold
// is separate and only logs on detach.)
type TimerService interface {
	ArmIdleAH(fdsSlot int)
	Disarm(fdsSlot int)
}

// HostKey normalizes a peer-identifying hostname into the quota bucket
// key pkg/pool partitions per-peer AH limits on. IDNA-normalizes via
// golang.org/x/net/idna so "xn--..." and its Unicode form collide on the
// same bucket instead of silently doubling one peer's quota.
func HostKey(host string) string {
	key, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return key
}
