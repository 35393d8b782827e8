// Package constants defines magic numbers and default values used throughout hparsecore.
package constants

import "time"

// AH pool limits (spec §4.5, §6 configuration table)
const (
	// DefaultMaxHTTPHeaderPool is the default per-thread cap on AHs
	// ("max_http_header_pool"). Attach parks the connection once the
	// pool holds this many in-use AHs.
	DefaultMaxHTTPHeaderPool = 128

	// DefaultMaxHTTPHeaderData is C, the AH scratch buffer capacity in
	// bytes ("max_http_header_data"). When parser.Config.TokenLimit is
	// nil, a token is bounded only by this buffer size.
	DefaultMaxHTTPHeaderData = 4096

	// DefaultPerPeerAHLimit is the default cap on AHs a single peer may
	// hold across all its connections on a thread. Zero means unlimited.
	DefaultPerPeerAHLimit = 0
)

// Timeouts
const (
	// DefaultTimeoutSecsAHIdle is how long a connection may hold an AH
	// without completing header parsing before the timer service should
	// close it.
	DefaultTimeoutSecsAHIdle = 30 * time.Second

	// HeldTooLongThreshold is the diagnostic-only "held an AH
	// unreasonably long" warning threshold.
	HeldTooLongThreshold = 3 * time.Second
)

// Fragment / buffer bounds
const (
	// MaxFrags is the fixed size of an AH's fragment table.
	MaxFrags = 50

	// UnknownHeaderPrefixLen is the size in bytes of a custom-header
	// side-list entry prefix: u16 name_len, u16 value_len, u32 next_offset.
	UnknownHeaderPrefixLen = 8
)
