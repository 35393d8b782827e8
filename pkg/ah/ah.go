// Package ah implements the Allocated Header (C2): the fixed-capacity
// scratch buffer an HTTP/1 connection parses its request/response line
// and headers into. One AH is bound to at most one connection at a
// time; pkg/pool governs that binding. Grounded on
// _examples/original_source/lib/roles/http/parsers.c's
// allocated_headers struct and its _lws_create_ah / _lws_header_table_reset
// / lws_hdr_simple_create / issue_char functions (spec §3, §4.2).
package ah

import (
	"encoding/binary"

	"github.com/WhileEndless/hparsecore/pkg/constants"
	"github.com/WhileEndless/hparsecore/pkg/errors"
	"github.com/WhileEndless/hparsecore/pkg/token"
)

// ParserState names the header parser's (C4's) current position. Value
// states for a specific token are represented as valueStateBase + the
// token id, so the zero-allocation arithmetic in lws's
// "parser_state = WSI_TOKEN_GET_URI + n" carries over directly.
type ParserState int

const (
	// StateNamePart is collecting a header (or method/URI) name,
	// stepping C1 one byte at a time.
	StateNamePart ParserState = -6 + iota
	// StateSkipping discards the remainder of an unrecognized or
	// over-limit header's value.
	StateSkipping
	// StateSkippingSawCR is StateSkipping having just seen a bare CR,
	// expecting LF to end the line.
	StateSkippingSawCR
	// StateUnknownValuePart collects a custom header's value into the
	// side list described in spec §4.2.
	StateUnknownValuePart
	// StateChallenge is terminal: once a parser is in it, no further
	// header bytes are consumed. No code path in pkg/parser enters it;
	// header parsing ends at the blank line (StateComplete).
	StateChallenge
	// StateComplete is terminal: header parsing is done.
	StateComplete

	valueStateBase ParserState = 0
)

// ValueState returns the parser state for "collecting the value that
// follows token t's name" (or, for a method token, "collecting the
// URI/request-target that follows the method").
func ValueState(t token.Token) ParserState {
	return valueStateBase + ParserState(t)
}

// Token reports the token whose value state s represents, if s is a
// value state at all.
func (s ParserState) Token() (token.Token, bool) {
	if s >= valueStateBase && int(s) < token.Count {
		return token.Token(s), true
	}
	return 0, false
}

// Frag is one fragment record: a run of bytes in data, chained to the
// next fragment of the same token via NFrag (spec §3).
type Frag struct {
	Offset int
	Len    int
	NFrag  int // 0 = end of chain; index of next fragment otherwise
	Flags  FragFlags
}

// FragFlags carries fragment-level metadata. Percent-decoding's
// structural-suppression flag (spec §4.3) is resolved per byte at
// sanitize time and never needs to persist past that call, so it has
// no representation here.
type FragFlags uint8

const (
	// FlagQueryArg marks a fragment produced by the query-string
	// splitter rather than the bare request-target path.
	FlagQueryArg FragFlags = 1 << iota
)

// AH is the Allocated Header: a fixed-capacity buffer plus the cursors
// and fragment table describing what has been parsed into it so far.
// Exactly one goroutine — the one driving pkg/parser for the owning
// connection — may touch an AH's fields while InUse is true; pkg/pool
// is responsible for establishing that exclusivity, not AH itself.
type AH struct {
	Data []byte // capacity C, fixed for the pool's lifetime
	Pos  int    // next write index; invariant 0 <= Pos < len(Data)

	Frags [constants.MaxFrags]Frag
	NFrag int // index of the last fragment created; 0 = none

	FragIndex [token.Count]int // token -> head fragment index, or 0

	ParserState ParserState
	LexPos      int // cursor into pkg/lextable's table; -1 = left the automaton

	// URI sanitizer (C3) sub-states.
	PercentState PercentState
	PathState    PathState
	EscStash     byte // first hex nibble while percent-decoding

	CurrentTokenLimit int // 0 = unlimited up to len(Data)

	// Custom-header side list cursors (spec §4.2).
	UnkPos      int
	UnkLLHead   int
	UnkLLTail   int
	UnkValuePos int

	// PostLiteralEqual is set once a literal (non-percent-encoded) '='
	// has been seen in the current query-arg fragment; until then, a
	// percent-encoded '=' appearing in the key half is rewritten to
	// '_' by the URI sanitizer (spec §4.3).
	PostLiteralEqual bool

	InUse        bool
	AssignedAt   int64 // unix nanos; diagnostics only, owned by pkg/pool
	HTTPResponse int
}

// New allocates an AH with a data buffer of the given capacity.
func New(capacity int) *AH {
	a := &AH{Data: make([]byte, capacity)}
	a.Reset()
	return a
}

// Reset re-establishes the AH's invariants for a fresh parse. Data
// bytes are left untouched; only cursors and the fragment table are
// cleared (spec §4.2 "reset(ah)").
func (a *AH) Reset() {
	for i := range a.FragIndex {
		a.FragIndex[i] = 0
	}
	for i := range a.Frags {
		a.Frags[i] = Frag{}
	}
	a.NFrag = 0
	a.Pos = 0
	a.HTTPResponse = 0
	a.ParserState = StateNamePart
	a.LexPos = 0
	a.UnkPos = 0
	a.UnkLLHead = 0
	a.UnkLLTail = 0
	a.UnkValuePos = 0
	a.PercentState = PercentIdle
	a.PathState = PathIdle
	a.EscStash = 0
	a.PostLiteralEqual = false
}

// AppendByte writes c at Pos and advances it, attributing the byte to
// the fragment identified by fragIdx (the caller already opened or is
// continuing). It enforces CurrentTokenLimit: once the fragment's
// length equals the configured limit, it writes a terminating NUL and
// returns ErrTokenLimit so the caller can switch to StateSkipping,
// mirroring issue_char's overflow handling.
func (a *AH) AppendByte(fragIdx int, c byte) error {
	if a.Pos >= len(a.Data)-1 {
		return errors.NewParseError("ah.AppendByte", "header data buffer exhausted")
	}
	a.Data[a.Pos] = c
	a.Pos++
	if fragIdx > 0 {
		a.Frags[fragIdx].Len++
		if a.CurrentTokenLimit > 0 && a.Frags[fragIdx].Len >= a.CurrentTokenLimit {
			if a.Pos < len(a.Data) {
				a.Data[a.Pos] = 0
			}
			return ErrTokenLimit
		}
	}
	return nil
}

// OpenFragment starts a new fragment at the current write position for
// token t, chaining it onto any existing fragments for t, and returns
// the new fragment's index.
func (a *AH) OpenFragment(t token.Token, flags FragFlags) (int, error) {
	if a.NFrag+1 >= len(a.Frags) {
		return 0, errors.NewParseError("ah.OpenFragment", "fragment table exhausted")
	}
	a.NFrag++
	idx := a.NFrag
	a.Frags[idx] = Frag{Offset: a.Pos, Len: 0, NFrag: 0, Flags: flags}

	if head := a.FragIndex[t]; head == 0 {
		a.FragIndex[t] = idx
	} else {
		tail := head
		for a.Frags[tail].NFrag != 0 {
			tail = a.Frags[tail].NFrag
		}
		a.Frags[tail].NFrag = idx
	}
	return idx, nil
}

// CreateSimple sets token t's value to s in one step: an empty string
// clears the token (spec §4.2 create_simple), otherwise a single
// fragment is opened and s is appended including a trailing NUL (for
// C-string-style lookups by pkg/query).
func (a *AH) CreateSimple(t token.Token, s string) error {
	if s == "" {
		a.FragIndex[t] = 0
		return nil
	}
	idx, err := a.OpenFragment(t, 0)
	if err != nil {
		return err
	}
	for i := 0; i < len(s); i++ {
		if err := a.AppendByte(idx, s[i]); err != nil {
			return err
		}
	}
	return a.AppendByte(idx, 0)
}

// constants.UnknownHeaderPrefixLen bytes precede each side-list entry's
// name: u16 name_len, u16 value_len, u32 next_offset (big-endian), per
// spec §4.2. These are the field offsets within that prefix.
const (
	uhoNLen = 0
	uhoVLen = 2
	uhoLL   = 4
	uhoName = 8
)

// BeginUnknownHeader reserves an 8-byte zeroed prefix at the current
// write position for a prospective unknown-header side-list entry and
// advances Pos past it, returning the entry's offset. The entry is not
// linked into the side list here: a name that turns out to be a known
// header just rewinds Pos over the reservation. The name length field
// is filled in, and the entry linked, by SetUnknownHeaderNameLen once
// ':' is seen (at reservation time the name's extent isn't known yet).
func (a *AH) BeginUnknownHeader() (int, error) {
	entryOff := a.Pos
	need := constants.UnknownHeaderPrefixLen
	if entryOff+need > len(a.Data) {
		return 0, errors.NewParseError("ah.BeginUnknownHeader", "no room for custom header side-list entry")
	}
	binary.BigEndian.PutUint16(a.Data[entryOff+uhoNLen:], 0)
	binary.BigEndian.PutUint16(a.Data[entryOff+uhoVLen:], 0)
	binary.BigEndian.PutUint32(a.Data[entryOff+uhoLL:], 0)
	a.Pos += need
	return entryOff, nil
}

// SetUnknownHeaderNameLen rewrites the name-length prefix field once
// the name's actual extent is known (the parser reserves the prefix
// before the name has been fully read, then backfills this once ':'
// is seen) and appends the entry at entryOff to the side list.
// UnkLLHead == 0 means the list is empty, so an entry reserved at
// offset 0 is never reachable from it.
func (a *AH) SetUnknownHeaderNameLen(entryOff, nameLen int) {
	binary.BigEndian.PutUint16(a.Data[entryOff+uhoNLen:], uint16(nameLen))
	if a.UnkLLHead == 0 {
		a.UnkLLHead = entryOff
	} else {
		binary.BigEndian.PutUint32(a.Data[a.UnkLLTail+uhoLL:], uint32(entryOff))
	}
	a.UnkLLTail = entryOff
}

// FinishUnknownHeaderValue records the final value length for the
// side-list entry starting at entryOff, called at end-of-line for a
// custom header.
func (a *AH) FinishUnknownHeaderValue(entryOff, valueLen int) {
	binary.BigEndian.PutUint16(a.Data[entryOff+uhoVLen:], uint16(valueLen))
}

// UnknownHeaderNameLen, UnknownHeaderValueLen, and UnknownHeaderNext
// read a side-list entry's prefix fields.
func (a *AH) UnknownHeaderNameLen(entryOff int) int {
	return int(binary.BigEndian.Uint16(a.Data[entryOff+uhoNLen:]))
}
func (a *AH) UnknownHeaderValueLen(entryOff int) int {
	return int(binary.BigEndian.Uint16(a.Data[entryOff+uhoVLen:]))
}
func (a *AH) UnknownHeaderNext(entryOff int) int {
	return int(binary.BigEndian.Uint32(a.Data[entryOff+uhoLL:]))
}

// UnknownHeaderNameOffset and UnknownHeaderValueOffset locate the name
// and value bytes of a side-list entry relative to Data. The name is
// followed by the literal ':' byte the parser writes before the value
// (pkg/parser appends every NAME_PART byte, including the colon, before
// it recognizes the colon and switches to collecting the value), so the
// value itself starts one byte past the name's end.
func (a *AH) UnknownHeaderNameOffset(entryOff int) int {
	return entryOff + uhoName
}
func (a *AH) UnknownHeaderValueOffset(entryOff int) int {
	return entryOff + uhoName + a.UnknownHeaderNameLen(entryOff) + 1
}

// ErrTokenLimit is returned by AppendByte when a fragment has reached
// its configured per-token length limit; callers must stop writing
// further bytes into that fragment and transition to StateSkipping.
var ErrTokenLimit = errors.NewParseError("ah.AppendByte", "token length limit reached")
