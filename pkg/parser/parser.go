// Package parser implements the incremental HTTP/1 header parser (C4)
// and its URI sanitizer helper (C3). The parser consumes one input
// byte per call and never blocks; it is restartable at any byte
// boundary and keeps all of its state in the bound AH, so multiple
// Parser values can share a single goroutine across connections as
// long as each is paired with its own AH. Grounded on
// _examples/original_source/lib/roles/http/parsers.c's lws_parse
// (spec §4.4).
package parser

import (
	"strconv"

	"github.com/WhileEndless/hparsecore/pkg/ah"
	hpErrors "github.com/WhileEndless/hparsecore/pkg/errors"
	"github.com/WhileEndless/hparsecore/pkg/lextable"
	"github.com/WhileEndless/hparsecore/pkg/token"
)

const uriArgsToken = token.URIArgs

// Result is the parser's per-call verdict.
type Result int

const (
	// OK means the byte (and any bytes before it) were consumed
	// without error; parsing may or may not have reached end-of-headers
	// (check Parser.Complete()).
	OK Result = iota
	// Fail is a fatal parse error; the connection should be closed.
	Fail
	// Forbidden means the parser detected a malformed request that
	// warrants a 403 response; the connection should be closed after
	// that response is sent.
	Forbidden
	// DoFallback means the server should switch this connection to a
	// non-HTTP role, preserving whatever has already been read.
	DoFallback
)

// Config controls role-dependent behavior that isn't part of the AH's
// own persisted state.
type Config struct {
	// IsServer marks an HTTP/1 server-role connection; only servers
	// enforce "first header line must be a known method".
	IsServer bool
	// IsMuxSubstream marks an HTTP/2 mux substream; several server-only
	// behaviors (unknown-header speculative storage, method-table
	// fallback) do not apply to substreams (spec's supplemented
	// feature list; parsers.c branches identically on wsi->mux_substream).
	IsMuxSubstream bool
	// AllowFallback permits returning DoFallback instead of Forbidden
	// when an HTTP/1 server can't recognize the request's method.
	AllowFallback bool
	// CustomHeadersEnabled turns on the unknown-header side list.
	CustomHeadersEnabled bool
	// TokenLimit returns the maximum fragment length for t, or 0 for
	// unlimited (bounded only by the AH's data capacity). A nil
	// TokenLimit means every token is unlimited.
	TokenLimit func(t token.Token) int
}

// Parser drives one AH's state machine. It holds no bytes of its own:
// everything restartable lives in the AH so pkg/pool can hand the same
// AH to a different Parser value (e.g. after a process restart of the
// driving goroutine) without losing progress.
type Parser struct {
	ah  *ah.AH
	lex *lextable.Table
	cfg Config

	// wsVersion and upgradeSeen are derived at end-of-headers from the
	// Sec-WebSocket-Version and Upgrade fragments; they aren't part of
	// the AH's own persisted cursor set because nothing needs them
	// mid-parse.
	wsVersion   int
	upgradeSeen bool
}

// New creates a Parser bound to a (already Reset) AH.
func New(a *ah.AH, lex *lextable.Table, cfg Config) *Parser {
	return &Parser{ah: a, lex: lex, cfg: cfg}
}

// Complete reports whether end-of-headers has been reached.
func (p *Parser) Complete() bool {
	return p.ah.ParserState == ah.StateComplete
}

// WebSocketVersion returns the numeric Sec-WebSocket-Version seen at
// end-of-headers, if an Upgrade token was present and the version
// parsed as a plain integer. ok is false otherwise.
func (p *Parser) WebSocketVersion() (version int, ok bool) {
	return p.wsVersion, p.upgradeSeen
}

func (p *Parser) tokenLimit(t token.Token) int {
	if p.cfg.TokenLimit == nil {
		return 0
	}
	return p.cfg.TokenLimit(t)
}

// Byte feeds one input byte to the parser.
func (p *Parser) Byte(c byte) (Result, error) {
	a := p.ah

	switch a.ParserState {
	case ah.StateComplete, ah.StateChallenge:
		return OK, nil
	case ah.StateNamePart:
		return p.byteNamePart(c)
	case ah.StateSkipping:
		return p.byteSkipping(c)
	case ah.StateSkippingSawCR:
		return p.byteSkippingSawCR(c)
	case ah.StateUnknownValuePart:
		return p.byteUnknownValuePart(c)
	default:
		tok, ok := a.ParserState.Token()
		if !ok {
			return Fail, errInvalidState
		}
		return p.byteValue(tok, c)
	}
}

// byteNamePart implements spec §4.4's NAME_PART algorithm.
func (p *Parser) byteNamePart(c byte) (Result, error) {
	a := p.ah

	if a.UnkPos == 0 && c == '\n' {
		return p.finishHeaders()
	}

	// A CR arriving as the first byte of a prospective new name is the
	// start of the blank line ending the headers (a well-formed peer
	// sends CRLF there, not a bare LF). Swallow it without starting a
	// speculative name so the following LF hits the check above.
	if a.UnkPos == 0 && c == '\r' {
		return OK, nil
	}

	if c >= 'A' && c <= 'Z' {
		c = c + 'a' - 'A'
	}

	firstNameByte := a.UnkPos == 0
	if !p.cfg.IsMuxSubstream && firstNameByte {
		a.UnkPos = a.Pos
		if p.cfg.CustomHeadersEnabled {
			if _, err := a.BeginUnknownHeader(); err != nil {
				return Fail, err
			}
		}
	}

	if err := a.AppendByte(0, c); err != nil {
		return Fail, err
	}

	next, alive := p.lex.Walk(a.LexPos, c)
	a.LexPos = next

	if c == ':' && !alive && p.cfg.CustomHeadersEnabled && !p.cfg.IsMuxSubstream {
		nameLen := (a.Pos - 1) - a.UnknownHeaderNameOffset(a.UnkPos)
		a.SetUnknownHeaderNameLen(a.UnkPos, nameLen)
		a.UnkValuePos = a.Pos
		a.ParserState = ah.StateUnknownValuePart
		return OK, nil
	}

	if alive {
		if tok, terminal := p.lex.Lookup(a.LexPos); terminal {
			a.Pos = a.UnkPos
			a.UnkPos = 0

			if token.IsMethod(tok) && a.FragIndex[tok] != 0 {
				return Fail, errDuplicateMethod
			}

			a.ParserState = ah.ValueState(resolveAlias(tok))
			a.CurrentTokenLimit = p.tokenLimit(resolveAlias(tok))
			if _, err := a.OpenFragment(resolveAlias(tok), 0); err != nil {
				return Fail, err
			}
		}
		return OK, nil
	}

	// The automaton left the recognizable set.
	haveMethod := false
	for _, m := range token.Methods() {
		if a.FragIndex[m] != 0 {
			haveMethod = true
			break
		}
	}

	if p.cfg.IsServer && !haveMethod {
		if p.cfg.AllowFallback {
			return DoFallback, nil
		}
		return Forbidden, nil
	}

	if p.cfg.CustomHeadersEnabled && !p.cfg.IsMuxSubstream {
		// Not a header we know about; keep collecting it as an unknown
		// header name until ':' arrives (handled above on a future
		// call once alive stays false and c == ':').
		return OK, nil
	}

	a.ParserState = ah.StateSkipping
	return OK, nil
}

// resolveAlias maps the legacy X-WebSocket-Origin name onto Origin
// before a fragment is opened, so Query-API callers never need to know
// the legacy spelling existed (supplemented feature; see SPEC_FULL.md).
func resolveAlias(t token.Token) token.Token {
	if t == token.SecWebSocketOriginLegacy {
		return token.Origin
	}
	return t
}

// byteValue implements the "known value state" algorithm, including
// the method-URI special case that invokes C3.
func (p *Parser) byteValue(tok token.Token, c byte) (Result, error) {
	a := p.ah
	curLen := a.Frags[a.FragIndex[tok]].Len

	if curLen == 0 && c == ' ' {
		return OK, nil
	}

	if token.IsMethod(tok) {
		if c == ' ' {
			if a.Frags[a.NFrag].Len == 0 {
				if err := appendRaw(a, '/'); err != nil {
					return Fail, err
				}
			}
			if a.PathState == ah.PathSeenSlashDotDot {
				rewindPathSegment(a)
			}
			closeFragmentWithNUL(a)
			a.ParserState = ah.ValueState(token.HTTPVersion)
			if _, err := a.OpenFragment(token.HTTPVersion, 0); err != nil {
				return Fail, err
			}
			return OK, nil
		}

		out, action := sanitizeURIByte(a, c)
		switch action {
		case URISwallow:
			return p.afterSwallowCheckEOL(tok)
		case URIForbid:
			return Forbidden, nil
		case URIFail, URIExcessive:
			return Fail, nil
		}
		c = out
		return p.emitValueByte(tok, c)
	}

	return p.emitValueByte(tok, c)
}

// afterSwallowCheckEOL mirrors the "check_eol" label reachable from the
// swallow path in lws_parse: even a swallowed byte must still be
// checked for being the end of line so CRLF-terminated URIs without a
// trailing space don't hang forever. In this implementation the
// swallow cases that matter (percent-decode mid-sequence, internal
// structural splits) never themselves present CR/LF to the sanitizer
// as the triggering byte, so there is nothing further to do here; it
// exists as a named seam matching the C control flow for readers
// tracing the two implementations side by side.
func (p *Parser) afterSwallowCheckEOL(tok token.Token) (Result, error) {
	return OK, nil
}

// emitValueByte appends c to tok's value fragment, handling CR/LF
// close, the token-limit overflow transition, and the NUL-counting
// asymmetry between URI-args fragments and everything else.
func (p *Parser) emitValueByte(tok token.Token, c byte) (Result, error) {
	a := p.ah

	if a.ParserState != ah.StateChallenge && (c == '\r' || c == '\n') {
		if a.PercentState != ah.PercentIdle {
			return Forbidden, nil
		}
		if c == '\n' {
			a.ParserState = ah.StateNamePart
			a.UnkPos = 0
			a.LexPos = 0
			return OK, nil
		}
		a.ParserState = ah.StateSkippingSawCR
		c = 0
	}

	// Bytes always land in the current (last-opened) fragment, exactly
	// like issue_char: once the query splitter has opened further
	// fragments for a method-URI value, frag_index[tok] still names the
	// first (path) fragment, but writes continue into a.NFrag.
	fragIdx := a.NFrag
	err := a.AppendByte(fragIdx, c)
	if err == ah.ErrTokenLimit {
		a.ParserState = ah.StateSkipping
		return OK, nil
	}
	if err != nil {
		return Fail, err
	}

	// A percent-decoded NUL inside a query-arg fragment is data and stays
	// counted; any other NUL here is the uncounted safety terminator.
	if c == 0 && (a.Frags[fragIdx].Flags&ah.FlagQueryArg == 0 || a.ParserState == ah.StateSkippingSawCR) {
		a.Frags[fragIdx].Len--
	}

	if a.ParserState == ah.StateChallenge {
		return p.finishHeaders()
	}
	return OK, nil
}

func (p *Parser) byteUnknownValuePart(c byte) (Result, error) {
	a := p.ah

	if a.Pos == a.UnkValuePos && (c == ' ' || c == '\t') {
		return OK, nil
	}

	if c == '\r' || c == '\n' {
		valueLen := a.Pos - a.UnkValuePos
		a.FinishUnknownHeaderValue(a.UnkPos, valueLen)
		if c == '\n' {
			a.ParserState = ah.StateNamePart
			a.LexPos = 0
			return OK, nil
		}
		a.ParserState = ah.StateSkippingSawCR
		return OK, nil
	}

	// Custom header values belong to no fragment; their length lives
	// only in the side-list prefix.
	if err := a.AppendByte(0, c); err != nil {
		return Fail, err
	}
	return OK, nil
}

func (p *Parser) byteSkipping(c byte) (Result, error) {
	a := p.ah
	switch c {
	case '\r':
		a.ParserState = ah.StateSkippingSawCR
	case '\n':
		a.ParserState = ah.StateNamePart
		a.UnkPos = 0
		a.LexPos = 0
	}
	return OK, nil
}

func (p *Parser) byteSkippingSawCR(c byte) (Result, error) {
	a := p.ah
	if c == '\n' {
		a.ParserState = ah.StateNamePart
		a.UnkPos = 0
		a.LexPos = 0
		return OK, nil
	}
	// Anything other than LF after a lone CR restarts skipping on this
	// same byte (a peer that sends a bare CR mid-value is tolerated,
	// not fatal).
	a.ParserState = ah.StateSkipping
	return p.byteSkipping(c)
}

// finishHeaders implements spec §4.4's "End-of-headers" paragraph.
func (p *Parser) finishHeaders() (Result, error) {
	a := p.ah

	if a.PercentState != ah.PercentIdle {
		return Forbidden, nil
	}

	if a.FragIndex[token.Upgrade] != 0 {
		if idx := a.FragIndex[token.SecWebSocketVersion]; idx != 0 {
			f := a.Frags[idx]
			s := string(a.Data[f.Offset : f.Offset+f.Len])
			if v, err := strconv.Atoi(s); err == nil {
				p.wsVersion = v
				p.upgradeSeen = true
			}
		}
	}

	a.ParserState = ah.StateComplete
	return OK, nil
}

var (
	errInvalidState    = hpErrors.NewParseError("parser.Byte", "ah parser_state does not resolve to any known state or token")
	errDuplicateMethod = hpErrors.NewParseError("parser.Byte", "duplicate method token in request line")
)
