// Package token defines the closed token-id enumeration the parse core
// recognizes: method-URI states, known header names, and parser
// meta-states. This is the Go equivalent of the WSI_TOKEN_* enumeration in
// the libwebsockets C source this spec was distilled from
// (_examples/original_source/lib/roles/http/parsers.c).
package token

// Token is a small integer naming a known header, method-URI state, or
// parser meta-state (spec §3 "Token id space").
type Token int

// Method-URI tokens. Once the lex automaton (pkg/lextable) recognizes a
// method name, the parser's state becomes "collect the URI for this
// method" — these tokens double as both "this request used method X" and
// "the fragment holding its URI".
const (
	GetURI Token = iota
	PostURI
	OptionsURI
	PutURI
	PatchURI
	DeleteURI
	Connect
	HeadURI

	// Known header tokens.
	Host
	Connection
	Upgrade
	Origin
	// SecWebSocketOriginLegacy is the old "X-WebSocket-Origin" name some
	// peers (JWebSocket in particular) send instead of Origin. The
	// parser aliases a match of this token onto Origin before fragment
	// creation (SPEC_FULL.md §4 item 1).
	SecWebSocketOriginLegacy
	SecWebSocketKey
	SecWebSocketVersion
	SecWebSocketProtocol
	SecWebSocketExtensions
	SecWebSocketAccept
	Cookie
	SetCookie
	Accept
	AcceptLanguage
	AcceptEncoding
	ContentLength
	ContentType
	TransferEncoding
	UserAgent
	Referer
	Authorization
	Range
	IfModifiedSince
	IfNoneMatch
	CacheControl
	Pragma
	Date
	XForwardedFor

	// URIArgs holds the query-string fragments split out by the URI
	// sanitizer (spec §4.3 "Query split").
	URIArgs

	// HTTPVersion holds the request line's "HTTP/x.y" fragment.
	HTTPVersion

	// Challenge is the token slot for the WebSocket handshake's
	// key-challenge value. No pkg/lextable entry maps a name to it, so
	// the parser never enters its value state; header parsing ends at
	// the blank line.
	Challenge

	// ColonMethod is the HTTP/2 ":method" pseudo-header token slot. Its
	// presence distinguishes the H2-style cookie layout (multiple
	// per-stream cookie fragments) from the H1 single semicolon-joined
	// fragment (spec §4.6 cookie_get; SPEC_FULL.md §4 item 5). This core
	// is H1-only and never sets it itself, but pkg/query keeps the
	// branch so an H2 mux-substream adaptation layer can populate it.
	ColonMethod
)

// Count is the number of real (non-meta) tokens; an AH's frag_index
// array is sized to it. Meta parser states (NAME_PART, SKIPPING, ...)
// live in pkg/ah (ah.ParserState) in a disjoint, negative range so they
// never collide with a real token id.
const Count = int(ColonMethod) + 1

var names = map[Token]string{
	GetURI: "GET_URI", PostURI: "POST_URI", OptionsURI: "OPTIONS_URI",
	PutURI: "PUT_URI", PatchURI: "PATCH_URI", DeleteURI: "DELETE_URI",
	Connect: "CONNECT", HeadURI: "HEAD_URI",
	Host: "Host", Connection: "Connection", Upgrade: "Upgrade",
	Origin: "Origin", SecWebSocketOriginLegacy: "X-WebSocket-Origin",
	SecWebSocketKey: "Sec-WebSocket-Key", SecWebSocketVersion: "Sec-WebSocket-Version",
	SecWebSocketProtocol: "Sec-WebSocket-Protocol", SecWebSocketExtensions: "Sec-WebSocket-Extensions",
	SecWebSocketAccept: "Sec-WebSocket-Accept",
	Cookie:             "Cookie", SetCookie: "Set-Cookie",
	Accept: "Accept", AcceptLanguage: "Accept-Language", AcceptEncoding: "Accept-Encoding",
	ContentLength: "Content-Length", ContentType: "Content-Type", TransferEncoding: "Transfer-Encoding",
	UserAgent: "User-Agent", Referer: "Referer", Authorization: "Authorization",
	Range: "Range", IfModifiedSince: "If-Modified-Since", IfNoneMatch: "If-None-Match",
	CacheControl: "Cache-Control", Pragma: "Pragma", Date: "Date",
	XForwardedFor: "X-Forwarded-For",
	URIArgs:       "<uri-args>", HTTPVersion: "<http-version>",
	Challenge: "<challenge>", ColonMethod: ":method",
}

// String returns the canonical header name (or a synthetic placeholder
// for pseudo-tokens), for diagnostics and tests.
func (t Token) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return "<unknown-token>"
}

// methods lists the method-URI tokens, mirroring parsers.c's methods[]
// table used for duplicate-method detection and the server
// unrecognized-method fallback check.
var methods = [...]Token{GetURI, PostURI, OptionsURI, PutURI, PatchURI, DeleteURI, Connect, HeadURI}

// IsMethod reports whether t is one of the method-URI tokens.
func IsMethod(t Token) bool {
	for _, m := range methods {
		if m == t {
			return true
		}
	}
	return false
}

// Methods returns the closed set of method-URI tokens.
func Methods() []Token {
	out := make([]Token, len(methods))
	copy(out, methods[:])
	return out
}
