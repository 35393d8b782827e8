package parser

import (
	"testing"

	"github.com/WhileEndless/hparsecore/pkg/ah"
	"github.com/WhileEndless/hparsecore/pkg/lextable"
	"github.com/WhileEndless/hparsecore/pkg/token"
)

func feed(t *testing.T, p *Parser, s string) Result {
	t.Helper()
	for i := 0; i < len(s); i++ {
		res, err := p.Byte(s[i])
		if err != nil {
			t.Fatalf("Byte(%q) at %d: %v", s[i], i, err)
		}
		if res != OK {
			return res
		}
	}
	return OK
}

func newTestParser(cfg Config) (*Parser, *ah.AH) {
	a := ah.New(4096)
	p := New(a, lextable.Default(), cfg)
	return p, a
}

func TestSimpleGetRequest(t *testing.T) {
	p, a := newTestParser(Config{IsServer: true, CustomHeadersEnabled: true})
	req := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	if res := feed(t, p, req); res != OK {
		t.Fatalf("feed: unexpected result %v", res)
	}
	if !p.Complete() {
		t.Fatalf("expected header parsing to be complete")
	}

	pathIdx := a.FragIndex[token.GetURI]
	if pathIdx == 0 {
		t.Fatalf("expected a GET URI fragment")
	}
	f := a.Frags[pathIdx]
	if got := string(a.Data[f.Offset : f.Offset+f.Len]); got != "/index.html" {
		t.Fatalf("URI fragment = %q, want %q", got, "/index.html")
	}

	hostIdx := a.FragIndex[token.Host]
	if hostIdx == 0 {
		t.Fatalf("expected a Host fragment")
	}
	hf := a.Frags[hostIdx]
	if got := string(a.Data[hf.Offset : hf.Offset+hf.Len]); got != "example.com" {
		t.Fatalf("Host fragment = %q, want %q", got, "example.com")
	}
}

func TestQueryStringSplit(t *testing.T) {
	p, a := newTestParser(Config{IsServer: true})
	req := "GET /search?q=go&lang=en HTTP/1.1\r\n\r\n"
	if res := feed(t, p, req); res != OK {
		t.Fatalf("feed: unexpected result %v", res)
	}

	pathIdx := a.FragIndex[token.GetURI]
	pf := a.Frags[pathIdx]
	if got := string(a.Data[pf.Offset : pf.Offset+pf.Len]); got != "/search" {
		t.Fatalf("path fragment = %q, want %q", got, "/search")
	}

	argIdx := a.FragIndex[token.URIArgs]
	if argIdx == 0 {
		t.Fatalf("expected a URI-args fragment")
	}
	af := a.Frags[argIdx]
	if got := string(a.Data[af.Offset : af.Offset+af.Len]); got != "q=go" {
		t.Fatalf("first query fragment = %q, want %q", got, "q=go")
	}
	next := a.Frags[argIdx].NFrag
	if next == 0 {
		t.Fatalf("expected a second query-arg fragment")
	}
	nf := a.Frags[next]
	if got := string(a.Data[nf.Offset : nf.Offset+nf.Len]); got != "lang=en" {
		t.Fatalf("second query fragment = %q, want %q", got, "lang=en")
	}
}

func TestPercentDecoding(t *testing.T) {
	p, a := newTestParser(Config{IsServer: true})
	req := "GET /a%20b HTTP/1.1\r\n\r\n"
	if res := feed(t, p, req); res != OK {
		t.Fatalf("feed: unexpected result %v", res)
	}
	pathIdx := a.FragIndex[token.GetURI]
	pf := a.Frags[pathIdx]
	if got := string(a.Data[pf.Offset : pf.Offset+pf.Len]); got != "/a b" {
		t.Fatalf("path fragment = %q, want %q", got, "/a b")
	}
}

func TestPathDotDotRewind(t *testing.T) {
	p, a := newTestParser(Config{IsServer: true})
	req := "GET /a/b/../c HTTP/1.1\r\n\r\n"
	if res := feed(t, p, req); res != OK {
		t.Fatalf("feed: unexpected result %v", res)
	}
	pathIdx := a.FragIndex[token.GetURI]
	pf := a.Frags[pathIdx]
	if got := string(a.Data[pf.Offset : pf.Offset+pf.Len]); got != "/a/c" {
		t.Fatalf("path fragment = %q, want %q", got, "/a/c")
	}
}

func TestBadPercentEncodingIsForbidden(t *testing.T) {
	p, _ := newTestParser(Config{IsServer: true})
	res := feed(t, p, "GET /a%zz HTTP/1.1\r\n\r\n")
	if res != Forbidden {
		t.Fatalf("expected Forbidden for invalid percent-encoding, got %v", res)
	}
}

func TestNULInPathFailsWithoutForbidding(t *testing.T) {
	p, _ := newTestParser(Config{IsServer: true})
	res := feed(t, p, "GET /%00 HTTP/1.1\r\n\r\n")
	if res != Fail {
		t.Fatalf("expected Fail for a NUL byte in the path (not Forbidden), got %v", res)
	}
}

func TestDuplicateMethodFails(t *testing.T) {
	p, a := newTestParser(Config{IsServer: true})
	// Feed a method line, then force the parser back to NAME_PART
	// without a real reset (simulating a buggy caller or a malformed
	// pipelined request) and feed a second method token; the AH still
	// carries the first method's fragment, so the duplicate must be
	// rejected.
	if res := feed(t, p, "GET /a "); res != OK {
		t.Fatalf("first method line: unexpected result %v", res)
	}
	if a.FragIndex[token.GetURI] == 0 {
		t.Fatalf("expected GET to be recorded before forcing a second method")
	}
	a.ParserState = ah.StateNamePart
	a.UnkPos = 0
	a.LexPos = 0

	// A second occurrence of the *same* method token (not a different
	// one) is what the duplicate-method guard rejects.
	res, err := feedErr(p, "GET ")
	if err == nil || res != Fail {
		t.Fatalf("expected Fail on a duplicate method token, got result=%v err=%v", res, err)
	}
}

// feedErr is like feed but surfaces the first non-OK result or error
// without failing the test itself, for cases exercising a deliberate
// failure path.
func feedErr(p *Parser, s string) (Result, error) {
	for i := 0; i < len(s); i++ {
		res, err := p.Byte(s[i])
		if err != nil {
			return res, err
		}
		if res != OK {
			return res, nil
		}
	}
	return OK, nil
}

func TestCustomHeaderSideList(t *testing.T) {
	p, a := newTestParser(Config{IsServer: true, CustomHeadersEnabled: true})
	req := "GET / HTTP/1.1\r\nX-Custom: hello\r\n\r\n"
	if res := feed(t, p, req); res != OK {
		t.Fatalf("feed: unexpected result %v", res)
	}
	if a.UnkLLHead == 0 {
		t.Fatalf("expected a custom header side-list entry")
	}
	nameOff := a.UnknownHeaderNameOffset(a.UnkLLHead)
	nameLen := a.UnknownHeaderNameLen(a.UnkLLHead)
	if got := string(a.Data[nameOff : nameOff+nameLen]); got != "x-custom" {
		t.Fatalf("custom header name = %q, want %q", got, "x-custom")
	}
	valOff := a.UnknownHeaderValueOffset(a.UnkLLHead)
	valLen := a.UnknownHeaderValueLen(a.UnkLLHead)
	if got := string(a.Data[valOff : valOff+valLen]); got != "hello" {
		t.Fatalf("custom header value = %q, want %q", got, "hello")
	}
}

func TestUnknownMethodForbiddenWithoutFallback(t *testing.T) {
	p, _ := newTestParser(Config{IsServer: true})
	res := feed(t, p, "FROB / HTTP/1.1\r\n\r\n")
	if res != Forbidden {
		t.Fatalf("expected Forbidden for an unrecognized method, got %v", res)
	}
}

func TestUnknownMethodFallsBackWhenAllowed(t *testing.T) {
	p, _ := newTestParser(Config{IsServer: true, AllowFallback: true})
	res := feed(t, p, "FROB / HTTP/1.1\r\n\r\n")
	if res != DoFallback {
		t.Fatalf("expected DoFallback, got %v", res)
	}
}

func TestTokenLimitOverflowSwitchesToSkipping(t *testing.T) {
	cfg := Config{
		IsServer: true,
		TokenLimit: func(t token.Token) int {
			if t == token.UserAgent {
				return 4
			}
			return 0
		},
	}
	p, a := newTestParser(cfg)
	req := "GET / HTTP/1.1\r\nUser-Agent: way-too-long-value\r\nHost: x\r\n\r\n"
	if res := feed(t, p, req); res != OK {
		t.Fatalf("feed: unexpected result %v", res)
	}
	idx := a.FragIndex[token.UserAgent]
	if idx == 0 {
		t.Fatalf("expected a User-Agent fragment even though it overflowed")
	}
	if a.Frags[idx].Len > 4 {
		t.Fatalf("User-Agent fragment length %d exceeds configured limit 4", a.Frags[idx].Len)
	}
	// Host must still parse correctly after skipping the rest of the
	// oversized User-Agent value.
	hostIdx := a.FragIndex[token.Host]
	if hostIdx == 0 {
		t.Fatalf("expected Host to still be parsed after the overflowing header")
	}
}

func TestOriginLegacyAliasesToOrigin(t *testing.T) {
	p, a := newTestParser(Config{IsServer: true})
	req := "GET / HTTP/1.1\r\nX-WebSocket-Origin: http://example.com\r\n\r\n"
	if res := feed(t, p, req); res != OK {
		t.Fatalf("feed: unexpected result %v", res)
	}
	idx := a.FragIndex[token.Origin]
	if idx == 0 {
		t.Fatalf("expected the legacy X-WebSocket-Origin header to alias onto Origin")
	}
}
