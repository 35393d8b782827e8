// Package query implements the AH's read-side operations (C6): walking
// an already-parsed header's fragment chain, reassembling it with the
// right delimiter, and the custom-header side-list lookups. Grounded on
// _examples/original_source/lib/roles/http/parsers.c's
// lws_hdr_fragment_length / lws_hdr_total_length / lws_hdr_copy_fragment
// / lws_hdr_copy / lws_hdr_custom_length / lws_hdr_custom_copy /
// lws_hdr_custom_name_foreach / lws_hdr_simple_ptr / lws_http_cookie_get.
package query

import (
	"strings"

	"github.com/WhileEndless/hparsecore/pkg/ah"
	"github.com/WhileEndless/hparsecore/pkg/token"
)

// joinDelimiter picks the byte lws_hdr_copy inserts between fragments of
// a multi-fragment header: semicolon for the two cookie headers,
// ampersand for the query-arg chain, comma for everything else.
func joinDelimiter(t token.Token) byte {
	switch t {
	case token.Cookie, token.SetCookie:
		return ';'
	case token.URIArgs:
		return '&'
	default:
		return ','
	}
}

// FragmentLength returns the length of the fragIdx'th fragment (0-based)
// in token t's chain, or 0 if t has no fragments or fragIdx is out of
// range.
func FragmentLength(a *ah.AH, t token.Token, fragIdx int) int {
	n := a.FragIndex[t]
	if n == 0 {
		return 0
	}
	for {
		if fragIdx == 0 {
			return a.Frags[n].Len
		}
		n = a.Frags[n].NFrag
		fragIdx--
		if n == 0 {
			return 0
		}
	}
}

// TotalLength returns the combined length token t would occupy once its
// fragments are joined with their delimiter: the sum of every fragment's
// length plus one separator byte between each pair.
func TotalLength(a *ah.AH, t token.Token) int {
	n := a.FragIndex[t]
	if n == 0 {
		return 0
	}
	length := 0
	for n != 0 {
		length += a.Frags[n].Len
		n = a.Frags[n].NFrag
		if n != 0 {
			length++
		}
	}
	return length
}

// CopyFragment returns the fragIdx'th fragment of token t's chain as its
// own string, with no delimiter joining. Reports ok=false if t has no
// such fragment.
func CopyFragment(a *ah.AH, t token.Token, fragIdx int) (s string, ok bool) {
	n := a.FragIndex[t]
	if n == 0 {
		return "", false
	}
	for i := 0; i < fragIdx; i++ {
		n = a.Frags[n].NFrag
		if n == 0 {
			return "", false
		}
	}
	f := a.Frags[n]
	return string(a.Data[f.Offset : f.Offset+f.Len]), true
}

// Copy reassembles every fragment of token t, joined by the delimiter
// joinDelimiter selects for t, exactly as lws_hdr_copy presents a
// multi-fragment header as one logical value to the caller.
func Copy(a *ah.AH, t token.Token) (s string, ok bool) {
	n := a.FragIndex[t]
	if n == 0 {
		return "", false
	}
	sep := joinDelimiter(t)
	var b strings.Builder
	for n != 0 {
		f := a.Frags[n]
		b.Write(a.Data[f.Offset : f.Offset+f.Len])
		n = a.Frags[n].NFrag
		if n != 0 {
			b.WriteByte(sep)
		}
	}
	return b.String(), true
}

// SimplePtr returns the first fragment of token t's chain verbatim, with
// no delimiter joining — the Go analog of lws_hdr_simple_ptr's raw
// pointer into the AH buffer.
func SimplePtr(a *ah.AH, t token.Token) (s string, ok bool) {
	n := a.FragIndex[t]
	if n == 0 {
		return "", false
	}
	f := a.Frags[n]
	return string(a.Data[f.Offset : f.Offset+f.Len]), true
}

// CustomLength returns the value length of the custom (non-token) header
// named name, case-sensitively as stored, or -1 if absent. Mirrors
// lws_hdr_custom_length's "not available for a mux substream" rule: a
// mux substream's custom headers arrive as HPACK-decoded name/value
// pairs the higher-level role owns, not through this AH side list.
func CustomLength(a *ah.AH, isMuxSubstream bool, name string) int {
	if isMuxSubstream {
		return -1
	}
	ll := a.UnkLLHead
	for ll != 0 {
		nlen := a.UnknownHeaderNameLen(ll)
		if nlen == len(name) {
			off := a.UnknownHeaderNameOffset(ll)
			if string(a.Data[off:off+nlen]) == name {
				return a.UnknownHeaderValueLen(ll)
			}
		}
		ll = a.UnknownHeaderNext(ll)
	}
	return -1
}

// CustomCopy returns the value of the custom header named name.
func CustomCopy(a *ah.AH, isMuxSubstream bool, name string) (s string, ok bool) {
	if isMuxSubstream {
		return "", false
	}
	ll := a.UnkLLHead
	for ll != 0 {
		nlen := a.UnknownHeaderNameLen(ll)
		if nlen == len(name) {
			off := a.UnknownHeaderNameOffset(ll)
			if string(a.Data[off:off+nlen]) == name {
				vlen := a.UnknownHeaderValueLen(ll)
				voff := a.UnknownHeaderValueOffset(ll)
				return string(a.Data[voff : voff+vlen]), true
			}
		}
		ll = a.UnknownHeaderNext(ll)
	}
	return "", false
}

// CustomNameForEach calls fn once per custom header name recorded in the
// side list, in the order they were parsed.
func CustomNameForEach(a *ah.AH, isMuxSubstream bool, fn func(name string)) {
	if isMuxSubstream {
		return
	}
	ll := a.UnkLLHead
	for ll != 0 {
		off := a.UnknownHeaderNameOffset(ll)
		nlen := a.UnknownHeaderNameLen(ll)
		fn(string(a.Data[off : off+nlen]))
		ll = a.UnknownHeaderNext(ll)
	}
}

// CookieGet looks up cookie name in the AH's Cookie header, using
// whichever of lws's two cookie-parsing algorithms applies:
//
//   - when isMuxSubstream is true or a :method pseudo-header token is
//     present, each cookie pair arrives as its own fragment in the
//     Cookie chain (the H2 way, one "name=value" per fragment, no
//     semicolons);
//   - otherwise the whole Cookie header is one semicolon-delimited H1
//     string and is scanned byte-by-byte for a "name=" that starts the
//     string or follows a ';' or a space.
func CookieGet(a *ah.AH, isMuxSubstream bool, name string) (value string, ok bool) {
	if TotalLength(a, token.Cookie) < len(name)+1 {
		return "", false
	}

	if isMuxSubstream || a.FragIndex[token.ColonMethod] != 0 {
		n := a.FragIndex[token.Cookie]
		for n != 0 {
			f := a.Frags[n]
			frag := a.Data[f.Offset : f.Offset+f.Len]
			if len(frag) >= len(name)+1 && frag[len(name)] == '=' && string(frag[:len(name)]) == name {
				return string(frag[len(name)+1:]), true
			}
			n = a.Frags[n].NFrag
		}
		return "", false
	}

	// The H1 way: the whole Cookie header is one semicolon-delimited
	// string once its fragments (rare beyond one) are joined.
	whole, ok := Copy(a, token.Cookie)
	if !ok {
		return "", false
	}

	for i := 0; i+len(name) < len(whole); i++ {
		if whole[i+len(name)] != '=' {
			continue
		}
		if i > 0 && whole[i-1] != ';' && whole[i-1] != ' ' {
			continue
		}
		if whole[i:i+len(name)] != name {
			continue
		}
		start := i + len(name) + 1
		end := start
		for end < len(whole) && whole[end] != ';' {
			end++
		}
		return whole[start:end], true
	}
	return "", false
}
