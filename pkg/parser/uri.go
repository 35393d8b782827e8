package parser

import "github.com/WhileEndless/hparsecore/pkg/ah"

// URIAction is the per-byte verdict from the URI sanitizer (C3) for a
// byte arriving while the parser is in a method-URI value state.
type URIAction int

const (
	// URIContinue means emit the (possibly rewritten) byte to the
	// current fragment as normal.
	URIContinue URIAction = iota
	// URISwallow means the byte was consumed entirely by the sanitizer
	// (buffered as percent-decode state, or already emitted directly);
	// the caller must not also append it.
	URISwallow
	// URIForbid is a fatal 403: malformed percent-encoding (an illegal
	// character following '%' or '%XX's first hex digit), or an
	// unescaped '?' arriving mid-escape.
	URIForbid
	// URIFail is a fatal close with no 403 response: a NUL byte outside
	// the query string, which would be unsafe to hand to a
	// NUL-terminated path API but isn't itself a malformed request line.
	URIFail
	// URIExcessive means the fragment table has no room for another
	// query-arg fragment.
	URIExcessive
)

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// sanitizeURIByte runs one byte through the percent-decoder and path
// normalizer sub-state machines (spec §4.3). It may itself append bytes
// to a's current fragment (the `?` split, the `&`/`;` split, and the
// `/.dir` regurgitation case all do so directly, exactly as
// lws_parse_urldecode does via issue_char). The returned (out, action)
// tells the caller what it still needs to do: URIContinue means "append
// out to the current fragment yourself"; anything else means the
// sanitizer already did everything required.
func sanitizeURIByte(a *ah.AH, c byte) (out byte, action URIAction) {
	enc := false

	switch a.PercentState {
	case ah.PercentIdle:
		if c == '%' {
			a.PercentState = ah.PercentSeenPercent
			return 0, URISwallow
		}
	case ah.PercentSeenPercent:
		if !isHexDigit(c) {
			return 0, URIForbid
		}
		a.EscStash = c
		a.PercentState = ah.PercentSeenPercentH1
		return 0, URISwallow
	case ah.PercentSeenPercentH1:
		if !isHexDigit(c) {
			return 0, URIForbid
		}
		c = hexVal(a.EscStash)<<4 | hexVal(c)
		enc = true
		a.PercentState = ah.PercentIdle
	}

	hasArgs := a.FragIndex[uriArgsToken] != 0

	if c == 0 && (!hasArgs || !a.PostLiteralEqual) {
		return 0, URIFail
	}

	switch a.PathState {
	case ah.PathIdle:
		if (c == '&' || c == ';') && !enc {
			closeFragmentWithNUL(a)
			if err := openQueryArgFragment(a); err != nil {
				return 0, URIExcessive
			}
			a.PostLiteralEqual = false
			return 0, URISwallow
		}
		if c == '=' && enc && hasArgs && !a.PostLiteralEqual {
			c = '_'
		}
		if c == '=' && !enc {
			a.PostLiteralEqual = true
		}
		if c == '+' && !enc {
			c = ' '
		}
		if c == '/' && !hasArgs {
			a.PathState = ah.PathSeenSlash
		}
	case ah.PathSeenSlash:
		if c == '/' {
			return 0, URISwallow
		}
		if c == '.' {
			a.PathState = ah.PathSeenSlashDot
			return 0, URISwallow
		}
		a.PathState = ah.PathIdle
	case ah.PathSeenSlashDot:
		if c == '.' {
			a.PathState = ah.PathSeenSlashDotDot
			return 0, URISwallow
		}
		if c == '/' {
			a.PathState = ah.PathSeenSlash
			return 0, URISwallow
		}
		a.PathState = ah.PathIdle
		if err := appendRaw(a, '.'); err != nil {
			return 0, URIForbid
		}
	case ah.PathSeenSlashDotDot:
		if c == '/' || c == '?' {
			rewindPathSegment(a)
			a.PathState = ah.PathSeenSlash
			if a.Frags[a.NFrag].Len > 1 {
				break
			}
			return 0, URISwallow
		}
		a.PathState = ah.PathIdle
		if err := appendRaw(a, '.'); err != nil {
			return 0, URIForbid
		}
		if err := appendRaw(a, '.'); err != nil {
			return 0, URIForbid
		}
	}

	if c == '?' && !enc && !hasArgs {
		if a.PercentState != ah.PercentIdle {
			return 0, URIForbid
		}
		closeFragmentWithNUL(a)
		if err := openQueryArgFragment(a); err != nil {
			return 0, URIExcessive
		}
		a.PostLiteralEqual = false
		a.FragIndex[uriArgsToken] = a.NFrag
		a.Frags[a.NFrag].Flags |= ah.FlagQueryArg
		a.PathState = ah.PathIdle
		return 0, URISwallow
	}

	return c, URIContinue
}

// closeFragmentWithNUL appends a NUL terminator to the current
// fragment without counting it in the fragment's length, matching
// issue_char followed by the explicit len-- dance in parsers.c.
func closeFragmentWithNUL(a *ah.AH) {
	_ = appendRaw(a, 0)
	a.Frags[a.NFrag].Len--
}

// openQueryArgFragment starts a new fragment immediately after the
// current write position, for the next query-arg pair.
func openQueryArgFragment(a *ah.AH) error {
	if a.NFrag+1 >= len(a.Frags) {
		return ah.ErrTokenLimit // any error; caller maps it to URIExcessive
	}
	a.Frags[a.NFrag].NFrag = a.NFrag + 1
	a.NFrag++
	a.Pos++
	a.Frags[a.NFrag] = ah.Frag{Offset: a.Pos, Len: 0, NFrag: 0, Flags: ah.FlagQueryArg}
	return nil
}

// appendRaw appends c to the AH's data at the current (last-opened)
// fragment via AH.AppendByte, so the per-token limit applies to it as
// to any other byte (the sanitizer's own structural bytes, like a
// regurgitated '.', included).
func appendRaw(a *ah.AH, c byte) error {
	return a.AppendByte(a.NFrag, c)
}

// rewindPathSegment backs the current fragment up to the previous `/`,
// implementing the `/../` and `/..`-at-end-of-URI collapse (spec
// §4.3). It never rewinds a fragment down to zero length: the method
// URI is always left with at least a single byte.
func rewindPathSegment(a *ah.AH) {
	f := &a.Frags[a.NFrag]
	if f.Len > 2 {
		a.Pos--
		f.Len--
		for {
			a.Pos--
			f.Len--
			if f.Len <= 1 || a.Data[a.Pos] == '/' {
				break
			}
		}
	}
}
