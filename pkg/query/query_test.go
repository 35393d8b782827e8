package query

import (
	"testing"

	"github.com/WhileEndless/hparsecore/pkg/ah"
	"github.com/WhileEndless/hparsecore/pkg/token"
)

func TestFragmentLengthAndTotalLength(t *testing.T) {
	a := ah.New(256)
	idx1, err := a.OpenFragment(token.URIArgs, ah.FlagQueryArg)
	if err != nil {
		t.Fatalf("OpenFragment: %v", err)
	}
	for _, c := range "q=go" {
		if err := a.AppendByte(idx1, byte(c)); err != nil {
			t.Fatalf("AppendByte: %v", err)
		}
	}
	idx2, err := a.OpenFragment(token.URIArgs, ah.FlagQueryArg)
	if err != nil {
		t.Fatalf("OpenFragment 2: %v", err)
	}
	for _, c := range "lang=en" {
		if err := a.AppendByte(idx2, byte(c)); err != nil {
			t.Fatalf("AppendByte: %v", err)
		}
	}

	if got := FragmentLength(a, token.URIArgs, 0); got != len("q=go") {
		t.Fatalf("FragmentLength(0) = %d, want %d", got, len("q=go"))
	}
	if got := FragmentLength(a, token.URIArgs, 1); got != len("lang=en") {
		t.Fatalf("FragmentLength(1) = %d, want %d", got, len("lang=en"))
	}
	if got := FragmentLength(a, token.URIArgs, 2); got != 0 {
		t.Fatalf("FragmentLength(2) = %d, want 0", got)
	}

	want := len("q=go") + 1 + len("lang=en")
	if got := TotalLength(a, token.URIArgs); got != want {
		t.Fatalf("TotalLength = %d, want %d", got, want)
	}
}

func TestCopyJoinsWithTokenDelimiter(t *testing.T) {
	a := ah.New(256)
	idx1, _ := a.OpenFragment(token.URIArgs, ah.FlagQueryArg)
	for _, c := range "a=1" {
		a.AppendByte(idx1, byte(c))
	}
	idx2, _ := a.OpenFragment(token.URIArgs, ah.FlagQueryArg)
	for _, c := range "b=2" {
		a.AppendByte(idx2, byte(c))
	}

	got, ok := Copy(a, token.URIArgs)
	if !ok {
		t.Fatalf("Copy reported ok=false")
	}
	if want := "a=1&b=2"; got != want {
		t.Fatalf("Copy = %q, want %q", got, want)
	}
}

func TestCopyFragmentOutOfRange(t *testing.T) {
	a := ah.New(256)
	if err := a.CreateSimple(token.Host, "example.com"); err != nil {
		t.Fatalf("CreateSimple: %v", err)
	}
	if _, ok := CopyFragment(a, token.Host, 1); ok {
		t.Fatalf("expected ok=false for an out-of-range fragment index")
	}
	got, ok := CopyFragment(a, token.Host, 0)
	if !ok || got != "example.com\x00" {
		t.Fatalf("CopyFragment(0) = (%q, %v), want (%q, true)", got, ok, "example.com\x00")
	}
}

func TestSimplePtrMissingToken(t *testing.T) {
	a := ah.New(256)
	if _, ok := SimplePtr(a, token.Host); ok {
		t.Fatalf("expected ok=false for a token with no fragment")
	}
}

func TestCustomHeaderLookup(t *testing.T) {
	a := ah.New(256)
	// A request line always precedes custom headers, so no side-list
	// entry starts at offset 0 (UnkLLHead == 0 marks an empty list).
	if err := a.CreateSimple(token.GetURI, "/"); err != nil {
		t.Fatalf("CreateSimple: %v", err)
	}
	writeCustomHeader(t, a, "x-custom", "hello")
	writeCustomHeader(t, a, "x-other", "world")

	if got := CustomLength(a, false, "x-custom"); got != len("hello") {
		t.Fatalf("CustomLength = %d, want %d", got, len("hello"))
	}
	got, ok := CustomCopy(a, false, "x-other")
	if !ok || got != "world" {
		t.Fatalf("CustomCopy(x-other) = (%q, %v), want (world, true)", got, ok)
	}
	if _, ok := CustomCopy(a, false, "x-missing"); ok {
		t.Fatalf("expected ok=false for a header never recorded")
	}
	if got := CustomLength(a, true, "x-custom"); got != -1 {
		t.Fatalf("CustomLength for a mux substream should always be -1, got %d", got)
	}

	var names []string
	CustomNameForEach(a, false, func(name string) { names = append(names, name) })
	if len(names) != 2 || names[0] != "x-custom" || names[1] != "x-other" {
		t.Fatalf("CustomNameForEach order = %v, want [x-custom x-other]", names)
	}
}

func TestCookieGetH1(t *testing.T) {
	a := ah.New(256)
	if err := a.CreateSimple(token.Cookie, "a=1; sid=abc123; b=2"); err != nil {
		t.Fatalf("CreateSimple: %v", err)
	}
	got, ok := CookieGet(a, false, "sid")
	if !ok || got != "abc123" {
		t.Fatalf("CookieGet(sid) = (%q, %v), want (abc123, true)", got, ok)
	}
	if _, ok := CookieGet(a, false, "nope"); ok {
		t.Fatalf("expected ok=false for an absent cookie name")
	}
}

func TestCookieGetH2PerFragment(t *testing.T) {
	a := ah.New(256)
	idx1, _ := a.OpenFragment(token.Cookie, 0)
	for _, c := range "sid=abc123" {
		a.AppendByte(idx1, byte(c))
	}
	idx2, _ := a.OpenFragment(token.Cookie, 0)
	for _, c := range "b=2" {
		a.AppendByte(idx2, byte(c))
	}

	got, ok := CookieGet(a, true, "sid")
	if !ok || got != "abc123" {
		t.Fatalf("CookieGet(sid) H2 = (%q, %v), want (abc123, true)", got, ok)
	}
}

// writeCustomHeader is a test helper replicating the sequence
// pkg/parser drives when it records a custom header in the AH's side
// list: reserve the prefix, write name+value bytes, backfill lengths
// (backfilling the name length also links the entry into the list).
func writeCustomHeader(t *testing.T, a *ah.AH, name, value string) {
	t.Helper()
	off, err := a.BeginUnknownHeader()
	if err != nil {
		t.Fatalf("BeginUnknownHeader: %v", err)
	}
	nameOff := a.UnknownHeaderNameOffset(off)
	copy(a.Data[nameOff:], name)
	a.Data[nameOff+len(name)] = ':'
	valOff := nameOff + len(name) + 1
	copy(a.Data[valOff:], value)
	a.Pos = valOff + len(value)
	a.SetUnknownHeaderNameLen(off, len(name))
	a.FinishUnknownHeaderValue(off, len(value))
}
