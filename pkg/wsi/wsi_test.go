package wsi

import "testing"

func TestHostKeyNormalizesUnicodeAndASCIIToTheSameBucket(t *testing.T) {
	ascii := HostKey("xn--mller-kva.de")
	unicode := HostKey("müller.de")
	if ascii != unicode {
		t.Fatalf("HostKey(%q) = %q, HostKey(%q) = %q, want equal quota buckets", "xn--mller-kva.de", ascii, "müller.de", unicode)
	}
}

func TestHostKeyPlainASCIIUnchanged(t *testing.T) {
	if got := HostKey("example.com"); got != "example.com" {
		t.Fatalf("HostKey(example.com) = %q, want unchanged", got)
	}
}

func TestHostKeyFallsBackOnInvalidInput(t *testing.T) {
	// A label that IDNA rejects (e.g. containing a raw space) should
	// still yield a usable bucket key rather than an error the caller
	// has to handle — fall back to the original string.
	got := HostKey("not a valid host")
	if got != "not a valid host" {
		t.Fatalf("HostKey fallback = %q, want the original input unchanged", got)
	}
}
