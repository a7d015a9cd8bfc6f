package util

import (
	"path/filepath"
	"testing"
)

func TestHideSecret(t *testing.T) {
	cases := map[string]string{
		"rzp_test_abcdef123": "rzp_...f123",
		"abcdef":             "ab...ef",
		"abc":                "a...c",
		"ab":                 "ab",
	}
	for in, want := range cases {
		if got := HideSecret(in); got != want {
			t.Fatalf("HideSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	got := MaskSensitiveQuery("mock_test_id=3&token=abcdefghijkl&page=2")
	want := "mock_test_id=3&token=abcd...ijkl&page=2"
	if got != want {
		t.Fatalf("MaskSensitiveQuery() = %q, want %q", got, want)
	}
	if got := MaskSensitiveQuery("page=1&limit=20"); got != "page=1&limit=20" {
		t.Fatalf("expected query without secrets to be unchanged, got %q", got)
	}
	if got := MaskSensitiveQuery("razorpay_signature=0123456789"); got != "razorpay_signature=0123...6789" {
		t.Fatalf("expected signature to be masked, got %q", got)
	}
}

func TestUnderWritable(t *testing.T) {
	t.Setenv("WRITABLE_PATH", "/var/lib/coachline/")
	if got := UnderWritable("data/media"); got != filepath.Join("/var/lib/coachline", "data/media") {
		t.Fatalf("UnderWritable() = %q", got)
	}
	if got := UnderWritable("/srv/media"); got != "/srv/media" {
		t.Fatalf("absolute path changed: %q", got)
	}

	t.Setenv("WRITABLE_PATH", "")
	if got := UnderWritable("data/media"); got != "data/media" {
		t.Fatalf("expected relative path without WRITABLE_PATH, got %q", got)
	}
}
