package logger

import "testing"

func TestRedactIP(t *testing.T) {
	cases := map[string]string{
		"73.45.12.9": "73.*.*.*",
		"not-an-ip":  "***",
	}
	for in, want := range cases {
		if got := RedactIP(in); got != want {
			t.Errorf("RedactIP(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactURL(t *testing.T) {
	got := RedactURL("https://x.example.com/a?gclid=abc123")
	want := "https://x.example.com/a?<redacted>"
	if got != want {
		t.Errorf("RedactURL = %q, want %q", got, want)
	}

	got = RedactURL("https://x.example.com/a")
	want = "https://x.example.com/a"
	if got != want {
		t.Errorf("RedactURL (no query) = %q, want %q", got, want)
	}
}
