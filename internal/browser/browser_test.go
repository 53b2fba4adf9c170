package browser

import "testing"

func TestJSString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", `"hello"`},
		{"quotes", `say "hi"`, `"say \"hi\""`},
		{"backslash", `a\b`, `"a\\b"`},
		{"newlines", "line1\nline2", `"line1\nline2"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"control char", "a\x01b", `"a\u0001b"`},
		{"empty", "", `""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jsString(tt.in); got != tt.want {
				t.Errorf("jsString(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url extra params", "https://www.youtube.com/watch?v=abc123&t=42s", "abc123"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"no id", "https://www.youtube.com/feed/subscriptions", ""},
		{"garbage", "://not-a-url", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := videoIDFromURL(tt.url); got != tt.want {
				t.Errorf("videoIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestFallbackMetadata(t *testing.T) {
	md := fallbackMetadata("https://www.youtube.com/watch?v=abc123")
	if md.VideoID != "abc123" {
		t.Errorf("VideoID = %q, want abc123", md.VideoID)
	}
	if md.Channel != "Unknown Channel" {
		t.Errorf("Channel = %q", md.Channel)
	}
	if md.Thumbnail == "" {
		t.Error("expected a derived thumbnail URL")
	}

	md = fallbackMetadata("https://www.youtube.com/feed")
	if md.Thumbnail != "" {
		t.Error("no thumbnail should be derived without a video id")
	}
}
