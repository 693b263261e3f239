package services

import (
	"strings"
	"testing"

	"github.com/sylvexn/nexus/models"
)

func TestNewFileIDLengthAndCharset(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := NewFileID(10)
		if err != nil {
			t.Fatalf("NewFileID returned error: %v", err)
		}
		if len(id) != 10 {
			t.Fatalf("expected length 10, got %q", id)
		}
		for _, r := range id {
			if !strings.ContainsRune(fileIDAlphabet, r) {
				t.Fatalf("unexpected character %q in %s", r, id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 99 {
		t.Fatalf("expected essentially no collisions in 100 draws, got %d unique", len(seen))
	}
}

func TestNewFileIDDefaultsLength(t *testing.T) {
	id, err := NewFileID(0)
	if err != nil {
		t.Fatalf("NewFileID returned error: %v", err)
	}
	if len(id) != 10 {
		t.Fatalf("expected default length 10, got %q", id)
	}
}

func TestIsValidFileID(t *testing.T) {
	cases := []struct {
		id    string
		valid bool
	}{
		{"abcd", true},
		{"AbC123", true},
		{"0123456789abcdef", true},
		{"abc", false},
		{"0123456789abcdefg", false},
		{"has space", false},
		{"semi;colon", false},
		{"path/sep", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsValidFileID(c.id); got != c.valid {
			t.Errorf("IsValidFileID(%q) = %v, want %v", c.id, got, c.valid)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"a..b.txt", "a_b.txt"},
		{"dir\\evil.sh", "dir_evil.sh"},
	}
	for _, c := range cases {
		if got := sanitizeFilename(c.in); got != c.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeExtension(t *testing.T) {
	cases := []struct {
		filename string
		sniffed  string
		want     string
	}{
		{"photo.JPG", ".jpg", ".jpg"},
		{"archive.tar.gz", ".bin", ".gz"},
		{"noextension", ".png", ".png"},
		{"weird.<>!", ".bin", ".bin"},
		{"trailingdot.", ".mp4", ".mp4"},
	}
	for _, c := range cases {
		if got := normalizeExtension(c.filename, c.sniffed); got != c.want {
			t.Errorf("normalizeExtension(%q, %q) = %q, want %q", c.filename, c.sniffed, got, c.want)
		}
	}
}

func TestMediaCategory(t *testing.T) {
	cases := []struct {
		mime string
		want string
	}{
		{"image/png", models.CategoryImage},
		{"image/webp", models.CategoryImage},
		{"video/mp4", models.CategoryVideo},
		{"application/pdf", models.CategoryOther},
		{"text/plain", models.CategoryOther},
	}
	for _, c := range cases {
		if got := mediaCategory(c.mime); got != c.want {
			t.Errorf("mediaCategory(%q) = %q, want %q", c.mime, got, c.want)
		}
	}
}
