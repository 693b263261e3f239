package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func formContext(t *testing.T, values url.Values) *gin.Context {
	t.Helper()

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	return c
}

func TestIntForm(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"12", 12},
		{"0", 0},
		{"", 0},
		{"abc", 0},
		{"-5", 0},
		{"3.5", 0},
		{"9999999999999999999999", 0},
	}
	for _, c := range cases {
		ctx := formContext(t, url.Values{"expiry_days": {c.raw}})
		if got := intForm(ctx, "expiry_days"); got != c.want {
			t.Errorf("intForm(%q) = %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestFileIDFromPath(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"abc123.png", "abc123"},
		{"abc123", "abc123"},
		{"archive.tar.gz", "archive.tar"},
	}
	for _, c := range cases {
		if got := fileIDFromPath(c.name); got != c.want {
			t.Errorf("fileIDFromPath(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}
