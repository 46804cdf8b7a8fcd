package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"172.16.0.0/12", "192.0.2.1"})
	if err != nil {
		t.Fatalf("trusted proxies: %v", err)
	}

	tests := []struct {
		name    string
		remote  string
		xff     string
		realIP  string
		trusted *TrustedProxies
		want    string
	}{
		{name: "untrusted peer ignores headers", remote: "198.51.100.4:5000", xff: "203.0.113.9", realIP: "203.0.113.10", want: "198.51.100.4"},
		{name: "trusted peer uses forwarded client", remote: "172.16.3.4:5000", xff: "203.0.113.9", trusted: trusted, want: "203.0.113.9"},
		{name: "skips trusted hops from the right", remote: "192.0.2.1:80", xff: "203.0.113.9, 172.20.0.1", trusted: trusted, want: "203.0.113.9"},
		{name: "real ip fallback", remote: "172.16.3.4:5000", xff: "garbage", realIP: "203.0.113.11", trusted: trusted, want: "203.0.113.11"},
		{name: "every hop trusted", remote: "172.16.3.4:5000", xff: "172.16.0.9, 172.16.0.10", trusted: trusted, want: "172.16.0.9"},
		{name: "bare remote without port", remote: "203.0.113.12", want: "203.0.113.12"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/jwt", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	got, err := NewTrustedProxies([]string{" ", ""})
	if err != nil || got != nil {
		t.Fatalf("blank entries should yield nil, got %v, %v", got, err)
	}
	if _, err := NewTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Fatal("expected error for invalid prefix")
	}
	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
