package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newAlerter(t *testing.T) *AuditAlerter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	a := NewAuditAlerter(client, "test:alerts")
	a.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	return a
}

func TestObserveTriggersAtThreshold(t *testing.T) {
	a := newAlerter(t)
	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		alert, err := a.Observe(ctx, "shop.admin.authorize", "fail", "10.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if alert.Count != int64(i) {
			t.Fatalf("expected count %d, got %d", i, alert.Count)
		}
		if alert.Triggered != (i == 10) {
			t.Fatalf("attempt %d: triggered=%v", i, alert.Triggered)
		}
	}

	other, err := a.Observe(ctx, "shop.admin.authorize", "fail", "10.0.0.2")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if other.Count != 1 {
		t.Fatalf("counts are per ip, got %d", other.Count)
	}
}

func TestObserveIgnoresEventsWithoutRule(t *testing.T) {
	a := newAlerter(t)
	for _, tc := range []struct{ event, outcome string }{
		{"shop.token.verify", "success"},
		{"shop.user.promote", "fail"},
	} {
		alert, err := a.Observe(context.Background(), tc.event, tc.outcome, "10.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if alert.Count != 0 || alert.Triggered {
			t.Fatalf("%s/%s: unexpected alert %+v", tc.event, tc.outcome, alert)
		}
	}
}

func TestNilAlerter(t *testing.T) {
	if NewAuditAlerter(nil, "") != nil {
		t.Fatalf("expected nil alerter without redis")
	}
	var a *AuditAlerter
	if _, err := a.Observe(context.Background(), "shop.jwt.issue", "fail", "1.2.3.4"); err != nil {
		t.Fatalf("nil alerter must be a no-op: %v", err)
	}
}
