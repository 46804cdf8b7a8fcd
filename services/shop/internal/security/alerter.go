package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counts one security event per window slot; the key expires with its slot.
var eventCounter = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

type Rule struct {
	Threshold int64
	Window    time.Duration
}

// Alert is the outcome of observing one event.
type Alert struct {
	Triggered bool
	Count     int64
	Rule      Rule
}

// AuditAlerter counts failed gate decisions per event and client IP and
// reports when a burst crosses its rule's threshold.
type AuditAlerter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewAuditAlerter(client *redis.Client, prefix string) *AuditAlerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "bookshop:alerts"
	}
	return &AuditAlerter{client: client, prefix: prefix, now: time.Now}
}

// Observe records the event. Events without a rule are ignored. A nil
// alerter observes nothing.
func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, ip string) (Alert, error) {
	if a == nil {
		return Alert{}, nil
	}
	rule, ok := RuleFor(event, outcome)
	if !ok {
		return Alert{}, nil
	}
	windowMs := rule.Window.Milliseconds()
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, segment(event), segment(outcome), segment(ip), slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := eventCounter.Run(ctx, a.client, []string{key}, windowMs).Int64()
	if err != nil {
		return Alert{}, fmt.Errorf("count security event: %w", err)
	}
	return Alert{Triggered: n >= rule.Threshold, Count: n, Rule: rule}, nil
}

// RuleFor returns the alert rule for a gate event outcome.
func RuleFor(event, outcome string) (Rule, bool) {
	switch strings.TrimSpace(outcome) {
	case "rate_limited":
		return Rule{Threshold: 20, Window: time.Minute}, true
	case "fail":
	default:
		return Rule{}, false
	}
	switch strings.TrimSpace(event) {
	case "shop.jwt.issue":
		return Rule{Threshold: 10, Window: 5 * time.Minute}, true
	case "shop.token.verify", "shop.payments.history":
		return Rule{Threshold: 25, Window: 5 * time.Minute}, true
	case "shop.admin.authorize":
		return Rule{Threshold: 10, Window: 5 * time.Minute}, true
	}
	return Rule{}, false
}

func segment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(in)
}
