package api

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"campus/cmd/internal/httpx"
)

const maxTrackedFailures = 64

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// loginThrottle tracks failed logins in memory, keyed by client IP and by
// login identifier. State is per process.
type loginThrottle struct {
	mu       sync.Mutex
	byIP     map[string][]time.Time
	byLogin  map[string][]time.Time
	ipMax    int
	ipWindow time.Duration
	tiers    []lockoutTier
	horizon  time.Duration
}

func newLoginThrottle(cfg Config) *loginThrottle {
	tiers := []lockoutTier{
		{Threshold: cfg.LockoutSevereThreshold, Duration: cfg.LockoutSevereDuration},
		{Threshold: cfg.LockoutLongThreshold, Duration: cfg.LockoutLongDuration},
		{Threshold: cfg.LockoutShortThreshold, Duration: cfg.LockoutShortDuration},
	}
	horizon := cfg.LoginIPWindow
	for _, t := range tiers {
		if t.Duration > horizon {
			horizon = t.Duration
		}
	}

	return &loginThrottle{
		byIP:     make(map[string][]time.Time),
		byLogin:  make(map[string][]time.Time),
		ipMax:    cfg.LoginIPMax,
		ipWindow: cfg.LoginIPWindow,
		tiers:    tiers,
		horizon:  horizon,
	}
}

// check reports whether a login attempt from ip for identifier is blocked,
// and for how long.
func (t *loginThrottle) check(ip, identifier string, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ip != "" {
		if blocked, retry := evaluateWindowThrottle(now, t.byIP[ip], t.ipMax, t.ipWindow); blocked {
			return true, retry
		}
	}
	if identifier != "" {
		if blocked, retry := evaluateProgressiveLockout(now, t.byLogin[identifier], t.tiers); blocked {
			return true, retry
		}
	}
	return false, 0
}

func (t *loginThrottle) fail(ip, identifier string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ip != "" {
		t.byIP[ip] = t.record(t.byIP[ip], now)
	}
	if identifier != "" {
		t.byLogin[identifier] = t.record(t.byLogin[identifier], now)
	}
}

// succeed clears the identifier's failures; the IP window keeps counting.
func (t *loginThrottle) succeed(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byLogin, identifier)
}

// sweep drops keys whose failures are all older than the longest window.
func (t *loginThrottle) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cut := now.Add(-t.horizon)
	for _, m := range []map[string][]time.Time{t.byIP, t.byLogin} {
		for k, events := range m {
			if len(events) == 0 || !events[0].After(cut) {
				delete(m, k)
			}
		}
	}
}

// record prepends now (newest first) and trims anything beyond the horizon.
func (t *loginThrottle) record(events []time.Time, now time.Time) []time.Time {
	cut := now.Add(-t.horizon)
	out := make([]time.Time, 0, len(events)+1)
	out = append(out, now)
	for _, e := range events {
		if len(out) >= maxTrackedFailures {
			break
		}
		if e.After(cut) {
			out = append(out, e)
		}
	}
	return out
}

// evaluateWindowThrottle blocks when at least limit failures fall inside window.
// retry is the time until enough failures leave the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return false, 0
	}

	cut := now.Add(-window)
	in := make([]time.Time, 0, len(failures))
	for _, f := range failures {
		if f.After(cut) {
			in = append(in, f)
		}
	}
	if len(in) < limit {
		return false, 0
	}

	// Newest first; the limit-th newest failure gates the window.
	sort.Slice(in, func(i, j int) bool { return in[i].After(in[j]) })
	return true, in[limit-1].Add(window).Sub(now)
}

// evaluateProgressiveLockout applies the first tier (highest threshold first)
// whose threshold is met within its duration.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}

	sorted := append([]time.Time(nil), failures...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j]) })

	for _, tier := range tiers {
		if tier.Threshold <= 0 || tier.Duration <= 0 || len(sorted) < tier.Threshold {
			continue
		}
		until := sorted[0].Add(tier.Duration)
		if !until.After(now) {
			continue
		}
		// The threshold must be met by failures still inside the tier.
		cut := now.Add(-tier.Duration)
		n := 0
		for _, f := range sorted {
			if f.After(cut) {
				n++
			}
		}
		if n >= tier.Threshold {
			return true, until.Sub(now)
		}
	}
	return false, 0
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter / time.Second)
		if retryAfter%time.Second != 0 {
			secs++
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
