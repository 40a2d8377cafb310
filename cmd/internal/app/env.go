package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envPrefix namespaces every server setting.
const envPrefix = "CAMPUS_"

// envReader reads CAMPUS_* settings. Blank values fall back to the default;
// unparsable or out-of-range values do too, and are remembered so the
// server can warn about them once the logger exists.
type envReader struct {
	lookup  func(string) (string, bool)
	ignored []string
}

func newEnvReader(lookup func(string) (string, bool)) *envReader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &envReader{lookup: lookup}
}

func (e *envReader) raw(key string) (string, bool) {
	v, _ := e.lookup(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, v != ""
}

func envValue[T any](e *envReader, key string, def T, parse func(string) (T, error), valid func(T) bool) T {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	got, err := parse(v)
	if err != nil || (valid != nil && !valid(got)) {
		e.ignored = append(e.ignored, envPrefix+key)
		return def
	}
	return got
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *envReader) flag(key string, def bool) bool {
	return envValue(e, key, def, strconv.ParseBool, nil)
}

func (e *envReader) positive(key string, def int) int {
	return envValue(e, key, def, strconv.Atoi, func(n int) bool { return n > 0 })
}

// conns reads a pool size. 0 is allowed and leaves the pgx default in place.
func (e *envReader) conns(key string, def int32) int32 {
	parse := func(s string) (int32, error) {
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	}
	return envValue(e, key, def, parse, func(n int32) bool { return n >= 0 })
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	return envValue(e, key, def, time.ParseDuration, func(d time.Duration) bool { return d > 0 })
}

// list splits a comma-separated value, dropping empty items.
func (e *envReader) list(key string) []string {
	v, ok := e.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
