// Package config provides fail-open environment loading shared by the API
// and worker processes. Loaders never return errors: an unset variable yields
// the default silently, and a set-but-unusable one yields the default plus a
// warning the caller logs and counts. A process must come up with a sane
// configuration even when the environment is broken.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Loaded is the outcome of reading one environment variable. Warning is
// non-empty only when the variable was set but unusable and the default took
// its place.
type Loaded[T any] struct {
	Value    T
	Warning  string
	FellBack bool
}

func fellBack[T any](key, raw string, def T, err error) Loaded[T] {
	return Loaded[T]{
		Value:    def,
		Warning:  fmt.Sprintf("invalid %s=%q: %v, using default %v", key, raw, err, def),
		FellBack: true,
	}
}

// ValidatedString reads key and runs validate over the raw value. A nil
// validate accepts anything non-empty.
func ValidatedString(key, def string, validate func(string) error) Loaded[string] {
	raw := os.Getenv(key)
	if raw == "" {
		return Loaded[string]{Value: def}
	}
	if validate != nil {
		if err := validate(raw); err != nil {
			return fellBack(key, raw, def, err)
		}
	}
	return Loaded[string]{Value: raw}
}

// Duration reads key as a Go duration string such as "30s" or "1h30m".
func Duration(key string, def time.Duration, validate func(time.Duration) error) Loaded[time.Duration] {
	raw := os.Getenv(key)
	if raw == "" {
		return Loaded[time.Duration]{Value: def}
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fellBack(key, raw, def, fmt.Errorf("not a duration"))
	}
	if validate != nil {
		if err := validate(d); err != nil {
			return fellBack(key, raw, def, err)
		}
	}
	return Loaded[time.Duration]{Value: d}
}

// Int reads key as a base-10 integer.
func Int(key string, def int, validate func(int) error) Loaded[int] {
	raw := os.Getenv(key)
	if raw == "" {
		return Loaded[int]{Value: def}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fellBack(key, raw, def, fmt.Errorf("not an integer"))
	}
	if validate != nil {
		if err := validate(n); err != nil {
			return fellBack(key, raw, def, err)
		}
	}
	return Loaded[int]{Value: n}
}
