// Package circuitbreaker wraps sony/gobreaker for outbound HTTP calls.
package circuitbreaker

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned instead of calling the backend while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests is how many probes are let through while half-open.
	HalfOpenRequests uint32
	OnStateChange    func(name string, from, to string)
}

func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker[*http.Response]
}

func New(cfg Config) *Breaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[*http.Response](settings)}
}

// Do runs fn through the breaker. Transport errors and 5xx responses count as failures;
// a 5xx response is still handed back to the caller untouched.
func (b *Breaker) Do(fn func() (*http.Response, error)) (*http.Response, error) {
	var serverErr *http.Response
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		r, err := fn()
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			serverErr = r
			return nil, errServerStatus
		}
		return r, nil
	})
	switch {
	case errors.Is(err, errServerStatus):
		return serverErr, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrOpen
	}
	return resp, err
}

// State reports "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

var errServerStatus = errors.New("server error status")
