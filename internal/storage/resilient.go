package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
	"github.com/sirupsen/logrus"
)

// Resilient wraps a Store with retries for transient failures and a circuit
// breaker that fails fast once the backend keeps failing. Not-found and
// already-exists results are answers, not failures: they are neither
// retried nor counted by the breaker.
type Resilient struct {
	store      Store
	breaker    *circuit.Breaker
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// ResilientOption configures a Resilient store
type ResilientOption func(*Resilient)

// WithMaxRetries sets how many times a failed call is retried
func WithMaxRetries(n uint64) ResilientOption {
	return func(r *Resilient) {
		r.maxRetries = n
	}
}

// WithBreakerThreshold sets how many consecutive failures trip the breaker
func WithBreakerThreshold(n int64) ResilientOption {
	return func(r *Resilient) {
		r.breaker = circuit.NewConsecutiveBreaker(n)
	}
}

// WithBackOff sets the retry schedule
func WithBackOff(fn func() backoff.BackOff) ResilientOption {
	return func(r *Resilient) {
		r.newBackOff = fn
	}
}

// NewResilient wraps store
func NewResilient(store Store, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		store:      store,
		breaker:    circuit.NewConsecutiveBreaker(5),
		maxRetries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = time.Minute
			return b
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tripped reports whether the breaker is open
func (r *Resilient) Tripped() bool {
	return r.breaker.Tripped()
}

func (r *Resilient) do(ctx context.Context, name, key string, fn func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		if !r.breaker.Ready() {
			return backoff.Permanent(fmt.Errorf("%s %s: %w", name, key, circuit.ErrBreakerOpen))
		}

		var answer error
		err := r.breaker.Call(func() error {
			err := fn()
			if err != nil && !IsTransient(err) {
				answer = err
				return nil
			}
			return err
		}, 0)

		if answer != nil {
			return backoff.Permanent(answer)
		}
		if err != nil {
			logrus.Debugf("Storage %s %s failed (attempt %d): %v", name, key, attempt, err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	err := backoff.Retry(op, b)
	if perm, ok := err.(*backoff.PermanentError); ok {
		return perm.Err
	}
	return err
}

// List implements Store
func (r *Resilient) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	err := r.do(ctx, "list", prefix, func() error {
		var err error
		out, err = r.store.List(ctx, prefix)
		return err
	})
	return out, err
}

// Stat implements Store
func (r *Resilient) Stat(ctx context.Context, key string) (Object, error) {
	var out Object
	err := r.do(ctx, "stat", key, func() error {
		var err error
		out, err = r.store.Stat(ctx, key)
		return err
	})
	return out, err
}

// Exists implements Store
func (r *Resilient) Exists(ctx context.Context, key string) (bool, error) {
	var out bool
	err := r.do(ctx, "exists", key, func() error {
		var err error
		out, err = r.store.Exists(ctx, key)
		return err
	})
	return out, err
}

// Get implements Store
func (r *Resilient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var out io.ReadCloser
	err := r.do(ctx, "get", key, func() error {
		var err error
		out, err = r.store.Get(ctx, key)
		return err
	})
	return out, err
}

// Put implements Store. Readers that can seek are rewound between
// attempts; other readers are written once.
func (r *Resilient) Put(ctx context.Context, key string, body io.Reader, overwrite bool) error {
	seeker, ok := body.(io.Seeker)
	if !ok {
		return r.store.Put(ctx, key, body, overwrite)
	}
	return r.do(ctx, "put", key, func() error {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		return r.store.Put(ctx, key, body, overwrite)
	})
}

// Delete implements Store
func (r *Resilient) Delete(ctx context.Context, key string) error {
	return r.do(ctx, "delete", key, func() error {
		return r.store.Delete(ctx, key)
	})
}

// Copy implements Store. A retry after a copy that landed fails with
// ErrExists, which callers treat as an occupied destination.
func (r *Resilient) Copy(ctx context.Context, src, dst string) error {
	return r.do(ctx, "copy", src, func() error {
		return r.store.Copy(ctx, src, dst)
	})
}

// GetTags implements Store
func (r *Resilient) GetTags(ctx context.Context, key string) (map[string]string, error) {
	var out map[string]string
	err := r.do(ctx, "get-tags", key, func() error {
		var err error
		out, err = r.store.GetTags(ctx, key)
		return err
	})
	return out, err
}

// SetTags implements Store
func (r *Resilient) SetTags(ctx context.Context, key string, tags map[string]string) error {
	return r.do(ctx, "set-tags", key, func() error {
		return r.store.SetTags(ctx, key, tags)
	})
}
