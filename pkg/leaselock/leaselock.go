// Package leaselock provides expiring advisory locks backed by the app_locks
// table. A held lease is renewed in the background until it is released; if
// renewal fails the lease context is cancelled with ErrLost.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Locker hands out leases on string keys.
type Locker struct {
	db    dbConn
	owner string
}

type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	// Wait polls until the key becomes free instead of returning ErrBusy.
	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration
}

// DefaultOptions is used by the worker when locking an interview.
func DefaultOptions() Options {
	return Options{
		TTL:          2 * time.Minute,
		Wait:         true,
		WaitInterval: 250 * time.Millisecond,
		WaitJitter:   250 * time.Millisecond,
	}
}

func (o Options) normalized() Options {
	if o.TTL < time.Second {
		o.TTL = 5 * time.Minute
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	if o.WaitInterval <= 0 {
		o.WaitInterval = 250 * time.Millisecond
	}
	if o.WaitJitter < 0 {
		o.WaitJitter = 0
	}
	return o
}

type Lease struct {
	Key string

	// Context is cancelled once the lease is released or lost.
	Context context.Context

	locker *Locker
	token  string
	cancel context.CancelCauseFunc

	once sync.Once
	done chan struct{}
}

// New returns a Locker whose lease tokens start with owner, e.g. the worker
// name, so held locks can be attributed when inspecting app_locks.
func New(db dbConn, owner string) *Locker {
	return &Locker{db: db, owner: owner}
}

// InterviewKey is the lock key guarding work on one interview.
func InterviewKey(interviewID string) string {
	return "interview:" + interviewID
}

// WithLease runs fn while holding key. fn receives the lease context.
func (l *Locker) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			logger.Warn("[Lock] Failed to release lease", "key", key, "err", err)
		}
	}()

	if err := fn(lease.Context); err != nil {
		if cause := context.Cause(lease.Context); errors.Is(cause, ErrLost) {
			return fmt.Errorf("%w: %w", cause, err)
		}
		return err
	}
	return nil
}

func (l *Locker) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	opts = opts.normalized()

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	token := id
	if l.owner != "" {
		token = l.owner + ":" + id
	}
	ttl := opts.TTL.Milliseconds()

	for {
		ok, err := l.tryAcquire(ctx, key, token, ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if !opts.Wait {
			return nil, ErrBusy
		}
		if err := sleep(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	lease := &Lease{
		Key:     key,
		Context: leaseCtx,
		locker:  l,
		token:   token,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go lease.keepAlive(opts.RenewEvery, ttl)

	logger.Debug("[Lock] Lease acquired", "key", key, "ttl", opts.TTL)
	return lease, nil
}

func (l *Locker) tryAcquire(ctx context.Context, key, token string, ttl int64) (bool, error) {
	var got string
	err := l.db.QueryRow(ctx, tryAcquireSQL, key, token, ttl).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got == key, nil
}

// Release stops renewal and deletes the lock row if it is still ours.
func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.done)
		l.cancel(context.Canceled)
	})

	_, err := l.locker.db.Exec(ctx, releaseSQL, l.Key, l.token)
	return err
}

func (l *Lease) keepAlive(every time.Duration, ttl int64) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renew(ttl); err != nil {
				logger.Error("[Lock] Lease renewal failed", "key", l.Key, "err", err)
				l.cancel(ErrLost)
				return
			}
		}
	}
}

func (l *Lease) renew(ttl int64) error {
	return util.RetryErrWithContext(l.Context, 3, 200*time.Millisecond, func(ctx context.Context) error {
		renewCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		var got string
		err := l.locker.db.QueryRow(renewCtx, renewSQL, l.Key, l.token, ttl).Scan(&got)
		if errors.Is(err, pgx.ErrNoRows) {
			return util.Permanent(ErrLost)
		}
		return err
	})
}

func sleep(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2;
`
