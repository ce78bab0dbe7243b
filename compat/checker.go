// Package compat runs compatibility checks of collection mods against the
// target version set, one remote request at a time.
package compat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"modstacker/collection"

	"go.uber.org/zap"
)

const DefaultDelay = 200 * time.Millisecond

var (
	ErrNoVersions     = collection.ErrNoVersions
	ErrCheckInFlight  = collection.ErrCheckInFlight
	ErrNoMods         = errors.New("no mods to check")
	ErrStaleResult    = errors.New("target versions changed during check")
	ErrAlreadyRunning = errors.New("check all already running")
)

// VersionSupportFetcher reports, for each requested version, whether the
// registry lists a release of slug for it.
type VersionSupportFetcher interface {
	FetchVersionSupport(ctx context.Context, slug string, versions []string) (map[string]bool, error)
}

// Result is the outcome of checking one mod. Err is set when the remote
// check failed; the mod is still marked checked in that case.
type Result struct {
	Slug     string
	Versions map[string]bool
	Cached   bool
	Err      error
	SaveErr  error
}

func (r Result) OK() bool { return r.Err == nil }

// Progress is the running position of CheckAll.
type Progress struct {
	Current int
	Total   int
	Slug    string
}

// String renders progress as "current/total", or "" when idle.
func (p Progress) String() string {
	if p.Total == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", p.Current, p.Total)
}

// Checker orchestrates mod checks against a collection.Store. A mutex keeps
// at most one remote request in flight, and every cache miss waits the
// configured delay before its request.
type Checker struct {
	store  *collection.Store
	remote VersionSupportFetcher
	delay  time.Duration
	log    *zap.SugaredLogger

	remoteMu sync.Locker

	mu       sync.Mutex
	running  bool
	progress Progress
	last     Report
	hasLast  bool

	pending sync.WaitGroup
}

// Option configures a Checker.
type Option func(*Checker)

// WithRemoteLock shares the lock that serialises registry requests with
// other components, such as the metadata reconciler.
func WithRemoteLock(l sync.Locker) Option {
	return func(c *Checker) {
		c.remoteMu = l
	}
}

// WithDelay sets the wait before each remote request.
func WithDelay(d time.Duration) Option {
	return func(c *Checker) {
		c.delay = d
	}
}

func NewChecker(store *collection.Store, remote VersionSupportFetcher, log *zap.SugaredLogger, opts ...Option) *Checker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Checker{
		store:    store,
		remote:   remote,
		delay:    DefaultDelay,
		log:      log,
		remoteMu: &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckMod checks one mod. The returned error is set only when the check
// could not start (no versions, unknown mod, check in flight) or when the
// final save failed; remote failures are reported in Result.Err. If ctx is
// done before the registry answers, the mod is left as it was and
// Result.Err is the context error.
func (c *Checker) CheckMod(ctx context.Context, slug string) (Result, error) {
	res := Result{Slug: slug}

	ticket, err := c.store.BeginCheck(slug)
	if err != nil {
		res.Err = err
		return res, err
	}
	if ticket.CacheHit {
		res.Versions = ticket.Result
		res.Cached = true
		c.log.Debugw("Compatibility cache hit", zap.String("slug", slug))
		return res, nil
	}

	result, fetchErr := c.fetch(ctx, slug, ticket.Versions)
	if fetchErr != nil && ctx.Err() != nil {
		// Cancelled before the registry answered: nothing to record.
		c.store.AbandonCheck(ticket)
		c.log.Debugw("Version check abandoned", zap.String("slug", slug), zap.Error(fetchErr))
		res.Err = ctx.Err()
		return res, nil
	}
	if fetchErr != nil {
		c.log.Warnw("Version check failed", zap.String("slug", slug), zap.Error(fetchErr))
		res.Err = fetchErr
	}

	if c.store.FinishCheck(ticket, result, fetchErr) {
		if mod, _, ok := c.store.FindMod(slug); ok {
			res.Versions = mod.Versions
		}
	} else if fetchErr == nil {
		res.Err = ErrStaleResult
	}

	if err := c.store.Save(context.WithoutCancel(ctx)); err != nil {
		res.SaveErr = err
		return res, err
	}
	return res, nil
}

func (c *Checker) fetch(ctx context.Context, slug string, versions []string) (map[string]bool, error) {
	c.remoteMu.Lock()
	defer c.remoteMu.Unlock()

	if err := sleep(ctx, c.delay); err != nil {
		return nil, err
	}
	return c.remote.FetchVersionSupport(ctx, slug, versions)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// Schedule starts a background check of slug. It is registered with
// collection.Store.OnModAdded so new mods get checked right away.
func (c *Checker) Schedule(slug string) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if _, err := c.CheckMod(context.Background(), slug); err != nil {
			c.log.Warnw("Scheduled check did not complete", zap.String("slug", slug), zap.Error(err))
		}
	}()
}

// Wait blocks until every scheduled check has finished.
func (c *Checker) Wait() {
	c.pending.Wait()
}

// Progress returns the current CheckAll position; zero when idle.
func (c *Checker) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Running reports whether CheckAll is in progress.
func (c *Checker) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Checker) setProgress(p Progress) {
	c.mu.Lock()
	c.progress = p
	c.mu.Unlock()
}
