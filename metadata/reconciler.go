// Package metadata backfills missing client/server side information for
// mods in a collection.
package metadata

import (
	"context"
	"sync"
	"time"

	"modstacker/collection"

	"go.uber.org/zap"
)

const DefaultDelay = 150 * time.Millisecond

// ProjectMetadataFetcher looks up a project's side support by slug.
type ProjectMetadataFetcher interface {
	FetchProjectMetadata(ctx context.Context, slug string) (collection.SideMetadata, error)
}

// Item is the outcome for one mod.
type Item struct {
	Slug    string
	Updated bool
	Err     error
}

// Report summarises a reconciliation pass.
type Report struct {
	Items   []Item
	Updated int
}

// Failed returns the items whose lookup failed.
func (r Report) Failed() []Item {
	var out []Item
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// Reconciler fetches metadata for every mod missing a side field, one mod
// at a time, and saves once at the end if anything changed.
type Reconciler struct {
	store    *collection.Store
	remote   ProjectMetadataFetcher
	delay    time.Duration
	remoteMu sync.Locker
	log      *zap.SugaredLogger
}

type Option func(*Reconciler)

func WithDelay(d time.Duration) Option {
	return func(r *Reconciler) {
		r.delay = d
	}
}

// WithRemoteLock shares the registry request lock with the compatibility checker.
func WithRemoteLock(l sync.Locker) Option {
	return func(r *Reconciler) {
		r.remoteMu = l
	}
}

func NewReconciler(store *collection.Store, remote ProjectMetadataFetcher, log *zap.SugaredLogger, opts ...Option) *Reconciler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Reconciler{
		store:    store,
		remote:   remote,
		delay:    DefaultDelay,
		remoteMu: &sync.Mutex{},
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one pass. A failed lookup is logged and recorded in the
// report without stopping the pass. The returned error is the context error
// if the pass was cancelled, or the save error.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report
	slugs := r.store.MissingSides()
	if len(slugs) == 0 {
		return report, nil
	}
	r.log.Infow("Backfilling missing mod metadata", zap.Int("mods", len(slugs)))

	var runErr error
	for _, slug := range slugs {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		item := Item{Slug: slug}
		meta, err := r.fetch(ctx, slug)
		if err != nil {
			r.log.Warnw("Failed to update metadata", zap.String("slug", slug), zap.Error(err))
			item.Err = err
			report.Items = append(report.Items, item)
			continue
		}
		meta.ClientSide = meta.ClientSide.OrRequired()
		meta.ServerSide = meta.ServerSide.OrRequired()
		if r.store.ApplyMetadata(slug, meta) {
			item.Updated = true
			report.Updated++
		}
		report.Items = append(report.Items, item)
	}

	if report.Updated > 0 {
		if err := r.store.Save(context.WithoutCancel(ctx)); err != nil {
			return report, err
		}
	}
	r.log.Infow("Metadata backfill finished",
		zap.Int("updated", report.Updated),
		zap.Int("failed", len(report.Failed())),
	)
	return report, runErr
}

func (r *Reconciler) fetch(ctx context.Context, slug string) (collection.SideMetadata, error) {
	r.remoteMu.Lock()
	defer r.remoteMu.Unlock()

	if r.delay > 0 {
		t := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return collection.SideMetadata{}, ctx.Err()
		case <-t.C:
		}
	}
	return r.remote.FetchProjectMetadata(ctx, slug)
}
