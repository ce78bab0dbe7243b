package compat

import (
	"context"

	"go.uber.org/zap"
)

// Report collects the per-mod results of a CheckAll run.
type Report struct {
	Total   int
	Results []Result
	// Err is the context error when the run was cancelled between mods.
	Err error
}

// Failed returns the results whose remote check failed.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// CacheHits counts results served from the compatibility cache.
func (r Report) CacheHits() int {
	n := 0
	for _, res := range r.Results {
		if res.Cached {
			n++
		}
	}
	return n
}

// CheckAll checks every mod in every category sequentially. Each check,
// including its delay and save, completes before the next one starts.
// onProgress, if non-nil, is called before each check with the position.
// Cancelling ctx stops the run between mods.
func (c *Checker) CheckAll(ctx context.Context, onProgress func(Progress)) (Report, error) {
	slugs, err := c.claim()
	if err != nil {
		return Report{}, err
	}
	return c.runAll(ctx, slugs, onProgress)
}

// Start begins CheckAll in the background. Precondition errors and
// ErrAlreadyRunning are returned immediately; otherwise the report is
// delivered on the returned channel, which is closed afterwards.
func (c *Checker) Start(ctx context.Context, onProgress func(Progress)) (<-chan Report, error) {
	slugs, err := c.claim()
	if err != nil {
		return nil, err
	}
	done := make(chan Report, 1)
	go func() {
		defer close(done)
		report, _ := c.runAll(ctx, slugs, onProgress)
		done <- report
	}()
	return done, nil
}

// LastReport returns the report of the most recent finished run.
func (c *Checker) LastReport() (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

func (c *Checker) claim() ([]string, error) {
	if len(c.store.Versions()) == 0 {
		return nil, ErrNoVersions
	}
	slugs := c.store.Slugs()
	if len(slugs) == 0 {
		return nil, ErrNoMods
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil, ErrAlreadyRunning
	}
	c.running = true
	return slugs, nil
}

func (c *Checker) runAll(ctx context.Context, slugs []string, onProgress func(Progress)) (Report, error) {
	report := Report{Total: len(slugs)}
	defer func() {
		c.mu.Lock()
		c.running = false
		c.progress = Progress{}
		c.last = report
		c.hasLast = true
		c.mu.Unlock()
	}()

	c.log.Infow("Checking all mods", zap.Int("total", len(slugs)))

	for i, slug := range slugs {
		if err := ctx.Err(); err != nil {
			report.Err = err
			c.log.Warnw("Check all cancelled", zap.Int("checked", i), zap.Int("total", len(slugs)))
			return report, err
		}
		p := Progress{Current: i + 1, Total: len(slugs), Slug: slug}
		c.setProgress(p)
		if onProgress != nil {
			onProgress(p)
		}
		res, _ := c.CheckMod(ctx, slug)
		report.Results = append(report.Results, res)
	}

	c.log.Infow("Finished checking all mods",
		zap.Int("total", report.Total),
		zap.Int("failed", len(report.Failed())),
		zap.Int("cache_hits", report.CacheHits()),
	)
	return report, nil
}
