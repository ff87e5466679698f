// Package poller runs the watch loop: query the column, notify once per new
// work item, wait for the next slot, repeat until the context is canceled.
package poller

import (
	"context"
	"fmt"
	"time"

	"boardwatch/internal/ado"
	"boardwatch/internal/notifier"
	logx "boardwatch/pkg/logx"
)

// Tracker is the part of the Azure DevOps client the loop needs.
type Tracker interface {
	QueryColumn(ctx context.Context, project, column, areaPredicate string) ([]int, error)
	WorkItem(ctx context.Context, project string, id int) (ado.WorkItem, error)
}

// Notifier delivers one notification. Errors are already logged by the
// implementation; the loop only counts them.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

// Config is fixed for the life of the loop.
type Config struct {
	Project       string
	Team          string
	Board         string
	Column        string
	AreaPredicate string
	Schedule      Schedule
}

// CycleResult summarizes one cycle.
type CycleResult struct {
	Matched  int           `json:"matched"` // ids returned by the query
	New      int           `json:"new"`     // ids not seen before
	Notified int           `json:"notified"`
	Failed   int           `json:"failed"` // delivery failures (not retried)
	Seen     int           `json:"seen"`   // size of the seen set after the cycle
	Took     time.Duration `json:"took_ns"`
}

type Option func(*Poller)

func WithLogger(log logx.Logger) Option {
	return func(p *Poller) { p.log = log }
}

// WithAfterCycle installs a hook called after every cycle (e.g. a watchdog ping).
func WithAfterCycle(fn func(CycleResult, error)) Option {
	return func(p *Poller) { p.afterCycle = fn }
}

type Poller struct {
	cfg      Config
	tracker  Tracker
	notifier Notifier
	log      logx.Logger

	afterCycle func(CycleResult, error)
	now        func() time.Time
}

func New(cfg Config, tracker Tracker, n Notifier, opts ...Option) *Poller {
	p := &Poller{cfg: cfg, tracker: tracker, notifier: n, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	if p.log.IsZero() {
		p.log = logx.Nop()
	}
	if p.cfg.Schedule.Kind == SpecInterval && p.cfg.Schedule.Every <= 0 {
		p.cfg.Schedule = IntervalSchedule(120 * time.Second)
	}
	return p
}

// Cycle runs one query and notifies every id not yet in seen. An id is added
// to seen before its details are fetched, so a notification is attempted at
// most once per id. A query or fetch error ends the cycle early; ids after
// the failing one are picked up by the next cycle. Delivery errors never end
// the cycle.
func (p *Poller) Cycle(ctx context.Context, seen SeenSet) (res CycleResult, err error) {
	start := p.now()
	defer func() {
		res.Seen = seen.Len()
		res.Took = p.now().Sub(start)
	}()

	ids, err := p.tracker.QueryColumn(ctx, p.cfg.Project, p.cfg.Column, p.cfg.AreaPredicate)
	if err != nil {
		return res, fmt.Errorf("query column: %w", err)
	}
	res.Matched = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !seen.Add(id) {
			continue
		}
		res.New++

		wi, err := p.tracker.WorkItem(ctx, p.cfg.Project, id)
		if err != nil {
			return res, fmt.Errorf("fetch work item %d: %w", id, err)
		}

		n := notifier.Notification{
			Team:   p.cfg.Team,
			Board:  p.cfg.Board,
			ItemID: id,
			Title:  wi.Title,
			URL:    wi.URL,
		}
		if err := p.notifier.Notify(ctx, n); err != nil {
			res.Failed++
			continue
		}
		res.Notified++
	}
	return res, nil
}

// Run polls until ctx is canceled. The first cycle starts immediately.
// It returns nil on cancellation; cycle errors are logged, never returned.
func (p *Poller) Run(ctx context.Context) error {
	return p.run(ctx, NewSeenSet())
}

func (p *Poller) run(ctx context.Context, seen SeenSet) error {
	p.log.Info("poller started",
		logx.String("schedule", p.cfg.Schedule.String()),
		logx.String("column", p.cfg.Column),
	)
	for {
		res, err := p.Cycle(ctx, seen)
		if ctx.Err() != nil {
			p.log.Info("poller stopped", logx.Int("seen", seen.Len()))
			return nil
		}
		if err != nil {
			p.log.Error("poll cycle failed", logx.Err(err), logx.Int("new", res.New), logx.Duration("took", res.Took))
		} else if res.New > 0 {
			p.log.Info("poll cycle",
				logx.Int("matched", res.Matched),
				logx.Int("new", res.New),
				logx.Int("notified", res.Notified),
				logx.Int("failed", res.Failed),
				logx.Duration("took", res.Took),
			)
		} else {
			p.log.Debug("poll cycle", logx.Int("matched", res.Matched), logx.Duration("took", res.Took))
		}
		if p.afterCycle != nil {
			p.afterCycle(res, err)
		}

		now := p.now()
		wait := p.cfg.Schedule.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			p.log.Info("poller stopped", logx.Int("seen", seen.Len()))
			return nil
		case <-t.C:
		}
	}
}
