package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"boardwatch/internal/storage"
	logx "boardwatch/pkg/logx"
)

var ErrNoSinks = errors.New("notifier has no sinks")

// Sink delivers one notification to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

type sinkState struct {
	sink    Sink
	limiter *rate.Limiter
}

// Service delivers notifications to its sinks, one after another, on the
// caller's goroutine.
type Service struct {
	log     logx.Logger
	cfg     Config
	sinks   []sinkState
	journal storage.Journal

	hmu     sync.Mutex
	history []HistoryItem
}

const historySize = 100

// New creates a Service. journal may be nil.
func New(cfg Config, log logx.Logger, journal storage.Journal, sinks ...Sink) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, cfg: cfg, journal: journal}
	for _, sk := range sinks {
		if sk == nil {
			continue
		}
		// Token bucket: burst = rate per sec.
		s.sinks = append(s.sinks, sinkState{
			sink:    sk,
			limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		})
	}
	return s
}

// Sinks returns the sink names in delivery order.
func (s *Service) Sinks() []string {
	out := make([]string, 0, len(s.sinks))
	for _, st := range s.sinks {
		out = append(out, st.sink.Name())
	}
	return out
}

// Notify delivers n to every sink. Failures are logged at warn and returned
// joined as *DeliveryError values; a failing sink does not stop the others.
func (s *Service) Notify(ctx context.Context, n Notification) error {
	if len(s.sinks) == 0 {
		return ErrNoSinks
	}

	var errs []error
	for _, st := range s.sinks {
		name := st.sink.Name()
		if err := st.limiter.Wait(ctx); err != nil {
			// ctx is done; the remaining sinks would fail the same way
			errs = append(errs, &DeliveryError{Sink: name, ItemID: n.ItemID, Err: err})
			break
		}

		sctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		start := time.Now()
		err := st.sink.Send(sctx, n)
		took := time.Since(start)
		cancel()

		s.record(ctx, name, n, err, took)
		if err != nil {
			derr := &DeliveryError{Sink: name, ItemID: n.ItemID, Err: err}
			s.log.Warn("notification delivery failed",
				logx.String("sink", name),
				logx.Int("item_id", n.ItemID),
				logx.Duration("took", took),
				logx.Err(err),
			)
			errs = append(errs, derr)
			continue
		}
		s.log.Info("notification sent",
			logx.String("sink", name),
			logx.Int("item_id", n.ItemID),
			logx.String("title", n.Title),
		)
	}
	return errors.Join(errs...)
}

func (s *Service) record(ctx context.Context, sink string, n Notification, err error, took time.Duration) {
	item := HistoryItem{At: time.Now(), Sink: sink, ItemID: n.ItemID, OK: err == nil}
	if err != nil {
		item.Error = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()

	if s.journal == nil {
		return
	}
	// The journal write must not be cut short by an expired delivery context.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	jerr := s.journal.Append(jctx, storage.Entry{
		At:     item.At,
		ItemID: n.ItemID,
		Title:  n.Title,
		URL:    n.URL,
		Team:   n.Team,
		Board:  n.Board,
		Sink:   sink,
		OK:     item.OK,
		Error:  item.Error,
		TookMS: took.Milliseconds(),
	})
	if jerr != nil {
		s.log.Warn("journal append failed", logx.Int("item_id", n.ItemID), logx.Err(jerr))
	}
}

// Snapshot returns recent deliveries, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}
