// Package app wires configuration, the Azure DevOps client, the notifier and
// the poller into one process.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"boardwatch/internal/ado"
	"boardwatch/internal/config"
	"boardwatch/internal/notifier"
	"boardwatch/internal/observability/pprof"
	"boardwatch/internal/poller"
	"boardwatch/internal/storage"
	logx "boardwatch/pkg/logx"
)

// Options are the process inputs that do not come from the config file.
type Options struct {
	ConfigPath string
	// LookupEnv reads secrets; default os.LookupEnv.
	LookupEnv config.LookupFunc
	// HTTPClient is used for the Slack webhook; default has no timeout
	// (each send is bounded by notifier.timeout).
	HTTPClient *http.Client
	// DisableWatch turns off the config drift watcher.
	DisableWatch bool
}

// Target is what startup resolved. It never changes while running.
type Target struct {
	Project       string
	Team          string
	Board         ado.Board
	Column        ado.Column
	AreaPredicate string
}

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log     logx.Logger
	logs    *logx.Service
	journal storage.Journal

	target Target
	notif  *notifier.Service
	poll   *poller.Poller
	debug  *pprof.Service

	watch    bool
	watchdog time.Duration

	smu    sync.Mutex
	status cycleStatus
}

type cycleStatus struct {
	Cycles   int                `json:"cycles"`
	LastAt   time.Time          `json:"last_at"`
	Last     poller.CycleResult `json:"last"`
	LastErr  string             `json:"last_error,omitempty"`
	Failures int                `json:"consecutive_failures"`
}

// New loads configuration and secrets, resolves the board, column and team
// area, and builds the poller. Any failure here is fatal: nothing is polled
// until every name resolves.
func New(ctx context.Context, opts Options) (*App, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	secrets, err := config.LoadSecrets(cfg, lookup)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	appLog := log.With(logx.String("comp", "app"))

	a := &App{cfgm: cfgm, cfg: cfg, log: appLog, logs: logSvc, watch: !opts.DisableWatch}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	adoCfg, err := mapADOConfig(cfg, secrets.AzurePAT)
	if err != nil {
		return nil, err
	}
	client := ado.NewClient(adoCfg, log.With(logx.String("comp", "ado")))

	target, err := resolveTarget(ctx, client, cfg.Azure, appLog)
	if err != nil {
		return nil, err
	}
	a.target = target

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		j, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		a.journal = j
		appLog.Info("delivery journal enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	sinks, err := buildSinks(cfg, secrets, ncfg, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	a.notif = notifier.New(ncfg, log.With(logx.String("comp", "notifier")), a.journal, sinks...)

	sch, err := mapSchedule(cfg)
	if err != nil {
		return nil, err
	}
	a.watchdog = watchdogInterval(appLog)
	if a.watchdog > 0 && sch.Kind == poller.SpecInterval && sch.Every >= a.watchdog {
		appLog.Warn("poll interval is not shorter than the systemd watchdog; the service may be restarted while idle",
			logx.Duration("interval", sch.Every), logx.Duration("watchdog", a.watchdog))
	}

	a.poll = poller.New(poller.Config{
		Project:       target.Project,
		Team:          target.Team,
		Board:         target.Board.Name,
		Column:        target.Column.Name,
		AreaPredicate: target.AreaPredicate,
		Schedule:      sch,
	}, client, a.notif,
		poller.WithLogger(log.With(logx.String("comp", "poller"))),
		poller.WithAfterCycle(a.afterCycle),
	)

	dcfg, err := mapDebugConfig(cfg, secrets.DebugToken)
	if err != nil {
		return nil, err
	}
	if dcfg.Enabled {
		a.debug = pprof.New(dcfg, log.With(logx.String("comp", "pprof")), a.health, a.snapshot)
		if err := a.debug.Listen(); err != nil {
			return nil, err
		}
	}

	appLog.Info("boardwatch ready",
		logx.String("schedule", sch.String()),
		logx.Strings("sinks", a.notif.Sinks()),
	)
	ok = true
	return a, nil
}

func resolveTarget(ctx context.Context, client *ado.Client, az config.AzureConfig, log logx.Logger) (Target, error) {
	board, err := client.ResolveBoard(ctx, az.Project, az.Team, az.Board)
	if err != nil {
		return Target{}, fmt.Errorf("resolve board: %w", err)
	}
	log.Info("board resolved", logx.String("board", board.Name), logx.String("id", string(board.ID)))

	column, err := client.ResolveColumn(ctx, az.Project, az.Team, board.ID, az.Column)
	if err != nil {
		return Target{}, fmt.Errorf("resolve column: %w", err)
	}
	log.Info("column resolved", logx.String("column", column.Name), logx.String("id", string(column.ID)))

	pred, err := client.TeamAreaPredicate(ctx, az.Project, az.Team)
	if err != nil {
		return Target{}, fmt.Errorf("resolve team area: %w", err)
	}
	log.Info("area predicate", logx.String("team", az.Team), logx.String("predicate", pred))

	return Target{
		Project:       az.Project,
		Team:          az.Team,
		Board:         board,
		Column:        column,
		AreaPredicate: pred,
	}, nil
}

func buildSinks(cfg *config.Config, secrets config.Secrets, ncfg notifier.Config, hc *http.Client) ([]notifier.Sink, error) {
	sinks := []notifier.Sink{
		notifier.NewSlackSink(secrets.SlackWebhook, cfg.Notifier.Slack.IconEmoji, ncfg.Template, hc),
	}
	if tg := cfg.Notifier.Telegram; tg.Enabled {
		s, err := notifier.NewTelegramSink(notifier.TelegramConfig{
			Token:    secrets.TelegramToken,
			ChatID:   tg.ChatID,
			ThreadID: tg.ThreadID,
			Timeout:  ncfg.Timeout,
		}, ncfg.Template)
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// Target returns what startup resolved.
func (a *App) Target() Target { return a.target }

// Notifier exposes the delivery service (history, sink names).
func (a *App) Notifier() *notifier.Service { return a.notif }

// Run polls until ctx is canceled, then releases resources. It returns nil
// on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return guard(a.log, "poller", func() error { return a.poll.Run(gctx) }) })
	if a.watch {
		g.Go(func() error {
			return guard(a.log, "config.watch", func() error {
				return a.cfgm.Watch(gctx, func(*config.Config) {
					a.log.Warn("config file changed on disk; restart required for changes to take effect",
						logx.String("path", a.cfgm.Path()))
				})
			})
		})
	}

	if a.debug != nil {
		g.Go(func() error { return a.serveDebug(gctx) })
	}

	sdNotify(a.log, sdReady)
	err := g.Wait()
	sdNotify(a.log, sdStopping)
	if err != nil {
		a.log.Error("stopped with error", logx.Err(err))
		return err
	}
	a.log.Info("stopped")
	return nil
}

// serveDebug runs the diagnostics server. Its failure is logged and never
// stops polling.
func (a *App) serveDebug(ctx context.Context) error {
	err := guard(a.log, "pprof", func() error { return a.debug.Serve(ctx) })
	if err != nil {
		a.log.Error("diagnostics server failed; polling continues", logx.Err(err))
	}
	return nil
}

func (a *App) afterCycle(res poller.CycleResult, err error) {
	a.smu.Lock()
	a.status.Cycles++
	a.status.LastAt = time.Now()
	a.status.Last = res
	if err != nil {
		a.status.LastErr = err.Error()
		a.status.Failures++
	} else {
		a.status.LastErr = ""
		a.status.Failures = 0
	}
	a.smu.Unlock()

	if a.watchdog > 0 {
		sdNotify(a.log, sdWatchdog)
	}
}

// health fails once the last cycle errored; it is healthy before the first cycle.
func (a *App) health() error {
	a.smu.Lock()
	defer a.smu.Unlock()
	if a.status.LastErr != "" {
		return fmt.Errorf("last cycle failed (%d in a row): %s", a.status.Failures, a.status.LastErr)
	}
	return nil
}

func (a *App) snapshot() any {
	a.smu.Lock()
	st := a.status
	a.smu.Unlock()
	return struct {
		Target     Target                 `json:"target"`
		Sinks      []string               `json:"sinks"`
		Poll       cycleStatus            `json:"poll"`
		Deliveries []notifier.HistoryItem `json:"deliveries"`
	}{a.target, a.notif.Sinks(), st, a.notif.Snapshot()}
}

func (a *App) close() {
	if a.debug != nil {
		if err := a.debug.Close(); err != nil {
			a.log.Warn("diagnostics listener close failed", logx.Err(err))
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn("journal close failed", logx.Err(err))
		}
		a.journal = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}

// guard turns a panic in fn into an error so errgroup cancels its siblings.
func guard(log logx.Logger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("goroutine panic", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	return fn()
}
