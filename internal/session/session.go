package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/profile"
	"github.com/wonny/vnvalue/internal/valuation"
	"github.com/wonny/vnvalue/pkg/logger"
)

var (
	// ErrNotLoaded is returned by Calculate before a successful Load
	ErrNotLoaded = errors.New("no company data loaded")
	// ErrStale is returned when a newer request superseded this one
	ErrStale = errors.New("response superseded by a newer request")
)

// Engine is the part of the engine client the session needs
type Engine interface {
	FetchAppData(ctx context.Context, symbol string, period engine.Period) (*engine.CompanySnapshot, error)
	FetchHistorical(ctx context.Context, symbol string) (*engine.HistoricalSeries, error)
	Valuate(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error)
}

// Config holds session tuning
type Config struct {
	LoadTimeout time.Duration
	CalcTimeout time.Duration
	NoticeTTL   time.Duration
	Profile     *profile.Profile
}

// Session is the single source of truth for one user's valuation workflow.
// Safe for concurrent use.
// ⭐ SSOT: handlers and the websocket hub read state only through Snapshot
type Session struct {
	mu     sync.Mutex
	id     string
	engine Engine
	logger *logger.Logger
	cfg    Config
	opts   valuation.Options
	now    func() time.Time

	state              State
	pending            string
	symbol             string
	period             engine.Period
	company            *engine.CompanySnapshot
	historical         *engine.HistoricalSeries
	assumptions        valuation.Assumptions
	weights            valuation.ModelWeights
	assumptionsChanged bool
	result             *engine.ValuationResult
	outcome            *valuation.Outcome
	notice             *Notice

	// request-sequence guard
	seq        uint64
	loadTicket uint64
	calcTicket uint64
	// dataTicket is the load that produced the stored company data;
	// it only moves when a load completes
	dataTicket uint64

	version   uint64
	noticeSeq uint64
	subs      map[int]func(Snapshot)
	nextSub   int
}

// New creates an empty session seeded from the profile
func New(eng Engine, cfg Config, log *logger.Logger) *Session {
	if cfg.Profile == nil {
		cfg.Profile = profile.Default()
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 15 * time.Second
	}
	if cfg.CalcTimeout <= 0 {
		cfg.CalcTimeout = 30 * time.Second
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = 5 * time.Second
	}

	id := uuid.NewString()
	return &Session{
		id:          id,
		engine:      eng,
		logger:      log.WithField("session_id", id),
		cfg:         cfg,
		opts:        cfg.Profile.Options(),
		now:         time.Now,
		state:       StateEmpty,
		assumptions: cfg.Profile.Assumptions,
		weights:     cfg.Profile.Weights,
		subs:        make(map[int]func(Snapshot)),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Load fetches the company snapshot and historical series in parallel under
// one deadline. A company snapshot failure clears the session; a missing
// history only leaves the series empty.
func (s *Session) Load(ctx context.Context, symbol string, period engine.Period) error {
	sym, err := engine.NormalizeSymbol(symbol)
	if err != nil {
		s.Notify(NoticeError, "Enter a valid stock symbol")
		return err
	}
	if period == "" {
		period = engine.PeriodYear
	}

	s.mu.Lock()
	s.seq++
	ticket := s.seq
	s.loadTicket = ticket
	s.pending = "load"
	s.touch()
	s.mu.Unlock()
	s.publish()

	log := s.logger.WithFields(map[string]interface{}{
		"symbol": sym,
		"period": period,
		"ticket": ticket,
	})
	log.Info("Loading company data")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.LoadTimeout)
	defer cancel()

	var (
		company    *engine.CompanySnapshot
		historical *engine.HistoricalSeries
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		company, err = s.engine.FetchAppData(gctx, sym, period)
		return err
	})
	// history only feeds charts; a symbol without it can still be valued
	var histErr error
	g.Go(func() error {
		historical, histErr = s.engine.FetchHistorical(gctx, sym)
		return nil
	})
	loadErr := g.Wait()

	s.mu.Lock()
	if ticket != s.loadTicket {
		s.mu.Unlock()
		log.Debug("Discarding superseded load")
		return ErrStale
	}

	s.pending = ""
	s.dataTicket = ticket
	if loadErr != nil {
		s.clear()
		s.postNotice(NoticeError, fmt.Sprintf("Could not load %s: %v", sym, loadErr))
		s.touch()
		s.mu.Unlock()
		s.publish()

		log.WithError(loadErr).Warn("Load failed")
		return loadErr
	}

	s.symbol = sym
	s.period = period
	s.company = company
	s.historical = historical
	s.result = nil
	s.outcome = nil
	s.assumptionsChanged = false
	s.state = StateLoaded
	if histErr != nil {
		s.historical = &engine.HistoricalSeries{}
		s.postNotice(NoticeInfo, fmt.Sprintf("Loaded %s; no historical data available", sym))
	} else {
		s.postNotice(NoticeSuccess, fmt.Sprintf("Loaded %s", sym))
	}
	periods := s.historical.Len()
	s.touch()
	s.mu.Unlock()
	s.publish()

	if histErr != nil {
		log.WithError(histErr).Warn("Historical data unavailable")
	}
	log.WithField("periods", periods).Info("Company data loaded")
	return nil
}

// Calculate asks the engine for the four model values and derives the
// weighted target. On failure company data is kept and only the valuation
// output is cleared.
func (s *Session) Calculate(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateEmpty {
		s.mu.Unlock()
		s.Notify(NoticeError, "Load a stock before calculating")
		return ErrNotLoaded
	}
	s.seq++
	ticket := s.seq
	s.calcTicket = ticket
	lineage := s.dataTicket
	sym := s.symbol
	req := engine.NewValuationRequest(s.assumptions, s.weights)
	if s.pending != "load" {
		s.pending = "calculate"
	}
	s.touch()
	s.mu.Unlock()
	s.publish()

	log := s.logger.WithFields(map[string]interface{}{
		"symbol": sym,
		"ticket": ticket,
	})
	log.Info("Calculating valuation")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CalcTimeout)
	defer cancel()

	res, calcErr := s.engine.Valuate(ctx, sym, req)

	s.mu.Lock()
	if ticket != s.calcTicket || lineage != s.dataTicket || s.pending == "load" {
		s.mu.Unlock()
		log.Debug("Discarding superseded calculation")
		return ErrStale
	}

	if s.pending == "calculate" {
		s.pending = ""
	}
	if calcErr != nil {
		s.result = nil
		s.outcome = nil
		s.state = StateLoaded
		s.postNotice(NoticeError, fmt.Sprintf("Valuation failed: %v", calcErr))
		s.touch()
		s.mu.Unlock()
		s.publish()

		log.WithError(calcErr).Warn("Calculation failed")
		return calcErr
	}

	s.result = res
	s.state = StateValued
	s.assumptionsChanged = false
	err := s.recompute()
	if err == nil {
		s.postNotice(NoticeSuccess, "Valuation complete")
	}
	s.touch()
	s.mu.Unlock()
	s.publish()

	if err != nil {
		log.WithError(err).Warn("Aggregation failed")
		return err
	}
	log.Info("Valuation complete")
	return nil
}

// SetWeight changes one model weight and recomputes the outcome locally.
// The engine is not called and the model values are untouched.
func (s *Session) SetWeight(m valuation.Model, pct float64) error {
	s.mu.Lock()
	w := s.weights
	if err := w.Set(m, pct); err != nil {
		s.mu.Unlock()
		return err
	}
	s.weights = w
	err := s.recompute()
	s.touch()
	s.mu.Unlock()
	s.publish()
	return err
}

// SetWeights replaces all four weights
func (s *Session) SetWeights(w valuation.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.weights = w
	err := s.recompute()
	s.touch()
	s.mu.Unlock()
	s.publish()
	return err
}

// NormalizeWeights resets the weights to 25/25/25/25
func (s *Session) NormalizeWeights() error {
	return s.SetWeights(valuation.EqualWeights())
}

// SetAssumptions replaces the model assumptions. They take effect on the
// next Calculate; existing model values are kept and flagged.
func (s *Session) SetAssumptions(a valuation.Assumptions) error {
	return s.UpdateAssumptions(func(cur *valuation.Assumptions) error {
		*cur = a
		return nil
	})
}

// UpdateAssumptions applies fn to a copy of the current assumptions under
// the session lock, so concurrent partial edits do not overwrite each other.
// An error from fn leaves the assumptions unchanged.
func (s *Session) UpdateAssumptions(fn func(*valuation.Assumptions) error) error {
	s.mu.Lock()
	a := s.assumptions
	if err := fn(&a); err != nil {
		s.mu.Unlock()
		return err
	}
	changed := a != s.assumptions
	s.assumptions = a
	if changed && s.result != nil {
		s.assumptionsChanged = true
	}
	err := s.recompute()
	s.touch()
	s.mu.Unlock()
	s.publish()
	return err
}

// Notify posts a transient notice
func (s *Session) Notify(level NoticeLevel, message string) {
	s.mu.Lock()
	s.postNotice(level, message)
	s.touch()
	s.mu.Unlock()
	s.publish()
}

// Snapshot returns the current immutable view
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every state change and returns an
// unsubscribe func. fn runs outside the session lock.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// recompute derives the outcome from the stored model values.
// Caller holds mu.
func (s *Session) recompute() error {
	if s.result == nil {
		s.outcome = nil
		return nil
	}

	price := s.company.Price()
	if price == 0 && s.result.MarketComparison != nil && s.result.MarketComparison.CurrentPrice != nil {
		price = *s.result.MarketComparison.CurrentPrice
	}

	out, err := valuation.Evaluate(s.result.Results, s.weights, price, s.result.Recommendation(), s.opts)
	if err != nil {
		s.outcome = nil
		s.postNotice(NoticeError, fmt.Sprintf("Cannot blend valuation: %v", err))
		return err
	}
	s.outcome = &out
	return nil
}

// clear drops everything a load produced. Caller holds mu.
func (s *Session) clear() {
	s.state = StateEmpty
	s.symbol = ""
	s.period = ""
	s.company = nil
	s.historical = nil
	s.result = nil
	s.outcome = nil
	s.assumptionsChanged = false
}

// postNotice replaces the current notice and schedules its expiry.
// Caller holds mu.
func (s *Session) postNotice(level NoticeLevel, message string) {
	s.noticeSeq++
	id := s.noticeSeq
	s.notice = &Notice{
		ID:        id,
		Level:     level,
		Message:   message,
		ExpiresAt: s.now().Add(s.cfg.NoticeTTL),
	}
	time.AfterFunc(s.cfg.NoticeTTL, func() { s.expireNotice(id) })
}

func (s *Session) expireNotice(id uint64) {
	s.mu.Lock()
	if s.notice == nil || s.notice.ID != id {
		s.mu.Unlock()
		return
	}
	s.notice = nil
	s.touch()
	s.mu.Unlock()
	s.publish()
}

// touch bumps the version. Caller holds mu.
func (s *Session) touch() {
	s.version++
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:          s.id,
		Version:            s.version,
		State:              s.state,
		Pending:            s.pending,
		UpdatedAt:          s.now(),
		Symbol:             s.symbol,
		Period:             s.period,
		Company:            s.company,
		Historical:         s.historical,
		Assumptions:        s.assumptions,
		Weights:            s.weights,
		AssumptionsChanged: s.assumptionsChanged,
	}

	if s.result != nil {
		results := s.result.Results.Clone()
		fin := s.result.FinancialData
		snap.Results = &results
		snap.EngineWeightedAverage = s.result.EngineWeightedAverage
		snap.FinancialData = &fin
		snap.MarketComparison = s.result.MarketComparison
		snap.EngineSummary = s.result.Summary
	}
	if s.outcome != nil {
		out := *s.outcome
		snap.Outcome = &out
	}
	if s.notice != nil && s.now().Before(s.notice.ExpiresAt) {
		n := *s.notice
		snap.Notice = &n
	}
	return snap
}

// publish sends the current snapshot to every subscriber
func (s *Session) publish() {
	s.mu.Lock()
	if len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
