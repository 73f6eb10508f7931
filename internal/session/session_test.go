package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/valuation"
	"github.com/wonny/vnvalue/pkg/logger"
)

type fakeEngine struct {
	appData    func(ctx context.Context, symbol string) (*engine.CompanySnapshot, error)
	historical func(ctx context.Context, symbol string) (*engine.HistoricalSeries, error)
	valuate    func(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error)
}

func (f *fakeEngine) FetchAppData(ctx context.Context, symbol string, period engine.Period) (*engine.CompanySnapshot, error) {
	return f.appData(ctx, symbol)
}

func (f *fakeEngine) FetchHistorical(ctx context.Context, symbol string) (*engine.HistoricalSeries, error) {
	return f.historical(ctx, symbol)
}

func (f *fakeEngine) Valuate(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error) {
	return f.valuate(ctx, symbol, req)
}

func fp(v float64) *float64 { return &v }

func company(symbol string, price float64) *engine.CompanySnapshot {
	return &engine.CompanySnapshot{
		Symbol:            symbol,
		CurrentPrice:      fp(price),
		SharesOutstanding: fp(1_000_000),
	}
}

func sampleResult(symbol string) *engine.ValuationResult {
	return &engine.ValuationResult{
		Symbol: symbol,
		Results: valuation.ModelResults{}.
			With(valuation.FCFE, 100000).
			With(valuation.FCFF, 110000).
			With(valuation.JustifiedPE, 90000).
			With(valuation.JustifiedPB, 95000),
	}
}

func happyEngine(price float64) *fakeEngine {
	return &fakeEngine{
		appData: func(ctx context.Context, symbol string) (*engine.CompanySnapshot, error) {
			return company(symbol, price), nil
		},
		historical: func(ctx context.Context, symbol string) (*engine.HistoricalSeries, error) {
			return &engine.HistoricalSeries{Periods: []string{"2024 Q1", "2024 Q2"}}, nil
		},
		valuate: func(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error) {
			return sampleResult(symbol), nil
		},
	}
}

func newSession(eng Engine) *Session {
	return New(eng, Config{NoticeTTL: time.Minute}, logger.Nop())
}

func TestNew_Defaults(t *testing.T) {
	s := newSession(happyEngine(100000))
	snap := s.Snapshot()

	assert.Equal(t, StateEmpty, snap.State)
	assert.Equal(t, valuation.EqualWeights(), snap.Weights)
	assert.Equal(t, valuation.DefaultAssumptions(), snap.Assumptions)
	assert.NotEmpty(t, snap.SessionID)
	assert.Nil(t, snap.Results)
}

func TestLoadAndCalculate(t *testing.T) {
	s := newSession(happyEngine(100000))

	require.NoError(t, s.Load(context.Background(), "vnm", ""))
	snap := s.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, "VNM", snap.Symbol)
	assert.Equal(t, engine.PeriodYear, snap.Period)
	assert.Equal(t, 2, snap.Historical.Len())

	require.NoError(t, s.Calculate(context.Background()))
	snap = s.Snapshot()
	assert.Equal(t, StateValued, snap.State)
	require.NotNil(t, snap.Outcome)
	assert.InDelta(t, 98750, snap.Outcome.WeightedValue, 1e-9)
	assert.InDelta(t, -1.25, *snap.Outcome.Upside, 1e-9)
	assert.Equal(t, valuation.Hold, snap.Outcome.Recommendation.Action)
	assert.Equal(t, NoticeSuccess, snap.Notice.Level)

	equity, ok := snap.EquityValue(valuation.FCFE)
	require.True(t, ok)
	assert.InDelta(t, 100000*1_000_000.0, equity, 1e-3)
}

func TestSetWeight_RecomputesWithoutEngine(t *testing.T) {
	eng := happyEngine(100000)
	calls := 0
	valuate := eng.valuate
	eng.valuate = func(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error) {
		calls++
		return valuate(ctx, symbol, req)
	}

	s := newSession(eng)
	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))
	require.NoError(t, s.Calculate(context.Background()))
	before := s.Snapshot()

	require.NoError(t, s.SetWeight(valuation.FCFE, 50))
	require.NoError(t, s.SetWeight(valuation.FCFF, 50))
	require.NoError(t, s.SetWeight(valuation.JustifiedPE, 0))
	require.NoError(t, s.SetWeight(valuation.JustifiedPB, 0))

	after := s.Snapshot()
	assert.Equal(t, 1, calls, "weight edits never call the engine")
	assert.Equal(t, before.Results, after.Results, "model values unchanged")
	assert.InDelta(t, 105000, after.Outcome.WeightedValue, 1e-9)
	assert.Equal(t, valuation.Hold, after.Outcome.Recommendation.Action)

	require.NoError(t, s.NormalizeWeights())
	assert.InDelta(t, 98750, s.Snapshot().Outcome.WeightedValue, 1e-9)
}

func TestSetWeight_Rejected(t *testing.T) {
	s := newSession(happyEngine(100000))
	err := s.SetWeight(valuation.FCFE, 120)
	assert.ErrorIs(t, err, valuation.ErrWeightOutOfRange)
	assert.Equal(t, 25.0, s.Snapshot().Weights.FCFE)
}

func TestSetAssumptions_FlagsResults(t *testing.T) {
	s := newSession(happyEngine(100000))
	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))

	a := valuation.DefaultAssumptions()
	a.WACC = 12
	require.NoError(t, s.SetAssumptions(a))
	assert.False(t, s.Snapshot().AssumptionsChanged, "nothing computed yet")

	require.NoError(t, s.Calculate(context.Background()))
	a.WACC = 13
	require.NoError(t, s.SetAssumptions(a))

	snap := s.Snapshot()
	assert.True(t, snap.AssumptionsChanged)
	assert.Equal(t, 13.0, snap.Assumptions.WACC)
	assert.NotNil(t, snap.Outcome)
}

func TestUpdateAssumptions_ConcurrentFieldsBothApply(t *testing.T) {
	s := newSession(happyEngine(100000))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.UpdateAssumptions(func(a *valuation.Assumptions) error {
				a.WACC += 0.1
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = s.UpdateAssumptions(func(a *valuation.Assumptions) error {
				a.TerminalGrowth += 0.01
				return nil
			})
		}()
	}
	wg.Wait()

	def := valuation.DefaultAssumptions()
	got := s.Snapshot().Assumptions
	assert.InDelta(t, def.WACC+5, got.WACC, 1e-9)
	assert.InDelta(t, def.TerminalGrowth+0.5, got.TerminalGrowth, 1e-9)
}

func TestUpdateAssumptions_ErrorLeavesValues(t *testing.T) {
	s := newSession(happyEngine(100000))
	before := s.Snapshot()

	errBad := errors.New("bad patch")
	err := s.UpdateAssumptions(func(a *valuation.Assumptions) error {
		a.WACC = 99
		return errBad
	})
	assert.ErrorIs(t, err, errBad)

	after := s.Snapshot()
	assert.Equal(t, before.Assumptions, after.Assumptions)
	assert.Equal(t, before.Version, after.Version)
}

func TestCalculate_SendsCurrentInputs(t *testing.T) {
	eng := happyEngine(100000)
	var got engine.ValuationRequest
	eng.valuate = func(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error) {
		got = req
		return sampleResult(symbol), nil
	}

	s := newSession(eng)
	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))
	require.NoError(t, s.SetWeight(valuation.JustifiedPB, 10))
	require.NoError(t, s.Calculate(context.Background()))

	assert.Equal(t, 10.0, got.ModelWeights.JustifiedPB)
	assert.Equal(t, 10.5, got.WACC)
	assert.Equal(t, 5, got.ProjectionYears)
}

func TestCalculate_RequiresLoad(t *testing.T) {
	s := newSession(happyEngine(100000))
	err := s.Calculate(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Equal(t, NoticeError, s.Snapshot().Notice.Level)
}

func TestLoad_FailureClearsSession(t *testing.T) {
	eng := happyEngine(100000)
	s := newSession(eng)
	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))
	require.NoError(t, s.Calculate(context.Background()))

	eng.appData = func(ctx context.Context, symbol string) (*engine.CompanySnapshot, error) {
		return nil, engine.ErrNotFound
	}
	err := s.Load(context.Background(), "ZZZ", engine.PeriodYear)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	snap := s.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Empty(t, snap.Symbol)
	assert.Nil(t, snap.Company)
	assert.Nil(t, snap.Results)
	assert.Nil(t, snap.Outcome)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, NoticeError, snap.Notice.Level)
}

func TestLoad_InvalidSymbol(t *testing.T) {
	s := newSession(happyEngine(100000))
	err := s.Load(context.Background(), "  ", engine.PeriodYear)
	assert.ErrorIs(t, err, engine.ErrInvalidSymbol)
	assert.Equal(t, StateEmpty, s.Snapshot().State)
}

func TestLoad_Deadline(t *testing.T) {
	eng := happyEngine(100000)
	eng.appData = func(ctx context.Context, symbol string) (*engine.CompanySnapshot, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s := New(eng, Config{LoadTimeout: 30 * time.Millisecond}, logger.Nop())
	err := s.Load(context.Background(), "VNM", engine.PeriodYear)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateEmpty, s.Snapshot().State)
}

func TestCalculate_FailureKeepsCompany(t *testing.T) {
	eng := happyEngine(100000)
	s := newSession(eng)
	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))
	require.NoError(t, s.Calculate(context.Background()))

	eng.valuate = func(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error) {
		return nil, engine.ErrServer
	}
	err := s.Calculate(context.Background())
	assert.ErrorIs(t, err, engine.ErrServer)

	snap := s.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.NotNil(t, snap.Company)
	assert.Nil(t, snap.Results)
	assert.Nil(t, snap.Outcome)
}

func TestCalculate_ZeroPrice(t *testing.T) {
	s := newSession(happyEngine(0))
	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))
	require.NoError(t, s.Calculate(context.Background()))

	out := s.Snapshot().Outcome
	require.NotNil(t, out)
	assert.False(t, out.UpsideDefined())
	assert.Nil(t, out.Recommendation)
}

func TestCalculate_EngineRecommendationWins(t *testing.T) {
	eng := happyEngine(50000)
	eng.valuate = func(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error) {
		res := sampleResult(symbol)
		res.MarketComparison = &engine.MarketComparison{Recommendation: "HOLD"}
		return res, nil
	}

	s := newSession(eng)
	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))
	require.NoError(t, s.Calculate(context.Background()))

	rec := s.Snapshot().Outcome.Recommendation
	assert.Equal(t, valuation.Hold, rec.Action)
	assert.Equal(t, valuation.SourceEngine, rec.Source)
}

func TestLoad_StaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	eng := happyEngine(100000)
	eng.appData = func(ctx context.Context, symbol string) (*engine.CompanySnapshot, error) {
		if symbol == "SLOW" {
			<-release
		}
		return company(symbol, 100000), nil
	}
	s := newSession(eng)

	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowErr = s.Load(context.Background(), "SLOW", engine.PeriodYear)
	}()

	// wait until the slow load holds its ticket
	require.Eventually(t, func() bool { return s.Snapshot().Pending == "load" }, time.Second, time.Millisecond)

	require.NoError(t, s.Load(context.Background(), "FAST", engine.PeriodYear))
	close(release)
	wg.Wait()

	assert.ErrorIs(t, slowErr, ErrStale)
	assert.Equal(t, "FAST", s.Snapshot().Symbol)
}

func TestCalculate_InvalidatedByNewLoad(t *testing.T) {
	release := make(chan struct{})
	eng := happyEngine(100000)
	eng.valuate = func(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error) {
		<-release
		return sampleResult(symbol), nil
	}
	s := newSession(eng)
	require.NoError(t, s.Load(context.Background(), "AAA", engine.PeriodYear))

	done := make(chan error, 1)
	go func() { done <- s.Calculate(context.Background()) }()
	require.Eventually(t, func() bool { return s.Snapshot().Pending == "calculate" }, time.Second, time.Millisecond)

	require.NoError(t, s.Load(context.Background(), "BBB", engine.PeriodYear))
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	snap := s.Snapshot()
	assert.Equal(t, "BBB", snap.Symbol)
	assert.Equal(t, StateLoaded, snap.State)
	assert.Nil(t, snap.Results)
}

func TestCalculate_StartedDuringLoadIsDiscarded(t *testing.T) {
	loadGate := make(chan struct{})
	calcGate := make(chan struct{})
	calcStarted := make(chan struct{}, 1)
	eng := happyEngine(100000)
	eng.appData = func(ctx context.Context, symbol string) (*engine.CompanySnapshot, error) {
		if symbol == "BBB" {
			<-loadGate
			return company(symbol, 50000), nil
		}
		return company(symbol, 100000), nil
	}
	eng.valuate = func(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error) {
		assert.Equal(t, "AAA", symbol)
		calcStarted <- struct{}{}
		<-calcGate
		return sampleResult(symbol), nil
	}
	s := newSession(eng)
	require.NoError(t, s.Load(context.Background(), "AAA", engine.PeriodYear))

	loadDone := make(chan error, 1)
	go func() { loadDone <- s.Load(context.Background(), "BBB", engine.PeriodYear) }()
	require.Eventually(t, func() bool { return s.Snapshot().Pending == "load" }, time.Second, time.Millisecond)

	calcDone := make(chan error, 1)
	go func() { calcDone <- s.Calculate(context.Background()) }()
	<-calcStarted

	// BBB lands before AAA's valuation returns
	close(loadGate)
	require.NoError(t, <-loadDone)
	close(calcGate)

	assert.ErrorIs(t, <-calcDone, ErrStale)
	snap := s.Snapshot()
	assert.Equal(t, "BBB", snap.Symbol)
	assert.Equal(t, StateLoaded, snap.State)
	assert.Nil(t, snap.Results, "AAA's model values must not attach to BBB")
	assert.Nil(t, snap.Outcome)
}

func TestCalculate_ReturningDuringLoadIsDiscarded(t *testing.T) {
	loadGate := make(chan struct{})
	eng := happyEngine(100000)
	eng.appData = func(ctx context.Context, symbol string) (*engine.CompanySnapshot, error) {
		if symbol == "BBB" {
			<-loadGate
		}
		return company(symbol, 100000), nil
	}
	s := newSession(eng)
	require.NoError(t, s.Load(context.Background(), "AAA", engine.PeriodYear))

	loadDone := make(chan error, 1)
	go func() { loadDone <- s.Load(context.Background(), "BBB", engine.PeriodYear) }()
	require.Eventually(t, func() bool { return s.Snapshot().Pending == "load" }, time.Second, time.Millisecond)

	assert.ErrorIs(t, s.Calculate(context.Background()), ErrStale)
	assert.Nil(t, s.Snapshot().Results)
	assert.Equal(t, "load", s.Snapshot().Pending)

	close(loadGate)
	require.NoError(t, <-loadDone)
	assert.Equal(t, "BBB", s.Snapshot().Symbol)
	assert.Empty(t, s.Snapshot().Pending)
}

func TestLoad_HistoricalUnavailableKeepsCompany(t *testing.T) {
	eng := happyEngine(100000)
	eng.historical = func(ctx context.Context, symbol string) (*engine.HistoricalSeries, error) {
		return nil, &engine.AppError{StatusCode: 200, Message: "No historical data available"}
	}
	s := newSession(eng)

	require.NoError(t, s.Load(context.Background(), "TNA", engine.PeriodYear))
	snap := s.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	require.NotNil(t, snap.Company)
	require.NotNil(t, snap.Historical)
	assert.Zero(t, snap.Historical.Len())
	require.NotNil(t, snap.Notice)
	assert.Equal(t, NoticeInfo, snap.Notice.Level)

	require.NoError(t, s.Calculate(context.Background()))
	require.NotNil(t, s.Snapshot().Outcome)
	assert.InDelta(t, 98750, s.Snapshot().Outcome.WeightedValue, 1e-9)
}

func TestFailPolicy(t *testing.T) {
	eng := happyEngine(100000)
	eng.valuate = func(ctx context.Context, symbol string, req engine.ValuationRequest) (*engine.ValuationResult, error) {
		res := sampleResult(symbol)
		res.Results.FCFE = nil
		return res, nil
	}

	s := newSession(eng)
	s.opts.Policy = valuation.Fail
	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))

	err := s.Calculate(context.Background())
	assert.ErrorIs(t, err, valuation.ErrMissingModel)
	snap := s.Snapshot()
	assert.NotNil(t, snap.Results)
	assert.Nil(t, snap.Outcome)
}

func TestNoticeExpires(t *testing.T) {
	s := New(happyEngine(1), Config{NoticeTTL: 100 * time.Millisecond}, logger.Nop())

	expired := make(chan struct{}, 1)
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		if snap.Notice == nil {
			select {
			case expired <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	s.Notify(NoticeInfo, "hello")
	assert.Equal(t, "hello", s.Snapshot().Notice.Message)

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("notice did not expire")
	}
	assert.Nil(t, s.Snapshot().Notice)
}

func TestSubscribe(t *testing.T) {
	s := newSession(happyEngine(100000))

	var mu sync.Mutex
	var versions []uint64
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		versions = append(versions, snap.Version)
		mu.Unlock()
	})

	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))
	unsubscribe()
	unsubscribe()
	require.NoError(t, s.NormalizeWeights())

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, versions, 2, "pending + loaded")
	assert.Less(t, versions[0], versions[1])
}

func TestConcurrentAccess(t *testing.T) {
	s := newSession(happyEngine(100000))
	require.NoError(t, s.Load(context.Background(), "VNM", engine.PeriodYear))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_ = s.Calculate(context.Background())
			case 1:
				_ = s.SetWeight(valuation.FCFF, float64(i))
			default:
				_ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	err := s.Calculate(context.Background())
	if err != nil && !errors.Is(err, ErrStale) {
		t.Fatalf("unexpected error: %v", err)
	}
}
