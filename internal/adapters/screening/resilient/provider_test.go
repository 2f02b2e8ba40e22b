package resilient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amlchecker/internal/core/domainerrors"
	"amlchecker/internal/core/screening"
	"amlchecker/internal/testutil"
)

func upstreamDown(context.Context, screening.Query) (*screening.ProviderResponse, error) {
	return nil, &domainerrors.UpstreamError{Cause: errors.New("status 503"), StatusCode: 503, Attempts: 4}
}

func TestProvider_PassesThrough(t *testing.T) {
	mock := &testutil.MockProvider{}
	p := NewProvider(mock, Config{MaxConcurrent: 2, MaxFailures: 3}, testutil.NewNullLogger())

	resp, err := p.Search(context.Background(), screening.Query{Name: "Putin"})
	require.NoError(t, err)
	assert.NotNil(t, resp)
	require.Len(t, mock.Queries(), 1)
	assert.Equal(t, "Putin", mock.Queries()[0].Name)
}

func TestProvider_OpensOnUpstreamFailures(t *testing.T) {
	mock := &testutil.MockProvider{SearchFunc: upstreamDown}
	p := NewProvider(mock, Config{MaxFailures: 2, Cooldown: time.Hour}, testutil.NewNullLogger())

	for i := 0; i < 2; i++ {
		_, err := p.Search(context.Background(), screening.Query{Name: "x"})
		assert.True(t, domainerrors.IsUpstream(err))
	}
	assert.Equal(t, StateOpen, p.State())

	_, err := p.Search(context.Background(), screening.Query{Name: "x"})
	var upstream *domainerrors.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, upstream.Attempts)
	assert.Len(t, mock.Queries(), 2, "open breaker must not reach the provider")
}

func TestProvider_NonUpstreamErrorsDoNotTrip(t *testing.T) {
	mock := &testutil.MockProvider{SearchFunc: func(context.Context, screening.Query) (*screening.ProviderResponse, error) {
		return nil, errors.New("bug")
	}}
	p := NewProvider(mock, Config{MaxFailures: 1}, testutil.NewNullLogger())

	_, _ = p.Search(context.Background(), screening.Query{Name: "x"})
	_, _ = p.Search(context.Background(), screening.Query{Name: "x"})
	assert.Equal(t, StateClosed, p.State())
}

func TestProvider_ClientErrorsDoNotTrip(t *testing.T) {
	var healthy atomic.Bool
	mock := &testutil.MockProvider{SearchFunc: func(context.Context, screening.Query) (*screening.ProviderResponse, error) {
		if healthy.Load() {
			return &screening.ProviderResponse{Matches: []screening.RawMatch{}}, nil
		}
		return nil, &domainerrors.UpstreamError{Cause: errors.New("status 400"), StatusCode: 400, Attempts: 1}
	}}
	p := NewProvider(mock, Config{MaxFailures: 5, Cooldown: time.Hour}, testutil.NewNullLogger())

	for i := 0; i < 5; i++ {
		_, err := p.Search(context.Background(), screening.Query{Name: "x"})
		assert.True(t, domainerrors.IsUpstream(err))
	}
	assert.Equal(t, StateClosed, p.State())

	healthy.Store(true)
	_, err := p.Search(context.Background(), screening.Query{Name: "Putin"})
	assert.NoError(t, err)
}

func TestProvider_TransportFailuresTrip(t *testing.T) {
	mock := &testutil.MockProvider{SearchFunc: func(context.Context, screening.Query) (*screening.ProviderResponse, error) {
		return nil, &domainerrors.UpstreamError{Cause: errors.New("connection refused"), Attempts: 4}
	}}
	p := NewProvider(mock, Config{MaxFailures: 2, Cooldown: time.Hour}, testutil.NewNullLogger())

	for i := 0; i < 2; i++ {
		_, _ = p.Search(context.Background(), screening.Query{Name: "x"})
	}
	assert.Equal(t, StateOpen, p.State())
}

func TestProvider_CancelledProbeLeavesCircuitHalfOpen(t *testing.T) {
	mock := &testutil.MockProvider{SearchFunc: func(ctx context.Context, q screening.Query) (*screening.ProviderResponse, error) {
		if q.Name == "slow" {
			<-ctx.Done()
			return nil, &domainerrors.UpstreamError{Cause: ctx.Err(), Attempts: 1}
		}
		return upstreamDown(ctx, q)
	}}
	p := NewProvider(mock, Config{MaxFailures: 1, Cooldown: 10 * time.Second}, testutil.NewNullLogger())
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p.breaker.now = c.now

	_, _ = p.Search(context.Background(), screening.Query{Name: "x"})
	require.Equal(t, StateOpen, p.State())
	c.t = c.t.Add(10 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Search(ctx, screening.Query{Name: "slow"})
	require.Error(t, err)
	assert.Equal(t, StateHalfOpen, p.State())

	_, err = p.Search(context.Background(), screening.Query{Name: "x"})
	require.Error(t, err)
	assert.Equal(t, StateOpen, p.State(), "the next probe decides")
}

func TestProvider_LimitsConcurrency(t *testing.T) {
	var active, peak int32
	release := make(chan struct{})
	mock := &testutil.MockProvider{SearchFunc: func(context.Context, screening.Query) (*screening.ProviderResponse, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&active, -1)
		return &screening.ProviderResponse{Matches: []screening.RawMatch{}}, nil
	}}
	p := NewProvider(mock, Config{MaxConcurrent: 2}, testutil.NewNullLogger())

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Search(context.Background(), screening.Query{Name: "x"})
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Len(t, mock.Queries(), 6)
}

func TestProvider_WaitingForSlotHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	mock := &testutil.MockProvider{SearchFunc: func(context.Context, screening.Query) (*screening.ProviderResponse, error) {
		<-block
		return &screening.ProviderResponse{}, nil
	}}
	p := NewProvider(mock, Config{MaxConcurrent: 1}, testutil.NewNullLogger())

	go func() { _, _ = p.Search(context.Background(), screening.Query{Name: "first"}) }()
	require.Eventually(t, func() bool { return len(mock.Queries()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Search(ctx, screening.Query{Name: "second"})
	assert.True(t, domainerrors.IsUpstream(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
