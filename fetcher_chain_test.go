package indicatorpipe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulllvoid/indicatorpipe"
)

func TestFetcherChain_NewFetcherChain(t *testing.T) {
	t.Parallel()

	chain := indicatorpipe.NewFetcherChain()

	assert.Equal(t, 0, chain.FetcherCount())
	assert.Equal(t, "chain", chain.Name())

	_, err := chain.Fetch(context.Background(), "PRT", lifeExpectancy, 2019)
	assert.ErrorIs(t, err, indicatorpipe.ErrNoFetcherAvailable)
}

func TestFetcherChain_PriorityOrder(t *testing.T) {
	t.Parallel()

	api := newStubFetcher("api", 10, map[indicatorpipe.CountryKey]float64{"PRT": 81.1})
	overrides := newStubFetcher("overrides", 0, map[indicatorpipe.CountryKey]float64{"PRT": 80.0})

	chain := indicatorpipe.NewFetcherChain(
		indicatorpipe.ChainWithFetcher(api),
		indicatorpipe.ChainWithFetcher(overrides),
	)

	rec, err := chain.Fetch(context.Background(), "PRT", lifeExpectancy, 2019)

	require.NoError(t, err)
	assert.Equal(t, 2, chain.FetcherCount())
	assert.Equal(t, 0, chain.Priority())
	assert.Equal(t, 80.0, rec.Value)
	assert.Equal(t, "overrides", rec.Source)
	assert.Empty(t, api.Asked())
}

func TestFetcherChain_Sequential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		primary    *stubFetcher
		secondary  *stubFetcher
		wantValue  float64
		wantValid  bool
		wantKind   error
		wantSource string
	}{
		{
			name:       "falls back on no data",
			primary:    newStubFetcher("primary", 1, nil),
			secondary:  newStubFetcher("secondary", 2, map[indicatorpipe.CountryKey]float64{"PRT": 81.1}),
			wantValue:  81.1,
			wantValid:  true,
			wantSource: "secondary",
		},
		{
			name: "falls back on network error",
			primary: func() *stubFetcher {
				f := newStubFetcher("primary", 1, nil)
				f.errs["PRT"] = networkErr("PRT")
				return f
			}(),
			secondary:  newStubFetcher("secondary", 2, map[indicatorpipe.CountryKey]float64{"PRT": 81.1}),
			wantValue:  81.1,
			wantValid:  true,
			wantSource: "secondary",
		},
		{
			name:      "all no data",
			primary:   newStubFetcher("primary", 1, nil),
			secondary: newStubFetcher("secondary", 2, nil),
			wantKind:  indicatorpipe.ErrNoData,
		},
		{
			name: "failure beats no data",
			primary: func() *stubFetcher {
				f := newStubFetcher("primary", 1, nil)
				f.errs["PRT"] = networkErr("PRT")
				return f
			}(),
			secondary: newStubFetcher("secondary", 2, nil),
			wantKind:  indicatorpipe.ErrNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chain := indicatorpipe.NewFetcherChain(
				indicatorpipe.ChainWithFetcher(tt.primary),
				indicatorpipe.ChainWithFetcher(tt.secondary),
				indicatorpipe.ChainWithFallbackMode(indicatorpipe.FallbackSequential),
			)

			rec, err := chain.Fetch(context.Background(), "PRT", lifeExpectancy, 2019)

			assert.Equal(t, tt.wantValid, rec.Valid)
			assert.Equal(t, tt.wantValue, rec.Value)
			if tt.wantKind != nil {
				assert.ErrorIs(t, err, tt.wantKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, rec.Source)
		})
	}
}

func TestFetcherChain_SequentialStopsAtFirstValue(t *testing.T) {
	t.Parallel()

	primary := newStubFetcher("primary", 1, map[indicatorpipe.CountryKey]float64{"PRT": 81.1})
	secondary := newStubFetcher("secondary", 2, map[indicatorpipe.CountryKey]float64{"PRT": 1})

	chain := indicatorpipe.NewFetcherChain(
		indicatorpipe.ChainWithFetcher(primary),
		indicatorpipe.ChainWithFetcher(secondary),
	)

	_, err := chain.Fetch(context.Background(), "PRT", lifeExpectancy, 2019)

	require.NoError(t, err)
	assert.Empty(t, secondary.Asked())
}

func TestFetcherChain_Parallel(t *testing.T) {
	t.Parallel()

	slow := newStubFetcher("slow", 1, map[indicatorpipe.CountryKey]float64{"PRT": 81.1})
	slow.delay["PRT"] = 50 * time.Millisecond
	fast := newStubFetcher("fast", 2, map[indicatorpipe.CountryKey]float64{"PRT": 70})

	chain := indicatorpipe.NewFetcherChain(
		indicatorpipe.ChainWithFetcher(fast),
		indicatorpipe.ChainWithFetcher(slow),
		indicatorpipe.ChainWithFallbackMode(indicatorpipe.FallbackParallel),
	)

	rec, err := chain.Fetch(context.Background(), "PRT", lifeExpectancy, 2019)

	require.NoError(t, err)
	assert.Equal(t, 81.1, rec.Value)
	assert.Equal(t, "slow", rec.Source)
	assert.Len(t, fast.Asked(), 1)
}

func TestFetcherChain_ParallelNoData(t *testing.T) {
	t.Parallel()

	chain := indicatorpipe.NewFetcherChain(
		indicatorpipe.ChainWithFetcher(newStubFetcher("a", 1, nil)),
		indicatorpipe.ChainWithFetcher(newStubFetcher("b", 2, nil)),
		indicatorpipe.ChainWithFallbackMode(indicatorpipe.FallbackParallel),
	)

	rec, err := chain.Fetch(context.Background(), "PRT", lifeExpectancy, 2019)

	assert.True(t, indicatorpipe.IsNoData(err))
	assert.True(t, rec.Absent())
}

func TestFetcherChain_ContextCanceled(t *testing.T) {
	t.Parallel()

	f := newStubFetcher("primary", 1, map[indicatorpipe.CountryKey]float64{"PRT": 81.1})
	chain := indicatorpipe.NewFetcherChain(indicatorpipe.ChainWithFetcher(f))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := chain.Fetch(ctx, "PRT", lifeExpectancy, 2019)

	assert.ErrorIs(t, err, indicatorpipe.ErrNetwork)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, indicatorpipe.StatusFailed, rec.Status)
	assert.Empty(t, f.Asked())
}
