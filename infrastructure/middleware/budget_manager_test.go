package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-kyc/internal/domain"
	"github.com/ahrav/go-kyc/internal/ports"
)

// stubExtractor implements ports.DocumentExtractor with a fixed usage per call.
type stubExtractor struct {
	usage domain.Usage
	err   error
	// release, when set, holds every call until it is closed.
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (s *stubExtractor) enter() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
}

func (s *stubExtractor) Classify(_ context.Context, _ ports.Source) (*domain.Classification, domain.Usage, error) {
	s.enter()
	if s.err != nil {
		return nil, s.usage, s.err
	}
	return &domain.Classification{Kind: domain.KindBankAccount, Confidence: 0.9}, s.usage, nil
}

func (s *stubExtractor) Extract(_ context.Context, _ domain.Kind, _ ports.Source) (domain.Document, domain.Usage, error) {
	s.enter()
	if s.err != nil {
		return nil, s.usage, s.err
	}
	doc, err := domain.NewBankAccount(domain.BankAccount{
		HolderLastName: "Martin",
		IBAN:           "FR7630006000011234567890189",
	})
	return doc, s.usage, err
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// mockBudgetObserver implements BudgetObserver for testing.
type mockBudgetObserver struct {
	mu             sync.Mutex
	preCheckCalls  []domain.Usage
	postCheckCalls []postCheckCall
}

type postCheckCall struct {
	stage string
	usage domain.Usage
	err   error
}

func (m *mockBudgetObserver) PreCheck(ctx context.Context, _ string, usage domain.Usage, _ Budget) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preCheckCalls = append(m.preCheckCalls, usage)
	return ctx
}

func (m *mockBudgetObserver) PostCheck(_ context.Context, stage string, usage domain.Usage, _ Budget, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postCheckCalls = append(m.postCheckCalls, postCheckCall{stage: stage, usage: usage, err: err})
}

var testSource = ports.Source{Name: "rib.png", MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

func callUsage(tokensIn, tokensOut int, cost string) domain.Usage {
	return domain.Usage{
		Model:        "gemini-2.5-flash",
		InputTokens:  tokensIn,
		OutputTokens: tokensOut,
		Cost:         decimal.RequireFromString(cost),
		Calls:        1,
	}
}

func TestNewBudgetManager_PanicsWithNilExtractor(t *testing.T) {
	assert.Panics(t, func() {
		NewBudgetManager(Budget{}, nil, nil, nil)
	}, "a nil extractor should panic")
}

func TestBudgetManager_WithinLimits(t *testing.T) {
	stub := &stubExtractor{usage: callUsage(100, 20, "0.001")}
	observer := &mockBudgetObserver{}
	bm := NewBudgetManager(Budget{MaxTokens: 1000, MaxCalls: 5}, stub, nil, observer)

	classification, usage, err := bm.Classify(context.Background(), testSource)
	require.NoError(t, err)
	assert.Equal(t, domain.KindBankAccount, classification.Kind)
	assert.Equal(t, 120, usage.TotalTokens(), "usage of the call should pass through")

	doc, _, err := bm.Extract(context.Background(), domain.KindBankAccount, testSource)
	require.NoError(t, err)
	assert.Equal(t, domain.KindBankAccount, doc.Kind())

	total := bm.Accountant().Total()
	assert.Equal(t, 240, total.TotalTokens())
	assert.Equal(t, 2, total.Calls)
	assert.True(t, total.Cost.Equal(decimal.RequireFromString("0.002")), "cost should accumulate, got %s", total.Cost)

	require.Len(t, observer.preCheckCalls, 2)
	require.Len(t, observer.postCheckCalls, 2)
	assert.Equal(t, "classify", observer.postCheckCalls[0].stage)
	assert.Equal(t, "extract", observer.postCheckCalls[1].stage)
	assert.Equal(t, 240, observer.postCheckCalls[1].usage.TotalTokens(), "post check should see the updated total")
}

func TestBudgetManager_Limits(t *testing.T) {
	tests := []struct {
		name      string
		budget    Budget
		usage     domain.Usage
		allowed   int
		limitType string
	}{
		{
			name:      "token limit",
			budget:    Budget{MaxTokens: 250},
			usage:     callUsage(100, 20, "0"),
			allowed:   3,
			limitType: "tokens",
		},
		{
			name:      "call limit",
			budget:    Budget{MaxCalls: 2},
			usage:     callUsage(1, 1, "0"),
			allowed:   2,
			limitType: "calls",
		},
		{
			name:      "cost limit",
			budget:    Budget{MaxCost: decimal.RequireFromString("0.01")},
			usage:     callUsage(1, 1, "0.004"),
			allowed:   3,
			limitType: "cost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubExtractor{usage: tt.usage}
			bm := NewBudgetManager(tt.budget, stub, nil, nil)

			for i := 0; i < tt.allowed; i++ {
				_, _, err := bm.Classify(context.Background(), testSource)
				require.NoError(t, err, "call %d should be allowed", i+1)
			}

			_, usage, err := bm.Classify(context.Background(), testSource)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBudgetExceeded)

			var budgetErr *BudgetExceededError
			require.ErrorAs(t, err, &budgetErr)
			assert.Equal(t, tt.limitType, budgetErr.LimitType)
			assert.Equal(t, "classify", budgetErr.Stage)
			assert.Zero(t, usage.Calls, "a refused call reports no usage")
			assert.Equal(t, tt.allowed, stub.callCount(), "the refused call must not reach the extractor")
		})
	}
}

func TestBudgetManager_RefusalIsObserved(t *testing.T) {
	stub := &stubExtractor{usage: callUsage(1, 1, "0")}
	observer := &mockBudgetObserver{}
	bm := NewBudgetManager(Budget{MaxCalls: 1}, stub, nil, observer)

	_, _, err := bm.Classify(context.Background(), testSource)
	require.NoError(t, err)
	_, _, err = bm.Extract(context.Background(), domain.KindBankAccount, testSource)
	require.ErrorIs(t, err, ErrBudgetExceeded)

	require.Len(t, observer.postCheckCalls, 2)
	assert.ErrorIs(t, observer.postCheckCalls[1].err, ErrBudgetExceeded)
}

func TestBudgetManager_FailedCallStillBooksUsage(t *testing.T) {
	callErr := errors.New("provider unavailable")
	stub := &stubExtractor{usage: callUsage(50, 0, "0"), err: callErr}
	bm := NewBudgetManager(Budget{}, stub, nil, nil)

	_, _, err := bm.Classify(context.Background(), testSource)
	require.ErrorIs(t, err, callErr, "the extractor error should pass through")
	assert.Equal(t, 50, bm.Accountant().Total().TotalTokens())
}

func TestBudgetManager_UnlimitedBudget(t *testing.T) {
	assert.True(t, Budget{}.Unlimited())
	assert.False(t, Budget{MaxCalls: 1}.Unlimited())
	assert.False(t, Budget{MaxCost: decimal.NewFromFloat(0.5)}.Unlimited())

	stub := &stubExtractor{usage: callUsage(10_000, 10_000, "1")}
	bm := NewBudgetManager(Budget{}, stub, nil, nil)
	for i := 0; i < 20; i++ {
		_, _, err := bm.Classify(context.Background(), testSource)
		require.NoError(t, err)
	}
}

func TestBudgetManager_SharedAccountant(t *testing.T) {
	accountant := NewUsageAccountant()
	first := NewBudgetManager(Budget{MaxCalls: 3}, &stubExtractor{usage: callUsage(1, 1, "0")}, accountant, nil)
	second := NewBudgetManager(Budget{MaxCalls: 3}, &stubExtractor{usage: callUsage(1, 1, "0")}, accountant, nil)

	for i := 0; i < 2; i++ {
		_, _, err := first.Classify(context.Background(), testSource)
		require.NoError(t, err)
	}
	_, _, err := second.Classify(context.Background(), testSource)
	require.NoError(t, err)

	_, _, err = second.Classify(context.Background(), testSource)
	assert.ErrorIs(t, err, ErrBudgetExceeded, "limits apply to the shared ledger")
}

func TestBudgetManager_ConcurrentCalls(t *testing.T) {
	stub := &stubExtractor{usage: callUsage(10, 5, "0.0001")}
	bm := NewBudgetManager(Budget{}, stub, nil, NewOTelBudgetObserver(nil))

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := bm.Extract(context.Background(), domain.KindBankAccount, testSource)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total := bm.Accountant().Total()
	assert.Equal(t, workers, total.Calls)
	assert.Equal(t, workers*15, total.TotalTokens())
}

func TestBudgetManager_CallLimitHoldsUnderConcurrency(t *testing.T) {
	stub := &stubExtractor{usage: callUsage(1, 1, "0"), release: make(chan struct{})}
	bm := NewBudgetManager(Budget{MaxCalls: 2}, stub, nil, nil)

	const workers = 6
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, _, err := bm.Extract(context.Background(), domain.KindBankAccount, testSource)
			errs <- err
		}()
	}

	// Admitted calls are parked in the stub, so the first results are refusals.
	for i := 0; i < workers-2; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrBudgetExceeded)
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d calls were refused while two were in flight", i, workers-2)
		}
	}
	close(stub.release)
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-errs)
	}

	assert.Equal(t, 2, stub.callCount(), "in-flight calls count against the call limit")
	assert.Equal(t, 2, bm.Accountant().Total().Calls)
}

func TestBudgetExceededError_Message(t *testing.T) {
	err := &BudgetExceededError{LimitType: "calls", Limit: "4", Used: "4", Stage: "extract"}
	assert.Equal(t, "budget exceeded: calls limit 4, used 4 (stage extract)", err.Error())
}
