package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahrav/go-kyc/internal/domain"
	"github.com/ahrav/go-kyc/internal/ports"
)

// ErrBudgetExceeded indicates that a usage budget was exhausted.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Budget defines usage limits for a run of the pipeline.
// A zero limit means unlimited.
type Budget struct {
	// MaxTokens limits input plus output tokens.
	MaxTokens int64 `yaml:"max_tokens" validate:"min=0"`

	// MaxCalls limits the number of model calls.
	MaxCalls int64 `yaml:"max_calls" validate:"min=0"`

	// MaxCost limits the computed cost in dollars.
	MaxCost decimal.Decimal `yaml:"max_cost"`
}

// Unlimited reports whether no limit is set.
func (b Budget) Unlimited() bool {
	return b.MaxTokens <= 0 && b.MaxCalls <= 0 && !b.MaxCost.IsPositive()
}

// BudgetExceededError reports which limit was hit.
type BudgetExceededError struct {
	// LimitType is "tokens", "calls" or "cost".
	LimitType string

	// Limit and Used are the configured limit and the usage that broke it.
	Limit string
	Used  string

	// Stage is the extractor call that was refused.
	Stage string
}

// Error implements the error interface for BudgetExceededError.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s limit %s, used %s (stage %s)", e.LimitType, e.Limit, e.Used, e.Stage)
}

// Unwrap returns ErrBudgetExceeded so callers can match with errors.Is.
func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// BudgetObserver provides observability hooks for budget checks.
// PreCheck may return a derived context that PostCheck receives back.
type BudgetObserver interface {
	// PreCheck is called before each extractor call with the usage so far.
	PreCheck(ctx context.Context, stage string, usage domain.Usage, budget Budget) context.Context

	// PostCheck is called after the call with the updated usage.
	PostCheck(ctx context.Context, stage string, usage domain.Usage, budget Budget, elapsed time.Duration, err error)
}

// BudgetManager wraps a document extractor, books the usage of every call
// in a UsageAccountant and refuses new calls once a limit is reached.
//
// A call holds a slot from admission until its usage is booked, so the call
// limit is exact under concurrency. Tokens and cost are only known once a
// call returns: every call admitted before the token or cost limit is
// crossed completes, and only later calls fail.
type BudgetManager struct {
	budget     Budget
	next       ports.DocumentExtractor
	accountant *UsageAccountant
	observer   BudgetObserver

	mu       sync.Mutex
	inFlight int
}

var _ ports.DocumentExtractor = (*BudgetManager)(nil)

// NewBudgetManager creates a BudgetManager. observer may be nil.
func NewBudgetManager(budget Budget, next ports.DocumentExtractor, accountant *UsageAccountant, observer BudgetObserver) *BudgetManager {
	if next == nil {
		panic("budget manager: next extractor is required")
	}
	if accountant == nil {
		accountant = NewUsageAccountant()
	}
	return &BudgetManager{
		budget:     budget,
		next:       next,
		accountant: accountant,
		observer:   observer,
	}
}

// Accountant returns the ledger the manager books usage in.
func (bm *BudgetManager) Accountant() *UsageAccountant { return bm.accountant }

// Classify implements ports.DocumentExtractor.
func (bm *BudgetManager) Classify(ctx context.Context, src ports.Source) (*domain.Classification, domain.Usage, error) {
	var (
		classification *domain.Classification
		usage          domain.Usage
	)
	err := bm.guard(ctx, "classify", func(ctx context.Context) (domain.Usage, error) {
		var err error
		classification, usage, err = bm.next.Classify(ctx, src)
		return usage, err
	})
	return classification, usage, err
}

// Extract implements ports.DocumentExtractor.
func (bm *BudgetManager) Extract(ctx context.Context, kind domain.Kind, src ports.Source) (domain.Document, domain.Usage, error) {
	var (
		doc   domain.Document
		usage domain.Usage
	)
	err := bm.guard(ctx, "extract", func(ctx context.Context) (domain.Usage, error) {
		var err error
		doc, usage, err = bm.next.Extract(ctx, kind, src)
		return usage, err
	})
	return doc, usage, err
}

func (bm *BudgetManager) guard(ctx context.Context, stage string, call func(context.Context) (domain.Usage, error)) error {
	before, err := bm.admit(stage)
	if err != nil {
		if bm.observer != nil {
			ctx = bm.observer.PreCheck(ctx, stage, before, bm.budget)
			bm.observer.PostCheck(ctx, stage, before, bm.budget, 0, err)
		}
		return err
	}

	if bm.observer != nil {
		ctx = bm.observer.PreCheck(ctx, stage, before, bm.budget)
	}

	start := time.Now()
	usage, err := call(ctx)
	elapsed := time.Since(start)

	// Failed calls may still have consumed tokens.
	after := bm.settle(usage)
	if bm.observer != nil {
		bm.observer.PostCheck(ctx, stage, after, bm.budget, elapsed, err)
	}
	return err
}

// admit checks the limits against the booked usage plus the calls still in
// flight and reserves a slot for one more call.
func (bm *BudgetManager) admit(stage string) (domain.Usage, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	used := bm.accountant.Total()
	pending := used
	pending.Calls += bm.inFlight
	if err := bm.checkBudgetLimits(pending, stage); err != nil {
		return used, err
	}
	bm.inFlight++
	return used, nil
}

// settle books usage and releases the slot taken by admit.
func (bm *BudgetManager) settle(usage domain.Usage) domain.Usage {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.inFlight--
	return bm.accountant.Add(usage)
}

// checkBudgetLimits returns a *BudgetExceededError when usage has reached
// any configured limit.
func (bm *BudgetManager) checkBudgetLimits(usage domain.Usage, stage string) error {
	if bm.budget.MaxTokens > 0 && int64(usage.TotalTokens()) >= bm.budget.MaxTokens {
		return &BudgetExceededError{
			LimitType: "tokens",
			Limit:     fmt.Sprint(bm.budget.MaxTokens),
			Used:      fmt.Sprint(usage.TotalTokens()),
			Stage:     stage,
		}
	}

	if bm.budget.MaxCalls > 0 && int64(usage.Calls) >= bm.budget.MaxCalls {
		return &BudgetExceededError{
			LimitType: "calls",
			Limit:     fmt.Sprint(bm.budget.MaxCalls),
			Used:      fmt.Sprint(usage.Calls),
			Stage:     stage,
		}
	}

	if bm.budget.MaxCost.IsPositive() && usage.Cost.GreaterThanOrEqual(bm.budget.MaxCost) {
		return &BudgetExceededError{
			LimitType: "cost",
			Limit:     bm.budget.MaxCost.String(),
			Used:      usage.Cost.String(),
			Stage:     stage,
		}
	}

	return nil
}
