// Package middleware provides cross-cutting concerns for the KYC pipeline.
// It wraps the document extractor to account for model usage, enforce
// usage budgets and export metrics, keeping those concerns out of the
// extraction and validation code.
package middleware

import (
	"sort"
	"sync"

	"github.com/ahrav/go-kyc/internal/domain"
)

// UsageAccountant keeps a running total of model usage, overall and per
// model. It is safe for concurrent use.
type UsageAccountant struct {
	mu      sync.Mutex
	total   domain.Usage
	byModel map[string]domain.Usage
}

// NewUsageAccountant creates an empty ledger.
func NewUsageAccountant() *UsageAccountant {
	return &UsageAccountant{byModel: make(map[string]domain.Usage)}
}

// Add records one usage entry and returns the new total. Entries without a
// model are booked under "unknown".
func (a *UsageAccountant) Add(u domain.Usage) domain.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total = a.total.Add(u)
	model := u.Model
	if model == "" {
		model = "unknown"
	}
	a.byModel[model] = a.byModel[model].Add(u)
	return a.total
}

// Total returns the accumulated usage.
func (a *UsageAccountant) Total() domain.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// ModelUsage pairs a model with its accumulated usage.
type ModelUsage struct {
	Model string
	Usage domain.Usage
}

// ByModel returns the per-model totals sorted by model name.
func (a *UsageAccountant) ByModel() []ModelUsage {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]ModelUsage, 0, len(a.byModel))
	for model, u := range a.byModel {
		out = append(out, ModelUsage{Model: model, Usage: u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Reset clears the ledger.
func (a *UsageAccountant) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total = domain.Usage{}
	a.byModel = make(map[string]domain.Usage)
}
