package domain

import "github.com/shopspring/decimal"

var million = decimal.NewFromInt(1_000_000)

// Pricing holds model prices per million tokens.
type Pricing struct {
	InputPerMillion  decimal.Decimal `json:"input_per_million" yaml:"input_per_million"`
	OutputPerMillion decimal.Decimal `json:"output_per_million" yaml:"output_per_million"`
}

// Cost returns the price of a call with the given token counts.
// Negative counts are treated as zero.
func (p Pricing) Cost(inputTokens, outputTokens int) decimal.Decimal {
	in := decimal.NewFromInt(int64(max(inputTokens, 0)))
	out := decimal.NewFromInt(int64(max(outputTokens, 0)))
	return in.Mul(p.InputPerMillion).Add(out.Mul(p.OutputPerMillion)).Div(million)
}

// Usage is the token and cost accounting of one or more model calls.
// Providers may omit usage metadata entirely; the zero Usage is valid.
type Usage struct {
	Model        string          `json:"model,omitempty"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	Cost         decimal.Decimal `json:"cost"`
	Calls        int             `json:"calls"`
}

// NewUsage prices a single call. Missing counts are passed as zero.
func NewUsage(model string, inputTokens, outputTokens int, pricing Pricing) Usage {
	return Usage{
		Model:        model,
		InputTokens:  max(inputTokens, 0),
		OutputTokens: max(outputTokens, 0),
		Cost:         pricing.Cost(inputTokens, outputTokens),
		Calls:        1,
	}
}

// Add returns the sum of u and o. The model is kept when both agree.
func (u Usage) Add(o Usage) Usage {
	model := u.Model
	if model == "" {
		model = o.Model
	} else if o.Model != "" && o.Model != model {
		model = "mixed"
	}
	return Usage{
		Model:        model,
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		Cost:         u.Cost.Add(o.Cost),
		Calls:        u.Calls + o.Calls,
	}
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int { return u.InputTokens + u.OutputTokens }
