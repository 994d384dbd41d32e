package domain

import "time"

// Classification is the model's guess of a document's kind.
type Classification struct {
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// ExtractionResult is the per-document output of the extraction stage.
// A failed extraction keeps its error here and never affects other results.
type ExtractionResult struct {
	Source         string          `json:"source"`
	Classification *Classification `json:"classification,omitempty"`
	Document       Document        `json:"document,omitempty"`
	Usage          Usage           `json:"usage"`
	Err            error           `json:"-"`
	Warnings       []string        `json:"warnings,omitempty"`
	Duration       time.Duration   `json:"duration"`
}

// Succeeded reports whether a validated document was produced.
func (r *ExtractionResult) Succeeded() bool {
	return r != nil && r.Err == nil && r.Document != nil
}

// Kind returns the kind of the extracted document, falling back to the
// classification when extraction failed.
func (r *ExtractionResult) Kind() Kind {
	switch {
	case r == nil:
		return ""
	case r.Document != nil:
		return r.Document.Kind()
	case r.Classification != nil:
		return r.Classification.Kind
	}
	return ""
}

// ErrorMessage returns the error text, or the empty string on success.
func (r *ExtractionResult) ErrorMessage() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
