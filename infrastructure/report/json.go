package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ahrav/go-kyc/internal/application"
	"github.com/ahrav/go-kyc/internal/domain"
)

// documentView is the JSON shape of one extraction result.
type documentView struct {
	Source         string                 `json:"source"`
	Kind           domain.Kind            `json:"kind,omitempty"`
	Classification *domain.Classification `json:"classification,omitempty"`
	Extracted      bool                   `json:"extracted"`
	Error          string                 `json:"error,omitempty"`
	Document       domain.Document        `json:"document,omitempty"`
	Checks         *documentChecks        `json:"checks,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	Usage          domain.Usage           `json:"usage"`
	DurationMS     int64                  `json:"duration_ms"`
}

// documentChecks holds the per-document predicates evaluated at render time.
type documentChecks struct {
	Valid         *bool `json:"valid,omitempty"`
	Recent        *bool `json:"recent,omitempty"`
	AgeDays       *int  `json:"age_days,omitempty"`
	ChecksumValid *bool `json:"checksum_valid,omitempty"`
}

// dossierView is the JSON shape of a pipeline run.
type dossierView struct {
	RequestID        string          `json:"request_id"`
	DossierID        string          `json:"dossier_id,omitempty"`
	Status           string          `json:"status"`
	Complete         bool            `json:"complete"`
	Outcome          *domain.Outcome `json:"outcome,omitempty"`
	RejectionReasons []string        `json:"rejection_reasons"`
	Warnings         []string        `json:"warnings"`
	Error            string          `json:"error,omitempty"`
	Documents        []documentView  `json:"documents"`
	Usage            domain.Usage    `json:"usage"`
	DurationMS       int64           `json:"duration_ms"`
}

func (r *Renderer) documentView(res *domain.ExtractionResult, now time.Time) documentView {
	view := documentView{
		Source:         res.Source,
		Kind:           res.Kind(),
		Classification: res.Classification,
		Extracted:      res.Succeeded(),
		Error:          res.ErrorMessage(),
		Warnings:       res.Warnings,
		Usage:          res.Usage,
		DurationMS:     res.Duration.Milliseconds(),
	}
	if !view.Extracted {
		return view
	}

	view.Document = res.Document
	checks := &documentChecks{}
	switch d := res.Document.(type) {
	case domain.IdentityDocument:
		valid := d.IsValidAt(now)
		checks.Valid = &valid
	case *domain.ProofOfAddress:
		recent, age := d.IsRecentAt(now), d.AgeDays(now)
		checks.Recent, checks.AgeDays = &recent, &age
	case *domain.BankAccount:
		valid := d.ChecksumValid()
		checks.ChecksumValid = &valid
		if r.maskIBAN {
			masked := *d
			masked.IBAN = d.MaskedIBAN()
			view.Document = &masked
		}
	}
	view.Checks = checks
	return view
}

func (r *Renderer) dossierView(rep *application.DossierReport, now time.Time) dossierView {
	view := dossierView{
		RequestID:        rep.RequestID,
		Status:           rep.Decision(),
		Complete:         rep.Dossier != nil,
		RejectionReasons: []string{},
		Warnings:         []string{},
		Documents:        make([]documentView, 0, len(rep.Results)),
		Usage:            rep.Usage,
		DurationMS:       rep.Duration.Milliseconds(),
	}
	if rep.Err != nil {
		view.Error = rep.Err.Error()
	}
	if rep.Dossier != nil {
		view.DossierID = rep.Dossier.ID
		if outcome, ok := rep.Dossier.Outcome(); ok {
			view.Outcome = &outcome
			view.RejectionReasons = append(view.RejectionReasons, rep.Dossier.RejectionReasons()...)
			view.Warnings = append(view.Warnings, rep.Dossier.Warnings()...)
		}
	}
	view.Warnings = append(view.Warnings, rep.Warnings...)
	for _, res := range rep.Results {
		view.Documents = append(view.Documents, r.documentView(res, now))
	}
	return view
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
