// Package report renders extraction results and dossier decisions for
// humans (aligned text) and for machines (JSON).
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ahrav/go-kyc/internal/application"
	"github.com/ahrav/go-kyc/internal/domain"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown report format")

// Format selects the output encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat maps a flag value to a Format. Matching ignores case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Renderer writes reports in one format. It holds no mutable state.
type Renderer struct {
	format   Format
	now      func() time.Time
	maskIBAN bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock sets the reference time used for expiry and recency labels.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithMaskedIBAN hides the middle of every IBAN.
func WithMaskedIBAN() Option {
	return func(r *Renderer) { r.maskIBAN = true }
}

// New creates a Renderer for format.
func New(format Format, opts ...Option) (*Renderer, error) {
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	r := &Renderer{format: format, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Document writes a single extraction result to w.
func (r *Renderer) Document(w io.Writer, res *domain.ExtractionResult) error {
	if res == nil {
		return errors.New("report: nil extraction result")
	}
	now := r.now()
	if r.format == FormatJSON {
		return writeJSON(w, r.documentView(res, now))
	}
	return r.writeDocumentText(w, res, now)
}

// Dossier writes the outcome of a pipeline run to w.
func (r *Renderer) Dossier(w io.Writer, rep *application.DossierReport) error {
	if rep == nil {
		return errors.New("report: nil dossier report")
	}
	now := r.now()
	if r.format == FormatJSON {
		return writeJSON(w, r.dossierView(rep, now))
	}
	return r.writeDossierText(w, rep, now)
}

func (r *Renderer) iban(b *domain.BankAccount) string {
	if r.maskIBAN {
		return b.MaskedIBAN()
	}
	return b.IBAN
}
