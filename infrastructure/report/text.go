package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ahrav/go-kyc/internal/application"
	"github.com/ahrav/go-kyc/internal/domain"
)

// field is one "label: value" line of a text block.
type field struct {
	label string
	value string
}

func (r *Renderer) writeDocumentText(w io.Writer, res *domain.ExtractionResult, now time.Time) error {
	var buf bytes.Buffer
	r.documentBlock(&buf, res, now)
	_, err := w.Write(buf.Bytes())
	return err
}

func (r *Renderer) writeDossierText(w io.Writer, rep *application.DossierReport, now time.Time) error {
	var buf bytes.Buffer

	summary := []field{{"Request", rep.RequestID}}
	outcome, validated := rep.Outcome()
	if rep.Dossier != nil {
		summary = append([]field{{"Dossier", rep.Dossier.ID}}, summary...)
	}
	summary = append(summary,
		field{"Status", rep.Decision()},
		field{"Complete", yesNo(rep.Dossier != nil)},
	)
	if validated {
		address := yesNo(outcome.AddressMatch)
		if res, ok := outcome.Result(domain.CheckAddressCoherence); ok && !res.Evaluated {
			address = "not evaluated"
		}
		summary = append(summary,
			field{"Name match", yesNo(outcome.NameMatch)},
			field{"Address match", address},
			field{"All documents valid", yesNo(outcome.AllDocumentsValid)},
		)
	}
	if rep.Err != nil {
		summary = append(summary, field{"Error", rep.Err.Error()})
	}
	summary = append(summary,
		field{"Usage", formatUsage(rep.Usage)},
		field{"Duration", rep.Duration.Round(time.Millisecond).String()},
	)
	writeFields(&buf, "", summary)

	if validated {
		buf.WriteString("\nChecks:\n")
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		for _, c := range outcome.Checks {
			severity := "warning"
			if c.Check.Blocking() {
				severity = "blocking"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", checkLabel(c), c.Check, severity)
		}
		tw.Flush()

		writeList(&buf, "Rejection reasons", rep.Dossier.RejectionReasons())
		writeList(&buf, "Warnings", append(rep.Dossier.Warnings(), rep.Warnings...))
	} else {
		writeList(&buf, "Warnings", rep.Warnings)
	}

	for _, res := range rep.Results {
		buf.WriteString("\n")
		r.documentBlock(&buf, res, now)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func (r *Renderer) documentBlock(buf *bytes.Buffer, res *domain.ExtractionResult, now time.Time) {
	fmt.Fprintf(buf, "Document: %s\n", res.Source)

	fields := []field{}
	if kind := res.Kind(); kind != "" {
		label := string(kind)
		if res.Classification != nil {
			label = fmt.Sprintf("%s (confidence %.2f)", kind, res.Classification.Confidence)
		}
		fields = append(fields, field{"Kind", label})
	}

	if !res.Succeeded() {
		fields = append(fields,
			field{"Status", "EXTRACTION FAILED"},
			field{"Error", res.ErrorMessage()},
		)
	} else {
		fields = append(fields, r.documentFields(res.Document, now)...)
	}

	if res.Usage.Calls > 0 {
		fields = append(fields, field{"Usage", formatUsage(res.Usage)})
	}
	for _, warning := range res.Warnings {
		fields = append(fields, field{"Warning", warning})
	}
	writeFields(buf, "  ", fields)
}

// documentFields lists the printable fields of doc. Empty optional fields
// are left out.
func (r *Renderer) documentFields(doc domain.Document, now time.Time) []field {
	var fields []field
	add := func(label, value string) {
		if value != "" {
			fields = append(fields, field{label, value})
		}
	}

	switch d := doc.(type) {
	case *domain.IdentityCard:
		add("Name", fullName(d.LastName, d.FirstName))
		add("Usage name", d.UsageName)
		add("Sex", string(d.Sex))
		add("Birth", birth(d.BirthDate, d.BirthPlace))
		add("Nationality", d.Nationality)
		add("Number", d.DocumentNumber)
		add("Issued", d.IssueDate.String())
		add("Expiry", expiry(d, now))
		if d.Address != nil {
			add("Address", d.Address.String())
		}
	case *domain.Passport:
		add("Name", fullName(d.LastName, d.FirstName))
		add("Sex", string(d.Sex))
		add("Birth", birth(d.BirthDate, d.BirthPlace))
		add("Nationality", d.Nationality)
		add("Number", d.PassportNumber)
		add("Issued", d.IssueDate.String())
		add("Authority", d.IssuingAuthority)
		add("Expiry", expiry(d, now))
		if d.Address != nil {
			add("Address", d.Address.String())
		}
	case *domain.DrivingLicense:
		add("Name", fullName(d.LastName, d.FirstName))
		add("Birth", birth(d.BirthDate, d.BirthPlace))
		add("Number", d.LicenseNumber)
		add("Issued", d.IssueDate.String())
		add("Expiry", expiry(d, now))
		categories := make([]string, len(d.Categories))
		for i, c := range d.Categories {
			categories[i] = string(c)
		}
		add("Categories", strings.Join(categories, ", "))
	case *domain.ProofOfAddress:
		add("Type", string(d.DocumentType))
		add("Holder", fullName(d.HolderLastName, d.HolderFirstName))
		address := d.Address.String()
		if d.Address.Country == "" {
			address += ", " + domain.DefaultCountry + " (assumed)"
		}
		add("Address", address)
		add("Issuer", d.Issuer)
		if d.Amount != nil {
			add("Amount", d.Amount.StringFixed(2))
		}
		recency := fmt.Sprintf("%d days old", d.AgeDays(now))
		if d.IsRecentAt(now) {
			recency += ", recent"
		} else {
			recency += ", too old"
		}
		add("Date", fmt.Sprintf("%s (%s)", d.DocumentDate, recency))
	case *domain.BankAccount:
		add("Holder", fullName(d.HolderLastName, d.HolderFirstName))
		add("IBAN", r.iban(d))
		add("BIC", d.BIC)
		add("Bank", d.BankName)
		checksum := "invalid"
		if d.ChecksumValid() {
			checksum = "valid"
		}
		add("Checksum", checksum)
	}
	return fields
}

func writeFields(buf *bytes.Buffer, indent string, fields []field) {
	tw := tabwriter.NewWriter(buf, 0, 0, 1, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(tw, "%s%s:\t%s\n", indent, f.label, f.value)
	}
	tw.Flush()
}

func writeList(buf *bytes.Buffer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(buf, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(buf, "  - %s\n", item)
	}
}

func checkLabel(c domain.CheckResult) string {
	switch {
	case !c.Evaluated:
		return "SKIP"
	case c.Passed:
		return "PASS"
	}
	return "FAIL"
}

func expiry(d domain.IdentityDocument, now time.Time) string {
	status := "expired"
	if d.IsValidAt(now) {
		status = "valid"
	}
	return fmt.Sprintf("%s (%s)", d.Expiry(), status)
}

func birth(date domain.Date, place string) string {
	if place == "" {
		return date.String()
	}
	return fmt.Sprintf("%s in %s", date, place)
}

func fullName(last, first string) string {
	return strings.TrimSpace(last + " " + first)
}

func formatUsage(u domain.Usage) string {
	s := fmt.Sprintf("%d input + %d output tokens, %d calls, $%s",
		u.InputTokens, u.OutputTokens, u.Calls, u.Cost.StringFixed(6))
	if u.Model != "" {
		s += " (" + u.Model + ")"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
