// Package domain contains the KYC document records, the dossier they form
// and the pure rules that normalize and check them. Nothing in this package
// performs I/O or reads process-wide state.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags the variant of a Document.
type Kind string

// The five document kinds a dossier can be built from.
const (
	KindIdentityCard   Kind = "identity_card"
	KindPassport       Kind = "passport"
	KindDrivingLicense Kind = "driving_license"
	KindProofOfAddress Kind = "proof_of_address"
	KindBankAccount    Kind = "bank_account"
)

// Kinds lists every supported kind in canonical order.
var Kinds = []Kind{
	KindIdentityCard,
	KindPassport,
	KindDrivingLicense,
	KindProofOfAddress,
	KindBankAccount,
}

// kindAliases accepts the labels a model tends to produce for French
// documents in addition to the canonical ones.
var kindAliases = map[string]Kind{
	"identity_card":         KindIdentityCard,
	"national_id_card":      KindIdentityCard,
	"id_card":               KindIdentityCard,
	"carte_identite":        KindIdentityCard,
	"cni":                   KindIdentityCard,
	"passport":              KindPassport,
	"passeport":             KindPassport,
	"driving_license":       KindDrivingLicense,
	"drivers_license":       KindDrivingLicense,
	"driver_license":        KindDrivingLicense,
	"permis_conduire":       KindDrivingLicense,
	"proof_of_address":      KindProofOfAddress,
	"justificatif_domicile": KindProofOfAddress,
	"bank_account":          KindBankAccount,
	"bank_details":          KindBankAccount,
	"rib":                   KindBankAccount,
	"iban":                  KindBankAccount,
}

// ParseKind maps a label to its Kind. Matching ignores case and surrounding
// whitespace; hyphens and spaces are read as underscores.
func ParseKind(s string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// IsIdentity reports whether documents of this kind can prove identity.
func (k Kind) IsIdentity() bool {
	return k == KindIdentityCard || k == KindPassport
}

// Valid reports whether k is one of the five supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIdentityCard, KindPassport, KindDrivingLicense, KindProofOfAddress, KindBankAccount:
		return true
	}
	return false
}

// Sex as printed on identity documents.
type Sex string

// Supported values; X is the unspecified marker used on passports.
const (
	SexMale        Sex = "M"
	SexFemale      Sex = "F"
	SexUnspecified Sex = "X"
)

// Document is the tagged union over the five document kinds.
// Only the record types of this package implement it.
type Document interface {
	// Kind returns the variant tag.
	Kind() Kind

	// validated reports whether the record went through its constructor.
	validated() bool
}

// IdentityDocument is implemented by the identity-class records: identity
// card, passport and driving license.
type IdentityDocument interface {
	Document

	// Surname returns the normalized (uppercase) last name.
	Surname() string

	// GivenNames returns the first name(s) as printed.
	GivenNames() string

	// Number returns the normalized document number.
	Number() string

	// Expiry returns the expiry date.
	Expiry() Date

	// IsValidAt reports whether the document has not expired on the
	// calendar date of now.
	IsValidAt(now time.Time) bool

	// PostalAddress returns the structured address printed on the
	// document, or nil when there is none.
	PostalAddress() *Address
}

// record carries the construction marker shared by every variant.
type record struct {
	checked bool
}

func (r record) validated() bool { return r.checked }

// Address is a structured postal address.
type Address struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postal_code" validate:"required,len=5,numeric"`
	City       string `json:"city" validate:"required"`
	Country    string `json:"country,omitempty"`
}

// normalize trims every field and collapses inner whitespace.
func (a *Address) normalize() {
	a.Line1 = collapseSpaces(a.Line1)
	a.Line2 = collapseSpaces(a.Line2)
	a.PostalCode = stripSpaces(a.PostalCode)
	a.City = collapseSpaces(a.City)
	a.Country = collapseSpaces(a.Country)
}

// String renders the address on a single line.
func (a Address) String() string {
	parts := []string{a.Line1}
	if a.Line2 != "" {
		parts = append(parts, a.Line2)
	}
	parts = append(parts, strings.TrimSpace(a.PostalCode+" "+a.City))
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}

// isValidAt is the shared expiry predicate of identity-class documents.
func isValidAt(expiry Date, now time.Time) bool {
	return !expiry.Before(DateOf(now))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
