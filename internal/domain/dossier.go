package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role is the slot a document occupies in a dossier.
type Role string

// Dossier roles, in canonical order.
const (
	RoleIdentity       Role = "identity"
	RoleProofOfAddress Role = "proof_of_address"
	RoleBankAccount    Role = "bank_account"
	RoleDrivingLicense Role = "driving_license"
)

// RequiredRoles lists the roles a dossier cannot be built without.
var RequiredRoles = []Role{RoleIdentity, RoleProofOfAddress, RoleBankAccount}

// Status is the KYC decision for a dossier.
type Status string

// Dossier statuses. PENDING is only ever observed before validation.
const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Severity says whether a failed check blocks approval.
type Severity string

// Reason severities.
const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
)

// Check names a consistency check.
type Check string

// Consistency checks. The first four decide the status; the others only
// produce warnings.
const (
	CheckNameMatch        Check = "name_match"
	CheckIdentityValidity Check = "identity_validity"
	CheckAddressRecency   Check = "address_recency"
	CheckBankChecksum     Check = "bank_checksum"
	CheckAddressCoherence Check = "address_coherence"
	CheckBankHolder       Check = "bank_holder"
	CheckDrivingLicense   Check = "driving_license"
)

// Blocking reports whether a failure of c rejects the dossier.
func (c Check) Blocking() bool {
	switch c {
	case CheckNameMatch, CheckIdentityValidity, CheckAddressRecency, CheckBankChecksum:
		return true
	}
	return false
}

// Reason is one itemized finding of a validation run.
type Reason struct {
	Check    Check    `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// String returns the message.
func (r Reason) String() string { return r.Message }

// CheckResult records the outcome of a single check. Evaluated is false
// when the check did not apply, for example address coherence on a dossier
// whose identity document has no structured address.
type CheckResult struct {
	Check     Check `json:"check"`
	Passed    bool  `json:"passed"`
	Evaluated bool  `json:"evaluated"`
}

// Outcome holds everything a validation run derives from a dossier.
type Outcome struct {
	Status            Status        `json:"status"`
	NameMatch         bool          `json:"name_match"`
	AddressMatch      bool          `json:"address_match"`
	AllDocumentsValid bool          `json:"all_documents_valid"`
	Checks            []CheckResult `json:"checks"`
	Reasons           []Reason      `json:"reasons"`
	ValidatedAt       time.Time     `json:"validated_at"`
}

// Result returns the result of check c and whether c was recorded at all.
func (o Outcome) Result(c Check) (CheckResult, bool) {
	for _, r := range o.Checks {
		if r.Check == c {
			return r, true
		}
	}
	return CheckResult{}, false
}

// Dossier bundles the documents of one customer. It owns its records.
type Dossier struct {
	ID string

	Identity       IdentityDocument
	ProofOfAddress *ProofOfAddress
	BankAccount    *BankAccount
	DrivingLicense *DrivingLicense

	outcome *Outcome
}

// NewDossier builds a dossier from validated records. identity must be an
// identity card or a passport; license may be nil. A missing required record
// yields an *IncompleteDossierError naming every missing role.
func NewDossier(identity IdentityDocument, proof *ProofOfAddress, bank *BankAccount, license *DrivingLicense) (*Dossier, error) {
	var missing []Role
	if isNil(identity) {
		missing = append(missing, RoleIdentity)
	}
	if proof == nil {
		missing = append(missing, RoleProofOfAddress)
	}
	if bank == nil {
		missing = append(missing, RoleBankAccount)
	}
	if len(missing) > 0 {
		return nil, NewIncompleteDossierError(missing...)
	}

	if !identity.Kind().IsIdentity() {
		return nil, fmt.Errorf("%w: %s cannot serve as identity document", ErrUnknownKind, identity.Kind())
	}

	docs := []Document{identity, proof, bank}
	if license != nil {
		docs = append(docs, license)
	}
	for _, doc := range docs {
		if !doc.validated() {
			return nil, fmt.Errorf("%w: %s", ErrUnvalidatedRecord, doc.Kind())
		}
	}

	return &Dossier{
		ID:             uuid.NewString(),
		Identity:       identity,
		ProofOfAddress: proof,
		BankAccount:    bank,
		DrivingLicense: license,
	}, nil
}

// Apply records the outcome of a validation run, replacing any previous one.
func (d *Dossier) Apply(o Outcome) {
	o.Checks = slices.Clone(o.Checks)
	o.Reasons = slices.Clone(o.Reasons)
	d.outcome = &o
}

// Validated reports whether a validation run has been applied.
func (d *Dossier) Validated() bool { return d.outcome != nil }

// Outcome returns the last applied outcome. ok is false before validation.
func (d *Dossier) Outcome() (o Outcome, ok bool) {
	if d.outcome == nil {
		return Outcome{}, false
	}
	o = *d.outcome
	o.Checks = slices.Clone(o.Checks)
	o.Reasons = slices.Clone(o.Reasons)
	return o, true
}

// Status returns the decision, or StatusPending before validation.
func (d *Dossier) Status() Status {
	if d.outcome == nil {
		return StatusPending
	}
	return d.outcome.Status
}

// RejectionReasons returns the messages of the blocking reasons of the last
// validation run. It is empty for an approved or unvalidated dossier.
func (d *Dossier) RejectionReasons() []string {
	return d.messages(SeverityBlocking)
}

// Warnings returns the messages of the non-blocking reasons.
func (d *Dossier) Warnings() []string {
	return d.messages(SeverityWarning)
}

func (d *Dossier) messages(sev Severity) []string {
	if d.outcome == nil {
		return nil
	}
	out := []string{}
	for _, r := range d.outcome.Reasons {
		if r.Severity == sev {
			out = append(out, r.Message)
		}
	}
	return out
}

// Documents returns the records of the dossier keyed by role.
func (d *Dossier) Documents() map[Role]Document {
	docs := map[Role]Document{
		RoleIdentity:       d.Identity,
		RoleProofOfAddress: d.ProofOfAddress,
		RoleBankAccount:    d.BankAccount,
	}
	if d.DrivingLicense != nil {
		docs[RoleDrivingLicense] = d.DrivingLicense
	}
	return docs
}

// isNil reports whether an interface holds nothing or a nil pointer.
func isNil(doc IdentityDocument) bool {
	if doc == nil {
		return true
	}
	switch v := doc.(type) {
	case *IdentityCard:
		return v == nil
	case *Passport:
		return v == nil
	case *DrivingLicense:
		return v == nil
	}
	return false
}
