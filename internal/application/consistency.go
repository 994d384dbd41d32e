package application

import (
	"fmt"
	"time"

	"github.com/ahrav/go-kyc/internal/domain"
)

// Rules holds the tunable thresholds of the consistency checks.
type Rules struct {
	// RecencyDays is how old a proof of address may be.
	RecencyDays int `yaml:"recency_days" validate:"min=1,max=365"`

	// MinIBANLength rejects identifiers shorter than this even when their
	// checksum happens to match.
	MinIBANLength int `yaml:"min_iban_length" validate:"min=15,max=34"`

	// HolderSimilarity is the lowest surname similarity at which a bank
	// holder that does not match exactly is still accepted without warning.
	HolderSimilarity float64 `yaml:"holder_similarity" validate:"min=0,max=1"`
}

// DefaultRules returns the production thresholds.
func DefaultRules() Rules {
	return Rules{
		RecencyDays:      domain.RecencyWindowDays,
		MinIBANLength:    domain.MinIBANLength,
		HolderSimilarity: 0.85,
	}
}

// ConsistencyValidator runs the cross-document checks of a dossier and
// records the decision on it. It holds no mutable state and can validate
// independent dossiers concurrently.
type ConsistencyValidator struct {
	rules Rules
	now   func() time.Time
}

// NewConsistencyValidator creates a validator. now supplies the reference
// time of every run; nil means time.Now.
func NewConsistencyValidator(rules Rules, now func() time.Time) *ConsistencyValidator {
	if now == nil {
		now = time.Now
	}
	return &ConsistencyValidator{rules: rules, now: now}
}

// Validate runs every check against d at the validator's current time,
// applies the outcome to d and returns it. A previous outcome is replaced.
func (v *ConsistencyValidator) Validate(d *domain.Dossier) domain.Outcome {
	return v.ValidateAt(d, v.now())
}

// ValidateAt is Validate with an explicit reference time.
//
// The dossier is APPROVED iff the name, identity validity, address recency
// and bank checksum checks pass. The remaining checks only add warnings.
func (v *ConsistencyValidator) ValidateAt(d *domain.Dossier, now time.Time) domain.Outcome {
	run := &outcomeBuilder{}

	nameMatch := v.checkNameMatch(run, d)
	identityValid := v.checkIdentityValidity(run, d, now)
	addressRecent := v.checkAddressRecency(run, d, now)
	checksumValid := v.checkBankChecksum(run, d)
	addressMatch := v.checkAddressCoherence(run, d)
	v.checkBankHolder(run, d)
	licenseValid := v.checkDrivingLicense(run, d, now)

	status := domain.StatusApproved
	if !(nameMatch && identityValid && addressRecent && checksumValid) {
		status = domain.StatusRejected
	}

	outcome := domain.Outcome{
		Status:            status,
		NameMatch:         nameMatch,
		AddressMatch:      addressMatch,
		AllDocumentsValid: identityValid && addressRecent && checksumValid && licenseValid,
		Checks:            run.checks,
		Reasons:           run.reasons,
		ValidatedAt:       now,
	}
	d.Apply(outcome)
	return outcome
}

func (v *ConsistencyValidator) checkNameMatch(run *outcomeBuilder, d *domain.Dossier) bool {
	identity := d.Identity.Surname()
	holder := d.ProofOfAddress.HolderLastName
	ok := domain.SurnamesMatch(identity, holder)
	run.record(domain.CheckNameMatch, ok,
		"name mismatch: identity=%s vs address=%s", identity, holder)
	return ok
}

func (v *ConsistencyValidator) checkIdentityValidity(run *outcomeBuilder, d *domain.Dossier, now time.Time) bool {
	ok := d.Identity.IsValidAt(now)
	run.record(domain.CheckIdentityValidity, ok,
		"%s expired on %s", d.Identity.Kind(), d.Identity.Expiry())
	return ok
}

func (v *ConsistencyValidator) checkAddressRecency(run *outcomeBuilder, d *domain.Dossier, now time.Time) bool {
	proof := d.ProofOfAddress
	ok := proof.IsRecentWithin(now, v.rules.RecencyDays)
	run.record(domain.CheckAddressRecency, ok,
		"proof of address dated %s is %d days old, more than %d",
		proof.DocumentDate, proof.AgeDays(now), v.rules.RecencyDays)
	return ok
}

func (v *ConsistencyValidator) checkBankChecksum(run *outcomeBuilder, d *domain.Dossier) bool {
	bank := d.BankAccount
	ok := len(bank.IBAN) >= v.rules.MinIBANLength && bank.ChecksumValid()
	// Reasons end up in logs and reports, so the identifier is cited masked.
	run.record(domain.CheckBankChecksum, ok, "invalid IBAN checksum: %s", bank.MaskedIBAN())
	return ok
}

// checkAddressCoherence compares postal codes when the identity document
// carries a structured address. It never blocks approval.
func (v *ConsistencyValidator) checkAddressCoherence(run *outcomeBuilder, d *domain.Dossier) bool {
	identityAddress := d.Identity.PostalAddress()
	if identityAddress == nil || identityAddress.PostalCode == "" || d.ProofOfAddress.Address.PostalCode == "" {
		run.skip(domain.CheckAddressCoherence)
		return false
	}
	proofCode := d.ProofOfAddress.Address.PostalCode
	ok := identityAddress.PostalCode == proofCode
	run.record(domain.CheckAddressCoherence, ok,
		"postal code mismatch: identity=%s vs address=%s", identityAddress.PostalCode, proofCode)
	return ok
}

func (v *ConsistencyValidator) checkBankHolder(run *outcomeBuilder, d *domain.Dossier) {
	identity := d.Identity.Surname()
	holder := d.BankAccount.HolderLastName
	similarity := domain.NameSimilarity(identity, holder)
	ok := domain.SurnamesMatch(identity, holder) || similarity >= v.rules.HolderSimilarity
	run.record(domain.CheckBankHolder, ok,
		"bank holder mismatch: identity=%s vs bank=%s (similarity %.2f)", identity, holder, similarity)
}

// checkDrivingLicense reports whether the optional license is valid. An
// absent license counts as valid.
func (v *ConsistencyValidator) checkDrivingLicense(run *outcomeBuilder, d *domain.Dossier, now time.Time) bool {
	license := d.DrivingLicense
	if license == nil {
		run.skip(domain.CheckDrivingLicense)
		return true
	}

	valid := license.IsValidAt(now)
	sameHolder := domain.SurnamesMatch(d.Identity.Surname(), license.Surname())
	run.checks = append(run.checks, domain.CheckResult{
		Check:     domain.CheckDrivingLicense,
		Passed:    valid && sameHolder,
		Evaluated: true,
	})
	if !valid {
		run.reason(domain.CheckDrivingLicense, "driving license expired on %s", license.ExpiryDate)
	}
	if !sameHolder {
		run.reason(domain.CheckDrivingLicense, "driving license holder mismatch: identity=%s vs license=%s",
			d.Identity.Surname(), license.Surname())
	}
	return valid
}

// outcomeBuilder accumulates check results and reasons in check order.
type outcomeBuilder struct {
	checks  []domain.CheckResult
	reasons []domain.Reason
}

func (b *outcomeBuilder) record(check domain.Check, passed bool, format string, args ...any) {
	b.checks = append(b.checks, domain.CheckResult{Check: check, Passed: passed, Evaluated: true})
	if !passed {
		b.reason(check, format, args...)
	}
}

func (b *outcomeBuilder) skip(check domain.Check) {
	b.checks = append(b.checks, domain.CheckResult{Check: check})
}

func (b *outcomeBuilder) reason(check domain.Check, format string, args ...any) {
	severity := domain.SeverityWarning
	if check.Blocking() {
		severity = domain.SeverityBlocking
	}
	b.reasons = append(b.reasons, domain.Reason{
		Check:    check,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
	})
}
