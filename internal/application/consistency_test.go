package application

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-kyc/internal/domain"
)

func newTestValidator() *ConsistencyValidator {
	return NewConsistencyValidator(DefaultRules(), fixedClock)
}

func reasonChecks(o domain.Outcome) []domain.Check {
	checks := make([]domain.Check, 0, len(o.Reasons))
	for _, r := range o.Reasons {
		checks = append(checks, r.Check)
	}
	return checks
}

func TestConsistencyValidator_Scenarios(t *testing.T) {
	expiry := domain.NewDate(2030, time.January, 1)

	tests := []struct {
		name        string
		dossier     func(t *testing.T) *domain.Dossier
		wantStatus  domain.Status
		wantReasons []domain.Check
		wantMessage string
		verify      func(t *testing.T, o domain.Outcome)
	}{
		{
			name: "A: consistent dossier is approved",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", expiry), newProof(t, "MARTIN", 30), newBank(t, "MARTIN", validIBAN), nil)
			},
			wantStatus: domain.StatusApproved,
			verify: func(t *testing.T, o domain.Outcome) {
				assert.True(t, o.NameMatch)
				assert.True(t, o.AllDocumentsValid)
				assert.False(t, o.AddressMatch, "coherence was not evaluated without an identity address")
			},
		},
		{
			name: "B: holder name mismatch",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", expiry), newProof(t, "DUPONT", 30), newBank(t, "MARTIN", validIBAN), nil)
			},
			wantStatus:  domain.StatusRejected,
			wantReasons: []domain.Check{domain.CheckNameMatch},
			wantMessage: "name mismatch: identity=MARTIN vs address=DUPONT",
			verify: func(t *testing.T, o domain.Outcome) {
				assert.False(t, o.NameMatch)
				assert.True(t, o.AllDocumentsValid, "a name mismatch does not invalidate documents")
			},
		},
		{
			name: "C: short bank identifier",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", expiry), newProof(t, "MARTIN", 30), newBank(t, "MARTIN", "FR7612345"), nil)
			},
			wantStatus:  domain.StatusRejected,
			wantReasons: []domain.Check{domain.CheckBankChecksum},
			wantMessage: "invalid IBAN checksum: FR76*2345",
		},
		{
			name: "D: stale proof of address",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", expiry), newProof(t, "MARTIN", 100), newBank(t, "MARTIN", validIBAN), nil)
			},
			wantStatus:  domain.StatusRejected,
			wantReasons: []domain.Check{domain.CheckAddressRecency},
			wantMessage: "proof of address dated 2025-03-07 is 100 days old, more than 90",
			verify: func(t *testing.T, o domain.Outcome) {
				for _, check := range []domain.Check{domain.CheckNameMatch, domain.CheckIdentityValidity, domain.CheckBankChecksum} {
					r, ok := o.Result(check)
					require.True(t, ok, "%s should be reported", check)
					assert.True(t, r.Passed, "%s should pass independently", check)
				}
				r, ok := o.Result(domain.CheckAddressRecency)
				require.True(t, ok)
				assert.False(t, r.Passed)
			},
		},
		{
			name: "quoted scenario identifier fails mod-97",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", expiry), newProof(t, "MARTIN", 30), newBank(t, "MARTIN", "FR7630004008100001234567889"), nil)
			},
			wantStatus:  domain.StatusRejected,
			wantReasons: []domain.Check{domain.CheckBankChecksum},
			wantMessage: "invalid IBAN checksum: FR76*******************7889",
		},
		{
			name: "expired identity card",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", domain.NewDate(2025, time.June, 14)), newProof(t, "MARTIN", 10), newBank(t, "MARTIN", validIBAN), nil)
			},
			wantStatus:  domain.StatusRejected,
			wantReasons: []domain.Check{domain.CheckIdentityValidity},
			wantMessage: "identity_card expired on 2025-06-14",
			verify: func(t *testing.T, o domain.Outcome) {
				assert.False(t, o.AllDocumentsValid)
			},
		},
		{
			name: "card expiring today is still valid",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", domain.NewDate(2025, time.June, 15)), newProof(t, "MARTIN", 90), newBank(t, "MARTIN", validIBAN), nil)
			},
			wantStatus: domain.StatusApproved,
		},
		{
			name: "accents and case are folded",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "Lefèvre", expiry), newProof(t, "LEFEVRE", 5), newBank(t, "lefevre", validIBAN), nil)
			},
			wantStatus: domain.StatusApproved,
		},
		{
			name: "passport identity",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newPassport(t, "MARTIN"), newProof(t, "MARTIN", 30), newBank(t, "MARTIN", validIBAN), nil)
			},
			wantStatus: domain.StatusApproved,
		},
		{
			name: "bank holder mismatch is a warning",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", expiry), newProof(t, "MARTIN", 30), newBank(t, "BERNARD", validIBAN), nil)
			},
			wantStatus:  domain.StatusApproved,
			wantReasons: []domain.Check{domain.CheckBankHolder},
			verify: func(t *testing.T, o domain.Outcome) {
				assert.Equal(t, domain.SeverityWarning, o.Reasons[0].Severity)
			},
		},
		{
			name: "postal code mismatch is a warning",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCardWithAddress(t, "MARTIN", "69001"), newProof(t, "MARTIN", 30), newBank(t, "MARTIN", validIBAN), nil)
			},
			wantStatus:  domain.StatusApproved,
			wantReasons: []domain.Check{domain.CheckAddressCoherence},
			wantMessage: "postal code mismatch: identity=69001 vs address=75011",
			verify: func(t *testing.T, o domain.Outcome) {
				assert.False(t, o.AddressMatch)
			},
		},
		{
			name: "matching postal codes",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCardWithAddress(t, "MARTIN", "75011"), newProof(t, "MARTIN", 30), newBank(t, "MARTIN", validIBAN), nil)
			},
			wantStatus: domain.StatusApproved,
			verify: func(t *testing.T, o domain.Outcome) {
				assert.True(t, o.AddressMatch)
			},
		},
		{
			name: "expired driving license is a warning",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", expiry), newProof(t, "MARTIN", 30), newBank(t, "MARTIN", validIBAN),
					newLicense(t, "MARTIN", domain.NewDate(2024, time.December, 31)))
			},
			wantStatus:  domain.StatusApproved,
			wantReasons: []domain.Check{domain.CheckDrivingLicense},
			wantMessage: "driving license expired on 2024-12-31",
			verify: func(t *testing.T, o domain.Outcome) {
				assert.False(t, o.AllDocumentsValid, "an expired license invalidates the document set")
			},
		},
		{
			name: "driving license of someone else",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", expiry), newProof(t, "MARTIN", 30), newBank(t, "MARTIN", validIBAN),
					newLicense(t, "ROUSSEAU", domain.NewDate(2033, time.July, 3)))
			},
			wantStatus:  domain.StatusApproved,
			wantReasons: []domain.Check{domain.CheckDrivingLicense},
			wantMessage: "driving license holder mismatch: identity=MARTIN vs license=ROUSSEAU",
			verify: func(t *testing.T, o domain.Outcome) {
				assert.True(t, o.AllDocumentsValid)
			},
		},
		{
			name: "every blocking check fails",
			dossier: func(t *testing.T) *domain.Dossier {
				return newDossier(t, newCard(t, "MARTIN", domain.NewDate(2020, time.January, 1)), newProof(t, "DUPONT", 200),
					newBank(t, "MARTIN", "FR7612345"), nil)
			},
			wantStatus: domain.StatusRejected,
			wantReasons: []domain.Check{
				domain.CheckNameMatch, domain.CheckIdentityValidity,
				domain.CheckAddressRecency, domain.CheckBankChecksum,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.dossier(t)
			outcome := newTestValidator().Validate(d)

			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.Equal(t, tt.wantStatus, d.Status(), "the outcome should be recorded on the dossier")
			if len(tt.wantReasons) == 0 {
				assert.Empty(t, outcome.Reasons)
			} else {
				assert.Equal(t, tt.wantReasons, reasonChecks(outcome))
			}
			if tt.wantMessage != "" {
				require.NotEmpty(t, outcome.Reasons)
				assert.Equal(t, tt.wantMessage, outcome.Reasons[0].Message)
			}
			assert.Equal(t, testNow, outcome.ValidatedAt)
			if tt.verify != nil {
				tt.verify(t, outcome)
			}
		})
	}
}

func TestConsistencyValidator_ReasonsSplitBySeverity(t *testing.T) {
	d := newDossier(t,
		newCardWithAddress(t, "MARTIN", "69001"),
		newProof(t, "DUPONT", 30),
		newBank(t, "MARTIN", validIBAN),
		nil,
	)
	newTestValidator().Validate(d)

	assert.Equal(t, []string{"name mismatch: identity=MARTIN vs address=DUPONT"}, d.RejectionReasons())
	assert.Equal(t, []string{"postal code mismatch: identity=69001 vs address=75011"}, d.Warnings())
}

func TestConsistencyValidator_RevalidationOverwrites(t *testing.T) {
	d := newDossier(t, newCard(t, "MARTIN", domain.NewDate(2030, time.January, 1)), newProof(t, "MARTIN", 80), newBank(t, "MARTIN", validIBAN), nil)
	v := newTestValidator()

	first := v.Validate(d)
	require.Equal(t, domain.StatusApproved, first.Status)

	// Twenty days later the bill is too old.
	later := v.ValidateAt(d, testNow.AddDate(0, 0, 20))
	assert.Equal(t, domain.StatusRejected, later.Status)
	assert.Equal(t, domain.StatusRejected, d.Status())
	assert.Len(t, d.RejectionReasons(), 1, "reasons of the first run should not accumulate")

	again := v.Validate(d)
	assert.Equal(t, first.Status, again.Status)
	assert.Empty(t, d.RejectionReasons())
}

func TestConsistencyValidator_Monotonic(t *testing.T) {
	// Once expired or stale, documents never become valid again as time passes.
	d := newDossier(t, newCard(t, "MARTIN", domain.NewDate(2025, time.September, 1)), newProof(t, "MARTIN", 60), newBank(t, "MARTIN", validIBAN), nil)
	v := newTestValidator()

	rejected := false
	for day := 0; day < 200; day += 5 {
		outcome := v.ValidateAt(d, testNow.AddDate(0, 0, day))
		if rejected {
			assert.Equal(t, domain.StatusRejected, outcome.Status, "day %d", day)
		}
		rejected = outcome.Status == domain.StatusRejected
	}
	assert.True(t, rejected)
}

func TestConsistencyValidator_NameMatchIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"MARTIN", "martin"},
		{"Lefèvre", "LEFEVRE"},
		{"DUPONT", "MARTIN"},
		{"Saint-Exupéry", "SAINT EXUPERY"},
	}
	expiry := domain.NewDate(2030, time.January, 1)
	v := newTestValidator()

	for _, p := range pairs {
		forward := v.Validate(newDossier(t, newCard(t, p[0], expiry), newProof(t, p[1], 1), newBank(t, p[0], validIBAN), nil))
		backward := v.Validate(newDossier(t, newCard(t, p[1], expiry), newProof(t, p[0], 1), newBank(t, p[1], validIBAN), nil))
		assert.Equal(t, forward.NameMatch, backward.NameMatch, "%s / %s", p[0], p[1])
	}
}

func TestConsistencyValidator_CustomRules(t *testing.T) {
	d := newDossier(t, newCard(t, "MARTIN", domain.NewDate(2030, time.January, 1)), newProof(t, "MARTIN", 45), newBank(t, "MARTI", validIBAN), nil)

	strict := NewConsistencyValidator(Rules{RecencyDays: 30, MinIBANLength: 15, HolderSimilarity: 0.95}, fixedClock)
	outcome := strict.Validate(d)
	assert.Equal(t, domain.StatusRejected, outcome.Status)
	assert.Equal(t, []domain.Check{domain.CheckAddressRecency, domain.CheckBankHolder}, reasonChecks(outcome))

	lenient := NewConsistencyValidator(Rules{RecencyDays: 60, MinIBANLength: 15, HolderSimilarity: 0.8}, fixedClock)
	outcome = lenient.Validate(d)
	assert.Equal(t, domain.StatusApproved, outcome.Status)
	assert.Empty(t, outcome.Reasons, "MARTI is similar enough to MARTIN at 0.8")
}

func TestConsistencyValidator_MinIBANLength(t *testing.T) {
	// NO9386011117947 is a valid 15-character Norwegian IBAN.
	d := newDossier(t, newCard(t, "MARTIN", domain.NewDate(2030, time.January, 1)), newProof(t, "MARTIN", 1), newBank(t, "MARTIN", "NO9386011117947"), nil)

	assert.Equal(t, domain.StatusApproved, newTestValidator().Validate(d).Status)

	strict := NewConsistencyValidator(Rules{RecencyDays: 90, MinIBANLength: 16, HolderSimilarity: 0.85}, fixedClock)
	assert.Equal(t, domain.StatusRejected, strict.Validate(d).Status)
}

func TestConsistencyValidator_Concurrent(t *testing.T) {
	v := newTestValidator()
	expiry := domain.NewDate(2030, time.January, 1)

	dossiers := make([]*domain.Dossier, 20)
	for i := range dossiers {
		holder := "MARTIN"
		if i%2 == 1 {
			holder = "DUPONT"
		}
		dossiers[i] = newDossier(t, newCard(t, "MARTIN", expiry), newProof(t, holder, 10), newBank(t, "MARTIN", validIBAN), nil)
	}

	var wg sync.WaitGroup
	for _, d := range dossiers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Validate(d)
		}()
	}
	wg.Wait()

	for i, d := range dossiers {
		want := domain.StatusApproved
		if i%2 == 1 {
			want = domain.StatusRejected
		}
		assert.Equal(t, want, d.Status(), "dossier %d", i)
	}
}
