package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-kyc/internal/domain"
)

// validIBAN passes mod-97. The identifier quoted in the original scenario
// (FR7630004008100001234567889) does not.
const validIBAN = "FR7630006000011234567890189"

var testNow = time.Date(2025, time.June, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newCard(t *testing.T, lastName string, expiry domain.Date) *domain.IdentityCard {
	t.Helper()
	card, err := domain.NewIdentityCard(domain.IdentityCard{
		DocumentNumber: "X4RTBPFW4613",
		LastName:       lastName,
		FirstName:      "Claire",
		Sex:            "F",
		BirthDate:      domain.NewDate(1988, time.March, 12),
		IssueDate:      domain.NewDate(2020, time.January, 2),
		ExpiryDate:     expiry,
	})
	require.NoError(t, err)
	return card
}

func newCardWithAddress(t *testing.T, lastName, postalCode string) *domain.IdentityCard {
	t.Helper()
	card, err := domain.NewIdentityCard(domain.IdentityCard{
		DocumentNumber: "X4RTBPFW4613",
		LastName:       lastName,
		FirstName:      "Claire",
		BirthDate:      domain.NewDate(1988, time.March, 12),
		IssueDate:      domain.NewDate(2021, time.June, 1),
		ExpiryDate:     domain.NewDate(2031, time.June, 1),
		Address: &domain.Address{
			Line1:      "12 rue des Lilas",
			PostalCode: postalCode,
			City:       "Paris",
		},
	})
	require.NoError(t, err)
	return card
}

func newPassport(t *testing.T, lastName string) *domain.Passport {
	t.Helper()
	p, err := domain.NewPassport(domain.Passport{
		PassportNumber: "24AX12345",
		LastName:       lastName,
		FirstName:      "Claire",
		BirthDate:      domain.NewDate(1988, time.March, 12),
		IssueDate:      domain.NewDate(2019, time.May, 20),
		ExpiryDate:     domain.NewDate(2029, time.May, 19),
	})
	require.NoError(t, err)
	return p
}

func newLicense(t *testing.T, lastName string, expiry domain.Date) *domain.DrivingLicense {
	t.Helper()
	l, err := domain.NewDrivingLicense(domain.DrivingLicense{
		LicenseNumber: "120675300123",
		LastName:      lastName,
		FirstName:     "Claire",
		BirthDate:     domain.NewDate(1988, time.March, 12),
		IssueDate:     domain.NewDate(2012, time.July, 3),
		ExpiryDate:    expiry,
		Categories:    []domain.LicenseCategory{domain.CategoryB},
	})
	require.NoError(t, err)
	return l
}

func newProof(t *testing.T, holder string, ageDays int) *domain.ProofOfAddress {
	t.Helper()
	p, err := domain.NewProofOfAddress(domain.ProofOfAddress{
		DocumentType:   domain.ProofElectricityBill,
		DocumentDate:   domain.DateOf(testNow).AddDays(-ageDays),
		HolderLastName: holder,
		Address: domain.Address{
			Line1:      "12 rue des Lilas",
			PostalCode: "75011",
			City:       "Paris",
		},
		Issuer: "EDF",
	})
	require.NoError(t, err)
	return p
}

func newBank(t *testing.T, holder, iban string) *domain.BankAccount {
	t.Helper()
	b, err := domain.NewBankAccount(domain.BankAccount{
		HolderLastName: holder,
		IBAN:           iban,
	})
	require.NoError(t, err)
	return b
}

func newDossier(t *testing.T, identity domain.IdentityDocument, proof *domain.ProofOfAddress, bank *domain.BankAccount, license *domain.DrivingLicense) *domain.Dossier {
	t.Helper()
	d, err := domain.NewDossier(identity, proof, bank, license)
	require.NoError(t, err)
	return d
}

func success(source string, doc domain.Document, confidence float64) *domain.ExtractionResult {
	return &domain.ExtractionResult{
		Source:         source,
		Classification: &domain.Classification{Kind: doc.Kind(), Confidence: confidence},
		Document:       doc,
	}
}
