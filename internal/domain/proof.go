package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecencyWindowDays is how old a proof of address may be and still count as
// recent.
const RecencyWindowDays = 90

// DefaultCountry is what reports assume for an address that names no
// country. Records keep the field empty.
const DefaultCountry = "France"

// ProofType is the kind of document used as proof of address.
type ProofType string

// Accepted proof of address types.
const (
	ProofUtilityBill          ProofType = "utility_bill"
	ProofElectricityBill      ProofType = "electricity_bill"
	ProofGasBill              ProofType = "gas_bill"
	ProofWaterBill            ProofType = "water_bill"
	ProofInternetBill         ProofType = "internet_bill"
	ProofPhoneBill            ProofType = "phone_bill"
	ProofRentReceipt          ProofType = "rent_receipt"
	ProofRentalAgreement      ProofType = "rental_agreement"
	ProofBankStatement        ProofType = "bank_statement"
	ProofTaxNotice            ProofType = "tax_notice"
	ProofHousingTax           ProofType = "housing_tax"
	ProofHomeInsurance        ProofType = "home_insurance"
	ProofResidenceCertificate ProofType = "residence_certificate"
)

// Valid reports whether t is an accepted proof type.
func (t ProofType) Valid() bool {
	switch t {
	case ProofUtilityBill, ProofElectricityBill, ProofGasBill, ProofWaterBill,
		ProofInternetBill, ProofPhoneBill, ProofRentReceipt, ProofRentalAgreement,
		ProofBankStatement, ProofTaxNotice, ProofHousingTax, ProofHomeInsurance,
		ProofResidenceCertificate:
		return true
	}
	return false
}

// ProofOfAddress is a recent document showing where the holder lives.
type ProofOfAddress struct {
	record

	DocumentType    ProofType        `json:"document_type" validate:"required,prooftype"`
	DocumentDate    Date             `json:"document_date" validate:"required"`
	HolderLastName  string           `json:"holder_last_name" validate:"required"`
	HolderFirstName string           `json:"holder_first_name,omitempty"`
	FullName        string           `json:"full_name,omitempty"`
	Address         Address          `json:"address"`
	Issuer          string           `json:"issuer,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
}

// NewProofOfAddress normalizes and validates p. When the holder surname is
// missing but a full name is printed, the last word of the full name is
// taken as the surname.
func NewProofOfAddress(p ProofOfAddress) (*ProofOfAddress, error) {
	p.DocumentType = ProofType(strings.ToLower(strings.TrimSpace(string(p.DocumentType))))
	p.FullName = collapseSpaces(p.FullName)
	p.HolderFirstName = collapseSpaces(p.HolderFirstName)
	p.HolderLastName = NormalizeSurname(p.HolderLastName)
	if p.HolderLastName == "" && p.FullName != "" {
		words := strings.Fields(p.FullName)
		p.HolderLastName = NormalizeSurname(words[len(words)-1])
		if p.HolderFirstName == "" && len(words) > 1 {
			p.HolderFirstName = strings.Join(words[:len(words)-1], " ")
		}
	}
	p.Address.normalize()
	p.Issuer = collapseSpaces(p.Issuer)

	if err := validateRecord(KindProofOfAddress, &p); err != nil {
		return nil, err
	}
	p.checked = true
	return &p, nil
}

// Kind implements Document.
func (p *ProofOfAddress) Kind() Kind { return KindProofOfAddress }

// IsRecentAt reports whether the document is dated no more than
// RecencyWindowDays before the date of now.
func (p *ProofOfAddress) IsRecentAt(now time.Time) bool {
	return p.IsRecentWithin(now, RecencyWindowDays)
}

// IsRecentWithin is IsRecentAt with an explicit window in days.
func (p *ProofOfAddress) IsRecentWithin(now time.Time, days int) bool {
	cutoff := DateOf(now).AddDays(-days)
	return !p.DocumentDate.Before(cutoff)
}

// AgeDays returns how many days old the document is on the date of now.
func (p *ProofOfAddress) AgeDays(now time.Time) int {
	return int(DateOf(now).Time().Sub(p.DocumentDate.Time()).Hours() / 24)
}
