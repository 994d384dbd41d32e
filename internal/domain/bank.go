package domain

import "strings"

// BankAccount holds the details printed on a bank account statement (RIB).
type BankAccount struct {
	record

	HolderLastName  string `json:"holder_last_name" validate:"required"`
	HolderFirstName string `json:"holder_first_name,omitempty"`
	BankCode        string `json:"bank_code,omitempty" validate:"omitempty,len=5,numeric"`
	BranchCode      string `json:"branch_code,omitempty" validate:"omitempty,len=5,numeric"`
	AccountNumber   string `json:"account_number,omitempty" validate:"omitempty,max=11,alphanum"`
	RIBKey          string `json:"rib_key,omitempty" validate:"omitempty,len=2,numeric"`
	IBAN            string `json:"iban" validate:"required,max=34,ibanshape"`
	BIC             string `json:"bic,omitempty" validate:"omitempty,bic"`
	BankName        string `json:"bank_name,omitempty"`
	BranchAddress   string `json:"branch_address,omitempty"`
}

// NewBankAccount normalizes and validates b. The IBAN is stored uppercased
// without whitespace or separators; its checksum is not a construction
// constraint and is reported by ChecksumValid instead.
func NewBankAccount(b BankAccount) (*BankAccount, error) {
	b.HolderLastName = NormalizeSurname(b.HolderLastName)
	b.HolderFirstName = collapseSpaces(b.HolderFirstName)
	b.BankCode = NormalizeIdentifier(b.BankCode)
	b.BranchCode = NormalizeIdentifier(b.BranchCode)
	b.AccountNumber = NormalizeIdentifier(b.AccountNumber)
	b.RIBKey = NormalizeIdentifier(b.RIBKey)
	b.IBAN = NormalizeIdentifier(b.IBAN)
	b.BIC = NormalizeIdentifier(b.BIC)
	b.BankName = collapseSpaces(b.BankName)
	b.BranchAddress = collapseSpaces(b.BranchAddress)

	if err := validateRecord(KindBankAccount, &b); err != nil {
		return nil, err
	}
	b.checked = true
	return &b, nil
}

// Kind implements Document.
func (b *BankAccount) Kind() Kind { return KindBankAccount }

// ChecksumValid reports whether the IBAN passes the mod-97 check.
func (b *BankAccount) ChecksumValid() bool { return ValidIBAN(b.IBAN) }

// CountryCode returns the two-letter country prefix of the IBAN.
func (b *BankAccount) CountryCode() string {
	if len(b.IBAN) < 2 {
		return ""
	}
	return b.IBAN[:2]
}

// MaskedIBAN returns the IBAN with all but the country prefix and the last
// four characters hidden, for logs.
func (b *BankAccount) MaskedIBAN() string {
	if len(b.IBAN) <= 8 {
		return b.IBAN
	}
	return b.IBAN[:4] + strings.Repeat("*", len(b.IBAN)-8) + b.IBAN[len(b.IBAN)-4:]
}
