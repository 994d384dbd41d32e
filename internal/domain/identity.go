package domain

import (
	"strings"
	"time"
)

// IdentityCard is a national identity card.
type IdentityCard struct {
	record

	DocumentNumber string   `json:"document_number" validate:"required,len=12,alphanum"`
	LastName       string   `json:"last_name" validate:"required"`
	FirstName      string   `json:"first_name" validate:"required"`
	UsageName      string   `json:"usage_name,omitempty"`
	Sex            Sex      `json:"sex,omitempty" validate:"omitempty,sex"`
	BirthDate      Date     `json:"birth_date" validate:"required"`
	BirthPlace     string   `json:"birth_place,omitempty"`
	Nationality    string   `json:"nationality,omitempty"`
	HeightCM       int      `json:"height_cm,omitempty" validate:"omitempty,min=50,max=250"`
	IssueDate      Date     `json:"issue_date" validate:"required"`
	ExpiryDate     Date     `json:"expiry_date" validate:"required"`
	Address        *Address `json:"address,omitempty" validate:"omitempty"`
}

// NewIdentityCard normalizes and validates c. The returned card is the only
// form in which an identity card exists.
func NewIdentityCard(c IdentityCard) (*IdentityCard, error) {
	c.DocumentNumber = NormalizeIdentifier(c.DocumentNumber)
	c.LastName = NormalizeSurname(c.LastName)
	c.UsageName = NormalizeSurname(c.UsageName)
	c.FirstName = collapseSpaces(c.FirstName)
	c.Sex = normalizeSex(c.Sex)
	c.BirthPlace = collapseSpaces(c.BirthPlace)
	c.Nationality = collapseSpaces(c.Nationality)
	c.Address = normalizeAddress(c.Address)

	if err := validateRecord(KindIdentityCard, &c); err != nil {
		return nil, err
	}
	c.checked = true
	return &c, nil
}

// Kind implements Document.
func (c *IdentityCard) Kind() Kind { return KindIdentityCard }

// Surname implements IdentityDocument.
func (c *IdentityCard) Surname() string { return c.LastName }

// GivenNames implements IdentityDocument.
func (c *IdentityCard) GivenNames() string { return c.FirstName }

// Number implements IdentityDocument.
func (c *IdentityCard) Number() string { return c.DocumentNumber }

// Expiry implements IdentityDocument.
func (c *IdentityCard) Expiry() Date { return c.ExpiryDate }

// IsValidAt reports whether the card has not expired on the date of now.
func (c *IdentityCard) IsValidAt(now time.Time) bool { return isValidAt(c.ExpiryDate, now) }

// PostalAddress implements IdentityDocument.
func (c *IdentityCard) PostalAddress() *Address { return c.Address }

// Passport is a passport booklet.
type Passport struct {
	record

	PassportNumber   string   `json:"passport_number" validate:"required,passportnum"`
	LastName         string   `json:"last_name" validate:"required"`
	FirstName        string   `json:"first_name" validate:"required"`
	Sex              Sex      `json:"sex,omitempty" validate:"omitempty,sex"`
	BirthDate        Date     `json:"birth_date" validate:"required"`
	BirthPlace       string   `json:"birth_place,omitempty"`
	Nationality      string   `json:"nationality,omitempty"`
	IssueDate        Date     `json:"issue_date" validate:"required"`
	ExpiryDate       Date     `json:"expiry_date" validate:"required"`
	IssuingAuthority string   `json:"issuing_authority,omitempty"`
	MRZLine1         string   `json:"mrz_line1,omitempty" validate:"omitempty,max=44"`
	MRZLine2         string   `json:"mrz_line2,omitempty" validate:"omitempty,max=44"`
	Address          *Address `json:"address,omitempty" validate:"omitempty"`
}

// NewPassport normalizes and validates p.
func NewPassport(p Passport) (*Passport, error) {
	p.PassportNumber = NormalizeIdentifier(p.PassportNumber)
	p.LastName = NormalizeSurname(p.LastName)
	p.FirstName = collapseSpaces(p.FirstName)
	p.Sex = normalizeSex(p.Sex)
	p.BirthPlace = collapseSpaces(p.BirthPlace)
	p.Nationality = collapseSpaces(p.Nationality)
	p.IssuingAuthority = collapseSpaces(p.IssuingAuthority)
	// MRZ lines never contain spaces; the "<" fillers are kept as printed.
	p.MRZLine1 = strings.ToUpper(stripSpaces(p.MRZLine1))
	p.MRZLine2 = strings.ToUpper(stripSpaces(p.MRZLine2))
	p.Address = normalizeAddress(p.Address)

	if err := validateRecord(KindPassport, &p); err != nil {
		return nil, err
	}
	p.checked = true
	return &p, nil
}

// Kind implements Document.
func (p *Passport) Kind() Kind { return KindPassport }

// Surname implements IdentityDocument.
func (p *Passport) Surname() string { return p.LastName }

// GivenNames implements IdentityDocument.
func (p *Passport) GivenNames() string { return p.FirstName }

// Number implements IdentityDocument.
func (p *Passport) Number() string { return p.PassportNumber }

// Expiry implements IdentityDocument.
func (p *Passport) Expiry() Date { return p.ExpiryDate }

// IsValidAt reports whether the passport has not expired on the date of now.
func (p *Passport) IsValidAt(now time.Time) bool { return isValidAt(p.ExpiryDate, now) }

// PostalAddress implements IdentityDocument.
func (p *Passport) PostalAddress() *Address { return p.Address }

// LicenseCategory is a driving license vehicle category.
type LicenseCategory string

// Driving license categories.
const (
	CategoryAM  LicenseCategory = "AM"
	CategoryA1  LicenseCategory = "A1"
	CategoryA2  LicenseCategory = "A2"
	CategoryA   LicenseCategory = "A"
	CategoryB   LicenseCategory = "B"
	CategoryBE  LicenseCategory = "BE"
	CategoryC1  LicenseCategory = "C1"
	CategoryC1E LicenseCategory = "C1E"
	CategoryC   LicenseCategory = "C"
	CategoryCE  LicenseCategory = "CE"
	CategoryD1  LicenseCategory = "D1"
	CategoryD1E LicenseCategory = "D1E"
	CategoryD   LicenseCategory = "D"
	CategoryDE  LicenseCategory = "DE"
)

// Valid reports whether c is a known category.
func (c LicenseCategory) Valid() bool {
	switch c {
	case CategoryAM, CategoryA1, CategoryA2, CategoryA, CategoryB, CategoryBE,
		CategoryC1, CategoryC1E, CategoryC, CategoryCE,
		CategoryD1, CategoryD1E, CategoryD, CategoryDE:
		return true
	}
	return false
}

// DrivingLicense is a driving license card.
type DrivingLicense struct {
	record

	LicenseNumber string            `json:"license_number" validate:"required,len=12,alphanum"`
	LastName      string            `json:"last_name" validate:"required"`
	FirstName     string            `json:"first_name" validate:"required"`
	BirthDate     Date              `json:"birth_date" validate:"required"`
	BirthPlace    string            `json:"birth_place,omitempty"`
	IssueDate     Date              `json:"issue_date" validate:"required"`
	ExpiryDate    Date              `json:"expiry_date" validate:"required"`
	Categories    []LicenseCategory `json:"categories" validate:"required,min=1,dive,licensecategory"`
	CategoryBDate Date              `json:"category_b_date,omitempty"`
}

// NewDrivingLicense normalizes and validates l. Duplicate categories are
// collapsed, keeping the first occurrence.
func NewDrivingLicense(l DrivingLicense) (*DrivingLicense, error) {
	l.LicenseNumber = NormalizeIdentifier(l.LicenseNumber)
	l.LastName = NormalizeSurname(l.LastName)
	l.FirstName = collapseSpaces(l.FirstName)
	l.BirthPlace = collapseSpaces(l.BirthPlace)

	seen := make(map[LicenseCategory]bool, len(l.Categories))
	categories := make([]LicenseCategory, 0, len(l.Categories))
	for _, c := range l.Categories {
		c = LicenseCategory(NormalizeIdentifier(string(c)))
		if seen[c] {
			continue
		}
		seen[c] = true
		categories = append(categories, c)
	}
	l.Categories = categories

	if err := validateRecord(KindDrivingLicense, &l); err != nil {
		return nil, err
	}
	l.checked = true
	return &l, nil
}

// Kind implements Document.
func (l *DrivingLicense) Kind() Kind { return KindDrivingLicense }

// Surname implements IdentityDocument.
func (l *DrivingLicense) Surname() string { return l.LastName }

// GivenNames implements IdentityDocument.
func (l *DrivingLicense) GivenNames() string { return l.FirstName }

// Number implements IdentityDocument.
func (l *DrivingLicense) Number() string { return l.LicenseNumber }

// Expiry implements IdentityDocument.
func (l *DrivingLicense) Expiry() Date { return l.ExpiryDate }

// IsValidAt reports whether the license has not expired on the date of now.
func (l *DrivingLicense) IsValidAt(now time.Time) bool { return isValidAt(l.ExpiryDate, now) }

// PostalAddress implements IdentityDocument. Licenses carry no address.
func (l *DrivingLicense) PostalAddress() *Address { return nil }

// HasCategory reports whether the license grants category c.
func (l *DrivingLicense) HasCategory(c LicenseCategory) bool {
	for _, have := range l.Categories {
		if have == c {
			return true
		}
	}
	return false
}

func normalizeSex(s Sex) Sex {
	return Sex(strings.ToUpper(strings.TrimSpace(string(s))))
}

// normalizeAddress returns a normalized copy of a, or nil when a is nil or
// has no postal code. Identity documents often print only a partial address,
// which is not worth keeping as a structured one.
func normalizeAddress(a *Address) *Address {
	if a == nil {
		return nil
	}
	out := *a
	out.normalize()
	if out.PostalCode == "" {
		return nil
	}
	return &out
}
