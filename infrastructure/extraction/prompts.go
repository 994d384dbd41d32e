package extraction

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/ahrav/go-kyc/internal/domain"
)

// systemPrompt is sent as the system instruction of every call.
const systemPrompt = "You are a KYC document reader for a French retail bank. " +
	"You read scanned identity documents, proofs of address and bank details " +
	"and answer with a single JSON object, without commentary."

// promptData is the data every prompt template is executed with.
type promptData struct {
	// Today anchors relative statements such as "less than three months old".
	Today string

	// Kinds lists the labels the classifier may answer with.
	Kinds []domain.Kind

	// Categories lists the driving license categories.
	Categories []domain.LicenseCategory

	// ProofTypes lists the accepted proof of address types.
	ProofTypes []domain.ProofType
}

var promptFuncs = template.FuncMap{
	"join": func(items any, sep string) string {
		switch v := items.(type) {
		case []domain.Kind:
			out := make([]string, len(v))
			for i, k := range v {
				out[i] = string(k)
			}
			return strings.Join(out, sep)
		case []domain.LicenseCategory:
			out := make([]string, len(v))
			for i, c := range v {
				out[i] = string(c)
			}
			return strings.Join(out, sep)
		case []domain.ProofType:
			out := make([]string, len(v))
			for i, t := range v {
				out[i] = string(t)
			}
			return strings.Join(out, sep)
		}
		return fmt.Sprint(items)
	},
}

const classificationPrompt = `Classify the attached document. It is one of:
- identity_card: French national identity card. Plastic card, "REPUBLIQUE FRANCAISE", "CARTE NATIONALE D'IDENTITE", photo, 12 character number.
- passport: French passport. Burgundy booklet, "PASSEPORT" and "UNION EUROPEENNE", MRZ zone at the bottom of the data page.
- driving_license: French driving license, European pink card format, category boxes (A, B, ...).
- proof_of_address: utility bill (electricity, gas, water, internet, phone), rent receipt, housing tax notice or home insurance certificate.
- bank_account: French bank details (RIB) with an IBAN starting with FR, a BIC and bank, branch and account codes.

Answer with a JSON object:
{"kind": one of [{{join .Kinds ", "}}], "confidence": number between 0 and 1, "reason": the visual and textual clues you used}`

const identityCardPrompt = `Extract the fields of the attached French national identity card.

Required:
- document_number: the 12 character card number, without spaces
- last_name: family name, as printed in capitals
- first_name: given name(s)
- birth_date: YYYY-MM-DD
- issue_date: YYYY-MM-DD
- expiry_date: YYYY-MM-DD, after issue_date

Optional, use null when absent:
- usage_name, sex ("M" or "F"), birth_place (city and department), nationality (usually "FRA"), height_cm (integer)
- address: {"line1", "line2", "postal_code", "city", "country"} when an address is printed on the back

Dates may be printed as DD/MM/YYYY or "DD MMM YYYY"; convert them to YYYY-MM-DD.
Answer with a single JSON object using exactly these keys.`

const passportPrompt = `Extract the fields of the attached French passport data page.

Required:
- passport_number: 2 digits followed by 7 letters or digits, e.g. 24AX12345
- last_name, first_name
- birth_date, issue_date, expiry_date: YYYY-MM-DD

Optional, use null when absent:
- sex ("M", "F" or "X"), birth_place, nationality (country code, "FRA" for France)
- issuing_authority, e.g. "Prefecture de Paris"
- mrz_line1, mrz_line2: the two machine readable lines at the bottom, copied exactly including "<" fillers
- address: {"line1", "line2", "postal_code", "city", "country"} when printed

Answer with a single JSON object using exactly these keys.`

const drivingLicensePrompt = `Extract the fields of the attached French driving license (European card format).

Required:
- license_number: the 12 character license number
- last_name, first_name
- birth_date, issue_date: YYYY-MM-DD
- expiry_date: administrative validity date, YYYY-MM-DD
- categories: list of the categories whose box is ticked, e.g. ["B", "A2"]

Possible categories: {{join .Categories ", "}}. List only categories that are actually ticked.

Optional, use null when absent:
- birth_place
- category_b_date: date category B was obtained, YYYY-MM-DD

Answer with a single JSON object using exactly these keys.`

const proofOfAddressPrompt = `Extract the fields of the attached proof of address. Layouts vary a lot between issuers (EDF, Engie, Orange, Free, landlords, tax office, insurers) but the fields are the same.

Required:
- document_type: one of [{{join .ProofTypes ", "}}]
- holder_last_name: family name of the person the document is addressed to. Bills often print only "M. DUPONT" or "Mme MARTIN"; use the family name.
- address: {"line1": street number and name, "line2": flat or building when present, "postal_code": 5 digits, "city", "country": only when printed}
- document_date: issue date of the document, YYYY-MM-DD. It may be at the top or the bottom of the page.

Optional, use null when absent:
- holder_first_name
- issuer: the company or body that issued the document
- amount: amount billed, as a decimal number

Today is {{.Today}}; do not correct dates that look old, report them as printed.
Answer with a single JSON object using exactly these keys.`

const bankAccountPrompt = `Extract the fields of the attached French bank details statement (RIB).

Required:
- holder_last_name: family name of the account holder
- iban: copied exactly as printed; spaces will be removed

Optional, use null when absent:
- holder_first_name
- bank_code: 5 digits
- branch_code: 5 digits
- account_number: 11 letters or digits
- rib_key: 2 digits
- bic: 8 or 11 characters, sometimes labelled "SWIFT"
- bank_name
- branch_address: address of the branch on one line

The IBAN checksum is verified after extraction, so never fix or complete digits.
Answer with a single JSON object using exactly these keys.`

// Templates are parsed once at package init.
var (
	classifyTemplate = template.Must(template.New("classify").Funcs(promptFuncs).Parse(classificationPrompt))

	extractTemplates = map[domain.Kind]*template.Template{
		domain.KindIdentityCard:   template.Must(template.New("identity_card").Funcs(promptFuncs).Parse(identityCardPrompt)),
		domain.KindPassport:       template.Must(template.New("passport").Funcs(promptFuncs).Parse(passportPrompt)),
		domain.KindDrivingLicense: template.Must(template.New("driving_license").Funcs(promptFuncs).Parse(drivingLicensePrompt)),
		domain.KindProofOfAddress: template.Must(template.New("proof_of_address").Funcs(promptFuncs).Parse(proofOfAddressPrompt)),
		domain.KindBankAccount:    template.Must(template.New("bank_account").Funcs(promptFuncs).Parse(bankAccountPrompt)),
	}
)

var licenseCategories = []domain.LicenseCategory{
	domain.CategoryAM, domain.CategoryA1, domain.CategoryA2, domain.CategoryA,
	domain.CategoryB, domain.CategoryBE, domain.CategoryC1, domain.CategoryC1E,
	domain.CategoryC, domain.CategoryCE, domain.CategoryD1, domain.CategoryD1E,
	domain.CategoryD, domain.CategoryDE,
}

var proofTypes = []domain.ProofType{
	domain.ProofElectricityBill, domain.ProofGasBill, domain.ProofWaterBill,
	domain.ProofInternetBill, domain.ProofPhoneBill, domain.ProofRentReceipt,
	domain.ProofHousingTax, domain.ProofHomeInsurance,
}

// ClassificationPrompt renders the classification prompt.
func ClassificationPrompt(today domain.Date) (string, error) {
	return render(classifyTemplate, today)
}

// ExtractionPrompt renders the extraction prompt for kind.
func ExtractionPrompt(kind domain.Kind, today domain.Date) (string, error) {
	tmpl, ok := extractTemplates[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	return render(tmpl, today)
}

func render(tmpl *template.Template, today domain.Date) (string, error) {
	data := promptData{
		Today:      today.String(),
		Kinds:      domain.Kinds,
		Categories: licenseCategories,
		ProofTypes: proofTypes,
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
