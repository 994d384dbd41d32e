package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIBAN(t *testing.T) {
	tests := []struct {
		name string
		iban string
		want bool
	}{
		{name: "french iban", iban: "FR7630006000011234567890189", want: true},
		{name: "french iban with letters in bban", iban: "FR1420041010050500013M02606", want: true},
		{name: "another french iban", iban: "FR7630004000031234567890143", want: true},
		{name: "german iban", iban: "DE89370400440532013000", want: true},
		{name: "uk iban", iban: "GB82WEST12345698765432", want: true},
		{name: "lowercase is uppercased", iban: "gb82west12345698765432", want: true},
		{name: "grouped with spaces", iban: "FR76 3000 6000 0112 3456 7890 189", want: true},
		{name: "tabs and newlines are whitespace", iban: "DE89\t3704 0044\n0532 0130 00", want: true},
		{name: "wrong check digits", iban: "FR7730006000011234567890189", want: false},
		{name: "single digit altered", iban: "FR7630006000011234567890188", want: false},
		{name: "checksum remainder is not one", iban: "FR7630004008100001234567889", want: false},
		{name: "too short", iban: "FR7612345", want: false},
		{name: "fourteen characters", iban: "FR761234567890", want: false},
		{name: "empty", iban: "", want: false},
		{name: "only whitespace", iban: "      ", want: false},
		{name: "punctuation is rejected", iban: "FR76-3000-6000-0112-3456-7890-189", want: false},
		{name: "non ascii letter is rejected", iban: "FR7630006000011234567890É89", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIBAN(tt.iban), "ValidIBAN(%q)", tt.iban)
		})
	}
}

func TestValidIBANIgnoresInsertedWhitespace(t *testing.T) {
	valid := []string{
		"FR7630006000011234567890189",
		"FR1420041010050500013M02606",
		"DE89370400440532013000",
		"GB82WEST12345698765432",
	}

	for _, iban := range valid {
		t.Run(iban, func(t *testing.T) {
			assert.True(t, ValidIBAN(iban), "baseline should be valid")

			for step := 1; step <= 6; step++ {
				var b strings.Builder
				for i, r := range iban {
					if i > 0 && i%step == 0 {
						b.WriteString(" ")
					}
					b.WriteRune(r)
				}
				spaced := b.String()
				assert.Equal(t, ValidIBAN(iban), ValidIBAN(spaced), "spacing every %d chars changed the result for %q", step, spaced)
				assert.Equal(t, ValidIBAN(spaced), ValidIBAN(spaced), "result should be deterministic")
			}
		})
	}
}

func TestValidIBANHandlesLongIdentifiers(t *testing.T) {
	// A 34-character identifier rearranges into a numeral far beyond 64 bits.
	// MT84MALT011000012345MTLCAST001S is a published valid Maltese IBAN.
	assert.True(t, ValidIBAN("MT84MALT011000012345MTLCAST001S"))
	assert.False(t, ValidIBAN("MT84MALT011000012345MTLCAST001T"))
	assert.False(t, ValidIBAN(strings.Repeat("9", 200)), "very long identifiers must not overflow")
}
