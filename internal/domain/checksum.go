package domain

import "strings"

// MinIBANLength is the shortest identifier the checksum will consider.
// Shorter inputs are reported invalid rather than rejected with an error.
const MinIBANLength = 15

// ValidIBAN reports whether s passes the ISO 7064 mod-97 check used by IBANs.
//
// Whitespace is stripped and letters are uppercased first. The first four
// characters are moved to the end, letters expand to two digits (A=10 ...
// Z=35) and the resulting numeral must leave a remainder of 1 modulo 97.
// The remainder is folded one digit at a time so identifiers of any length
// are handled without overflow.
func ValidIBAN(s string) bool {
	iban := strings.ToUpper(stripSpaces(s))
	if len(iban) < MinIBANLength {
		return false
	}

	rearranged := iban[4:] + iban[:4]

	remainder := 0
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case c >= '0' && c <= '9':
			remainder = (remainder*10 + int(c-'0')) % 97
		case c >= 'A' && c <= 'Z':
			v := int(c-'A') + 10
			remainder = (remainder*100 + v) % 97
		default:
			return false
		}
	}

	return remainder == 1
}
