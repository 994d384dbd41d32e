package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// inlineAddressPattern splits "12 rue de la Paix, 75002 Paris" into the
// street part, the postal code and the city.
var inlineAddressPattern = regexp.MustCompile(`^(.*?)[,\s]+(\d{5})\s+(.+)$`)

// UnmarshalJSON accepts either the structured object form or a single
// printed line, which is how addresses appear on identity documents.
func (a *Address) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var line string
		if err := json.Unmarshal(trimmed, &line); err != nil {
			return err
		}
		*a = ParseAddressLine(line)
		return nil
	}

	type plain Address
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*a = Address(p)
	return nil
}

// ParseAddressLine splits a one-line French address. When no postal code
// can be found the whole line is kept in Line1.
func ParseAddressLine(line string) Address {
	line = collapseSpaces(line)
	m := inlineAddressPattern.FindStringSubmatch(line)
	if m == nil {
		return Address{Line1: line}
	}
	return Address{
		Line1:      strings.TrimRight(m[1], ", "),
		PostalCode: m[2],
		City:       strings.TrimSpace(m[3]),
	}
}

// DecodeDocument decodes a JSON payload for the given kind and passes it
// through the kind's constructor, so the result is always a validated record.
func DecodeDocument(kind Kind, payload []byte) (Document, error) {
	switch kind {
	case KindIdentityCard:
		var c IdentityCard
		if err := decodePayload(kind, payload, &c); err != nil {
			return nil, err
		}
		return asDocument(NewIdentityCard(c))
	case KindPassport:
		var p Passport
		if err := decodePayload(kind, payload, &p); err != nil {
			return nil, err
		}
		return asDocument(NewPassport(p))
	case KindDrivingLicense:
		var l DrivingLicense
		if err := decodePayload(kind, payload, &l); err != nil {
			return nil, err
		}
		return asDocument(NewDrivingLicense(l))
	case KindProofOfAddress:
		var p ProofOfAddress
		if err := decodePayload(kind, payload, &p); err != nil {
			return nil, err
		}
		return asDocument(NewProofOfAddress(p))
	case KindBankAccount:
		var b BankAccount
		if err := decodePayload(kind, payload, &b); err != nil {
			return nil, err
		}
		return asDocument(NewBankAccount(b))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// asDocument converts a constructor result without wrapping a nil record
// pointer in a non-nil interface.
func asDocument[T Document](doc T, err error) (Document, error) {
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func decodePayload(kind Kind, payload []byte, dst interface{}) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return nil
}
