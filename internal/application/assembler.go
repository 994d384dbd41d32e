package application

import (
	"fmt"
	"sort"

	"github.com/ahrav/go-kyc/internal/domain"
)

// Assemble builds a dossier from per-kind extraction results.
//
// An identity card takes precedence over a passport when both are present.
// Failed results count as absent. When the identity document, the proof of
// address or the bank account is missing, Assemble returns a
// *domain.IncompleteDossierError naming every missing role, whether or not a
// driving license was supplied.
func Assemble(results map[domain.Kind]*domain.ExtractionResult) (*domain.Dossier, error) {
	var (
		card     *domain.IdentityCard
		passport *domain.Passport
		license  *domain.DrivingLicense
		proof    *domain.ProofOfAddress
		bank     *domain.BankAccount
	)

	for kind, result := range results {
		if !result.Succeeded() {
			continue
		}

		var ok bool
		switch kind {
		case domain.KindIdentityCard:
			card, ok = result.Document.(*domain.IdentityCard)
		case domain.KindPassport:
			passport, ok = result.Document.(*domain.Passport)
		case domain.KindDrivingLicense:
			license, ok = result.Document.(*domain.DrivingLicense)
		case domain.KindProofOfAddress:
			proof, ok = result.Document.(*domain.ProofOfAddress)
		case domain.KindBankAccount:
			bank, ok = result.Document.(*domain.BankAccount)
		default:
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
		}
		if !ok {
			return nil, fmt.Errorf("result for %s from %s holds a %s document", kind, result.Source, result.Document.Kind())
		}
	}

	var identity domain.IdentityDocument
	switch {
	case card != nil:
		identity = card
	case passport != nil:
		identity = passport
	}

	return domain.NewDossier(identity, proof, bank, license)
}

// Collect groups extraction results by kind, keeping one result per kind.
// A successful result beats a failed one; among successful results the
// higher classification confidence wins, then the earlier source name.
// Every discarded successful duplicate produces a warning.
func Collect(results []*domain.ExtractionResult) (map[domain.Kind]*domain.ExtractionResult, []string) {
	ordered := make([]*domain.ExtractionResult, 0, len(results))
	for _, r := range results {
		if r != nil && r.Kind() != "" {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Source < ordered[j].Source
	})

	byKind := make(map[domain.Kind]*domain.ExtractionResult)
	var warnings []string
	for _, r := range ordered {
		kind := r.Kind()
		current, seen := byKind[kind]
		switch {
		case !seen:
			byKind[kind] = r
		case !current.Succeeded():
			byKind[kind] = r
		case r.Succeeded() && confidence(r) > confidence(current):
			warnings = append(warnings, duplicateWarning(kind, current.Source, r.Source))
			byKind[kind] = r
		case r.Succeeded():
			warnings = append(warnings, duplicateWarning(kind, r.Source, current.Source))
		}
	}
	return byKind, warnings
}

func confidence(r *domain.ExtractionResult) float64 {
	if r.Classification == nil {
		return 0
	}
	return r.Classification.Confidence
}

func duplicateWarning(kind domain.Kind, dropped, kept string) string {
	return fmt.Sprintf("duplicate %s: ignored %s, kept %s", kind, dropped, kept)
}
