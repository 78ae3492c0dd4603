// Package match pairs ledger entries across the two sources. Every input
// entry lands in exactly one output: either one MatchedPair or one
// Unmatched record. Nothing is silently dropped.
package match

import (
	"context"
	"sort"

	"github.com/labops/glosa/pkg/ledger"
	"github.com/labops/glosa/pkg/logging"
)

// Key identifies a matched pair: the patient plus the identity the two
// entries agreed on.
type Key struct {
	PatientID string `json:"patient_id"`
	Identity  string `json:"identity"`
}

// Pair holds one entry from each ledger that share an identity.
type Pair struct {
	Key Key
	A   ledger.Entry
	B   ledger.Entry
}

// Unmatched is an entry present on one side only.
type Unmatched struct {
	Entry       ledger.Entry
	MissingFrom ledger.Source
}

// Collision records a patient carrying several same-identity entries on one
// side. Resolved positionally, but flagged for diagnostics.
type Collision struct {
	PatientID string
	Identity  string
	Source    ledger.Source
	Count     int
}

// Result is the full partition of both ledgers.
type Result struct {
	Pairs      []Pair
	Unmatched  []Unmatched
	Collisions []Collision
}

// Entries pairs entries from ledger A and B. Within a patient, entries index
// by exam code when present, otherwise by canonical name; duplicate
// identities on a side pair positionally in input order and any surplus
// becomes unmatched. Output ordering is deterministic: patients and
// identities are visited in sorted order.
func Entries(ctx context.Context, a, b []ledger.Entry) *Result {
	log := logging.Ctx(ctx)

	byPatientA := groupByPatient(a)
	byPatientB := groupByPatient(b)

	patients := make(map[string]struct{}, len(byPatientA)+len(byPatientB))
	for p := range byPatientA {
		patients[p] = struct{}{}
	}
	for p := range byPatientB {
		patients[p] = struct{}{}
	}

	sortedPatients := make([]string, 0, len(patients))
	for p := range patients {
		sortedPatients = append(sortedPatients, p)
	}
	sort.Strings(sortedPatients)

	result := &Result{}
	for _, patient := range sortedPatients {
		matchPatient(result, patient, byPatientA[patient], byPatientB[patient])
	}

	for _, c := range result.Collisions {
		log.Debug().Str("patient", c.PatientID).Str("identity", c.Identity).
			Str("ledger", c.Source.String()).Int("count", c.Count).
			Msg("Duplicate identity resolved positionally")
	}

	return result
}

// matchPatient partitions one patient's entries from both sides.
func matchPatient(result *Result, patient string, a, b []ledger.Entry) {
	idxA := indexByIdentity(a)
	idxB := indexByIdentity(b)

	identities := make(map[string]struct{}, len(idxA)+len(idxB))
	for id := range idxA {
		identities[id] = struct{}{}
	}
	for id := range idxB {
		identities[id] = struct{}{}
	}

	sorted := make([]string, 0, len(identities))
	for id := range identities {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, identity := range sorted {
		entriesA := idxA[identity]
		entriesB := idxB[identity]

		if len(entriesA) > 1 {
			result.Collisions = append(result.Collisions, Collision{
				PatientID: patient, Identity: identity,
				Source: ledger.SourceA, Count: len(entriesA),
			})
		}
		if len(entriesB) > 1 {
			result.Collisions = append(result.Collisions, Collision{
				PatientID: patient, Identity: identity,
				Source: ledger.SourceB, Count: len(entriesB),
			})
		}

		// Positional tie-break: a[i] pairs with b[i] in input order.
		n := len(entriesA)
		if len(entriesB) < n {
			n = len(entriesB)
		}
		for i := 0; i < n; i++ {
			result.Pairs = append(result.Pairs, Pair{
				Key: Key{PatientID: patient, Identity: resolvedIdentity(entriesA[i], entriesB[i])},
				A:   entriesA[i],
				B:   entriesB[i],
			})
		}
		for _, e := range entriesA[n:] {
			result.Unmatched = append(result.Unmatched, Unmatched{
				Entry: e, MissingFrom: ledger.SourceB,
			})
		}
		for _, e := range entriesB[n:] {
			result.Unmatched = append(result.Unmatched, Unmatched{
				Entry: e, MissingFrom: ledger.SourceA,
			})
		}
	}
}

// resolvedIdentity is the exam code when both sides carry one, otherwise the
// canonical name.
func resolvedIdentity(a, b ledger.Entry) string {
	if a.ExamCode != "" && b.ExamCode != "" {
		return a.ExamCode
	}
	if a.CanonicalName != "" {
		return a.CanonicalName
	}
	return b.CanonicalName
}

// groupByPatient buckets entries by patient preserving input order.
func groupByPatient(entries []ledger.Entry) map[string][]ledger.Entry {
	grouped := make(map[string][]ledger.Entry)
	for _, e := range entries {
		grouped[e.PatientID] = append(grouped[e.PatientID], e)
	}
	return grouped
}

// indexByIdentity buckets one patient's entries by identity preserving
// input order.
func indexByIdentity(entries []ledger.Entry) map[string][]ledger.Entry {
	idx := make(map[string][]ledger.Entry)
	for _, e := range entries {
		idx[e.Identity()] = append(idx[e.Identity()], e)
	}
	return idx
}
