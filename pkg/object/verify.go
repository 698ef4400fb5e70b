package object

import (
	"fmt"
	"sort"
)

// VerifyReport summarizes a full-store integrity pass: every object
// file re-read, re-decompressed, and re-hashed against its filename.
type VerifyReport struct {
	Scanned int
	Corrupt []CorruptObject
}

// CorruptObject names one object file whose contents don't hash back
// to the ID it's filed under, along with why.
type CorruptObject struct {
	ID  ID
	Err error
}

// Verify re-hashes every object in the store and reports any whose
// on-disk bytes don't reproduce their filename ID. It never mutates
// the store. Adapted from the teacher's pack verification pass, minus
// the packfile/index half this store has no counterpart for.
func (s *Store) Verify() (*VerifyReport, error) {
	report := &VerifyReport{}
	err := s.IterIDs(func(id ID) error {
		report.Scanned++
		if _, _, err := s.readEnvelope(id); err != nil {
			report.Corrupt = append(report.Corrupt, CorruptObject{ID: id, Err: err})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	sort.Slice(report.Corrupt, func(i, j int) bool { return report.Corrupt[i].ID < report.Corrupt[j].ID })
	return report, nil
}
