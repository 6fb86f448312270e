package domain

import "time"

// Snapshot is the ordered collection of records produced by one pipeline
// run. Record order follows the input list order, so two runs over the same
// input produce byte-identical exports. Snapshots are not mutated after the
// run that produced them.
type Snapshot struct {
	RunID     string       `json:"run_id"`
	CreatedAt time.Time    `json:"created_at"`
	Records   []FundRecord `json:"records"`
}

// Keys returns the entity keys in record order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Records))
	for i := range s.Records {
		keys = append(keys, s.Records[i].Key())
	}
	return keys
}

// Index returns a lookup from entity key to record. Later duplicates win,
// matching the uniqueness guarantee of a well-formed snapshot.
func (s *Snapshot) Index() map[string]*FundRecord {
	idx := make(map[string]*FundRecord, len(s.Records))
	for i := range s.Records {
		idx[s.Records[i].Key()] = &s.Records[i]
	}
	return idx
}

// DiffRow reports one field that disagrees between two snapshots beyond
// tolerance. Before/After carry the formatted values ("" for absent); Delta
// is the absolute numeric difference, absent for string fields and for
// absent-to-value transitions.
type DiffRow struct {
	Key    string `json:"key"`
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
	Delta  Amount `json:"delta"`
}

// DiffReport is the full comparison of two snapshots. Added and Removed
// list entity keys present in only one side; Rows hold field-level
// disagreements for keys present in both.
type DiffReport struct {
	Added   []string  `json:"added"`
	Removed []string  `json:"removed"`
	Rows    []DiffRow `json:"rows"`
}

// Empty reports whether the two snapshots agree completely.
func (d *DiffReport) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Rows) == 0
}

// ErrorKind classifies a per-entity failure recorded during a run.
type ErrorKind string

const (
	ErrorKindFetch   ErrorKind = "fetch"
	ErrorKindMapping ErrorKind = "mapping"
)

// RunError records one entity that could not be processed. Per-entity
// errors never abort the run; they are collected alongside the snapshot.
type RunError struct {
	Key     string    `json:"key"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ParseWarning records a single malformed optional field that was degraded
// to absent during mapping.
type ParseWarning struct {
	Key   string `json:"key"`
	Field string `json:"field"`
	Raw   string `json:"raw"`
}

// RunResult is everything one orchestrator run yields: a snapshot (possibly
// partial), the per-entity error list, and field-level parse warnings.
type RunResult struct {
	Snapshot Snapshot       `json:"snapshot"`
	Errors   []RunError     `json:"errors"`
	Warnings []ParseWarning `json:"warnings"`
}
