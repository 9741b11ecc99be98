package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the frozen copy of a template taken at publish time.
type Snapshot struct {
	Template Template        `json:"template"`
	Groups   []CriteriaGroup `json:"groups"`
	Criteria []Criterion     `json:"criteria"`
}

// EncodeSnapshot serializes a deep copy of the template and its children.
// The returned bytes are stored verbatim and never re-encoded.
func EncodeSnapshot(t *Template, groups []*CriteriaGroup, criteria []*Criterion) ([]byte, error) {
	snap := Snapshot{
		Template: *t,
		Groups:   make([]CriteriaGroup, 0, len(groups)),
		Criteria: make([]Criterion, 0, len(criteria)),
	}
	for _, g := range groups {
		snap.Groups = append(snap.Groups, *g)
	}
	for _, c := range criteria {
		snap.Criteria = append(snap.Criteria, *c)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses stored snapshot bytes.
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// CriteriaPointers returns pointers into the snapshot's criteria slice.
func (s *Snapshot) CriteriaPointers() []*Criterion {
	out := make([]*Criterion, len(s.Criteria))
	for i := range s.Criteria {
		out[i] = &s.Criteria[i]
	}
	return out
}

// TemplateVersion is an immutable published snapshot.
type TemplateVersion struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	TemplateID     string          `json:"template_id"`
	VersionNumber  int             `json:"version_number"`
	Snapshot       json.RawMessage `json:"snapshot"`
	ChangeSummary  string          `json:"change_summary"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize applies the default and maximum limit.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
