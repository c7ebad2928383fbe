package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Link is a join record between two entities. It has no identity of its
// own: two links with the same relation and endpoints are the same link.
type Link struct {
	Relation Relation
	A        string
	B        string
}

// Validate checks the relation and both endpoint identifiers.
func (l Link) Validate() error {
	if !l.Relation.IsValid() {
		return fmt.Errorf("unknown relation %q", l.Relation)
	}
	colA, colB := l.Relation.Columns()
	if err := validateRequiredID(colA, l.A); err != nil {
		return err
	}
	return validateRequiredID(colB, l.B)
}

// Refs returns the two endpoints as references.
func (l Link) Refs() []Ref {
	kindA, kindB := l.Relation.Endpoints()
	colA, colB := l.Relation.Columns()
	return []Ref{
		{Field: colA, Kind: kindA, ID: l.A},
		{Field: colB, Kind: kindB, ID: l.B},
	}
}

// String renders the link as "relation(a,b)".
func (l Link) String() string {
	return fmt.Sprintf("%s(%s,%s)", l.Relation, l.A, l.B)
}

// MarshalJSON encodes the link with named endpoint columns, for example
// {"project_id":"…","repo_id":"…"}.
func (l Link) MarshalJSON() ([]byte, error) {
	if !l.Relation.IsValid() {
		return nil, fmt.Errorf("unknown relation %q", l.Relation)
	}
	colA, colB := l.Relation.Columns()
	a, err := json.Marshal(l.A)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(l.B)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"%s":%s,"%s":%s}`, colA, a, colB, b)
	return buf.Bytes(), nil
}

// DecodeLink parses one interchange line of the given relation.
func DecodeLink(rel Relation, data []byte) (Link, error) {
	if !rel.IsValid() {
		return Link{}, fmt.Errorf("unknown relation %q", rel)
	}
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return Link{}, fmt.Errorf("invalid link: %w", err)
	}
	colA, colB := rel.Columns()
	l := Link{Relation: rel, A: fields[colA], B: fields[colB]}
	if err := l.Validate(); err != nil {
		return Link{}, err
	}
	return l, nil
}

// CompareLinks orders links by endpoints, for deterministic output.
func CompareLinks(x, y Link) int {
	if x.A != y.A {
		if x.A < y.A {
			return -1
		}
		return 1
	}
	if x.B != y.B {
		if x.B < y.B {
			return -1
		}
		return 1
	}
	return 0
}
