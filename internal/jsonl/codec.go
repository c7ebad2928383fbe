// Package jsonl reads and writes the newline-delimited interchange files.
//
// Each line is one self-contained JSON object. Output is canonical: fields
// appear in declaration order and HTML characters are not escaped. Text is
// written exactly as stored, so an unchanged input always produces
// byte-identical files and a decoded line reproduces the record's fields.
// Text that is not valid UTF-8 cannot be represented and is refused.
package jsonl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/c5t/c5t/internal/types"
)

// Marshal renders v as one canonical line, including the trailing newline.
// It returns ErrInvalidText if any string in v is not valid UTF-8.
func Marshal(v any) ([]byte, error) {
	if _, err := CheckText(v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode renders a slice of records as a complete file body.
func Encode[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	for i, rec := range records {
		line, err := Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a single line into v. Trailing data after the first JSON
// value is an error, as is a line that is not valid UTF-8.
func Unmarshal(data []byte, v any) error {
	if !utf8.Valid(data) {
		return ErrInvalidText
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after record")
	}
	return nil
}

// DecodeEntity parses one interchange line of the given kind. The record is
// normalized and validated; derived fields are cleared.
func DecodeEntity(kind types.Kind, data []byte) (types.Entity, error) {
	e, err := types.NewEntity(kind)
	if err != nil {
		return nil, err
	}
	if err := Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("invalid %s record: %w", kind, err)
	}
	e.Normalize()
	types.ClearDerived(e)
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("invalid %s record: %w", kind, err)
	}
	return e, nil
}

// Peek extracts the identifier and mutation timestamp from a line that
// could not be decoded in full, so failures can still name the offending
// record.
func Peek(data []byte) (id, updatedAt string) {
	var probe struct {
		ID        string `json:"id"`
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", ""
	}
	return probe.ID, probe.UpdatedAt
}
