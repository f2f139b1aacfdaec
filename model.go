package main

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// idField is the server-owned identifier carried by every record.
const idField = "id"

// timestampLayout matches the millisecond ISO-8601 form clients expect for creation dates.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is one schema-free resource instance.
type Record map[string]any

// ID returns the record identifier, or -1 when it is missing or not an integer.
func (r Record) ID() int64 {
	id, ok := recordID(r[idField])
	if !ok {
		return -1
	}
	return id
}

// recordID normalizes the numeric types produced by encoding/json and yaml.v3.
func recordID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		id, err := n.Int64()
		return id, err == nil
	}
	return 0, false
}

// decodeRecord parses a request body that must hold exactly one JSON object.
func decodeRecord(body []byte) (Record, error) {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, ErrInvalidInput
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	return rec, nil
}

// Policy describes the per-endpoint field rules applied on top of the free-form record.
type Policy struct {
	// Required fields must be present and non-empty when a record is created.
	Required []string
	// Defaults fill fields left absent, null or empty on create.
	Defaults map[string]any
	// CreatedField, when set, names a server-assigned creation timestamp that
	// survives full replacement and cannot be patched.
	CreatedField string
}

// Missing reports the required fields that are blank in rec, in policy order.
// The check runs on the decoded record so a repeated key is judged by the
// value that actually gets stored.
func (p Policy) Missing(rec Record) []string {
	var missing []string
	for _, field := range p.Required {
		if blank(rec, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// ApplyDefaults fills default fields that are blank in rec.
func (p Policy) ApplyDefaults(rec Record) {
	for field, value := range p.Defaults {
		if blank(rec, field) {
			rec[field] = value
		}
	}
}

// preserved lists the fields a full replacement carries over from the old record.
func (p Policy) preserved() []string {
	if p.CreatedField == "" {
		return nil
	}
	return []string{p.CreatedField}
}

// blank treats absent, null and empty-string fields as unset; 0 and false are values.
func blank(rec Record, field string) bool {
	v, ok := rec[field]
	if !ok || v == nil {
		return true
	}
	s, isString := v.(string)
	return isString && s == ""
}

// fieldsError names the required fields missing from a create request.
type fieldsError struct {
	fields []string
}

func (e *fieldsError) Error() string {
	return ErrMissingFields.Error() + ": " + strings.Join(e.fields, ", ")
}

// Cause lets errors.Cause map the error back to ErrMissingFields.
func (e *fieldsError) Cause() error { return ErrMissingFields }

func (e *fieldsError) Unwrap() error { return ErrMissingFields }
