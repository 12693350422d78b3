package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrNotFound is returned by Get when no document has the id
var ErrNotFound = errors.New("document not found")

// PersistenceError wraps a failed document-store operation
type PersistenceError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func wrap(op, collection, id string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Collection: collection, ID: id, Err: err}
}

// Fields is the JSON object body of a document
type Fields map[string]any

// Doc is a stored document
type Doc struct {
	ID     string
	Fields Fields
}

// Filter matches documents whose string field equals Value
type Filter struct {
	Field string
	Value string
}

// Query selects documents of a collection
type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
}

// Store is the document store used for bookmarks, history and comments.
// Writes are last-write-wins; there are no transactions.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Doc, error)
	Set(ctx context.Context, collection, id string, fields Fields, merge bool) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
	// Insert appends a document under a generated id
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Encode converts a struct into document fields
func Encode(v any) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}

// Decode fills dest from a document, exposing the document id as "id"
func Decode(doc Doc, dest any) error {
	withID := make(Fields, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		withID[k] = v
	}
	withID["id"] = doc.ID

	data, err := json.Marshal(withID)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateQuery(q Query) error {
	for _, f := range q.Where {
		if !fieldName.MatchString(f.Field) {
			return fmt.Errorf("invalid filter field %q", f.Field)
		}
	}
	if q.OrderBy != "" && !fieldName.MatchString(q.OrderBy) {
		return fmt.Errorf("invalid order field %q", q.OrderBy)
	}
	return nil
}

func validateID(id string) error {
	if id == "" {
		return errors.New("empty document id")
	}
	return nil
}

// merge overlays update onto base without touching base
func merge(base, update Fields) Fields {
	out := make(Fields, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

func normalize(fields Fields) (Fields, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out Fields
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Fields{}
	}
	return out, nil
}

func matches(fields Fields, where []Filter) bool {
	for _, f := range where {
		v, ok := fields[f.Field].(string)
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}

// applyQuery filters and orders docs that are already in insertion order
func applyQuery(docs []Doc, q Query) []Doc {
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if matches(d.Fields, q.Where) {
			out = append(out, d)
		}
	}
	if q.OrderBy == "" {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
		if q.Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
