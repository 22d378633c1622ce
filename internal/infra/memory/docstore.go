package memory

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"sync"

	"mcq-contest-service/internal/docstore"
)

// DocStore is the in-memory docstore.Store used by tests and by the server
// when no Postgres URL is configured. Documents are kept as marshaled JSON
// so reads observe the same shapes the Postgres backend would return.
type DocStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func NewDocStore() *DocStore {
	return &DocStore{collections: make(map[string]map[string][]byte)}
}

func (s *DocStore) Get(_ context.Context, collection, id string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.collections[collection][id]
	if !ok {
		return docstore.ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (s *DocStore) Set(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(collection, id, raw)
	return nil
}

func (s *DocStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.collections[collection][id]
	if !ok {
		return docstore.ErrNotFound
	}
	merged, err := mergeFields(raw, fields)
	if err != nil {
		return err
	}
	s.collections[collection][id] = merged
	return nil
}

func (s *DocStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

func (s *DocStore) Query(_ context.Context, collection string, q docstore.Query, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return runQuery(s.docsLocked(collection), q, out)
}

func (s *DocStore) QueryGroup(_ context.Context, leaf string, q docstore.Query, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0)
	for name := range s.collections {
		if name == leaf || strings.HasSuffix(name, "/"+leaf) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var docs []storedDoc
	for _, name := range names {
		docs = append(docs, s.docsLocked(name)...)
	}
	return runQuery(docs, q, out)
}

// RunBatch stages writes and applies them all-or-nothing: the staged ops are
// validated against an overlay first, so an Update of a missing document
// leaves the store untouched.
func (s *DocStore) RunBatch(_ context.Context, fn func(b docstore.Batch) error) error {
	var buf docstore.WriteBuffer
	if err := fn(&buf); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	overlay := make(map[string]map[string][]byte)
	lookup := func(collection, id string) ([]byte, bool) {
		if col, ok := overlay[collection]; ok {
			if raw, staged := col[id]; staged {
				return raw, raw != nil
			}
		}
		raw, ok := s.collections[collection][id]
		return raw, ok
	}
	stage := func(collection, id string, raw []byte) {
		if overlay[collection] == nil {
			overlay[collection] = make(map[string][]byte)
		}
		overlay[collection][id] = raw
	}

	for _, op := range buf.Ops {
		switch op.Kind {
		case docstore.BatchSet:
			raw, err := json.Marshal(op.Doc)
			if err != nil {
				return err
			}
			stage(op.Collection, op.ID, raw)
		case docstore.BatchUpdate:
			raw, ok := lookup(op.Collection, op.ID)
			if !ok {
				return docstore.ErrNotFound
			}
			merged, err := mergeFields(raw, op.Fields)
			if err != nil {
				return err
			}
			stage(op.Collection, op.ID, merged)
		case docstore.BatchDelete:
			// nil marks deletion in the overlay
			stage(op.Collection, op.ID, nil)
		}
	}

	for collection, docs := range overlay {
		for id, raw := range docs {
			if raw == nil {
				delete(s.collections[collection], id)
				continue
			}
			s.setLocked(collection, id, raw)
		}
	}
	return nil
}

func (s *DocStore) setLocked(collection, id string, raw []byte) {
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string][]byte)
	}
	s.collections[collection][id] = raw
}

type storedDoc struct {
	id     string
	raw    []byte
	fields map[string]any
}

func (s *DocStore) docsLocked(collection string) []storedDoc {
	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]storedDoc, 0, len(ids))
	for _, id := range ids {
		raw := s.collections[collection][id]
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		docs = append(docs, storedDoc{id: id, raw: raw, fields: fields})
	}
	return docs
}

func runQuery(docs []storedDoc, q docstore.Query, out any) error {
	matched := docs[:0:0]
	for _, doc := range docs {
		if matchesAll(doc.fields, q.Filters) {
			matched = append(matched, doc)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, ord := range q.Orders {
				cmp, ok := compareValues(matched[i].fields[ord.Field], matched[j].fields[ord.Field])
				if !ok || cmp == 0 {
					continue
				}
				if ord.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	raws := make([][]byte, len(matched))
	for i, doc := range matched {
		raws[i] = doc.raw
	}
	return docstore.DecodeList(raws, out)
}

func matchesAll(fields map[string]any, filters []docstore.Filter) bool {
	for _, f := range filters {
		if !matches(fields, f) {
			return false
		}
	}
	return true
}

func matches(fields map[string]any, f docstore.Filter) bool {
	val, ok := fields[f.Field]
	if !ok {
		return false
	}
	if f.Op == docstore.OpIn {
		rv := reflect.ValueOf(f.Value)
		if rv.Kind() != reflect.Slice {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if cmp, ok := compareValues(val, rv.Index(i).Interface()); ok && cmp == 0 {
				return true
			}
		}
		return false
	}

	cmp, ok := compareValues(val, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case docstore.OpEq:
		return cmp == 0
	case docstore.OpLt:
		return cmp < 0
	case docstore.OpLte:
		return cmp <= 0
	case docstore.OpGt:
		return cmp > 0
	case docstore.OpGte:
		return cmp >= 0
	}
	return false
}

// compareValues normalizes both sides (JSON numbers decode as float64;
// filter values arrive as Go ints, named string types, etc.) and returns
// -1/0/1, or ok=false when the types are not comparable.
func compareValues(a, b any) (int, bool) {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	as, aStr := toString(a)
	bs, bStr := toString(b)
	if aStr && bStr {
		return strings.Compare(as, bs), true
	}

	ab, aBool := a.(bool)
	bb, bBool := b.(bool)
	if aBool && bBool {
		if ab == bb {
			return 0, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func mergeFields(raw []byte, fields map[string]any) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for key, val := range fields {
		if val == docstore.DeleteField {
			delete(doc, key)
			continue
		}
		doc[key] = val
	}
	return json.Marshal(doc)
}
