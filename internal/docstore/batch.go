package docstore

import (
	"bytes"
	"encoding/json"
)

// BatchKind discriminates staged batch operations.
type BatchKind int

const (
	BatchSet BatchKind = iota
	BatchUpdate
	BatchDelete
)

// BatchOp is one staged write.
type BatchOp struct {
	Kind       BatchKind
	Collection string
	ID         string
	Doc        any
	Fields     map[string]any
}

// WriteBuffer collects batch operations in order. Store implementations
// embed it and apply Ops inside their own transaction mechanics.
type WriteBuffer struct {
	Ops []BatchOp
}

func (b *WriteBuffer) Set(collection, id string, doc any) {
	b.Ops = append(b.Ops, BatchOp{Kind: BatchSet, Collection: collection, ID: id, Doc: doc})
}

func (b *WriteBuffer) Update(collection, id string, fields map[string]any) {
	b.Ops = append(b.Ops, BatchOp{Kind: BatchUpdate, Collection: collection, ID: id, Fields: fields})
}

func (b *WriteBuffer) Delete(collection, id string) {
	b.Ops = append(b.Ops, BatchOp{Kind: BatchDelete, Collection: collection, ID: id})
}

// DecodeList unmarshals raw JSON documents into out, which must be a
// pointer to a slice of the document type.
func DecodeList(raws [][]byte, out any) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, raw := range raws {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	return json.Unmarshal(buf.Bytes(), out)
}
