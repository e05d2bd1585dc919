package policy

import "bytes"

// Document holds resolved policy document bytes.
//
// The bytes are copied on construction and on every read, so a Document is
// exclusively owned by whoever holds it; no other value can mutate it.
type Document struct {
	name      string
	mediaType string
	data      []byte
}

// NewDocument wraps a copy of data. name and mediaType are informational
// (typically the source URL and the Content-Type reported by the fetcher).
func NewDocument(name, mediaType string, data []byte) *Document {
	return &Document{name: name, mediaType: mediaType, data: append([]byte(nil), data...)}
}

func (d *Document) Name() string {
	if d == nil {
		return ""
	}
	return d.name
}

func (d *Document) MediaType() string {
	if d == nil {
		return ""
	}
	return d.mediaType
}

// Bytes returns a copy of the document contents.
func (d *Document) Bytes() []byte {
	if d == nil {
		return nil
	}
	return append([]byte(nil), d.data...)
}

func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.data)
}

// Reader returns a reader over the document without copying.
func (d *Document) Reader() *bytes.Reader {
	if d == nil {
		return bytes.NewReader(nil)
	}
	return bytes.NewReader(d.data)
}

func (d *Document) clone() *Document {
	if d == nil {
		return nil
	}
	return NewDocument(d.name, d.mediaType, d.data)
}
