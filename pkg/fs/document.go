package fs

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"

	json "github.com/goccy/go-json"

	errs "github.com/ctfer-io/chore-server/pkg/errors"
)

// Document is the stored chore state: the text of an arbitrary JSON object.
// It is kept as raw bytes so numbers and key order survive untouched.
type Document []byte

// Empty is the document served when nothing has been stored yet.
var Empty = Document("{}")

// ParseDocument checks that b holds exactly one JSON object and returns it
// as a Document. Any other JSON value, malformed JSON, or an empty input are
// rejected with an errs.ErrPayload.
func ParseDocument(b []byte) (Document, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errs.ErrPayload{Reason: "missing body"}
	}
	// goccy accepts leading zeros, trailing dots and raw control characters,
	// which browsers then fail to parse back.
	if !stdjson.Valid(b) {
		return nil, errs.ErrPayload{Reason: "malformed JSON"}
	}
	if b[0] != '{' {
		return nil, errs.ErrPayload{Reason: fmt.Sprintf("expected a JSON object, got %s", kindOf(b[0]))}
	}
	return Document(b), nil
}

// Bytes returns the JSON text of the document, "{}" for a nil one.
func (doc Document) Bytes() []byte {
	if len(doc) == 0 {
		return Empty
	}
	return doc
}

// Indent returns the document as 2-space indented JSON terminated by a newline,
// the layout of the state file.
func (doc Document) Indent() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := json.Indent(buf, doc.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// kindOf names the JSON value starting with c, for error messages.
func kindOf(c byte) string {
	switch c {
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	default:
		return "a number"
	}
}
