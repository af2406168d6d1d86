// Package codec converts board documents to and from their wire forms:
// UTF-8 JSON text, and the base64 envelope the contents transport requires.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/runoshun/boardsync/internal/domain"
)

// requiredFields are the top-level keys an imported snapshot must carry.
var requiredFields = []string{"version", "users", "tasks", "requests", "history"}

// Marshal renders doc as indented UTF-8 JSON. Non-ASCII text is written as-is
// and HTML characters are not escaped.
func Marshal(doc *domain.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrCodec)
	}
	out := doc.Clone()
	out.Normalize()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCodec, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses JSON text into a document.
func Unmarshal(data []byte) (*domain.Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: document is not valid UTF-8", domain.ErrCodec)
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCodec, err)
	}
	doc.Normalize()
	return &doc, nil
}

// Encode renders doc as a base64 envelope over its UTF-8 JSON text.
func Encode(doc *domain.Document) ([]byte, error) {
	text, err := Marshal(doc)
	if err != nil {
		return nil, err
	}
	return Wrap(text), nil
}

// Decode parses a base64 envelope produced by Encode (or by the contents API,
// which may wrap the payload across lines).
func Decode(envelope []byte) (*domain.Document, error) {
	text, err := Unwrap(envelope)
	if err != nil {
		return nil, err
	}
	return Unmarshal(text)
}

// Wrap base64-encodes raw bytes.
func Wrap(raw []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out
}

// Unwrap decodes a base64 envelope, ignoring embedded whitespace.
func Unwrap(envelope []byte) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, string(envelope))
	raw, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 envelope: %v", domain.ErrCodec, err)
	}
	return raw, nil
}

// DecodeSnapshot parses an exported JSON snapshot for import. Missing
// top-level fields and broken record invariants are validation errors;
// malformed JSON is a codec error.
func DecodeSnapshot(data []byte) (*domain.Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: snapshot is not valid UTF-8", domain.ErrCodec)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCodec, err)
	}
	var missing []string
	for _, name := range requiredFields {
		if raw, ok := fields[name]; !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: missing required fields: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}
