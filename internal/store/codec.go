package store

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode converts a tagged struct into a Document using its json tags.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode fills a tagged struct from a Document.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func marshalDocument(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

func unmarshalDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
