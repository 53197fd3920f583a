package keychain

import "encoding/json"

// Converter turns an item into bytes and back.
type Converter[T any] interface {
	Encode(item T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSON stores items as JSON. Decode returns the encoding/json error for
// malformed data.
type JSON[T any] struct{}

func (JSON[T]) Encode(item T) ([]byte, error) {
	return json.Marshal(item)
}

func (JSON[T]) Decode(data []byte) (T, error) {
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

// Text stores strings verbatim, so the stored password is readable by other
// keychain tools.
type Text struct{}

func (Text) Encode(item string) ([]byte, error) {
	return []byte(item), nil
}

func (Text) Decode(data []byte) (string, error) {
	return string(data), nil
}
