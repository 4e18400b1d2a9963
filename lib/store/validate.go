package store

import (
	"fmt"

	"github.com/ValentinKolb/kvs/lib/record"
)

// ValidateKey checks the key length bounds shared by all store
// implementations. It returns nil or a RetCInvalidInput error.
func ValidateKey(key []byte) error {
	if len(key) == 0 {
		return NewError(RetCInvalidInput, "key must not be empty")
	}
	if len(key) > record.MaxKeySize {
		return NewError(RetCInvalidInput,
			fmt.Sprintf("key length %d exceeds maximum %d", len(key), record.MaxKeySize))
	}
	return nil
}

// ValidateValue checks the value length bound shared by all store
// implementations. It returns nil or a RetCInvalidInput error.
func ValidateValue(value []byte) error {
	if len(value) > record.MaxValueSize {
		return NewError(RetCInvalidInput,
			fmt.Sprintf("value length %d exceeds maximum %d", len(value), record.MaxValueSize))
	}
	return nil
}
