// Package keychain stores typed items in the platform secure credential store.
//
// Items are stored as generic passwords keyed by (service, account) within an
// optional access group, with kSecAttrAccessibleAfterFirstUnlockThisDeviceOnly:
// unreadable before the first unlock after boot, never migrated off the device
// by backup or sync.
//
// A Query pairs a Key with the Converter that turns the item type into bytes.
// Save, Fetch and Delete go straight to the native store on every call; the
// Keychain holds nothing but its access group.
package keychain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no item matches the key.
	ErrNotFound = errors.New("item not found")

	// ErrDuplication is returned when an add collides with an existing item.
	// Save resolves it internally by updating the existing item.
	ErrDuplication = errors.New("item already exists")

	// ErrUnexpectedResult is returned when a lookup succeeds but the store
	// hands back something other than the item's bytes.
	ErrUnexpectedResult = errors.New("unexpected result from store")
)

// StatusError carries a native status code that has no dedicated error.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("keychain status %d (%s)", int32(e.Status), e.Status)
}

// Key identifies one stored item within an access group.
type Key struct {
	Service string
	Account string
}

func (k Key) String() string {
	return k.Service + "/" + k.Account
}

func (k Key) validate() error {
	if k.Service == "" || k.Account == "" {
		return &StatusError{Status: StatusParam}
	}
	return nil
}

// Query identifies a stored item and how to convert it to and from bytes.
type Query[T any] struct {
	Key
	Converter Converter[T]
}

// NewQuery returns a query for the item stored under service and account.
func NewQuery[T any](service, account string, conv Converter[T]) Query[T] {
	return Query[T]{Key: Key{Service: service, Account: account}, Converter: conv}
}

// JSONQuery returns a query whose items are stored as JSON.
func JSONQuery[T any](service, account string) Query[T] {
	return NewQuery[T](service, account, JSON[T]{})
}

// Store is the byte-level interface for item storage. Save and Fetch layer
// a Converter on top of it.
type Store interface {
	SaveData(data []byte, key Key) error
	FetchData(key Key) ([]byte, error)
	Delete(key Key) error
}

// Save encodes item with the query's converter and stores it, replacing any
// item already stored under the same key. Encoding errors are returned as-is.
func Save[T any](s Store, item T, q Query[T]) error {
	data, err := q.Converter.Encode(item)
	if err != nil {
		return err
	}
	return s.SaveData(data, q.Key)
}

// Fetch loads the item stored under the query's key and decodes it with the
// query's converter. Decoding errors are returned as-is.
func Fetch[T any](s Store, q Query[T]) (T, error) {
	var zero T
	data, err := s.FetchData(q.Key)
	if err != nil {
		return zero, err
	}
	return q.Converter.Decode(data)
}
