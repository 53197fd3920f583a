package keychain

import (
	"fmt"
)

// Keychain stores items in a native secure store. It holds no state besides
// its access group and is safe for concurrent use.
type Keychain struct {
	native      Native
	accessGroup string
}

// Option configures a Keychain.
type Option func(*Keychain)

// WithAccessGroup scopes every item to group, sharing it with other
// applications signed into the same group. Empty means private access.
func WithAccessGroup(group string) Option {
	return func(k *Keychain) {
		k.accessGroup = group
	}
}

// New returns a Keychain backed by native.
func New(native Native, opts ...Option) *Keychain {
	k := &Keychain{native: native}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// AccessGroup returns the access group items are scoped to.
func (k *Keychain) AccessGroup() string {
	return k.accessGroup
}

// SaveData stores data under key. If an item already exists it is updated
// in place.
func (k *Keychain) SaveData(data []byte, key Key) error {
	if err := key.validate(); err != nil {
		return fmt.Errorf("keychain save %s: %w", key, err)
	}

	req := k.identify(key)
	req.Accessible = AccessibleAfterFirstUnlockThisDeviceOnly
	req.Data = data

	status := k.native.Add(req)
	if status == StatusDuplicateItem {
		// The class marker is only valid in the match half of an update.
		attrs := Request{
			Accessible: AccessibleAfterFirstUnlockThisDeviceOnly,
			Data:       data,
		}
		status = k.native.Update(k.identify(key), attrs)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("keychain save %s: %w", key, err)
	}
	return nil
}

// FetchData returns the bytes stored under key.
func (k *Keychain) FetchData(key Key) ([]byte, error) {
	if err := key.validate(); err != nil {
		return nil, fmt.Errorf("keychain fetch %s: %w", key, err)
	}

	req := k.identify(key)
	req.ReturnData = true
	req.MatchLimitOne = true

	result, status := k.native.CopyMatching(req)
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("keychain fetch %s: %w", key, err)
	}
	data, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("keychain fetch %s: %w: got %T", key, ErrUnexpectedResult, result)
	}
	return data, nil
}

// Delete removes the item stored under key. A missing item is reported as
// ErrNotFound.
func (k *Keychain) Delete(key Key) error {
	if err := key.validate(); err != nil {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	if err := k.native.Delete(k.identify(key)).Err(); err != nil {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}

// identify builds the attributes that match exactly one item.
func (k *Keychain) identify(key Key) Request {
	return Request{
		Class:       ClassGenericPassword,
		Service:     key.Service,
		Account:     key.Account,
		AccessGroup: k.accessGroup,
	}
}
