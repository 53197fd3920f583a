//go:build !darwin

package keychain

import (
	"encoding/base64"
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"
)

// SystemNative stores items in the desktop keyring: the Secret Service over
// D-Bus on Linux and the Credential Manager on Windows.
//
// The keyring has no access groups, so a group is folded into the keyring
// service name as "<group>/<service>". Payloads are stored base64 encoded
// since the backends only carry strings. Accessibility is left to the
// keyring's own policy.
type SystemNative struct{}

// NewSystemNative returns the platform's secure store.
func NewSystemNative() *SystemNative {
	return &SystemNative{}
}

func (SystemNative) Add(req Request) Status {
	if req.Class == 0 {
		return StatusParam
	}
	service := keyringService(req)
	if _, err := keyring.Get(service, req.Account); err == nil {
		return StatusDuplicateItem
	} else if !errors.Is(err, keyring.ErrNotFound) {
		return keyringStatus(err, req)
	}
	return keyringStatus(keyring.Set(service, req.Account, base64.StdEncoding.EncodeToString(req.Data)), req)
}

func (SystemNative) Update(match, attrs Request) Status {
	if attrs.Class != 0 {
		return StatusParam
	}
	service := keyringService(match)
	if _, err := keyring.Get(service, match.Account); err != nil {
		return keyringStatus(err, match)
	}
	if attrs.Data == nil {
		return StatusSuccess
	}
	return keyringStatus(keyring.Set(service, match.Account, base64.StdEncoding.EncodeToString(attrs.Data)), match)
}

func (SystemNative) CopyMatching(req Request) (any, Status) {
	encoded, err := keyring.Get(keyringService(req), req.Account)
	if err != nil {
		return nil, keyringStatus(err, req)
	}
	if !req.ReturnData {
		return nil, StatusSuccess
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Written by another tool; hand back the raw string.
		return encoded, StatusSuccess
	}
	return data, StatusSuccess
}

func (SystemNative) Delete(req Request) Status {
	return keyringStatus(keyring.Delete(keyringService(req), req.Account), req)
}

func keyringService(req Request) string {
	if req.AccessGroup == "" {
		return req.Service
	}
	return req.AccessGroup + "/" + req.Service
}

func keyringStatus(err error, req Request) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, keyring.ErrNotFound):
		return StatusItemNotFound
	case errors.Is(err, keyring.ErrUnsupportedPlatform):
		return StatusNotAvailable
	case errors.Is(err, keyring.ErrSetDataTooBig):
		return StatusParam
	}
	slog.Warn("keyring call failed", "service", req.Service, "account", req.Account, "error", err)
	return StatusIO
}
