//go:build darwin

package keychain

import (
	"errors"
	"log/slog"

	gokeychain "github.com/keybase/go-keychain"
)

// SystemNative talks to the macOS Keychain through the Security framework.
type SystemNative struct{}

// NewSystemNative returns the platform's secure store.
func NewSystemNative() *SystemNative {
	return &SystemNative{}
}

func (SystemNative) Add(req Request) Status {
	return statusOf(gokeychain.AddItem(toItem(req)))
}

func (SystemNative) Update(match, attrs Request) Status {
	return statusOf(gokeychain.UpdateItem(toItem(match), toItem(attrs)))
}

func (SystemNative) CopyMatching(req Request) (any, Status) {
	results, err := gokeychain.QueryItem(toItem(req))
	return queryResult(results, err, req)
}

// unconvertedResult stands in for a lookup result go-keychain could not
// convert to Go values.
type unconvertedResult struct {
	err error
}

// queryResult maps a QueryItem outcome onto the Native contract.
//
// QueryItem fails with a keychain.Error only when SecItemCopyMatching itself
// does. A plain error means the lookup matched but returned a CoreFoundation
// type go-keychain cannot convert, so it is reported as a successful lookup
// of something other than the item's bytes, which the adapter surfaces as
// ErrUnexpectedResult.
func queryResult(results []gokeychain.QueryResult, err error, req Request) (any, Status) {
	var kerr gokeychain.Error
	if err != nil && !errors.As(err, &kerr) {
		slog.Debug("keychain returned an unconvertible result", "service", req.Service, "account", req.Account, "error", err)
		return unconvertedResult{err: err}, StatusSuccess
	}
	if status := statusOf(err); status != StatusSuccess {
		return nil, status
	}
	// QueryItem reports errSecItemNotFound as an empty result.
	if len(results) == 0 {
		return nil, StatusItemNotFound
	}
	if len(results) == 1 && req.ReturnData && results[0].Data != nil {
		return results[0].Data, StatusSuccess
	}
	return results, StatusSuccess
}

func (SystemNative) Delete(req Request) Status {
	return statusOf(gokeychain.DeleteItem(toItem(req)))
}

func toItem(req Request) gokeychain.Item {
	item := gokeychain.NewItem()
	if req.Class == ClassGenericPassword {
		item.SetSecClass(gokeychain.SecClassGenericPassword)
	}
	switch req.Accessible {
	case AccessibleAfterFirstUnlockThisDeviceOnly:
		item.SetAccessible(gokeychain.AccessibleAfterFirstUnlockThisDeviceOnly)
	case AccessibleWhenUnlockedThisDeviceOnly:
		item.SetAccessible(gokeychain.AccessibleWhenUnlockedThisDeviceOnly)
	}
	// SetString drops empty values, so unset identity fields stay out of the
	// dictionary.
	item.SetService(req.Service)
	item.SetAccount(req.Account)
	item.SetAccessGroup(req.AccessGroup)
	if req.Data != nil {
		item.SetData(req.Data)
		item.SetSynchronizable(gokeychain.SynchronizableNo)
	}
	if req.ReturnData {
		item.SetReturnData(true)
	}
	if req.MatchLimitOne {
		item.SetMatchLimit(gokeychain.MatchLimitOne)
	}
	return item
}

func statusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var kerr gokeychain.Error
	if errors.As(err, &kerr) {
		return Status(kerr)
	}
	slog.Debug("keychain call failed without a status", "error", err)
	return StatusIO
}
