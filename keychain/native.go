package keychain

// Native is the host secure store. Implementations translate a Request into
// the platform's calling convention and report the platform's status code;
// nothing untyped leaves the implementation.
type Native interface {
	// Add inserts a new item. An existing item under the same key yields
	// StatusDuplicateItem.
	Add(req Request) Status

	// Update sets attrs on the item matched by match.
	Update(match, attrs Request) Status

	// CopyMatching looks up the item matched by req. With ReturnData set, a
	// well-formed result is the item's []byte payload.
	CopyMatching(req Request) (any, Status)

	// Delete removes the item matched by req.
	Delete(req Request) Status
}

// Class is the item class. Zero leaves it out of the request.
type Class int

const (
	ClassGenericPassword Class = iota + 1
)

// Accessibility controls when an item is readable. Zero leaves it out of the
// request.
type Accessibility int

const (
	AccessibleAfterFirstUnlockThisDeviceOnly Accessibility = iota + 1
	AccessibleWhenUnlockedThisDeviceOnly
)

// Request is the typed form of a native store request. Zero-valued fields
// are omitted from the native call.
type Request struct {
	Class       Class
	Accessible  Accessibility
	Service     string
	Account     string
	AccessGroup string
	Data        []byte

	ReturnData    bool
	MatchLimitOne bool
}

// Status is a native result code, numbered like the Security framework's
// OSStatus values.
type Status int32

const (
	StatusSuccess               Status = 0
	StatusIO                    Status = -36
	StatusParam                 Status = -50
	StatusNotAvailable          Status = -25291
	StatusAuthFailed            Status = -25293
	StatusDuplicateItem         Status = -25299
	StatusItemNotFound          Status = -25300
	StatusInteractionNotAllowed Status = -25308
	StatusDecode                Status = -26275
)

var statusNames = map[Status]string{
	StatusSuccess:               "success",
	StatusIO:                    "I/O error",
	StatusParam:                 "invalid parameter",
	StatusNotAvailable:          "store not available",
	StatusAuthFailed:            "authorization failed",
	StatusDuplicateItem:         "duplicate item",
	StatusItemNotFound:          "item not found",
	StatusInteractionNotAllowed: "user interaction not allowed",
	StatusDecode:                "unable to decode data",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown status"
}

// Err maps a status to the package's error set.
func (s Status) Err() error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusItemNotFound:
		return ErrNotFound
	case StatusDuplicateItem:
		return ErrDuplication
	default:
		return &StatusError{Status: s}
	}
}
