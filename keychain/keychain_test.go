package keychain

import (
	"errors"
	"testing"
)

// Unit tests use MemoryNative, so no Keychain interaction is needed.

func testKeychain(opts ...Option) *Keychain {
	return New(NewMemoryNative(), opts...)
}

type credentials struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

func TestSaveAndFetch(t *testing.T) {
	k := testKeychain()
	q := JSONQuery[string]("app", "user1")

	if err := Save(k, "hunter2", q); err != nil {
		t.Fatalf("Save: %v", err)
	}

	val, err := Fetch(k, q)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if val != "hunter2" {
		t.Errorf("expected 'hunter2', got %q", val)
	}

	_, err = Fetch(k, JSONQuery[string]("app", "user2"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for user2, got %v", err)
	}
}

func TestSaveStruct(t *testing.T) {
	k := testKeychain()
	q := JSONQuery[credentials]("com.example.api", "default")
	want := credentials{Username: "ben", Token: "tok-123"}

	if err := Save(k, want, q); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Fetch(k, q)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestSaveOverwrites(t *testing.T) {
	k := testKeychain()
	q := JSONQuery[string]("app", "overwrite")

	if err := Save(k, "first", q); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := Save(k, "second", q); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	val, err := Fetch(k, q)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if val != "second" {
		t.Errorf("expected 'second', got %q", val)
	}
}

func TestSaveOverwriteKeepsSingleItem(t *testing.T) {
	native := NewMemoryNative()
	k := New(native)
	q := JSONQuery[int]("app", "counter")

	for i := 0; i < 3; i++ {
		if err := Save(k, i, q); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	if native.Len() != 1 {
		t.Errorf("expected 1 stored item, got %d", native.Len())
	}
}

func TestFetchNotFound(t *testing.T) {
	k := testKeychain()

	_, err := Fetch(k, JSONQuery[string]("app", "never-saved"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteThenFetch(t *testing.T) {
	k := testKeychain()
	q := JSONQuery[string]("app", "to-delete")

	if err := Save(k, "value", q); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := k.Delete(q.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err := Fetch(k, q)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteNonexistent(t *testing.T) {
	k := testKeychain()

	err := k.Delete(Key{Service: "app", Account: "never-existed"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAccessGroupIsolation(t *testing.T) {
	native := NewMemoryNative()
	teamA := New(native, WithAccessGroup("TEAMA.com.example.shared"))
	teamB := New(native, WithAccessGroup("TEAMB.com.example.shared"))
	private := New(native)
	q := JSONQuery[string]("app", "user1")

	if err := Save(teamA, "from-a", q); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := Fetch(teamB, q); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from other group, got %v", err)
	}
	if _, err := Fetch(private, q); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from private keychain, got %v", err)
	}

	val, err := Fetch(New(native, WithAccessGroup("TEAMA.com.example.shared")), q)
	if err != nil {
		t.Fatalf("Fetch from same group: %v", err)
	}
	if val != "from-a" {
		t.Errorf("expected 'from-a', got %q", val)
	}
}

func TestNoGroupVisibleAcrossKeychains(t *testing.T) {
	native := NewMemoryNative()
	q := JSONQuery[string]("app", "shared")

	if err := Save(New(native), "visible", q); err != nil {
		t.Fatalf("Save: %v", err)
	}
	val, err := Fetch(New(native), q)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if val != "visible" {
		t.Errorf("expected 'visible', got %q", val)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	k := testKeychain()

	err := Save(k, "v", JSONQuery[string]("", "account"))
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if serr.Status != StatusParam {
		t.Errorf("expected StatusParam, got %d", serr.Status)
	}

	if _, err := Fetch(k, JSONQuery[string]("app", "")); !errors.As(err, &serr) {
		t.Errorf("expected StatusError from Fetch, got %v", err)
	}
	if err := k.Delete(Key{}); !errors.As(err, &serr) {
		t.Errorf("expected StatusError from Delete, got %v", err)
	}
}

func TestDecodeErrorPropagates(t *testing.T) {
	k := testKeychain()
	key := Key{Service: "app", Account: "malformed"}

	if err := k.SaveData([]byte("{not json"), key); err != nil {
		t.Fatalf("SaveData: %v", err)
	}

	_, err := Fetch(k, JSONQuery[credentials](key.Service, key.Account))
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnexpectedResult) {
		t.Errorf("expected the JSON error unchanged, got %v", err)
	}
}

// stubNative records calls and returns canned results.
type stubNative struct {
	addStatus    Status
	updateStatus Status
	payload      any
	fetchStatus  Status
	deleteStatus Status

	added       []Request
	updateMatch []Request
	updateAttrs []Request
	lookups     []Request
	deleted     []Request
}

func (s *stubNative) Add(req Request) Status {
	s.added = append(s.added, req)
	return s.addStatus
}

func (s *stubNative) Update(match, attrs Request) Status {
	s.updateMatch = append(s.updateMatch, match)
	s.updateAttrs = append(s.updateAttrs, attrs)
	return s.updateStatus
}

func (s *stubNative) CopyMatching(req Request) (any, Status) {
	s.lookups = append(s.lookups, req)
	return s.payload, s.fetchStatus
}

func (s *stubNative) Delete(req Request) Status {
	s.deleted = append(s.deleted, req)
	return s.deleteStatus
}

// countingConverter counts Decode calls.
type countingConverter struct {
	decoded int
}

func (c *countingConverter) Encode(item string) ([]byte, error) { return []byte(item), nil }

func (c *countingConverter) Decode(data []byte) (string, error) {
	c.decoded++
	return string(data), nil
}

func TestFetchUnexpectedPayload(t *testing.T) {
	stub := &stubNative{payload: "not bytes"}
	k := New(stub)
	conv := &countingConverter{}

	_, err := Fetch(k, NewQuery[string]("app", "user1", conv))
	if !errors.Is(err, ErrUnexpectedResult) {
		t.Fatalf("expected ErrUnexpectedResult, got %v", err)
	}
	if conv.decoded != 0 {
		t.Errorf("expected no decode attempt, got %d", conv.decoded)
	}
}

func TestFetchNilPayload(t *testing.T) {
	k := New(&stubNative{})

	_, err := k.FetchData(Key{Service: "app", Account: "user1"})
	if !errors.Is(err, ErrUnexpectedResult) {
		t.Errorf("expected ErrUnexpectedResult, got %v", err)
	}
}

func TestFetchRequestFlags(t *testing.T) {
	stub := &stubNative{payload: []byte(`"x"`)}
	k := New(stub, WithAccessGroup("group"))

	if _, err := Fetch(k, JSONQuery[string]("app", "user1")); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	req := stub.lookups[0]
	if !req.ReturnData || !req.MatchLimitOne {
		t.Errorf("expected ReturnData and MatchLimitOne, got %+v", req)
	}
	if req.Class != ClassGenericPassword || req.Service != "app" || req.Account != "user1" || req.AccessGroup != "group" {
		t.Errorf("unexpected lookup identity: %+v", req)
	}
}

func TestSaveAddRequest(t *testing.T) {
	stub := &stubNative{}
	k := New(stub, WithAccessGroup("group"))

	if err := k.SaveData([]byte("secret"), Key{Service: "app", Account: "user1"}); err != nil {
		t.Fatalf("SaveData: %v", err)
	}

	if len(stub.added) != 1 {
		t.Fatalf("expected 1 add, got %d", len(stub.added))
	}
	if len(stub.updateMatch) != 0 {
		t.Errorf("expected no update for a new key, got %d", len(stub.updateMatch))
	}
	req := stub.added[0]
	if req.Class != ClassGenericPassword {
		t.Errorf("expected generic password class, got %v", req.Class)
	}
	if req.Accessible != AccessibleAfterFirstUnlockThisDeviceOnly {
		t.Errorf("expected after-first-unlock-this-device-only, got %v", req.Accessible)
	}
	if req.AccessGroup != "group" || string(req.Data) != "secret" {
		t.Errorf("unexpected add request: %+v", req)
	}
}

func TestSaveDuplicateFallsBackToUpdate(t *testing.T) {
	stub := &stubNative{addStatus: StatusDuplicateItem}
	k := New(stub, WithAccessGroup("group"))

	if err := k.SaveData([]byte("new"), Key{Service: "app", Account: "user1"}); err != nil {
		t.Fatalf("SaveData: %v", err)
	}

	if len(stub.updateMatch) != 1 {
		t.Fatalf("expected 1 update, got %d", len(stub.updateMatch))
	}
	match, attrs := stub.updateMatch[0], stub.updateAttrs[0]
	if match.Class != ClassGenericPassword || match.Service != "app" || match.Account != "user1" || match.AccessGroup != "group" {
		t.Errorf("update match does not identify the item: %+v", match)
	}
	if match.Data != nil {
		t.Errorf("expected no data in update match, got %q", match.Data)
	}
	if attrs.Class != 0 {
		t.Errorf("expected no class in update attributes, got %v", attrs.Class)
	}
	if string(attrs.Data) != "new" {
		t.Errorf("expected new data in update attributes, got %q", attrs.Data)
	}
}

func TestSaveUpdateFailureSurfaces(t *testing.T) {
	stub := &stubNative{addStatus: StatusDuplicateItem, updateStatus: StatusAuthFailed}
	k := New(stub)

	err := k.SaveData([]byte("new"), Key{Service: "app", Account: "user1"})
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Status != StatusAuthFailed {
		t.Errorf("expected StatusAuthFailed, got %v", err)
	}
}

func TestOtherStatusPreservesCode(t *testing.T) {
	stub := &stubNative{addStatus: Status(-34018), fetchStatus: StatusInteractionNotAllowed, deleteStatus: StatusIO}
	k := New(stub)
	key := Key{Service: "app", Account: "user1"}

	var serr *StatusError
	if err := k.SaveData([]byte("x"), key); !errors.As(err, &serr) || serr.Status != -34018 {
		t.Errorf("expected status -34018 from save, got %v", err)
	}
	if len(stub.updateMatch) != 0 {
		t.Errorf("expected no update fallback for a non-duplicate failure")
	}
	if _, err := k.FetchData(key); !errors.As(err, &serr) || serr.Status != StatusInteractionNotAllowed {
		t.Errorf("expected StatusInteractionNotAllowed from fetch, got %v", err)
	}
	if err := k.Delete(key); !errors.As(err, &serr) || serr.Status != StatusIO {
		t.Errorf("expected StatusIO from delete, got %v", err)
	}
}

func TestDeleteSurfacesDuplication(t *testing.T) {
	k := New(&stubNative{deleteStatus: StatusDuplicateItem})

	err := k.Delete(Key{Service: "app", Account: "user1"})
	if !errors.Is(err, ErrDuplication) {
		t.Errorf("expected ErrDuplication, got %v", err)
	}
}

func TestDeleteRequestHasNoFlags(t *testing.T) {
	stub := &stubNative{}
	k := New(stub)

	if err := k.Delete(Key{Service: "app", Account: "user1"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	req := stub.deleted[0]
	if req.ReturnData || req.MatchLimitOne || req.Data != nil {
		t.Errorf("expected bare identity in delete request, got %+v", req)
	}
}

func TestStatusErr(t *testing.T) {
	if StatusSuccess.Err() != nil {
		t.Error("expected nil for success")
	}
	if !errors.Is(StatusItemNotFound.Err(), ErrNotFound) {
		t.Error("expected ErrNotFound")
	}
	if !errors.Is(StatusDuplicateItem.Err(), ErrDuplication) {
		t.Error("expected ErrDuplication")
	}
	var serr *StatusError
	if !errors.As(Status(-1).Err(), &serr) || serr.Status != -1 {
		t.Error("expected StatusError carrying -1")
	}
}
