// Package filestore is an encrypted on-disk keychain.Native for hosts without
// a platform secure store.
//
// Items live in a SQLite table keyed by (access_group, service, account).
// Payloads are sealed with AES-256-GCM; the key triple is bound in as
// additional data so a row cannot be replayed under another key.
package filestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/benaskins/strongbox/keychain"

	_ "modernc.org/sqlite"
)

// KeySize is the required encryption key length in bytes.
const KeySize = 32

// ErrInvalidKey is returned by Open when the encryption key is not KeySize bytes.
var ErrInvalidKey = errors.New("filestore: encryption key must be 32 bytes")

var _ keychain.Native = (*Store)(nil)

// Store is a keychain.Native backed by an encrypted SQLite database.
type Store struct {
	db   *sql.DB
	aead cipher.AEAD
}

// Open opens (creating if needed) the store at path and applies migrations.
func Open(path string, key []byte) (*Store, error) {
	return openDSN(fileDSN(path), key)
}

// fileDSN builds a SQLite URI for path, escaping characters such as '?' and
// '#' that would otherwise be read as URI syntax.
func fileDSN(path string) string {
	u := url.URL{
		Scheme:   "file",
		Path:     path,
		OmitHost: true,
		RawQuery: "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
	}
	return u.String()
}

func openDSN(dsn string, key []byte) (*Store, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection serializes writers and avoids "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, aead: aead}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Add(req keychain.Request) keychain.Status {
	if req.Class == 0 {
		return keychain.StatusParam
	}
	sealed, err := s.seal(req, req.Data)
	if err != nil {
		return s.fail("seal", req, err)
	}

	const query = `INSERT INTO items (access_group, service, account, class, accessible, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (access_group, service, account) DO NOTHING`
	res, err := s.db.Exec(query, req.AccessGroup, req.Service, req.Account, int(req.Class), int(req.Accessible), sealed)
	if err != nil {
		return s.fail("add", req, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.fail("add", req, err)
	}
	if n == 0 {
		return keychain.StatusDuplicateItem
	}
	return keychain.StatusSuccess
}

func (s *Store) Update(match, attrs keychain.Request) keychain.Status {
	if attrs.Class != 0 {
		return keychain.StatusParam
	}
	if attrs.Data == nil {
		if _, status := s.CopyMatching(match); status != keychain.StatusSuccess {
			return status
		}
		return keychain.StatusSuccess
	}
	sealed, err := s.seal(match, attrs.Data)
	if err != nil {
		return s.fail("seal", match, err)
	}

	const query = `UPDATE items
		SET data = ?, accessible = CASE WHEN ? = 0 THEN accessible ELSE ? END, updated_at = CURRENT_TIMESTAMP
		WHERE access_group = ? AND service = ? AND account = ? AND (? = 0 OR class = ?)`
	res, err := s.db.Exec(query,
		sealed, int(attrs.Accessible), int(attrs.Accessible),
		match.AccessGroup, match.Service, match.Account, int(match.Class), int(match.Class))
	if err != nil {
		return s.fail("update", match, err)
	}
	return rowsStatus(res)
}

func (s *Store) CopyMatching(req keychain.Request) (any, keychain.Status) {
	const query = `SELECT data FROM items
		WHERE access_group = ? AND service = ? AND account = ? AND (? = 0 OR class = ?)`
	var sealed []byte
	err := s.db.QueryRow(query, req.AccessGroup, req.Service, req.Account, int(req.Class), int(req.Class)).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, keychain.StatusItemNotFound
	}
	if err != nil {
		return nil, s.fail("lookup", req, err)
	}
	if !req.ReturnData {
		return nil, keychain.StatusSuccess
	}

	data, err := s.open(req, sealed)
	if err != nil {
		slog.Warn("filestore item failed to decrypt", "service", req.Service, "account", req.Account, "error", err)
		return nil, keychain.StatusDecode
	}
	return data, keychain.StatusSuccess
}

func (s *Store) Delete(req keychain.Request) keychain.Status {
	const query = `DELETE FROM items
		WHERE access_group = ? AND service = ? AND account = ? AND (? = 0 OR class = ?)`
	res, err := s.db.Exec(query, req.AccessGroup, req.Service, req.Account, int(req.Class), int(req.Class))
	if err != nil {
		return s.fail("delete", req, err)
	}
	return rowsStatus(res)
}

func rowsStatus(res sql.Result) keychain.Status {
	n, err := res.RowsAffected()
	if err != nil {
		return keychain.StatusIO
	}
	if n == 0 {
		return keychain.StatusItemNotFound
	}
	return keychain.StatusSuccess
}

func (s *Store) fail(op string, req keychain.Request, err error) keychain.Status {
	slog.Warn("filestore "+op+" failed", "service", req.Service, "account", req.Account, "error", err)
	return keychain.StatusIO
}

// additionalData binds a sealed payload to its key triple.
func additionalData(req keychain.Request) []byte {
	return fmt.Appendf(nil, "%d:%s|%d:%s|%d:%s",
		len(req.AccessGroup), req.AccessGroup,
		len(req.Service), req.Service,
		len(req.Account), req.Account)
}

// seal returns nonce || ciphertext || tag.
func (s *Store) seal(req keychain.Request, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, additionalData(req)), nil
}

func (s *Store) open(req keychain.Request, sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, additionalData(req))
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
