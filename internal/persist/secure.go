package persist

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrNotFound        = errors.New("secret not found")
	ErrWrongPassphrase = errors.New("sealed store: wrong passphrase or corrupted file")
)

// SecureStore keeps credential material out of the plain database.
type SecureStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// KeyringStore keeps secrets in the OS keychain under Service.
type KeyringStore struct {
	Service string
}

func (k KeyringStore) Get(key string) ([]byte, error) {
	v, err := keyring.Get(k.Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get %s: %w", key, err)
	}
	return []byte(v), nil
}

func (k KeyringStore) Set(key string, value []byte) error {
	if err := keyring.Set(k.Service, key, string(value)); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	return nil
}

func (k KeyringStore) Delete(key string) error {
	err := keyring.Delete(k.Service, key)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("keyring delete %s: %w", key, err)
}

// Argon2id parameters for the sealed file key.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltSize     = 16
)

// SealedFileStore keeps secrets in one file sealed with XChaCha20-Poly1305.
// The key is derived from the passphrase with Argon2id.
type SealedFileStore struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

type sealedFile struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

func NewSealedFileStore(path, passphrase string) (*SealedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("sealed store: empty passphrase")
	}
	return &SealedFileStore{path: path, passphrase: []byte(passphrase)}, nil
}

func (s *SealedFileStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, _, err := s.read()
	if err != nil {
		return nil, err
	}
	v, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *SealedFileStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, salt, err := s.read()
	if err != nil {
		return err
	}
	m[key] = append([]byte(nil), value...)
	return s.write(m, salt)
}

func (s *SealedFileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, salt, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.write(m, salt)
}

func (s *SealedFileStore) key(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// read returns the decrypted entries and the file's salt. A missing file
// reads as empty with a nil salt.
func (s *SealedFileStore) read() (map[string][]byte, []byte, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]byte{}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var f sealedFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, nil, fmt.Errorf("sealed store: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.key(f.Salt))
	if err != nil {
		return nil, nil, err
	}
	plain, err := aead.Open(nil, f.Nonce, f.Data, nil)
	if err != nil {
		return nil, nil, ErrWrongPassphrase
	}
	m := map[string][]byte{}
	if err := json.Unmarshal(plain, &m); err != nil {
		return nil, nil, fmt.Errorf("sealed store: %w", err)
	}
	return m, f.Salt, nil
}

func (s *SealedFileStore) write(m map[string][]byte, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return err
		}
	}
	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	plain, err := json.Marshal(m)
	if err != nil {
		return err
	}
	b, err := json.Marshal(sealedFile{Version: 1, Salt: salt, Nonce: nonce, Data: aead.Seal(nil, nonce, plain, nil)})
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return atomicWriteFile(dir, filepath.Base(s.path)+".*.tmp", s.path, b, 0o600)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}
