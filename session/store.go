package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Tokens is the access and refresh token pair. Stores always read and write both together so a
// reader never sees a new access token next to a stale refresh token.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// TokenStore is durable client side storage for the token pair.
type TokenStore interface {
	Load() (Tokens, error)
	Save(tokens Tokens) error
	Clear() error
}

var (
	_ TokenStore = (*MemoryStore)(nil)
	_ TokenStore = (*FileStore)(nil)
)

type MemoryStore struct {
	tokens Tokens
	lock   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Tokens, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.tokens, nil
}

func (s *MemoryStore) Save(tokens Tokens) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.tokens = tokens
	return nil
}

func (s *MemoryStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.tokens = Tokens{}
	return nil
}

// FileStore keeps the pair in a single JSON file. Writes go to a temp file in the same directory
// that is then renamed over the target, so the pair is replaced in one step.
type FileStore struct {
	path string
	lock sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Tokens, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Tokens{}, nil
	}
	if err != nil {
		return Tokens{}, errors.Wrap(err, "FileStore.Load")
	}
	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, errors.Wrap(err, "FileStore.Load decode")
	}
	return tokens, nil
}

func (s *FileStore) Save(tokens Tokens) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := json.Marshal(tokens)
	if err != nil {
		return errors.Wrap(err, "FileStore.Save encode")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "FileStore.Save mkdir")
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return errors.Wrap(err, "FileStore.Save temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "FileStore.Save write")
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "FileStore.Save chmod")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "FileStore.Save close")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "FileStore.Save rename")
}

func (s *FileStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "FileStore.Clear")
	}
	return nil
}
