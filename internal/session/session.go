// Package session holds the signed-in user's token for the client process.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"todoapp/internal/models"
)

// State is one signed-in session.
type State struct {
	Token   string    `yaml:"token"`
	Expires time.Time `yaml:"expires"`
	UserID  int64     `yaml:"user_id"`
	Email   string    `yaml:"email"`
	Name    string    `yaml:"name"`
}

// Valid reports whether the session has a token that has not expired at now.
func (s State) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.Expires)
}

// Manager is the process-wide session. It is passed explicitly to whatever
// needs a token; nothing looks it up globally.
type Manager struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
}

// NewManager creates a Manager holding state.
func NewManager(state State) *Manager {
	return &Manager{state: state, now: time.Now}
}

// Begin replaces the session with the result of a login or registration.
func (m *Manager) Begin(resp *models.AuthResponse) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{
		Token:   resp.Token,
		Expires: resp.Expires.UTC(),
		UserID:  resp.User.ID,
		Email:   resp.User.Email,
		Name:    resp.User.DisplayName(),
	}
	return m.state
}

// End signs out.
func (m *Manager) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}
}

// Current returns the session as stored, expired or not.
func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Active reports whether a non-expired session is held.
func (m *Manager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Valid(m.now())
}

// Token returns the bearer token, or "" once it has expired.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.state.Valid(m.now()) {
		return ""
	}
	return m.state.Token
}

// FileStore persists a State as YAML between CLI invocations.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns ~/.todoapp/session.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".todoapp", "session.yaml")
	}
	return filepath.Join(home, ".todoapp", "session.yaml")
}

// Path returns the file location.
func (f *FileStore) Path() string { return f.path }

// Load reads the saved session. A missing file is an empty session.
func (f *FileStore) Load() (State, error) {
	var state State
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("failed to read session: %w", err)
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("failed to parse session %s: %w", f.path, err)
	}
	return state, nil
}

// Save writes state, readable only by the owner.
func (f *FileStore) Save(state State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear removes the saved session.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
