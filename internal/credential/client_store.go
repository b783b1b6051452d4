package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"stacks/internal/fileutil"
)

type clientState struct {
	ClientID  string    `json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientStore persists the generated client identifier sent alongside the credential.
type ClientStore struct {
	path string
	now  func() time.Time
}

// NewClientStore builds a ClientStore backed by the JSON file at path.
func NewClientStore(path string) *ClientStore {
	return &ClientStore{path: path, now: time.Now}
}

// Resolve returns configured when set. Otherwise it returns the persisted
// identifier, generating and saving one on first use.
func (s *ClientStore) Resolve(configured string) (string, error) {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured, nil
	}
	state, err := s.load()
	if err != nil {
		return "", err
	}
	if state.ClientID != "" {
		return state.ClientID, nil
	}
	state = clientState{ClientID: uuid.NewString(), CreatedAt: s.now().UTC()}
	if err := s.save(state); err != nil {
		return "", err
	}
	return state.ClientID, nil
}

func (s *ClientStore) load() (clientState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return clientState{}, nil
		}
		return clientState{}, fmt.Errorf("read client state: %w", err)
	}
	var state clientState
	if err := json.Unmarshal(data, &state); err != nil {
		return clientState{}, fmt.Errorf("decode client state: %w", err)
	}
	return state, nil
}

func (s *ClientStore) save(state clientState) error {
	if err := fileutil.WriteJSONAtomic(s.path, state, 0o600); err != nil {
		return fmt.Errorf("write client state: %w", err)
	}
	return nil
}
