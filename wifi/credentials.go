package wifi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

const (
	// MaxStorageSize bounds the encoded credential list.
	MaxStorageSize = 1024
	// MaxSSIDLength and MaxSecretLength are the 802.11 limits in bytes.
	MaxSSIDLength   = 32
	MaxSecretLength = 64
)

// Storage persists the encoded credential list.
type Storage interface {
	// Load returns the stored payload. A missing payload may be reported as
	// an error or as empty data; both load as an empty store.
	Load() ([]byte, error)
	Save(data []byte) error
}

// storedCredential is the on-disk record.
type storedCredential struct {
	SSID     string `json:"ssid"`
	Password string `json:"password,omitempty"`
}

// CredentialStore is the ordered set of known networks, kept sorted by SSID.
//
// It is not safe for concurrent use.
type CredentialStore struct {
	storage     Storage
	logger      *slog.Logger
	credentials []Credential
}

// NewCredentialStore returns an empty store backed by storage. Call Load to
// read what is persisted.
func NewCredentialStore(storage Storage, logger *slog.Logger) *CredentialStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialStore{
		storage: storage,
		logger:  logger,
	}
}

// List returns a copy of the credentials, sorted by SSID.
func (s *CredentialStore) List() []Credential {
	out := make([]Credential, len(s.credentials))
	copy(out, s.credentials)
	return out
}

// Len returns the number of stored credentials.
func (s *CredentialStore) Len() int {
	return len(s.credentials)
}

// Size returns the encoded size of the store in bytes.
func (s *CredentialStore) Size() int {
	data, err := encodeCredentials(s.credentials)
	if err != nil {
		return 0
	}
	return len(data)
}

// Get returns the credential for ssid.
func (s *CredentialStore) Get(ssid string) (Credential, bool) {
	i := s.index(ssid)
	if i < 0 {
		return Credential{}, false
	}
	return s.credentials[i], true
}

// Add inserts a new credential. It returns false, leaving the store
// unchanged, if the SSID is already present or the credential can't be
// stored.
func (s *CredentialStore) Add(ssid, secret string) bool {
	return s.Put(Credential{SSID: ssid, Secret: secret}) == nil
}

// Put is Add with the reason for a refusal: ErrExists, ErrInvalid or
// ErrTooLarge.
func (s *CredentialStore) Put(c Credential) error {
	if err := validateCredential(c); err != nil {
		return err
	}
	if s.index(c.SSID) >= 0 {
		return fmt.Errorf("network %q: %w", c.SSID, ErrExists)
	}

	next := append(s.List(), c)
	sortCredentials(next)
	if data, err := encodeCredentials(next); err != nil {
		return err
	} else if len(data) > MaxStorageSize {
		return fmt.Errorf("adding %q needs %d bytes: %w", c.SSID, len(data), ErrTooLarge)
	}
	s.credentials = next
	return nil
}

// Replace swaps the secret of an existing credential. It returns false if the
// SSID is unknown or the new record can't be stored.
func (s *CredentialStore) Replace(c Credential) bool {
	i := s.index(c.SSID)
	if i < 0 || validateCredential(c) != nil {
		return false
	}
	prev := s.credentials[i]
	s.credentials[i] = c
	if data, err := encodeCredentials(s.credentials); err != nil || len(data) > MaxStorageSize {
		s.credentials[i] = prev
		return false
	}
	return true
}

// Remove deletes the credential for ssid, returning false if it is unknown.
func (s *CredentialStore) Remove(ssid string) bool {
	i := s.index(ssid)
	if i < 0 {
		return false
	}
	s.credentials = append(s.credentials[:i:i], s.credentials[i+1:]...)
	return true
}

// Load replaces the contents of the store with what storage holds. Missing,
// oversized or malformed payloads load as an empty store: a bad file must
// never keep the device from booting. Invalid or duplicate records are
// skipped.
func (s *CredentialStore) Load() {
	s.credentials = nil

	data, err := s.storage.Load()
	if err != nil {
		s.logger.Warn("failed to load credentials, starting empty", "error", err)
		return
	}
	if len(data) == 0 {
		return
	}
	if len(data) > MaxStorageSize {
		s.logger.Warn("stored credentials too large, starting empty", "size", len(data), "max", MaxStorageSize)
		return
	}

	var records []storedCredential
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("stored credentials are malformed, starting empty", "error", err)
		return
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		c := Credential{SSID: r.SSID, Secret: r.Password}
		if err := validateCredential(c); err != nil {
			s.logger.Warn("skipping stored credential", "ssid", r.SSID, "error", err)
			continue
		}
		if seen[c.SSID] {
			s.logger.Warn("skipping duplicate stored credential", "ssid", c.SSID)
			continue
		}
		seen[c.SSID] = true
		s.credentials = append(s.credentials, c)
	}
	sortCredentials(s.credentials)
	s.logger.Debug("loaded credentials", "count", len(s.credentials))
}

// Save writes the store through to storage.
func (s *CredentialStore) Save() error {
	data, err := encodeCredentials(s.credentials)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if len(data) > MaxStorageSize {
		return fmt.Errorf("encoded credentials are %d bytes: %w", len(data), ErrTooLarge)
	}
	if err := s.storage.Save(data); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (s *CredentialStore) index(ssid string) int {
	for i, c := range s.credentials {
		if c.SSID == ssid {
			return i
		}
	}
	return -1
}

func validateCredential(c Credential) error {
	if len(c.SSID) == 0 || len(c.SSID) > MaxSSIDLength {
		return fmt.Errorf("ssid must be 1-%d bytes: %w", MaxSSIDLength, ErrInvalid)
	}
	if len(c.Secret) > MaxSecretLength {
		return fmt.Errorf("secret must be at most %d bytes: %w", MaxSecretLength, ErrInvalid)
	}
	return nil
}

func sortCredentials(credentials []Credential) {
	sort.Slice(credentials, func(i, j int) bool {
		return credentials[i].SSID < credentials[j].SSID
	})
}

func encodeCredentials(credentials []Credential) ([]byte, error) {
	records := make([]storedCredential, 0, len(credentials))
	for _, c := range credentials {
		records = append(records, storedCredential{SSID: c.SSID, Password: c.Secret})
	}
	return json.Marshal(records)
}
