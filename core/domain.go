package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultExpiryBuffer is the margin subtracted from expiry before a token
	// is still considered usable.
	DefaultExpiryBuffer = 300 * time.Second
	// DefaultAssertionTTL bounds the validity of the signed app assertion.
	DefaultAssertionTTL = 500 * time.Second
	// DefaultFlightTimeout bounds one coalesced exchange and store write.
	DefaultFlightTimeout = 60 * time.Second
)

// TokenRecord is the single persisted installation token. JSON names match the
// on-disk format.
type TokenRecord struct {
	IssuedAt            int64             `json:"issued_at"`
	ExpiresAt           string            `json:"expires_at"`
	Token               string            `json:"token"`
	InstallationID      string            `json:"installation_id"`
	AppID               string            `json:"app_id"`
	Permissions         map[string]string `json:"permissions,omitempty"`
	RepositorySelection string            `json:"repository_selection,omitempty"`
}

type TokenState string

const (
	TokenStateAbsent   TokenState = "absent"
	TokenStateValid    TokenState = "valid"
	TokenStateExpiring TokenState = "expiring"
)

// MissingFields lists the required fields that are empty.
func (r TokenRecord) MissingFields() []string {
	missing := make([]string, 0, 5)
	if r.IssuedAt <= 0 {
		missing = append(missing, "issued_at")
	}
	if strings.TrimSpace(r.ExpiresAt) == "" {
		missing = append(missing, "expires_at")
	}
	if strings.TrimSpace(r.Token) == "" {
		missing = append(missing, "token")
	}
	if strings.TrimSpace(r.InstallationID) == "" {
		missing = append(missing, "installation_id")
	}
	if strings.TrimSpace(r.AppID) == "" {
		missing = append(missing, "app_id")
	}
	return missing
}

func (r TokenRecord) IsComplete() bool {
	return len(r.MissingFields()) == 0
}

// Validate rejects records that are not fully populated.
func (r TokenRecord) Validate() error {
	missing := r.MissingFields()
	if len(missing) == 0 {
		return nil
	}
	return NewError(
		KindInvalidRecord,
		fmt.Sprintf("core: token record is missing %s", strings.Join(missing, ", ")),
		map[string]any{"missing_fields": missing},
	)
}

// Key identifies the app installation a record authorizes.
func (r TokenRecord) Key() string {
	return InstallationKey(r.AppID, r.InstallationID)
}

// ExpiresAtTime parses the upstream expiry. RFC 3339 is the GitHub format;
// plain epoch seconds are accepted as well.
func (r TokenRecord) ExpiresAtTime() (time.Time, error) {
	return ParseExpiry(r.ExpiresAt)
}

func (r TokenRecord) Clone() TokenRecord {
	cloned := r
	if r.Permissions != nil {
		cloned.Permissions = make(map[string]string, len(r.Permissions))
		for key, value := range r.Permissions {
			cloned.Permissions[key] = value
		}
	}
	return cloned
}

func InstallationKey(appID string, installationID string) string {
	return strings.TrimSpace(appID) + ":" + strings.TrimSpace(installationID)
}

func ParseExpiry(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("core: expires_at is empty")
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed.UTC(), nil
	}
	seconds, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("core: expires_at %q is not RFC 3339 or epoch seconds", trimmed)
	}
	return time.Unix(seconds, 0).UTC(), nil
}

// Classify derives the token state. Only expires_at > now+buffer is valid;
// the boundary itself and unparseable expiries count as expiring.
func Classify(record *TokenRecord, now time.Time, buffer time.Duration) TokenState {
	if record == nil {
		return TokenStateAbsent
	}
	if buffer < 0 {
		buffer = 0
	}
	expiresAt, err := record.ExpiresAtTime()
	if err != nil {
		return TokenStateExpiring
	}
	if expiresAt.After(now.UTC().Add(buffer)) {
		return TokenStateValid
	}
	return TokenStateExpiring
}

// DecodeTokenRecord parses persisted bytes. Undecodable data is a
// persistence failure; decodable data with no or partial fields is corrupt.
func DecodeTokenRecord(data []byte) (TokenRecord, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return TokenRecord{}, WrapError(err, KindPersistenceError, "core: decode token record", nil)
	}
	if len(raw) == 0 {
		return TokenRecord{}, NewError(KindCorruptRecord, "core: stored token record has no fields", nil)
	}
	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return TokenRecord{}, WrapError(err, KindCorruptRecord, "core: stored token record has invalid field types", nil)
	}
	if missing := record.MissingFields(); len(missing) > 0 {
		return TokenRecord{}, NewError(
			KindCorruptRecord,
			fmt.Sprintf("core: stored token record is missing %s", strings.Join(missing, ", ")),
			map[string]any{"missing_fields": missing},
		)
	}
	return record, nil
}

// MaskToken keeps a short prefix so logs can correlate tokens without
// leaking them.
func MaskToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + strings.Repeat("*", 4)
}
