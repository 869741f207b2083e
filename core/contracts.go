package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// CredentialStore persists the single live TokenRecord.
type CredentialStore interface {
	// Save replaces the stored record. Incomplete records are rejected
	// without touching the existing slot.
	Save(ctx context.Context, record TokenRecord) error
	// Load returns nil, nil when no record was ever saved.
	Load(ctx context.Context) (*TokenRecord, error)
}

// TokenExchanger trades a signed assertion for an installation access token.
type TokenExchanger interface {
	Exchange(ctx context.Context, appID string, installationID string) (TokenRecord, error)
}

// AssertionSigner builds the short lived application assertion.
type AssertionSigner interface {
	Sign(ctx context.Context, appID string) (string, error)
}

// TokenSource yields a bearer token for outbound calls.
type TokenSource interface {
	RetrieveToken(ctx context.Context) (string, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Clock func() time.Time

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
