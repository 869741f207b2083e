package query

import (
	"context"

	"github.com/goliatone/go-ghapp/core"
)

type StateReader interface {
	State(ctx context.Context) (core.TokenState, *core.TokenRecord, error)
}

// TokenStatus describes the stored record without exposing the token.
type TokenStatus struct {
	State          core.TokenState `json:"state"`
	AppID          string          `json:"app_id,omitempty"`
	InstallationID string          `json:"installation_id,omitempty"`
	ExpiresAt      string          `json:"expires_at,omitempty"`
	Token          string          `json:"token,omitempty"`
}

type RetrieveTokenQuery struct {
	source core.TokenSource
}

func NewRetrieveTokenQuery(source core.TokenSource) *RetrieveTokenQuery {
	return &RetrieveTokenQuery{source: source}
}

func (q *RetrieveTokenQuery) Query(ctx context.Context, _ RetrieveTokenMessage) (string, error) {
	if q == nil || q.source == nil {
		return "", queryDependencyError("query: token source is required")
	}
	return q.source.RetrieveToken(ctx)
}

type TokenStateQuery struct {
	reader StateReader
}

func NewTokenStateQuery(reader StateReader) *TokenStateQuery {
	return &TokenStateQuery{reader: reader}
}

func (q *TokenStateQuery) Query(ctx context.Context, _ TokenStateMessage) (TokenStatus, error) {
	if q == nil || q.reader == nil {
		return TokenStatus{}, queryDependencyError("query: token state reader is required")
	}
	state, record, err := q.reader.State(ctx)
	if err != nil {
		return TokenStatus{}, err
	}
	status := TokenStatus{State: state}
	if record != nil {
		status.AppID = record.AppID
		status.InstallationID = record.InstallationID
		status.ExpiresAt = record.ExpiresAt
		status.Token = core.MaskToken(record.Token)
	}
	return status, nil
}
