package sqlstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-ghapp/core"
)

func newTokenRecordRow(slot string, record core.TokenRecord, now time.Time) *tokenRecordRow {
	cloned := record.Clone()
	return &tokenRecordRow{
		ID:                  uuid.NewString(),
		Slot:                slot,
		AppID:               cloned.AppID,
		InstallationID:      cloned.InstallationID,
		Token:               cloned.Token,
		IssuedAt:            cloned.IssuedAt,
		ExpiresAt:           cloned.ExpiresAt,
		Permissions:         cloned.Permissions,
		RepositorySelection: cloned.RepositorySelection,
		CreatedAt:           now,
	}
}

func (r *tokenRecordRow) toDomain() core.TokenRecord {
	if r == nil {
		return core.TokenRecord{}
	}
	record := core.TokenRecord{
		IssuedAt:            r.IssuedAt,
		ExpiresAt:           r.ExpiresAt,
		Token:               r.Token,
		InstallationID:      r.InstallationID,
		AppID:               r.AppID,
		Permissions:         r.Permissions,
		RepositorySelection: r.RepositorySelection,
	}
	return record.Clone()
}
