package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// DefaultSlot names the single row holding the live token record.
const DefaultSlot = "default"

type tokenRecordRow struct {
	bun.BaseModel `bun:"table:ghapp_token_records,alias:gtr"`

	ID                  string            `bun:"id,pk"`
	Slot                string            `bun:"slot,notnull"`
	AppID               string            `bun:"app_id,notnull"`
	InstallationID      string            `bun:"installation_id,notnull"`
	Token               string            `bun:"token,notnull"`
	IssuedAt            int64             `bun:"issued_at,notnull"`
	ExpiresAt           string            `bun:"expires_at,notnull"`
	Permissions         map[string]string `bun:"permissions,type:jsonb"`
	RepositorySelection string            `bun:"repository_selection"`
	CreatedAt           time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
