package security

import (
	"context"

	"github.com/goliatone/go-ghapp/core"
)

// SealRecord returns a copy of record whose token is encrypted with provider.
// A nil provider leaves the record untouched, as does an already sealed token.
func SealRecord(ctx context.Context, provider core.SecretProvider, record core.TokenRecord) (core.TokenRecord, error) {
	if provider == nil || IsSealed(record.Token) {
		return record, nil
	}
	sealed, err := provider.Encrypt(ctx, []byte(record.Token))
	if err != nil {
		return core.TokenRecord{}, core.WrapContext(err, "security: seal token", map[string]any{"app_id": record.AppID})
	}
	out := record.Clone()
	out.Token = string(sealed)
	return out, nil
}

// OpenRecord reverses SealRecord. Plaintext tokens are returned as stored so
// slots written before sealing was enabled stay readable.
func OpenRecord(ctx context.Context, provider core.SecretProvider, record core.TokenRecord) (core.TokenRecord, error) {
	if !IsSealed(record.Token) {
		return record, nil
	}
	if provider == nil {
		return core.TokenRecord{}, core.NewError(core.KindCorruptRecord, "security: stored token is sealed but no seal key is configured", nil)
	}
	plaintext, err := provider.Decrypt(ctx, []byte(record.Token))
	if err != nil {
		return core.TokenRecord{}, core.WrapContext(err, "security: open token", map[string]any{"app_id": record.AppID})
	}
	out := record.Clone()
	out.Token = string(plaintext)
	return out, nil
}
