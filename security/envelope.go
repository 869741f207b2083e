package security

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/goliatone/go-ghapp/core"
)

const (
	envelopePrefix    = "ghapp.token.v1:"
	envelopeAlgorithm = "aes-256-gcm"
)

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// IsSealed reports whether value carries the sealed token envelope prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), envelopePrefix)
}

func encodeEnvelope(env envelope) ([]byte, error) {
	env.KeyID = strings.TrimSpace(env.KeyID)
	env.Algorithm = strings.ToLower(strings.TrimSpace(env.Algorithm))
	data, err := json.Marshal(env)
	if err != nil {
		return nil, core.WrapError(err, core.KindInternal, "security: encode envelope", nil)
	}
	return append([]byte(envelopePrefix), data...), nil
}

func decodeEnvelope(ciphertext []byte) (envelope, error) {
	payload := strings.TrimSpace(string(ciphertext))
	if payload == "" {
		return envelope{}, core.NewError(core.KindCorruptRecord, "security: ciphertext is required", nil)
	}
	if !strings.HasPrefix(payload, envelopePrefix) {
		return envelope{}, core.NewError(core.KindCorruptRecord, "security: invalid ciphertext envelope prefix", nil)
	}
	parsed := envelope{}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(payload, envelopePrefix)), &parsed); err != nil {
		return envelope{}, core.WrapError(err, core.KindCorruptRecord, "security: decode envelope", nil)
	}
	parsed.KeyID = strings.TrimSpace(parsed.KeyID)
	parsed.Algorithm = strings.ToLower(strings.TrimSpace(parsed.Algorithm))
	if parsed.Algorithm == "" {
		parsed.Algorithm = envelopeAlgorithm
	}
	if parsed.Ciphertext == "" {
		return envelope{}, core.NewError(core.KindCorruptRecord, "security: envelope ciphertext is required", nil)
	}
	return parsed, nil
}

func decodeSegment(name string, value string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, core.WrapError(err, core.KindCorruptRecord, "security: decode "+name, nil)
	}
	return decoded, nil
}
