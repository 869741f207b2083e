package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"github.com/goliatone/go-ghapp/core"
)

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals installation tokens at rest with AES-GCM under a
// key derived from the configured seal key.
type AppKeySecretProvider struct {
	key     []byte
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(provider *AppKeySecretProvider) {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			provider.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(provider *AppKeySecretProvider) {
		if version > 0 {
			provider.version = version
		}
	}
}

func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, core.NewError(core.KindBadInput, "security: seal key material is required", nil)
	}
	provider := &AppKeySecretProvider{
		key:     normalizeKey(key),
		keyID:   "ghapp-seal",
		version: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	return provider, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, core.NewError(core.KindInternal, "security: secret provider is nil", nil)
	}
	if len(plaintext) == 0 {
		return nil, core.NewError(core.KindBadInput, "security: plaintext is required", nil)
	}
	gcm, err := p.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, core.WrapError(err, core.KindInternal, "security: nonce generation failed", nil)
	}
	return encodeEnvelope(envelope{
		KeyID:      p.keyID,
		Version:    p.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	})
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, core.NewError(core.KindInternal, "security: secret provider is nil", nil)
	}
	parsed, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	metadata := map[string]any{"kid": parsed.KeyID, "ver": parsed.Version}
	if parsed.Algorithm != envelopeAlgorithm {
		return nil, core.NewError(core.KindCorruptRecord, "security: unsupported envelope algorithm", map[string]any{"alg": parsed.Algorithm})
	}
	if parsed.KeyID != "" && parsed.KeyID != p.keyID {
		return nil, core.NewError(core.KindCorruptRecord, "security: key id mismatch", metadata)
	}
	if parsed.Version > 0 && parsed.Version != p.version {
		return nil, core.NewError(core.KindCorruptRecord, "security: key version mismatch", metadata)
	}
	nonce, err := decodeSegment("nonce", parsed.Nonce)
	if err != nil {
		return nil, err
	}
	sealed, err := decodeSegment("ciphertext", parsed.Ciphertext)
	if err != nil {
		return nil, err
	}
	gcm, err := p.aead()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, core.NewError(core.KindCorruptRecord, "security: nonce has the wrong size", metadata)
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, core.WrapError(err, core.KindCorruptRecord, "security: decrypt payload", metadata)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.version
}

func (p *AppKeySecretProvider) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, core.WrapError(err, core.KindInternal, "security: create cipher", nil)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, core.WrapError(err, core.KindInternal, "security: create gcm", nil)
	}
	return gcm, nil
}

func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
