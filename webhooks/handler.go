package webhooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/go-github/v66/github"
)

const (
	DefaultMaxPayloadBytes int64 = 5 << 20
	DefaultActionKey             = "webhook.action"
	senderTypeBot                = "Bot"
)

type Outcome string

const (
	OutcomeScheduled Outcome = "scheduled"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
)

var (
	ErrInvalidSignature = errors.New("webhooks: invalid payload signature")
	ErrInvalidPayload   = errors.New("webhooks: unreadable payload")
)

// Delivery is what the handler learned from one inbound request.
type Delivery struct {
	ID          string
	Event       string
	Action      string
	SenderLogin string
	SenderType  string
	Outcome     Outcome
	Reason      string
}

type HandlerConfig struct {
	Secret          []byte
	Debouncer       *Debouncer
	Action          Action
	ActionKey       string
	MaxPayloadBytes int64
	Logger          glog.Logger
	LoggerProvider  glog.LoggerProvider
}

type Handler struct {
	secret    []byte
	debouncer *Debouncer
	action    Action
	actionKey string
	maxBytes  int64
	logger    glog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	_, logger := glog.Resolve("ghapp.webhooks", cfg.LoggerProvider, cfg.Logger)
	debouncer := cfg.Debouncer
	if debouncer == nil {
		debouncer = NewDebouncer(DebounceOptions{Logger: logger})
	}
	actionKey := strings.TrimSpace(cfg.ActionKey)
	if actionKey == "" {
		actionKey = DefaultActionKey
	}
	maxBytes := cfg.MaxPayloadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	return &Handler{
		secret:    append([]byte(nil), cfg.Secret...),
		debouncer: debouncer,
		action:    cfg.Action,
		actionKey: actionKey,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

func (h *Handler) Debouncer() *Debouncer {
	if h == nil {
		return nil
	}
	return h.debouncer
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	delivery, err := h.Handle(r)
	status := http.StatusAccepted
	switch {
	case errors.Is(err, ErrInvalidSignature):
		status = http.StatusUnauthorized
	case err != nil:
		status = http.StatusBadRequest
	case delivery.Outcome == OutcomeIgnored:
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"status": string(delivery.Outcome)}
	if delivery.Reason != "" {
		body["reason"] = delivery.Reason
	}
	_ = json.NewEncoder(w).Encode(body)
}

// Handle verifies and classifies one delivery and schedules the configured
// action when the delivery qualifies.
func (h *Handler) Handle(r *http.Request) (Delivery, error) {
	delivery := Delivery{
		ID:    github.DeliveryID(r),
		Event: github.WebHookType(r),
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, h.maxBytes+1))
	if err != nil || int64(len(raw)) > h.maxBytes {
		return h.reject(delivery, ErrInvalidPayload, "payload could not be read")
	}

	if len(h.secret) > 0 {
		signature := r.Header.Get(github.SHA256SignatureHeader)
		if signature == "" {
			signature = r.Header.Get(github.SHA1SignatureHeader)
		}
		if err := github.ValidateSignature(signature, raw, h.secret); err != nil {
			return h.reject(delivery, ErrInvalidSignature, err.Error())
		}
	}

	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		contentType = "application/json"
	}
	payload, err := github.ValidatePayloadFromBody(contentType, bytes.NewReader(raw), "", nil)
	if err != nil {
		return h.reject(delivery, ErrInvalidPayload, err.Error())
	}

	sender, action, err := inspectPayload(delivery.Event, payload)
	if err != nil {
		return h.reject(delivery, ErrInvalidPayload, err.Error())
	}
	delivery.Action = action
	if sender != nil {
		delivery.SenderLogin = sender.GetLogin()
		delivery.SenderType = sender.GetType()
	}

	if delivery.SenderType == senderTypeBot {
		delivery.Outcome = OutcomeIgnored
		delivery.Reason = "bot sender"
		h.logger.Info("ignoring webhook event from bot sender", h.fields(delivery)...)
		return delivery, nil
	}
	if h.action == nil {
		delivery.Outcome = OutcomeIgnored
		delivery.Reason = "no action configured"
		h.logger.Warn("webhook received with no action configured", h.fields(delivery)...)
		return delivery, nil
	}
	if !h.debouncer.Trigger(h.actionKey, h.action) {
		delivery.Outcome = OutcomeIgnored
		delivery.Reason = "dispatcher closed"
		h.logger.Warn("webhook dispatcher closed", h.fields(delivery)...)
		return delivery, nil
	}

	delivery.Outcome = OutcomeScheduled
	h.logger.Info("webhook action scheduled", h.fields(delivery)...)
	return delivery, nil
}

func (h *Handler) reject(delivery Delivery, cause error, reason string) (Delivery, error) {
	delivery.Outcome = OutcomeRejected
	delivery.Reason = reason
	h.logger.Warn("webhook rejected", append(h.fields(delivery), "error", cause)...)
	return delivery, cause
}

func (h *Handler) fields(delivery Delivery) []any {
	return []any{
		"delivery_id", delivery.ID,
		"event", delivery.Event,
		"action", delivery.Action,
		"sender", delivery.SenderLogin,
		"sender_type", delivery.SenderType,
		"reason", delivery.Reason,
	}
}

type senderEvent interface {
	GetSender() *github.User
}

type actionEvent interface {
	GetAction() string
}

// webhookEnvelope covers event types go-github does not model.
type webhookEnvelope struct {
	Action string       `json:"action"`
	Sender *github.User `json:"sender"`
}

func inspectPayload(eventType string, payload []byte) (*github.User, string, error) {
	if github.EventForType(eventType) != nil {
		event, err := github.ParseWebHook(eventType, payload)
		if err != nil {
			return nil, "", err
		}
		var sender *github.User
		if typed, ok := event.(senderEvent); ok {
			sender = typed.GetSender()
		}
		var action string
		if typed, ok := event.(actionEvent); ok {
			action = typed.GetAction()
		}
		return sender, action, nil
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, "", err
	}
	return envelope.Sender, envelope.Action, nil
}
