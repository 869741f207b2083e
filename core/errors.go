package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorKeyUnavailable     = "GHAPP_KEY_UNAVAILABLE"
	ErrorSigningError       = "GHAPP_SIGNING_ERROR"
	ErrorUpstreamAuth       = "GHAPP_UPSTREAM_AUTH_ERROR"
	ErrorPersistence        = "GHAPP_PERSISTENCE_ERROR"
	ErrorCorruptRecord      = "GHAPP_CORRUPT_RECORD"
	ErrorInvalidRecord      = "GHAPP_INVALID_RECORD"
	ErrorRefreshIneffective = "GHAPP_REFRESH_INEFFECTIVE"
	ErrorAPICall            = "GHAPP_API_CALL_ERROR"
	ErrorNotInstalled       = "GHAPP_NOT_INSTALLED"
	ErrorBadInput           = "GHAPP_BAD_INPUT"
	ErrorInternal           = "GHAPP_INTERNAL_ERROR"
)

// ErrorKind ties a taxonomy entry to its go-errors category and HTTP status.
type ErrorKind struct {
	TextCode string
	Category goerrors.Category
	Code     int
}

var (
	KindKeyUnavailable     = ErrorKind{ErrorKeyUnavailable, goerrors.CategoryInternal, http.StatusInternalServerError}
	KindSigningError       = ErrorKind{ErrorSigningError, goerrors.CategoryInternal, http.StatusInternalServerError}
	KindUpstreamAuth       = ErrorKind{ErrorUpstreamAuth, goerrors.CategoryAuth, http.StatusBadGateway}
	KindPersistenceError   = ErrorKind{ErrorPersistence, goerrors.CategoryInternal, http.StatusInternalServerError}
	KindCorruptRecord      = ErrorKind{ErrorCorruptRecord, goerrors.CategoryValidation, http.StatusInternalServerError}
	KindInvalidRecord      = ErrorKind{ErrorInvalidRecord, goerrors.CategoryBadInput, http.StatusBadRequest}
	KindRefreshIneffective = ErrorKind{ErrorRefreshIneffective, goerrors.CategoryInternal, http.StatusInternalServerError}
	KindAPICall            = ErrorKind{ErrorAPICall, goerrors.CategoryExternal, http.StatusBadGateway}
	KindNotInstalled       = ErrorKind{ErrorNotInstalled, goerrors.CategoryNotFound, http.StatusConflict}
	KindBadInput           = ErrorKind{ErrorBadInput, goerrors.CategoryBadInput, http.StatusBadRequest}
	KindInternal           = ErrorKind{ErrorInternal, goerrors.CategoryInternal, http.StatusInternalServerError}
)

func NewError(kind ErrorKind, message string, metadata map[string]any) error {
	err := goerrors.New(message, kind.Category).
		WithCode(kind.Code).
		WithTextCode(kind.TextCode)
	if kind.TextCode == ErrorRefreshIneffective {
		err = err.WithSeverity(goerrors.SeverityCritical)
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func WrapError(source error, kind ErrorKind, message string, metadata map[string]any) error {
	if source == nil {
		return NewError(kind, message, metadata)
	}
	err := goerrors.Wrap(source, kind.Category, message).
		WithCode(kind.Code).
		WithTextCode(kind.TextCode)
	if kind.TextCode == ErrorRefreshIneffective {
		err = err.WithSeverity(goerrors.SeverityCritical)
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// WrapContext adds context to err while keeping the taxonomy entry of the
// closest classified cause. Unclassified causes become internal errors.
func WrapContext(source error, message string, metadata map[string]any) error {
	if source == nil {
		return nil
	}
	kind, ok := KindOf(source)
	if !ok {
		kind = KindInternal
	}
	return WrapError(source, kind, message, metadata)
}

// KindOf returns the taxonomy entry of the outermost classified error.
func KindOf(err error) (ErrorKind, bool) {
	for current := err; current != nil; {
		var rich *goerrors.Error
		if !goerrors.As(current, &rich) || rich == nil {
			return ErrorKind{}, false
		}
		if kind, ok := kindsByTextCode[strings.TrimSpace(rich.TextCode)]; ok {
			return kind, true
		}
		current = errors.Unwrap(rich)
	}
	return ErrorKind{}, false
}

// IsKind reports whether any error in the chain carries kind's text code.
func IsKind(err error, kind ErrorKind) bool {
	for current := err; current != nil; {
		var rich *goerrors.Error
		if !goerrors.As(current, &rich) || rich == nil {
			return false
		}
		if rich.TextCode == kind.TextCode {
			return true
		}
		current = errors.Unwrap(rich)
	}
	return false
}

// HTTPStatus resolves the status to surface for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil && rich.Code > 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

var kindsByTextCode = map[string]ErrorKind{
	ErrorKeyUnavailable:     KindKeyUnavailable,
	ErrorSigningError:       KindSigningError,
	ErrorUpstreamAuth:       KindUpstreamAuth,
	ErrorPersistence:        KindPersistenceError,
	ErrorCorruptRecord:      KindCorruptRecord,
	ErrorInvalidRecord:      KindInvalidRecord,
	ErrorRefreshIneffective: KindRefreshIneffective,
	ErrorAPICall:            KindAPICall,
	ErrorNotInstalled:       KindNotInstalled,
	ErrorBadInput:           KindBadInput,
	ErrorInternal:           KindInternal,
}
