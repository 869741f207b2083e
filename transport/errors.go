package transport

import (
	"github.com/goliatone/go-ghapp/core"
)

func transportError(kind core.ErrorKind, message string, metadata map[string]any) error {
	return core.NewError(kind, message, metadata)
}

func transportWrapError(source error, kind core.ErrorKind, message string, metadata map[string]any) error {
	if source == nil {
		return transportError(kind, message, metadata)
	}
	if _, classified := core.KindOf(source); classified {
		return core.WrapContext(source, message, metadata)
	}
	return core.WrapError(source, kind, message, metadata)
}
