package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/grocer/internal/pkg/ctxlog"
)

// ErrorMapping maps a sentinel error to a status code. An empty Message
// means err.Error() is sent to the client.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError writes the response for err. Malformed bodies are 400 and
// expired request deadlines 504; anything unmapped is logged and becomes 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	switch {
	case errors.Is(err, ErrInvalidJSON):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		ctxlog.FromContext(ctx).Warn("request deadline exceeded", "error", err)
		Error(w, http.StatusGatewayTimeout, "request timed out")
		return
	}

	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		Error(w, m.Status, msg)
		return
	}

	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
