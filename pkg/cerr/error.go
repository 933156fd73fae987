package cerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/taskstream/taskstream/pkg/clog"
)

type Error struct {
	Code  Code
	Msg   string // message returned to the caller together with Code
	Err   error  // underlying error, kept for logging only
	Stack string
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if code.serverFault() {
		stackTrace := make([]byte, 2048)
		n := runtime.Stack(stackTrace, false)
		err.Stack = string(stackTrace[0:n])
	}
	return err
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

type httpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSONError renders err as a JSON error response, normalizing
// cancellation and unclassified errors first. The underlying error is
// attached to the request log, never to the response body.
func WriteJSONError(ctx context.Context, rw http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		writeJSONError(ctx, rw, NewError(Canceled, "connection closed", err))
		return
	}

	clog.AddError(ctx, err)
	var cErr *Error
	if errors.As(err, &cErr) {
		if cErr.Stack != "" {
			clog.AddStack(ctx, cErr.Stack)
		}
		writeJSONError(ctx, rw, cErr)
		return
	}
	writeJSONError(ctx, rw, NewError(Unknown, "unknown error", err))
}

func writeJSONError(ctx context.Context, rw http.ResponseWriter, err *Error) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(err.Code.HTTPStatus())
	body := httpError{Code: err.Code.String(), Message: err.Msg}
	if encErr := json.NewEncoder(rw).Encode(body); encErr != nil {
		slog.WarnContext(ctx, "failed to write error response", "error", encErr)
	}
}
