package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/samcharles93/dtk/pkg/dtk"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string { return e.msg }
func (e invalidRequestError) Unwrap() error { return ErrInvalidRequest }

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// ErrorBody is the "error" member of every failed response.
type ErrorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Condition string `json:"condition,omitempty"`
	Chunk     *int   `json:"chunk,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

var kindTypes = map[error]string{
	dtk.ErrStructural: "structural_error",
	dtk.ErrHeader:     "header_error",
	dtk.ErrCodec:      "codec_error",
	dtk.ErrContent:    "content_error",
	dtk.ErrIO:         "io_error",
	dtk.ErrCapacity:   "capacity_error",
}

// classify maps an error to an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, dtk.ErrIndexOutOfRange):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, dtk.ErrSourceNotFound):
		return http.StatusNotFound, "not_found_error"
	}

	kind := dtk.KindOf(err)
	switch kind {
	case nil:
		return http.StatusInternalServerError, "server_error"
	case dtk.ErrIO:
		return http.StatusNotFound, kindTypes[kind]
	default:
		return http.StatusUnprocessableEntity, kindTypes[kind]
	}
}

func (s *Server) writeFailure(c *echo.Context, err error) error {
	status, typ := classify(err)
	body := ErrorBody{
		Message:   err.Error(),
		Type:      typ,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
	var de *dtk.Error
	if errors.As(err, &de) {
		body.Condition = de.Cond.Error()
		if de.HasChunk {
			chunk := de.Chunk
			body.Chunk = &chunk
		}
	}
	s.log.Warn("request failed",
		"path", c.Request().URL.Path,
		"status", status,
		"request_id", body.RequestID,
		"error", err,
	)
	return c.JSON(status, map[string]any{"error": body})
}
