package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var (
	errBadRequest      = apperror.New(apperror.ErrInvalidArgument, "bad request")
	errMissingPosition = fmt.Errorf("%w: position is required", errBadRequest)
)

// readJSON decodes exactly one JSON object. Malformed bodies are reported as invalid arguments.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("%w: body contains badly-formed JSON (at character %d)", errBadRequest, syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: body contains badly-formed JSON", errBadRequest)
		case errors.As(err, &unmarshalTypeError):
			return fmt.Errorf("%w: body contains incorrect JSON type for field %q", errBadRequest, unmarshalTypeError.Field)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: body must not be empty", errBadRequest)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("%w: body contains unknown key %s", errBadRequest, strings.TrimPrefix(err.Error(), "json: unknown field "))
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("%w: body must not be larger than %d bytes", errBadRequest, maxBodyBytes)
		default:
			return fmt.Errorf("%w: %w", errBadRequest, err)
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must only contain a single JSON value", errBadRequest)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	js, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err = w.Write(append(js, '\n')); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}

	return nil
}

// StatusOf maps an error onto the HTTP status of its kind.
func StatusOf(err error) int {
	switch apperror.KindOf(err) {
	case apperror.ErrNotFound:
		return http.StatusNotFound
	case apperror.ErrUnauthenticated:
		return http.StatusUnauthorized
	case apperror.ErrForbidden:
		return http.StatusForbidden
	case apperror.ErrInvalidState, apperror.ErrConflict:
		return http.StatusConflict
	case apperror.ErrInvalidArgument:
		return http.StatusBadRequest
	case apperror.ErrUnavailable:
		return http.StatusServiceUnavailable
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// MessageOf is the client facing message of an error, including request decoding details.
func MessageOf(err error) string {
	if apperror.KindOf(err) == apperror.ErrInvalidArgument && errors.Is(err, errBadRequest) {
		_, detail, found := strings.Cut(err.Error(), errBadRequest.Error()+": ")
		if found {
			return detail
		}
	}

	return apperror.Message(err)
}

func errorResponse(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	if err = writeJSON(w, status, errorBody{Error: MessageOf(err), Code: apperror.Code(err)}); err != nil {
		logger.Error("failed to write error response", "error", err)
	}
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}

	return value, nil
}
