package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation, model.KindConflict, model.KindSignature:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a model.ErrorResponse. Domain errors keep their code and reason;
// anything else is logged and reported as a generic internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	correlationID := middleware.RequestIDFrom(r)

	de, ok := model.AsDomainError(err)
	if !ok {
		de = model.ErrInternal
	}
	status := statusFor(de.Kind)
	message := de.Message

	if status >= http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("code", de.Code).
			Str("path", r.URL.Path).
			Str("request_id", correlationID).
			Int("status", status).
			Msg("handler error")
		if de.Kind == model.KindInternal {
			message = model.ErrInternal.Message
		}
	} else {
		logger.Debug().
			Str("code", de.Code).
			Str("error", de.Message).
			Str("request_id", correlationID).
			Int("status", status).
			Msg("request rejected")
	}

	writeJSON(w, status, model.ErrorResponse{Error: de.Code, Message: message, CorrelationID: correlationID})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return decode(w, r, v, false)
}

// decodeOptionalJSON is decodeJSON that accepts an empty body and leaves v untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return decode(w, r, v, true)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return model.NewDomainError(model.KindValidation, model.ErrCodeInvalidJSON, "Request body is required")
		}
		return model.NewDomainError(model.KindValidation, model.ErrCodeInvalidJSON, "Invalid JSON body")
	}
	return nil
}

// uuidParam parses the {name} path parameter.
func uuidParam(r *http.Request, name string, notFound *model.DomainError) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return uuid.Nil, model.ErrInvalidRequest.WithMessage(name + " is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		// A malformed id can never match a row.
		return uuid.Nil, notFound
	}
	return id, nil
}
