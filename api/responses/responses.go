package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	zlog "github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/types"
)

// RequestIDHeader carries the correlation id on requests and responses.
const RequestIDHeader = "X-Request-Id"

// RetryAfterDetail is the error detail key that becomes a Retry-After header.
const RetryAfterDetail = "retry_after_seconds"

// Codes whose own message is safe to show callers.
var publicMessageCodes = map[pkgerrors.Code]struct{}{
	pkgerrors.CodeValidation:    {},
	pkgerrors.CodeForbidden:     {},
	pkgerrors.CodeUnauthorized:  {},
	pkgerrors.CodeNotFound:      {},
	pkgerrors.CodeConflict:      {},
	pkgerrors.CodeStateConflict: {},
	pkgerrors.CodeIdempotency:   {},
	pkgerrors.CodeRateLimit:     {},
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as the public error envelope. Client faults log at
// warn; everything at or above 500 logs at error with the pg diagnostics.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if _, ok := publicMessageCodes[typed.Code()]; ok && typed.Message() != "" {
		msg = typed.Message()
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:      string(typed.Code()),
			Message:   msg,
			RequestID: w.Header().Get(RequestIDHeader),
		},
	}
	details, _ := typed.Details().(map[string]any)
	if meta.DetailsAllowed && typed.Details() != nil {
		payload.Error.Details = typed.Details()
	}
	if seconds, ok := details[RetryAfterDetail].(int); ok && seconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	if logg != nil {
		logError(ctx, logg, err, details, meta.HTTPStatus)
	}
	writeJSON(w, meta.HTTPStatus, payload)
}

func logError(ctx context.Context, logg *logger.Logger, err error, details map[string]any, status int) {
	dump := pkgerrors.Dump(err)
	if status < http.StatusInternalServerError {
		fields := map[string]any{
			"error":       dump.TopMessage,
			"error_code":  dump.Code,
			"http_status": status,
		}
		if step, ok := details["step"]; ok {
			fields["step"] = step
		}
		logg.Warn(logg.WithFields(ctx, fields), "request.rejected")
		return
	}

	fields := dump.LogFields()
	fields["http_status"] = status
	if step, ok := details["step"]; ok {
		fields["step"] = step
	}
	logg.Error(logg.WithFields(ctx, fields), "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zlog.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}
