package rest

import (
	"context"
	"errors"
	"net/http"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-playground/validator/v10"
)

// valid answers 400 with the failed rules when v does not validate.
func (h *Handler) valid(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := h.validate.Struct(v); err != nil {
		h.respondErr(w, r, err)
		return false
	}
	return true
}

// respondErr maps err onto an HTTP answer.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errorResponse := make(map[string]string)
		for _, fieldErr := range validationErrors {
			errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
		}
		h.logger.WarnContext(ctx, "Validation errors occurred", "errors", errorResponse)
		web.RespondJSON(w, h.logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
		return
	}

	var backendErr *sferrors.BackendError
	switch {
	case errors.Is(err, sferrors.ErrValidation), errors.Is(err, sferrors.ErrUnknownStatus):
		h.logger.WarnContext(ctx, "Invalid request", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, sferrors.ErrUnauthenticated), errors.Is(err, sferrors.ErrAuthExpired):
		h.logger.WarnContext(ctx, "Session is no longer valid", "error", err)
		web.RespondError(w, h.logger, http.StatusUnauthorized, "Session expired, please sign in again")
	case errors.Is(err, sferrors.ErrForbidden):
		web.RespondError(w, h.logger, http.StatusForbidden, "Access denied")
	case errors.Is(err, sferrors.ErrEmptyCart), errors.Is(err, sferrors.ErrOrderInProgress):
		h.logger.WarnContext(ctx, "Checkout refused", "error", err)
		web.RespondError(w, h.logger, http.StatusConflict, err.Error())
	case errors.Is(err, sferrors.ErrPaymentDeclined):
		h.logger.WarnContext(ctx, "Payment declined", "error", err)
		web.RespondError(w, h.logger, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, sferrors.ErrOrderNotFound), errors.Is(err, sferrors.ErrItemNotFound):
		web.RespondError(w, h.logger, http.StatusNotFound, err.Error())
	case errors.As(err, &backendErr):
		h.logger.WarnContext(ctx, "Backend rejected the request", "status", backendErr.Status, "error", err)
		message := backendErr.Message
		if message == "" {
			message = http.StatusText(backendErr.Status)
		}
		web.RespondError(w, h.logger, backendErr.Status, message)
	case errors.Is(err, sferrors.ErrNetwork):
		h.logger.ErrorContext(ctx, "Backend unreachable", "error", err)
		web.RespondError(w, h.logger, http.StatusBadGateway, "Storefront backend is unreachable")
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.ErrorContext(ctx, "Request timed out", "error", err)
		web.RespondError(w, h.logger, http.StatusGatewayTimeout, "Request timed out")
	case errors.Is(err, context.Canceled):
		h.logger.DebugContext(ctx, "Request cancelled", "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Request cancelled")
	default:
		h.logger.ErrorContext(ctx, "Unexpected error", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Internal error")
	}
}
