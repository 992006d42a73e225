package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ParamValidator is a function type that validates a parameter.
type ParamValidator func(valueToTest int64) bool

func newComparisonValidator(valueInClosure int64, compareFn func(argValue, closedValue int64) bool) ParamValidator {
	return func(argValue int64) bool {
		return compareFn(argValue, valueInClosure)
	}
}

// gt returns a ParamValidator that checks if the argument is greater than the value captured in the closure.
func gt(valToCompareAgainst int64) ParamValidator {
	return newComparisonValidator(valToCompareAgainst, func(argValue, closedValue int64) bool {
		return argValue > closedValue
	})
}

// ParseID extracts a positive numeric identifier from the chi path parameter key.
func ParseID(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string) (int64, bool) {
	return parseValidate(w, logger, key, chi.URLParam(r, key), gt(0))
}

func parseValidate(w http.ResponseWriter, logger *slog.Logger, key, value string, pValidator ParamValidator) (int64, bool) {
	if value == "" {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("%s parameter is required", key))
		return 0, false
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil || !pValidator(intValue) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s", key, value))
		return 0, false
	}
	return intValue, true
}
