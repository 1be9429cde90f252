package api

import (
	"errors"
	"net/http"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes based on
// the error type. This prevents leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrTerminalState),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrEmptyTaskID),
		errors.Is(err, domain.ErrEmptyTopologyName),
		errors.Is(err, domain.ErrInvalidTaskState),
		errors.Is(err, domain.ErrEmptyRecordID),
		errors.Is(err, domain.ErrNegativeSequence),
		errors.Is(err, domain.ErrInvalidRecordOutcome),
		errors.Is(err, domain.ErrEmptyDatasetID),
		errors.Is(err, domain.ErrEmptyLocalID):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the
// error. Internal details stay in the logs.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "an unexpected error occurred"
	case errors.Is(err, store.ErrTaskNotFound):
		return "task not found"
	case errors.Is(err, store.ErrRecordNotFound):
		return "record not found"
	case errors.Is(err, store.ErrHarvestedRecordNotFound):
		return "harvested record not found"
	case errors.Is(err, store.ErrNotFound):
		return "not found"
	case errors.Is(err, store.ErrTerminalState):
		return "task already finished"
	case errors.Is(err, store.ErrDuplicate):
		return "task already exists"
	case MapErrorToStatusCode(err) == http.StatusBadRequest:
		return "invalid request: " + err.Error()
	default:
		return "an unexpected error occurred"
	}
}
