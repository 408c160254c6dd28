package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// mapDomainError maps core errors to HTTP status codes:
// validation/state/command errors to 400, authorisation failures to 403,
// not-found to 404, storage faults (and anything unrecognised) to 500.
func mapDomainError(err error) (int, string) {
	var validationErr *eventsourcing.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Error()
	}
	var invalidCmdErr *eventsourcing.InvalidCommandError
	if errors.As(err, &invalidCmdErr) {
		return http.StatusBadRequest, invalidCmdErr.Error()
	}
	var transitionErr *eventsourcing.InvalidStateTransitionError
	if errors.As(err, &transitionErr) {
		return http.StatusBadRequest, transitionErr.Error()
	}
	if eventsourcing.IsAlreadyExists(err) {
		return http.StatusBadRequest, err.Error()
	}
	if eventsourcing.IsNotFound(err) {
		return http.StatusNotFound, "resource not found"
	}
	if errors.Is(err, eventsourcing.ErrAuthorisation) {
		return http.StatusForbidden, "not authorised"
	}

	// Unexpected error: storage fault, decode failure, or a bug.
	slog.Error("unexpected core error", "error", err)
	return http.StatusInternalServerError, "internal server error"
}

// abortWithError writes the mapped error response and stops the handler
// chain.
func abortWithError(c *gin.Context, err error) {
	status, msg := mapDomainError(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}
