package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/useraccounts/internal/models"
	pkghttp "github.com/BradenHooton/useraccounts/pkg/http"
)

// writeServiceError maps a service error kind onto an HTTP response
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, models.MessageOf(err, "Could not validate credentials"))
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, models.MessageOf(err, "Not enough permissions"))
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, models.MessageOf(err, "User not found"))
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, models.MessageOf(err, "Resource already exists"))
	case errors.Is(err, models.ErrInvalidOperation):
		pkghttp.WriteInvalidOperation(w, models.MessageOf(err, "Operation not allowed"))
	case errors.Is(err, models.ErrIncorrectPassword):
		pkghttp.WriteBadRequest(w, models.MessageOf(err, "Incorrect password"))
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, models.MessageOf(err, "Invalid request"))
	default:
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
	}
}
