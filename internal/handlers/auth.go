package handlers

import (
	"context"
	"mime"
	"net/http"

	"github.com/BradenHooton/useraccounts/internal/models"
	pkghttp "github.com/BradenHooton/useraccounts/pkg/http"
)

// AuthService defines the interface for credential exchange
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.TokenResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// LoginRequest represents the JSON login body. Username is accepted as an
// alias for email to match the OAuth2 password form.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

func (req LoginRequest) identifier() string {
	if req.Email != "" {
		return req.Email
	}
	return req.Username
}

// Login accepts either a JSON body or an OAuth2 password form
// (urlencoded or multipart, with username and password)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			pkghttp.WriteBadRequest(w, "invalid form body")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	default:
		if err := decodeJSON(w, r, &req); err != nil {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if req.identifier() == "" {
		pkghttp.WriteBadRequest(w, "validation failed: email: this field is required")
		return
	}

	resp, err := h.service.Login(r.Context(), req.identifier(), req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
