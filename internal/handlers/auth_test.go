package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/BradenHooton/useraccounts/internal/handlers"
	"github.com/BradenHooton/useraccounts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginOK(t *testing.T, wantEmail string) *handlers.MockAuthService {
	return &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*models.TokenResponse, error) {
			assert.Equal(t, wantEmail, email)
			assert.Equal(t, "correct-horse", password)
			return &models.TokenResponse{AccessToken: "signed.jwt.token", TokenType: models.TokenTypeBearer}, nil
		},
	}
}

func TestLogin_JSON(t *testing.T) {
	h := handlers.NewAuthHandler(loginOK(t, "alice@example.com"))
	req := handlers.NewTestRequest(t, http.MethodPost, "/users/login", map[string]any{
		"email": "alice@example.com", "password": "correct-horse",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	var resp map[string]any
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "signed.jwt.token", resp["access_token"])
	assert.Equal(t, "bearer", resp["token_type"])
	assert.Len(t, resp, 2)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestLogin_JSONUsernameAlias(t *testing.T) {
	h := handlers.NewAuthHandler(loginOK(t, "alice@example.com"))
	req := handlers.NewTestRequest(t, http.MethodPost, "/users/login", map[string]any{
		"username": "alice@example.com", "password": "correct-horse",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_Form(t *testing.T) {
	h := handlers.NewAuthHandler(loginOK(t, "alice@example.com"))
	form := url.Values{"username": {"alice@example.com"}, "password": {"correct-horse"}}
	req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Login(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "signed.jwt.token", resp.AccessToken)
}

func TestLogin_MultipartForm(t *testing.T) {
	h := handlers.NewAuthHandler(loginOK(t, "alice@example.com"))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("username", "alice@example.com"))
	require.NoError(t, mw.WriteField("password", "correct-horse"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/login", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.Login(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "signed.jwt.token", resp.AccessToken)
}

func TestLogin_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"no password", map[string]any{"email": "alice@example.com"}},
		{"no identifier", map[string]any{"password": "correct-horse"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewAuthHandler(&handlers.MockAuthService{})
			w := httptest.NewRecorder()
			h.Login(w, handlers.NewTestRequest(t, http.MethodPost, "/users/login", tt.body))
			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		})
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*models.TokenResponse, error) {
			return nil, models.NewError(models.ErrUnauthorized, "Incorrect email or password")
		},
	}
	h := handlers.NewAuthHandler(svc)
	w := httptest.NewRecorder()
	h.Login(w, handlers.NewTestRequest(t, http.MethodPost, "/users/login", map[string]any{
		"email": "alice@example.com", "password": "wrong-horse",
	}))

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	assert.Contains(t, w.Body.String(), "Incorrect email or password")
}
