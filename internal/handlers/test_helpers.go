package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/useraccounts/internal/auth"
	"github.com/BradenHooton/useraccounts/internal/models"
	pkghttp "github.com/BradenHooton/useraccounts/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext places the authenticated user on the request context
func WithAuthContext(req *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserContextKey, user)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL params to the request
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthService for testing
type MockAuthService struct {
	LoginFunc func(ctx context.Context, email, password string) (*models.TokenResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*models.TokenResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	RegisterFunc       func(ctx context.Context, in models.UserCreate) (*models.User, error)
	ListUsersFunc      func(ctx context.Context) ([]*models.User, error)
	GetUserFunc        func(ctx context.Context, actor *models.User, id string) (*models.User, error)
	UpdateUserFunc     func(ctx context.Context, actor *models.User, id string, upd models.UserUpdate) (*models.User, error)
	DeactivateUserFunc func(ctx context.Context, actor *models.User, id string) (*models.User, error)
	ChangePasswordFunc func(ctx context.Context, actor *models.User, id, currentPassword, newPassword string) (*models.User, error)
}

func (m *MockUserService) Register(ctx context.Context, in models.UserCreate) (*models.User, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.RegisterFunc(ctx, in)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx)
}

func (m *MockUserService) GetUser(ctx context.Context, actor *models.User, id string) (*models.User, error) {
	if m.GetUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserFunc(ctx, actor, id)
}

func (m *MockUserService) UpdateUser(ctx context.Context, actor *models.User, id string, upd models.UserUpdate) (*models.User, error) {
	if m.UpdateUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateUserFunc(ctx, actor, id, upd)
}

func (m *MockUserService) DeactivateUser(ctx context.Context, actor *models.User, id string) (*models.User, error) {
	if m.DeactivateUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.DeactivateUserFunc(ctx, actor, id)
}

func (m *MockUserService) ChangePassword(ctx context.Context, actor *models.User, id, currentPassword, newPassword string) (*models.User, error) {
	if m.ChangePasswordFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ChangePasswordFunc(ctx, actor, id, currentPassword, newPassword)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
