package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/useraccounts/internal/database"
	"github.com/BradenHooton/useraccounts/internal/models"
	pkgauth "github.com/BradenHooton/useraccounts/pkg/auth"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockUserRepository delegates every call to an optional func field.
// Unset fields fall through to Store when one is configured.
type MockUserRepository struct {
	Store *MemoryUserRepository

	GetByIDFunc               func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc            func(ctx context.Context, email string) (*models.User, error)
	ListFunc                  func(ctx context.Context) ([]*models.User, error)
	CreateFunc                func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc                func(ctx context.Context, user *models.User) (*models.User, error)
	CountActiveSuperusersFunc func(ctx context.Context) (int, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	if m.Store != nil {
		return m.Store.GetByID(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	if m.Store != nil {
		return m.Store.GetByEmail(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	if m.Store != nil {
		return m.Store.List(ctx)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	if m.Store != nil {
		return m.Store.Create(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	if m.Store != nil {
		return m.Store.Update(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) CountActiveSuperusers(ctx context.Context) (int, error) {
	if m.CountActiveSuperusersFunc != nil {
		return m.CountActiveSuperusersFunc(ctx)
	}
	if m.Store != nil {
		return m.Store.CountActiveSuperusers(ctx)
	}
	return 0, nil
}

// MemoryUserRepository is an in-memory UserRepository with the same
// uniqueness and not-found behaviour as the Postgres one.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryUserRepository(users ...*models.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]*models.User)}
	for _, u := range users {
		cp := *u
		r.users[u.ID] = &cp
	}
	return r
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryUserRepository) List(_ context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, models.ErrConflict
		}
	}
	cp := *user
	cp.ID = uuid.New().String()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return nil, models.ErrNotFound
	}
	for _, u := range r.users {
		if u.ID != user.ID && u.Email == user.Email {
			return nil, models.ErrConflict
		}
	}
	cp := *user
	cp.UpdatedAt = time.Now()
	r.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *MemoryUserRepository) CountActiveSuperusers(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.users {
		if u.IsActive && u.IsSuperuser {
			n++
		}
	}
	return n, nil
}

// MockTransactor runs fn without a real transaction. A single mutex
// serializes transactions the way the superuser row lock does in Postgres.
type MockTransactor struct {
	mu    sync.Mutex
	Calls int
}

func (m *MockTransactor) WithTransaction(_ context.Context, fn func(tx database.DBTX) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return fn(nil)
}

// MockInvalidator records invalidated user IDs
type MockInvalidator struct {
	mu             sync.Mutex
	InvalidateFunc func(ctx context.Context, userID string) error
	Invalidated    []string
}

func (m *MockInvalidator) Invalidate(ctx context.Context, userID string) error {
	if m.InvalidateFunc != nil {
		if err := m.InvalidateFunc(ctx, userID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidated = append(m.Invalidated, userID)
	return nil
}

// newTestUserService wires a UserService whose repositories all resolve to repo
func newTestUserService(repo UserRepository, inv SessionInvalidator) (*UserService, *MockTransactor) {
	tx := &MockTransactor{}
	factory := func(database.DBTX) UserRepository { return repo }
	return NewUserService(tx, nil, factory, inv, discardLogger()), tx
}

// NewTestUser builds an active regular user
func NewTestUser(id, email, fullName string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Email:     email,
		FullName:  fullName,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUserWithPassword builds a user whose password hashes to password
func NewTestUserWithPassword(id, email, fullName, password string) *models.User {
	user := NewTestUser(id, email, fullName)
	hashed, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	user.HashedPassword = hashed
	return user
}

// NewTestSuperuser builds an active superuser
func NewTestSuperuser(id, email string) *models.User {
	user := NewTestUser(id, email, "Admin")
	user.IsSuperuser = true
	return user
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
