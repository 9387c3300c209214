//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/useraccounts/internal/auth"
	"github.com/BradenHooton/useraccounts/internal/database"
	"github.com/BradenHooton/useraccounts/internal/models"
	"github.com/BradenHooton/useraccounts/internal/repositories"
	"github.com/BradenHooton/useraccounts/internal/services"
	pkgauth "github.com/BradenHooton/useraccounts/pkg/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	pkgauth.BcryptCost = bcrypt.MinCost
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("useraccounts"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() { _ = container.Terminate(ctx) }()

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
			return 1
		}

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if err := database.Migrate(ctx, connStr, "up", logger); err != nil {
			fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
			return 1
		}

		testPool, err = pgxpool.New(ctx, connStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
			return 1
		}
		defer testPool.Close()

		return m.Run()
	}()

	os.Exit(code)
}

// truncate empties the given tables for test isolation
func truncate(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		_, err := testPool.Exec(context.Background(), "TRUNCATE TABLE "+pq.QuoteIdentifier(table)+" CASCADE")
		require.NoError(t, err)
	}
}

func newDB() *database.DB {
	return database.New(testPool, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newService(inv services.SessionInvalidator) *services.UserService {
	db := newDB()
	repoFor := func(tx database.DBTX) services.UserRepository { return repositories.NewUserRepository(tx) }
	return services.NewUserService(db, db.Pool, repoFor, inv, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestUserRepository_CreateAndFetch(t *testing.T) {
	truncate(t, "session_invalidations", "users")
	ctx := context.Background()
	repo := repositories.NewUserRepository(testPool)

	created, err := repo.Create(ctx, &models.User{
		Email: "alice@example.com", FullName: "Alice", HashedPassword: "hash", IsActive: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = repo.Create(ctx, &models.User{Email: "alice@example.com", HashedPassword: "hash"})
	assert.ErrorIs(t, err, models.ErrConflict)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestSessionInvalidationRepository_Lifecycle(t *testing.T) {
	truncate(t, "session_invalidations", "users")
	ctx := context.Background()
	user, err := repositories.NewUserRepository(testPool).Create(ctx, &models.User{Email: "bob@example.com", HashedPassword: "hash", IsActive: true})
	require.NoError(t, err)

	repo := repositories.NewSessionInvalidationRepository(testPool)

	_, ok, err := repo.GetCutoff(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now()
	require.NoError(t, repo.Upsert(ctx, user.ID, now, now.Add(time.Hour)))
	cutoff, ok, err := repo.GetCutoff(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.WithinDuration(t, now, cutoff, time.Millisecond)

	require.NoError(t, repo.Upsert(ctx, user.ID, now, now.Add(-time.Minute)))
	_, ok, err = repo.GetCutoff(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, ok, "expired rows are ignored")

	deleted, err := repo.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestUserService_ConcurrentLastSuperuserDemotion(t *testing.T) {
	truncate(t, "session_invalidations", "users")
	ctx := context.Background()
	svc := newService(auth.NewMemoryInvalidator())

	first, _, err := svc.EnsureSuperuser(ctx, "root1@example.com", "root-password-1", "Root One")
	require.NoError(t, err)
	second, _, err := svc.EnsureSuperuser(ctx, "root2@example.com", "root-password-2", "Root Two")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]*models.User{{first, second}, {second, first}} {
		wg.Add(1)
		go func(i int, actor, target *models.User) {
			defer wg.Done()
			_, errs[i] = svc.DeactivateUser(ctx, actor, target.ID)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, models.ErrInvalidOperation)
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one deactivation must be refused")

	count, err := repositories.NewUserRepository(testPool).CountActiveSuperusers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUserService_PasswordChangeInvalidatesInsideTransaction(t *testing.T) {
	truncate(t, "session_invalidations", "users")
	ctx := context.Background()

	store := repositories.NewSessionInvalidationRepository(testPool)
	inv := auth.NewStoreInvalidator(store, time.Hour).
		WithTxStore(func(tx database.DBTX) auth.InvalidationStore {
			return repositories.NewSessionInvalidationRepository(tx)
		})
	svc := newService(inv)

	user, err := svc.Register(ctx, models.UserCreate{Email: "carol@example.com", Password: "correct-horse", IsActive: true})
	require.NoError(t, err)
	issuedAt := time.Now().Add(-time.Minute)

	_, err = svc.UpdateUser(ctx, user, user.ID, models.UserUpdate{
		Email:    strPtr("carol.new@example.com"),
		Password: strPtr("battery-staple"),
	})
	require.NoError(t, err)

	valid, err := inv.IsValid(ctx, user.ID, issuedAt)
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = svc.ChangePassword(ctx, user, user.ID, "wrong-horse", "another-password")
	assert.ErrorIs(t, err, models.ErrIncorrectPassword)
}

func strPtr(s string) *string { return &s }
