package admin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ms-storefront/internal/admin"
	admindb "ms-storefront/internal/admin/db"
	"ms-storefront/internal/database/dbtest"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

const (
	defaultUsername = "admin"
	defaultPassword = "Moinulislam#@"
)

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, recovery bool) (*admin.Service, *admindb.DB) {
	t.Helper()
	store := &admindb.DB{Bun: dbtest.New(t)}
	svc := admin.NewService(store, admin.BcryptHasher{Cost: bcrypt.MinCost}, nil, logger.Nop(), admin.Options{
		DefaultUsername:      defaultUsername,
		DefaultPassword:      defaultPassword,
		DefaultEmail:         "admin@blockwar.com",
		SessionTTL:           24 * time.Hour,
		AllowDefaultRecovery: recovery,
	})
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, store
}

func countRows(t *testing.T, store *admindb.DB, model interface{}) int {
	t.Helper()
	n, err := store.Bun.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestLogin_BootstrapsDefaultAdminOnEmptyStore(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()

	result, err := svc.Login(ctx, defaultUsername, defaultPassword)
	require.NoError(t, err)

	assert.Equal(t, defaultUsername, result.User.Username)
	assert.Equal(t, models.RoleSuperAdmin, result.User.Role)
	assert.NotEmpty(t, result.User.ID)
	assert.Len(t, result.Token, 43)
	assert.True(t, result.ExpiresAt.Equal(fixedNow.Add(24*time.Hour)))

	// a second login reuses the same account
	_, err = svc.Login(ctx, defaultUsername, defaultPassword)
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, store, (*models.AdminAccount)(nil)))
	assert.Equal(t, 2, countRows(t, store, (*models.AdminSession)(nil)))

	account, err := store.FindActiveAdmin(ctx, defaultUsername)
	require.NoError(t, err)
	require.NotNil(t, account.LastLogin)
	assert.True(t, account.LastLogin.Equal(fixedNow))
}

func TestLogin_WrongPasswordCreatesNoSession(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()

	_, err := svc.EnsureDefaultAdmin(ctx)
	require.NoError(t, err)

	result, err := svc.Login(ctx, defaultUsername, "wrong")
	assert.ErrorIs(t, err, admin.ErrInvalidCredentials)
	assert.Nil(t, result)
	assert.Equal(t, 0, countRows(t, store, (*models.AdminSession)(nil)))
}

func TestLogin_UnknownUsernameIsNotBootstrapped(t *testing.T) {
	svc, store := newTestService(t, false)

	_, err := svc.Login(context.Background(), "mallory", defaultPassword)
	assert.ErrorIs(t, err, admin.ErrInvalidCredentials)
	assert.Equal(t, 0, countRows(t, store, (*models.AdminAccount)(nil)))
}

func TestLogin_MissingCredentials(t *testing.T) {
	svc, _ := newTestService(t, false)

	for _, tc := range []struct{ username, password string }{
		{"", "secret"},
		{"admin", ""},
		{"   ", "secret"},
	} {
		_, err := svc.Login(context.Background(), tc.username, tc.password)
		assert.ErrorIs(t, err, admin.ErrMissingCredentials)
	}
}

func TestLogin_InactiveAccountRejected(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()

	hash, err := admin.BcryptHasher{Cost: bcrypt.MinCost}.Hash("pa55word")
	require.NoError(t, err)
	_, err = store.CreateAdminIfAbsent(ctx, models.AdminAccount{
		ID: "staff-1", Username: "staff", PasswordHash: hash,
		Role: models.RoleAdmin, IsActive: false, CreatedAt: fixedNow,
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "staff", "pa55word")
	assert.ErrorIs(t, err, admin.ErrInvalidCredentials)
}

func TestLogin_DeactivatedDefaultAdminStaysDisabled(t *testing.T) {
	svc, store := newTestService(t, true)
	ctx := context.Background()

	account, err := svc.EnsureDefaultAdmin(ctx)
	require.NoError(t, err)
	_, err = store.Bun.NewUpdate().
		Model((*models.AdminAccount)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", account.ID).
		Exec(ctx)
	require.NoError(t, err)

	result, err := svc.Login(ctx, defaultUsername, defaultPassword)
	assert.ErrorIs(t, err, admin.ErrInvalidCredentials)
	assert.Nil(t, result)
	assert.Equal(t, 0, countRows(t, store, (*models.AdminSession)(nil)))
	assert.Equal(t, 1, countRows(t, store, (*models.AdminAccount)(nil)))

	_, err = svc.EnsureDefaultAdmin(ctx)
	assert.ErrorIs(t, err, admin.ErrAccountDisabled)

	var stored models.AdminAccount
	require.NoError(t, store.Bun.NewSelect().Model(&stored).Where("id = ?", account.ID).Scan(ctx))
	assert.False(t, stored.IsActive)
	assert.Equal(t, account.PasswordHash, stored.PasswordHash)
}

func TestLogin_DefaultCredentialRecovery(t *testing.T) {
	ctx := context.Background()

	corrupt := func(t *testing.T, store *admindb.DB) {
		hash, err := admin.BcryptHasher{Cost: bcrypt.MinCost}.Hash("something-else")
		require.NoError(t, err)
		require.NoError(t, store.UpdatePasswordHash(ctx, defaultUsername, hash))
	}

	t.Run("disabled", func(t *testing.T) {
		svc, store := newTestService(t, false)
		_, err := svc.EnsureDefaultAdmin(ctx)
		require.NoError(t, err)
		corrupt(t, store)

		_, err = svc.Login(ctx, defaultUsername, defaultPassword)
		assert.ErrorIs(t, err, admin.ErrInvalidCredentials)
	})

	t.Run("enabled", func(t *testing.T) {
		svc, store := newTestService(t, true)
		_, err := svc.EnsureDefaultAdmin(ctx)
		require.NoError(t, err)
		corrupt(t, store)

		result, err := svc.Login(ctx, defaultUsername, defaultPassword)
		require.NoError(t, err)
		assert.Equal(t, defaultUsername, result.User.Username)

		// non-default passwords are never healed
		_, err = svc.Login(ctx, defaultUsername, "something-else")
		assert.ErrorIs(t, err, admin.ErrInvalidCredentials)
	})
}

func TestEnsureDefaultAdmin_Concurrent(t *testing.T) {
	svc, store := newTestService(t, false)

	var wg sync.WaitGroup
	ids := make([]string, 5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := svc.EnsureDefaultAdmin(context.Background())
			if assert.NoError(t, err) {
				ids[i] = account.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, countRows(t, store, (*models.AdminAccount)(nil)))
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
}

func TestValidate_SessionLifetime(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx := context.Background()

	result, err := svc.Login(ctx, defaultUsername, defaultPassword)
	require.NoError(t, err)

	account, err := svc.Validate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, defaultUsername, account.Username)

	svc.SetClock(func() time.Time { return fixedNow.Add(23*time.Hour + 59*time.Minute) })
	_, err = svc.Validate(ctx, result.Token)
	assert.NoError(t, err)

	svc.SetClock(func() time.Time { return fixedNow.Add(24*time.Hour + time.Second) })
	_, err = svc.Validate(ctx, result.Token)
	assert.ErrorIs(t, err, admin.ErrUnauthenticated)
}

func TestValidate_UnknownToken(t *testing.T) {
	svc, _ := newTestService(t, false)

	_, err := svc.Validate(context.Background(), "not-a-session")
	assert.ErrorIs(t, err, admin.ErrUnauthenticated)

	_, err = svc.Validate(context.Background(), "")
	assert.ErrorIs(t, err, admin.ErrUnauthenticated)
}

func TestLogout_RevokesSession(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx := context.Background()

	result, err := svc.Login(ctx, defaultUsername, defaultPassword)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.Token))
	_, err = svc.Validate(ctx, result.Token)
	assert.ErrorIs(t, err, admin.ErrUnauthenticated)
}

// Mock implementations

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) FindActiveAdmin(ctx context.Context, username string) (*models.AdminAccount, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminAccount), args.Error(1)
}

func (m *MockDBLayer) GetAdminByID(ctx context.Context, id string) (*models.AdminAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminAccount), args.Error(1)
}

func (m *MockDBLayer) CreateAdminIfAbsent(ctx context.Context, account models.AdminAccount) (*models.AdminAccount, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminAccount), args.Error(1)
}

func (m *MockDBLayer) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	return m.Called(ctx, username, hash).Error(0)
}

func (m *MockDBLayer) TouchLastLogin(ctx context.Context, adminID string, at time.Time) error {
	return m.Called(ctx, adminID, at).Error(0)
}

func (m *MockDBLayer) CreateSession(ctx context.Context, session models.AdminSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockDBLayer) GetSession(ctx context.Context, token string) (*models.AdminSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminSession), args.Error(1)
}

func (m *MockDBLayer) DeleteSession(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockLimiter) Reset(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func TestLogin_Throttled(t *testing.T) {
	mockDB := new(MockDBLayer)
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, "admin").Return(false, nil)

	svc := admin.NewService(mockDB, admin.BcryptHasher{Cost: bcrypt.MinCost}, limiter, logger.Nop(), admin.Options{
		DefaultUsername: defaultUsername,
		DefaultPassword: defaultPassword,
	})

	_, err := svc.Login(context.Background(), "admin", "whatever")
	assert.ErrorIs(t, err, admin.ErrTooManyAttempts)
	mockDB.AssertNotCalled(t, "FindActiveAdmin", mock.Anything, mock.Anything)
}

func TestLogin_SessionPersistFailure(t *testing.T) {
	hasher := admin.BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash(defaultPassword)
	require.NoError(t, err)

	mockDB := new(MockDBLayer)
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, "admin").Return(true, nil)
	mockDB.On("FindActiveAdmin", mock.Anything, "admin").Return(&models.AdminAccount{
		ID: "a1", Username: "admin", PasswordHash: hash, Role: models.RoleSuperAdmin, IsActive: true,
	}, nil)
	mockDB.On("CreateSession", mock.Anything, mock.AnythingOfType("models.AdminSession")).Return(errors.New("connection reset"))

	svc := admin.NewService(mockDB, hasher, limiter, logger.Nop(), admin.Options{
		DefaultUsername: defaultUsername,
		DefaultPassword: defaultPassword,
	})

	_, err = svc.Login(context.Background(), "admin", defaultPassword)
	assert.ErrorIs(t, err, admin.ErrStorage)
	mockDB.AssertNotCalled(t, "TouchLastLogin", mock.Anything, mock.Anything, mock.Anything)
	limiter.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything)
}

func TestLogin_ResetsThrottleOnSuccess(t *testing.T) {
	hasher := admin.BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash("hunter22")
	require.NoError(t, err)

	mockDB := new(MockDBLayer)
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, "ops").Return(true, nil)
	limiter.On("Reset", mock.Anything, "ops").Return(nil)
	mockDB.On("FindActiveAdmin", mock.Anything, "ops").Return(&models.AdminAccount{
		ID: "a2", Username: "ops", PasswordHash: hash, Role: models.RoleAdmin, IsActive: true,
	}, nil)
	mockDB.On("CreateSession", mock.Anything, mock.AnythingOfType("models.AdminSession")).Return(nil)
	mockDB.On("TouchLastLogin", mock.Anything, "a2", mock.Anything).Return(nil)

	svc := admin.NewService(mockDB, hasher, limiter, logger.Nop(), admin.Options{})

	result, err := svc.Login(context.Background(), "ops", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, result.User.Role)
	mockDB.AssertExpectations(t)
	limiter.AssertExpectations(t)
}
