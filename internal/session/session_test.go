package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/auth/authtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockPersister is a testify mock of the Persister interface.
type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) Load(ctx context.Context) (*State, error) {
	args := m.Called(ctx)
	var st *State
	if args.Get(0) != nil {
		st = args.Get(0).(*State)
	}
	return st, args.Error(1)
}

func (m *mockPersister) Save(ctx context.Context, state State) error {
	return m.Called(ctx, state).Error(0)
}

func (m *mockPersister) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSession_LoginLogout(t *testing.T) {
	// given
	ctx := context.Background()
	persister := NewMemoryPersister()
	s := New(auth.InsecureDecoder{}, persister, discardLogger())
	hookCalls := 0
	s.OnEnd(func(context.Context) { hookCalls++ })
	token := authtest.Token(t, 7, auth.RoleUser)

	// when
	claims, err := s.Login(ctx, token)

	// then
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.True(t, s.Authenticated())
	assert.Equal(t, token, s.Token())
	assert.True(t, s.HasRole(auth.RoleUser))
	assert.False(t, s.HasRole(auth.RoleAdmin))
	stored, err := persister.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, token, stored.Token)

	// when
	require.NoError(t, s.Logout(ctx))

	// then
	assert.False(t, s.Authenticated())
	_, ok := s.Claims()
	assert.False(t, ok)
	assert.Equal(t, 1, hookCalls)
	stored, err = persister.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSession_LoginRejectsBadToken(t *testing.T) {
	testCases := []struct {
		name  string
		token string
	}{
		{name: "Failure - empty token", token: ""},
		{name: "Failure - garbage token", token: "garbage"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			persister := new(mockPersister)
			s := New(auth.InsecureDecoder{}, persister, discardLogger())

			// when
			_, err := s.Login(context.Background(), tc.token)

			// then
			assert.ErrorIs(t, err, sferrors.ErrValidation)
			assert.False(t, s.Authenticated())
			persister.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestSession_NoRolesMeansAnonymous(t *testing.T) {
	// given
	s := New(auth.InsecureDecoder{}, NewMemoryPersister(), discardLogger())

	// when
	claims, err := s.Login(context.Background(), authtest.Token(t, 5))

	// then
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleAnonymous}, claims.Roles)
}

func TestSession_LogoutRunsHooksWhenClearFails(t *testing.T) {
	// given
	persister := new(mockPersister)
	persister.On("Clear", mock.Anything).Return(errors.New("disk full"))
	s := New(auth.InsecureDecoder{}, persister, discardLogger())
	called := false
	s.OnEnd(func(context.Context) { called = true })

	// when
	err := s.Logout(context.Background())

	// then
	require.Error(t, err)
	assert.True(t, called)
	persister.AssertExpectations(t)
}

func TestSession_RestoreFromFile(t *testing.T) {
	// given
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session", "state.json")
	token := authtest.Token(t, 11, auth.RoleUser, auth.RoleAdmin)
	first := New(auth.InsecureDecoder{}, NewFilePersister(path), discardLogger())
	_, err := first.Login(ctx, token)
	require.NoError(t, err)

	// when
	second := New(auth.InsecureDecoder{}, NewFilePersister(path), discardLogger())
	require.NoError(t, second.Restore(ctx))

	// then
	claims, ok := second.Claims()
	require.True(t, ok)
	assert.Equal(t, int64(11), claims.UserID)
	assert.True(t, claims.HasRole(auth.RoleAdmin))
	assert.Equal(t, token, second.Token())

	// when
	require.NoError(t, second.Logout(ctx))
	third := New(auth.InsecureDecoder{}, NewFilePersister(path), discardLogger())
	require.NoError(t, third.Restore(ctx))

	// then
	assert.False(t, third.Authenticated())
}

func TestSession_Replace(t *testing.T) {
	// given
	ctx := context.Background()
	s := New(auth.InsecureDecoder{}, NewMemoryPersister(), discardLogger())
	_, err := s.Login(ctx, authtest.Token(t, 3, auth.RoleUser))
	require.NoError(t, err)
	_, generation := s.Current()
	refreshed := authtest.Token(t, 3, auth.RoleUser, auth.RoleAdmin)

	// when
	err = s.Replace(ctx, generation, refreshed)

	// then
	require.NoError(t, err)
	token, current := s.Current()
	assert.Equal(t, refreshed, token)
	assert.Equal(t, generation, current, "a refresh continues the same session")
	assert.True(t, s.HasRole(auth.RoleAdmin))
}

func TestSession_ReplaceAfterLogoutIsDropped(t *testing.T) {
	// given
	ctx := context.Background()
	persister := NewMemoryPersister()
	s := New(auth.InsecureDecoder{}, persister, discardLogger())
	_, err := s.Login(ctx, authtest.Token(t, 3, auth.RoleUser))
	require.NoError(t, err)
	_, generation := s.Current()
	require.NoError(t, s.Logout(ctx))

	// when
	err = s.Replace(ctx, generation, authtest.Token(t, 3, auth.RoleUser))

	// then
	assert.ErrorIs(t, err, sferrors.ErrSessionEnded)
	assert.ErrorIs(t, err, sferrors.ErrUnauthenticated)
	assert.False(t, s.Authenticated())
	stored, err := persister.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored, "the ended session is not persisted again")
}

func TestSession_ReplaceForOlderLoginIsDropped(t *testing.T) {
	// given
	ctx := context.Background()
	s := New(auth.InsecureDecoder{}, NewMemoryPersister(), discardLogger())
	_, err := s.Login(ctx, authtest.Token(t, 3, auth.RoleUser))
	require.NoError(t, err)
	_, stale := s.Current()
	second := authtest.Token(t, 4, auth.RoleUser)
	_, err = s.Login(ctx, second)
	require.NoError(t, err)

	// when
	err = s.Replace(ctx, stale, authtest.Token(t, 3, auth.RoleUser))

	// then
	assert.ErrorIs(t, err, sferrors.ErrSessionEnded)
	assert.Equal(t, second, s.Token())
}

func TestSession_Expire(t *testing.T) {
	// given
	ctx := context.Background()
	s := New(auth.InsecureDecoder{}, NewMemoryPersister(), discardLogger())
	_, err := s.Login(ctx, authtest.Token(t, 3, auth.RoleUser))
	require.NoError(t, err)
	_, stale := s.Current()
	_, err = s.Login(ctx, authtest.Token(t, 3, auth.RoleUser))
	require.NoError(t, err)

	// when
	ended, err := s.Expire(ctx, stale)

	// then
	require.NoError(t, err)
	assert.False(t, ended)
	assert.True(t, s.Authenticated(), "a newer login survives an expired older one")

	// when
	_, current := s.Current()
	ended, err = s.Expire(ctx, current)

	// then
	require.NoError(t, err)
	assert.True(t, ended)
	assert.False(t, s.Authenticated())
}

func TestSession_LoginAsAnotherUserEndsPreviousSession(t *testing.T) {
	testCases := []struct {
		name          string
		first, second int64
		expectedCalls int
	}{
		{name: "Success - different user runs hooks", first: 7, second: 8, expectedCalls: 1},
		{name: "Success - same user keeps state", first: 7, second: 7, expectedCalls: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			ctx := context.Background()
			s := New(auth.InsecureDecoder{}, NewMemoryPersister(), discardLogger())
			_, err := s.Login(ctx, authtest.Token(t, tc.first, auth.RoleUser))
			require.NoError(t, err)
			hookCalls := 0
			s.OnEnd(func(context.Context) { hookCalls++ })

			// when
			claims, err := s.Login(ctx, authtest.Token(t, tc.second, auth.RoleUser))

			// then
			require.NoError(t, err)
			assert.Equal(t, tc.second, claims.UserID)
			assert.Equal(t, tc.expectedCalls, hookCalls)
		})
	}
}
