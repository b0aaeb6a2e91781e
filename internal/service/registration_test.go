package service

import (
	"context"
	"sync"
	"testing"

	"github.com/bio065/biobot/internal/model"
	"github.com/bio065/biobot/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestParseReferralArgument(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		selfID   int64
		expected *int64
	}{
		{
			name:     "valid referrer",
			raw:      "100",
			selfID:   200,
			expected: ptr(int64(100)),
		},
		{
			name:     "empty argument",
			raw:      "",
			selfID:   200,
			expected: nil,
		},
		{
			name:     "self reference discarded",
			raw:      "300",
			selfID:   300,
			expected: nil,
		},
		{
			name:     "malformed argument discarded",
			raw:      "not-a-number",
			selfID:   200,
			expected: nil,
		},
		{
			name:     "negative argument discarded",
			raw:      "-5",
			selfID:   200,
			expected: nil,
		},
		{
			name:     "zero discarded",
			raw:      "0",
			selfID:   200,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReferralArgument(tt.raw, tt.selfID)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			assert.NotNil(t, got)
			assert.Equal(t, *tt.expected, *got)
		})
	}
}

func TestRegistrationService_RegisterUser(t *testing.T) {
	tests := []struct {
		name            string
		user            *model.User
		mockSetup       func(repo *mocks.MockUserRepository)
		expectedOutcome RegistrationOutcome
		expectedError   error
	}{
		{
			name: "new user without referrer",
			user: &model.User{TelegramID: 100, Username: "alice"},
			mockSetup: func(repo *mocks.MockUserRepository) {
				repo.On("CreateUser", mock.Anything, mock.Anything).
					Return(&model.RegistrationResult{Inserted: true}, nil)
			},
			expectedOutcome: OutcomeRegistered,
		},
		{
			name: "new user with credited referrer",
			user: &model.User{TelegramID: 200, Username: "bob", ReferrerID: ptr(int64(100))},
			mockSetup: func(repo *mocks.MockUserRepository) {
				repo.On("CreateUser", mock.Anything, mock.Anything).
					Return(&model.RegistrationResult{Inserted: true, ReferrerCredited: true}, nil)
			},
			expectedOutcome: OutcomeRegisteredWithReferral,
		},
		{
			name: "dangling referrer keeps pointer without credit",
			user: &model.User{TelegramID: 400, Username: "dana", ReferrerID: ptr(int64(9999))},
			mockSetup: func(repo *mocks.MockUserRepository) {
				repo.On("CreateUser", mock.Anything, mock.Anything).
					Return(&model.RegistrationResult{Inserted: true, ReferrerCredited: false}, nil)
			},
			expectedOutcome: OutcomeRegistered,
		},
		{
			name: "already registered",
			user: &model.User{TelegramID: 100, Username: "alice"},
			mockSetup: func(repo *mocks.MockUserRepository) {
				repo.On("CreateUser", mock.Anything, mock.Anything).
					Return(&model.RegistrationResult{}, nil)
			},
			expectedOutcome: OutcomeAlreadyRegistered,
		},
		{
			name: "storage failure is retryable",
			user: &model.User{TelegramID: 500, Username: "eve"},
			mockSetup: func(repo *mocks.MockUserRepository) {
				repo.On("CreateUser", mock.Anything, mock.Anything).
					Return(nil, assert.AnError)
			},
			expectedError: ErrRegistryUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mocks.MockUserRepository{}
			tt.mockSetup(mockRepo)

			s := NewRegistrationService(mockRepo)
			outcome, err := s.RegisterUser(context.Background(), tt.user)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedOutcome, outcome)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestRegistrationService_Scenarios(t *testing.T) {
	reg := newMemoryRegistry()
	s := NewRegistrationService(reg)
	ctx := context.Background()

	// Identity 100 registers with no referrer.
	outcome, err := s.RegisterUser(ctx, &model.User{TelegramID: 100, Username: "alice"})
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRegistered, outcome)

	// Identity 200 registers naming 100.
	outcome, err = s.RegisterUser(ctx, &model.User{TelegramID: 200, Username: "bob", ReferrerID: ptr(int64(100))})
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRegisteredWithReferral, outcome)
	assert.Equal(t, 1, reg.referrals(100))

	// A second attempt by 200 is a no-op for the counter.
	outcome, err = s.RegisterUser(ctx, &model.User{TelegramID: 200, Username: "bob", ReferrerID: ptr(int64(100))})
	assert.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyRegistered, outcome)
	assert.Equal(t, 1, reg.referrals(100))

	// A dangling referrer is stored but never credited.
	outcome, err = s.RegisterUser(ctx, &model.User{TelegramID: 400, Username: "dana", ReferrerID: ptr(int64(9999))})
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRegistered, outcome)
	assert.False(t, reg.exists(9999))
	stored := reg.get(400)
	assert.NotNil(t, stored.ReferrerID)
	assert.Equal(t, int64(9999), *stored.ReferrerID)
}

func TestRegistrationService_ConcurrentDuplicates(t *testing.T) {
	const attempts = 32

	reg := newMemoryRegistry()
	s := NewRegistrationService(reg)
	ctx := context.Background()

	_, err := s.RegisterUser(ctx, &model.User{TelegramID: 100, Username: "alice"})
	assert.NoError(t, err)

	outcomes := make([]RegistrationOutcome, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := s.RegisterUser(ctx, &model.User{
				TelegramID: 200,
				Username:   "bob",
				ReferrerID: ptr(int64(100)),
			})
			assert.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	credited := 0
	for _, outcome := range outcomes {
		if outcome == OutcomeRegisteredWithReferral {
			credited++
		}
	}
	assert.Equal(t, 1, credited, "exactly one attempt must win the insert and credit")
	assert.Equal(t, 1, reg.referrals(100), "referrer must be credited exactly once")
}

// memoryRegistry mimics the registry's first-insert-wins contract for
// tests that exercise the engine without a database.
type memoryRegistry struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{users: make(map[int64]*model.User)}
}

func (m *memoryRegistry) CreateUser(_ context.Context, user *model.User) (*model.RegistrationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.TelegramID]; ok {
		return &model.RegistrationResult{}, nil
	}

	stored := *user
	m.users[user.TelegramID] = &stored

	res := &model.RegistrationResult{Inserted: true}
	if user.ReferrerID != nil {
		if referrer, ok := m.users[*user.ReferrerID]; ok {
			referrer.Referrals++
			res.ReferrerCredited = true
		}
	}
	return res, nil
}

func (m *memoryRegistry) GetUserByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[telegramID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *memoryRegistry) UpdateUserProfile(_ context.Context, telegramID int64, username, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[telegramID]
	if !ok {
		return ErrUserNotFound
	}
	user.Username = username
	user.Handle = handle
	return nil
}

func (m *memoryRegistry) CountUsers(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memoryRegistry) GetTopUsers(_ context.Context, _ int) ([]*model.User, error) {
	return nil, nil
}

func (m *memoryRegistry) GetUserReferrals(_ context.Context, _ int64) ([]*model.UserReferral, error) {
	return nil, nil
}

func (m *memoryRegistry) GetReferralReport(_ context.Context) ([]*model.ReportRow, error) {
	return nil, nil
}

func (m *memoryRegistry) referrals(telegramID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[telegramID]; ok {
		return user.Referrals
	}
	return 0
}

func (m *memoryRegistry) exists(telegramID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[telegramID]
	return ok
}

func (m *memoryRegistry) get(telegramID int64) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[telegramID]
}

func ptr[T any](v T) *T {
	return &v
}
