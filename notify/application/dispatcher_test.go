package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-admin/core/config"
	"github.com/AzielCF/az-admin/core/database"
	"github.com/AzielCF/az-admin/notify/domain"
	"github.com/AzielCF/az-admin/notify/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) Send(ctx context.Context, userID, message string) error {
	return m.Called(ctx, userID, message).Error(0)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
	fail  int
	got   []domain.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.fail {
		return errors.New("smtp unavailable")
	}
	r.got = append(r.got, n)
	return nil
}

func (r *recordingNotifier) snapshot() (int, []domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, append([]domain.Notification(nil), r.got...)
}

func TestService_NotifyStoresAndEmails(t *testing.T) {
	db, err := database.NewInMemory()
	require.NoError(t, err)
	repo := repository.NewNotificationGormRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	email := &mockEmail{}
	email.On("Send", mock.Anything, "u1", "Your account was suspended").Return(nil).Once()

	svc := NewService(repo, email)
	require.NoError(t, svc.Notify(ctx, domain.Notification{UserID: "u1", Message: "Your account was suspended", ViaEmail: true}))
	require.NoError(t, svc.Notify(ctx, domain.Notification{UserID: "u1", Message: "Welcome back"}))

	list, err := repo.ListForUser(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	email.AssertExpectations(t)
}

func TestService_RequiresUser(t *testing.T) {
	svc := NewService(nil, nil)
	assert.Error(t, svc.Notify(context.Background(), domain.Notification{Message: "x"}))
}

func TestDispatcher_RetriesThenDelivers(t *testing.T) {
	notifier := &recordingNotifier{fail: 2}
	d := NewDispatcher(notifier, config.NotifyConfig{Workers: 1, QueueSize: 10, MaxAttempts: 3, BaseDelay: time.Millisecond})
	d.Start(context.Background())
	defer d.Stop()

	require.True(t, d.Send(domain.Notification{UserID: "u1", Message: "hello"}))

	require.Eventually(t, func() bool {
		_, got := notifier.snapshot()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	calls, _ := notifier.snapshot()
	assert.Equal(t, 3, calls)
}

func TestDispatcher_DropsAfterRetryCap(t *testing.T) {
	notifier := &recordingNotifier{fail: 100}
	d := NewDispatcher(notifier, config.NotifyConfig{Workers: 1, QueueSize: 10, MaxAttempts: 2, BaseDelay: time.Millisecond})
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Notify(context.Background(), domain.Notification{UserID: "u1", Message: "hello"}))

	require.Eventually(t, func() bool {
		return d.Stats().TotalExhausted == 1
	}, time.Second, 5*time.Millisecond)

	calls, got := notifier.snapshot()
	assert.Equal(t, 2, calls)
	assert.Empty(t, got)
}

func TestDispatcher_RetriedEmailStoresOneNotification(t *testing.T) {
	db, err := database.NewInMemory()
	require.NoError(t, err)
	repo := repository.NewNotificationGormRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	email := &mockEmail{}
	email.On("Send", mock.Anything, "u1", "Your account was banned").Return(errors.New("smtp unavailable")).Twice()
	email.On("Send", mock.Anything, "u1", "Your account was banned").Return(nil).Once()

	d := NewDispatcher(NewService(repo, email), config.NotifyConfig{Workers: 1, QueueSize: 10, MaxAttempts: 3, BaseDelay: time.Millisecond})
	d.Start(ctx)
	defer d.Stop()

	require.True(t, d.Send(domain.Notification{UserID: "u1", Message: "Your account was banned", ViaEmail: true}))

	require.Eventually(t, func() bool {
		return d.Stats().TotalProcessed == 1
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, d.Stats().TotalRetried)
	assert.Zero(t, d.Stats().TotalExhausted)

	list, err := repo.ListForUser(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	email.AssertExpectations(t)
}
