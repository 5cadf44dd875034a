package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/interfaces"
	"github.com/SamiESK/insta-scrapper/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	mgr, err := NewManager(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestAccountLifecycleRoundtrip(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	store := mgr.AccountStorage()

	account := &models.Account{ID: 1, Username: "creator_one"}
	require.NoError(t, store.SaveAccount(ctx, account))
	assert.Equal(t, models.AccountStatusIdle, account.Status)

	require.NoError(t, store.UpdateStatus(ctx, 1, models.AccountStatusRunning))
	status, err := store.GetStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusRunning, status)

	byName, err := store.GetAccountByUsername(ctx, "creator_one")
	require.NoError(t, err)
	assert.Equal(t, 1, byName.ID)
}

func TestAccountUsernameUnique(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	store := mgr.AccountStorage()

	require.NoError(t, store.SaveAccount(ctx, &models.Account{ID: 1, Username: "taken"}))
	err := store.SaveAccount(ctx, &models.Account{ID: 2, Username: "taken"})
	assert.Error(t, err)
}

func TestDeleteRunningAccountRejected(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	store := mgr.AccountStorage()

	require.NoError(t, store.SaveAccount(ctx, &models.Account{ID: 1, Username: "busy"}))
	require.NoError(t, store.UpdateStatus(ctx, 1, models.AccountStatusRunning))

	assert.Error(t, store.DeleteAccount(ctx, 1))

	require.NoError(t, store.UpdateStatus(ctx, 1, models.AccountStatusStopped))
	assert.NoError(t, store.DeleteAccount(ctx, 1))
}

func TestReelURLUniquePerAccount(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	store := mgr.ReelStorage()

	created, err := store.SaveReel(ctx, &models.Reel{AccountID: 1, URL: "https://www.instagram.com/reel/Cabc/", LikeCount: 250000})
	require.NoError(t, err)
	assert.True(t, created)

	// Same URL for the same account is a silent no-op
	created, err = store.SaveReel(ctx, &models.Reel{AccountID: 1, URL: "https://www.instagram.com/reel/Cabc/", LikeCount: 250000})
	require.NoError(t, err)
	assert.False(t, created)

	// A different account may discover the same URL
	created, err = store.SaveReel(ctx, &models.Reel{AccountID: 2, URL: "https://www.instagram.com/reel/Cabc/", LikeCount: 250000})
	require.NoError(t, err)
	assert.True(t, created)

	reels, err := store.ListReels(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, reels, 1)
}

func TestMessageDedupPerReelAndUser(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	store := mgr.MessageStorage()

	msg := &models.DirectMessage{ReelID: "reel_x", TargetUser: "someone", Message: "hi"}
	require.NoError(t, store.SaveMessage(ctx, msg))

	exists, err := store.HasMessage(ctx, "reel_x", "someone")
	require.NoError(t, err)
	assert.True(t, exists)

	// Second record for the same pair must be rejected
	err = store.SaveMessage(ctx, &models.DirectMessage{ReelID: "reel_x", TargetUser: "someone", Message: "hi again"})
	assert.Error(t, err)

	msgs, err := store.ListMessages(ctx, "reel_x")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestJobNextDueRespectsBackoff(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	store := mgr.JobStorage()

	now := time.Now()

	due := models.NewRunJob(1, 3)
	due.CreatedAt = now.Add(-time.Minute)
	due.NextRunAt = now.Add(-time.Second)
	require.NoError(t, store.SaveJob(ctx, due))

	delayed := models.NewRunJob(2, 3)
	delayed.NextRunAt = now.Add(time.Hour)
	require.NoError(t, store.SaveJob(ctx, delayed))

	got, err := store.NextDue(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, due.ID, got.ID)

	// Once the due job is terminal, only the delayed one remains - and it is
	// not due yet
	got.Status = models.JobStatusCompleted
	got.CompletedAt = now
	require.NoError(t, store.SaveJob(ctx, got))

	next, err := store.NextDue(ctx, now)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestRequeueRunningJobs(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	store := mgr.JobStorage()

	orphan := models.NewRunJob(1, 3)
	orphan.Status = models.JobStatusRunning
	orphan.Attempts = 1
	orphan.NextRunAt = time.Now().Add(time.Hour)
	require.NoError(t, store.SaveJob(ctx, orphan))

	done := models.NewRunJob(2, 3)
	done.Status = models.JobStatusCompleted
	require.NoError(t, store.SaveJob(ctx, done))

	requeued, err := store.RequeueRunning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	// The orphan is pending and immediately claimable again; the consumed
	// attempt is not given back
	got, err := store.GetJob(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.False(t, got.NextRunAt.After(time.Now()))

	untouched, err := store.GetJob(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, untouched.Status)
}

func TestPruneTerminalJobs(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	store := mgr.JobStorage()

	now := time.Now()

	old := models.NewRunJob(1, 3)
	old.Status = models.JobStatusCompleted
	old.CompletedAt = now.Add(-48 * time.Hour)
	require.NoError(t, store.SaveJob(ctx, old))

	recent := models.NewRunJob(2, 3)
	recent.Status = models.JobStatusCompleted
	recent.CompletedAt = now.Add(-time.Hour)
	require.NoError(t, store.SaveJob(ctx, recent))

	pruned, err := store.PruneTerminal(ctx, now.Add(-24*time.Hour), now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	_, err = store.GetJob(ctx, old.ID)
	assert.Error(t, err)
	_, err = store.GetJob(ctx, recent.ID)
	assert.NoError(t, err)
}
