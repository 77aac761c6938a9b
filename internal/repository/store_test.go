package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealswipe/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedGroupSession creates two users in one group and an in-progress
// session for that group.
func seedGroupSession(t *testing.T, store *Store) *model.Session {
	t.Helper()
	ctx := context.Background()
	r := store.Repos()

	require.NoError(t, r.Users.Create(ctx, &model.User{ID: 1, Username: "admin"}))
	require.NoError(t, r.Users.Create(ctx, &model.User{ID: 2, Username: "normal_user"}))
	require.NoError(t, r.Groups.Create(ctx, &model.Group{ID: 10, Name: "flatmates"}))
	require.NoError(t, r.Groups.AddMember(ctx, &model.Membership{GroupID: 10, UserID: 1, IsAdmin: true}))
	require.NoError(t, r.Groups.AddMember(ctx, &model.Membership{GroupID: 10, UserID: 2}))

	gid := int64(10)
	session := &model.Session{
		ID:        uuid.NewString(),
		GroupID:   &gid,
		CreatedBy: 1,
		Status:    model.SessionInProgress,
	}
	require.NoError(t, r.Sessions.Create(ctx, session))
	return session
}

func TestStore_Migrates(t *testing.T) {
	// Re-running migrations on an up-to-date database is a no-op
	store := openTestStore(t)
	require.NoError(t, migrateUp(store.db))
}

func TestUserRepo(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	users := store.Repos().Users

	u := &model.User{Username: "chef", IsAdmin: true}
	require.NoError(t, users.Create(ctx, u))
	assert.NotZero(t, u.ID)

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "chef", got.Username)
	assert.True(t, got.IsAdmin)

	missing, err := users.GetByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGroupRepo_Membership(t *testing.T) {
	store := openTestStore(t)
	seedGroupSession(t, store)
	ctx := context.Background()
	groups := store.Repos().Groups

	m, err := groups.GetMembership(ctx, 10, 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.IsAdmin)

	m, err = groups.GetMembership(ctx, 10, 3)
	require.NoError(t, err)
	assert.Nil(t, m)

	ids, err := groups.ListMemberIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	n, err := groups.CountMembers(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSessionRepo(t *testing.T) {
	store := openTestStore(t)
	session := seedGroupSession(t, store)
	ctx := context.Background()
	sessions := store.Repos().Sessions

	got, err := sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, int64(10), *got.GroupID)
	assert.Equal(t, model.SessionInProgress, got.Status)
	assert.Equal(t, int64(0), got.Version)

	require.NoError(t, sessions.UpdateStatus(ctx, session.ID, model.SessionCompleted))
	got, err = sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, got.Status)
	assert.Equal(t, int64(1), got.Version)

	assert.ErrorIs(t, sessions.UpdateStatus(ctx, uuid.NewString(), model.SessionPaused), ErrNotFound)

	missing, err := sessions.GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSwipeRepo_OneVotePerTriple(t *testing.T) {
	store := openTestStore(t)
	session := seedGroupSession(t, store)
	ctx := context.Background()
	swipes := store.Repos().Swipes

	id, err := swipes.Record(ctx, &model.Swipe{SessionID: session.ID, UserID: 1, RecipeID: 7, Liked: false})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = swipes.Record(ctx, &model.Swipe{SessionID: session.ID, UserID: 1, RecipeID: 7, Liked: true})
	assert.ErrorIs(t, err, ErrAlreadySwiped)

	n, err := swipes.CountBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	vote, err := swipes.VoteBy(ctx, session.ID, 1, 7)
	require.NoError(t, err)
	require.NotNil(t, vote)
	assert.False(t, vote.Liked)

	none, err := swipes.VoteBy(ctx, session.ID, 2, 7)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSwipeRepo_VotesFor(t *testing.T) {
	store := openTestStore(t)
	session := seedGroupSession(t, store)
	ctx := context.Background()
	swipes := store.Repos().Swipes

	_, err := swipes.Record(ctx, &model.Swipe{SessionID: session.ID, UserID: 1, RecipeID: 3, Liked: true})
	require.NoError(t, err)
	_, err = swipes.Record(ctx, &model.Swipe{SessionID: session.ID, UserID: 2, RecipeID: 3, Liked: false})
	require.NoError(t, err)

	likes, err := swipes.VotesFor(ctx, session.ID, 3, true)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, int64(1), likes[0].UserID)

	dislikes, err := swipes.VotesFor(ctx, session.ID, 3, false)
	require.NoError(t, err)
	require.Len(t, dislikes, 1)
	assert.Equal(t, int64(2), dislikes[0].UserID)

	voters, err := swipes.VoterIDs(ctx, session.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, voters)
}

func TestSwipeRepo_ConcurrentDuplicateVotes(t *testing.T) {
	store := openTestStore(t)
	session := seedGroupSession(t, store)
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		recorded  int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTx(ctx, func(r *Repos) error {
				existing, err := r.Swipes.VoteBy(ctx, session.ID, 2, 9)
				if err != nil {
					return err
				}
				if existing != nil {
					return ErrAlreadySwiped
				}
				_, err = r.Swipes.Record(ctx, &model.Swipe{SessionID: session.ID, UserID: 2, RecipeID: 9, Liked: true})
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				recorded++
			case errors.Is(err, ErrAlreadySwiped):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, recorded)
	assert.Equal(t, attempts-1, conflicts)

	n, err := store.Repos().Swipes.CountBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	store := openTestStore(t)
	session := seedGroupSession(t, store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(r *Repos) error {
		if _, err := r.Swipes.Record(ctx, &model.Swipe{SessionID: session.ID, UserID: 1, RecipeID: 4, Liked: true}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	vote, err := store.Repos().Swipes.VoteBy(ctx, session.ID, 1, 4)
	require.NoError(t, err)
	assert.Nil(t, vote)
}
