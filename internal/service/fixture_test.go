package service

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mealswipe/internal/cache"
	"mealswipe/internal/model"
	"mealswipe/internal/repository"
)

type fakeRecipes struct {
	mu   sync.Mutex
	byID map[int64]*model.Recipe
}

func newFakeRecipes(ids ...int64) *fakeRecipes {
	f := &fakeRecipes{byID: make(map[int64]*model.Recipe)}
	for _, id := range ids {
		f.byID[id] = &model.Recipe{ID: id, Name: "Recipe"}
	}
	return f
}

func (f *fakeRecipes) GetByID(ctx context.Context, id int64) (*model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

func (f *fakeRecipes) ListIDs(ctx context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeRecipes) Upsert(ctx context.Context, recipe *model.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[recipe.ID] = recipe
	return nil
}

type sentPacket struct {
	SessionID string
	Action    model.Action
	Payload   interface{}
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []sentPacket
}

func (b *recordingBroadcaster) SessionBroadcast(sessionID string, action model.Action, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentPacket{SessionID: sessionID, Action: action, Payload: payload})
}

func (b *recordingBroadcaster) GlobalBroadcast(action model.Action, payload interface{}) {
	b.SessionBroadcast("", action, payload)
}

func (b *recordingBroadcaster) actions() []model.Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Action, len(b.sent))
	for i, p := range b.sent {
		out[i] = p.Action
	}
	return out
}

var (
	platformAdmin = model.Principal{UserID: 1, Username: "admin", IsAdmin: true}
	normalUser    = model.Principal{UserID: 2, Username: "normal_user"}
	outsider      = model.Principal{UserID: 3, Username: "outsider"}
	foreignAdmin  = model.Principal{UserID: 4, Username: "ops", IsAdmin: true}
)

const testGroupID int64 = 10

type fixture struct {
	store    *repository.Store
	recipes  *fakeRecipes
	queue    cache.RecipeQueue
	bc       *recordingBroadcaster
	auth     *AuthService
	sessions *SessionService
	queueSvc *QueueService
	swipes   *SwipeService
}

// newFixture seeds a group of two (admin, normal_user) plus an outsider and
// a platform admin outside the group
func newFixture(t *testing.T, recipeIDs ...int64) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := repository.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := store.Repos()
	require.NoError(t, r.Users.Create(ctx, &model.User{ID: 1, Username: "admin", IsAdmin: true}))
	require.NoError(t, r.Users.Create(ctx, &model.User{ID: 2, Username: "normal_user"}))
	require.NoError(t, r.Users.Create(ctx, &model.User{ID: 3, Username: "outsider"}))
	require.NoError(t, r.Users.Create(ctx, &model.User{ID: 4, Username: "ops", IsAdmin: true}))
	require.NoError(t, r.Groups.Create(ctx, &model.Group{ID: testGroupID, Name: "flatmates"}))
	require.NoError(t, r.Groups.AddMember(ctx, &model.Membership{GroupID: testGroupID, UserID: 1, IsAdmin: true}))
	require.NoError(t, r.Groups.AddMember(ctx, &model.Membership{GroupID: testGroupID, UserID: 2}))

	if len(recipeIDs) == 0 {
		recipeIDs = []int64{1, 2}
	}

	f := &fixture{
		store:   store,
		recipes: newFakeRecipes(recipeIDs...),
		queue:   cache.NewMemoryRecipeQueue(),
		bc:      &recordingBroadcaster{},
	}
	f.auth = NewAuthService("test-secret-0123456789", time.Hour, r.Users)
	f.sessions = NewSessionService(store, f.recipes, f.queue, nil)
	f.queueSvc = NewQueueService(f.queue, f.recipes, f.sessions)
	f.swipes = NewSwipeService(store, f.recipes, f.sessions, f.queueSvc)
	f.sessions.SetBroadcaster(f.bc)
	f.swipes.SetBroadcaster(f.bc)
	return f
}

// withSessionCache rebuilds the services around sc
func (f *fixture) withSessionCache(sc cache.SessionCache) {
	f.sessions = NewSessionService(f.store, f.recipes, f.queue, sc)
	f.queueSvc = NewQueueService(f.queue, f.recipes, f.sessions)
	f.swipes = NewSwipeService(f.store, f.recipes, f.sessions, f.queueSvc)
	f.sessions.SetBroadcaster(f.bc)
	f.swipes.SetBroadcaster(f.bc)
}

// groupSession creates a group session and starts it
func (f *fixture) groupSession(t *testing.T) *model.Session {
	t.Helper()
	gid := testGroupID
	session, err := f.sessions.Create(context.Background(), platformAdmin, &gid)
	require.NoError(t, err)
	session, err = f.sessions.UpdateStatus(context.Background(), platformAdmin, session.ID, string(model.SessionInProgress))
	require.NoError(t, err)
	return session
}

func boolPtr(b bool) *bool { return &b }
