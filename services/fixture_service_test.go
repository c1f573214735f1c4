package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/matchday/balancing"
	"github.com/Dosada05/matchday/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant models.TenantID = 7

type fixtureEnv struct {
	fixtures *fakeFixtureRepo
	pool     *fakePoolRepo
	matches  *fakeMatchRepo
	jobs     *recordingEnqueuer
	reports  *recordingRemover
	notifier *recordingNotifier
	tx       fakeTx

	poolSvc    PoolService
	fixtureSvc FixtureService
	balanceSvc BalanceService
}

func newFixtureEnv(t *testing.T, players int, fixtures ...models.Fixture) *fixtureEnv {
	t.Helper()
	if len(fixtures) == 0 {
		fixtures = []models.Fixture{{
			ID: 1, TenantID: testTenant, MatchDate: time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC),
			TeamSize: 8, State: models.FixtureStateDraft, StateVersion: 1,
		}}
	}
	env := &fixtureEnv{
		fixtures: newFakeFixtureRepo(fixtures...),
		pool:     newFakePoolRepo(),
		matches:  newFakeMatchRepo(),
		jobs:     &recordingEnqueuer{},
		reports:  &recordingRemover{},
		notifier: &recordingNotifier{},
	}
	ids := make([]int, players)
	for i := range ids {
		ids[i] = i + 1
	}
	env.pool.seed(1, ids...)

	logger := discardLogger()
	env.tx = fakeTx{repos: []snapshotter{env.fixtures, env.pool}}
	env.poolSvc = NewPoolService(env.fixtures, env.pool, env.tx, env.notifier, logger)
	env.fixtureSvc = NewFixtureService(env.fixtures, env.matches, env.poolSvc, env.tx,
		balancing.DefaultBounds, env.jobs, env.reports, env.notifier, logger)
	env.balanceSvc = NewBalanceService(env.fixtures, &fakePlayerRepo{}, env.poolSvc, env.tx,
		balancing.DefaultBounds, env.notifier, logger)
	return env
}

func TestFixtureLifecycle_SixteenPlayers(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t, 16)

	f, err := env.fixtureSvc.LockPool(ctx, testTenant, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, models.FixtureStatePoolLocked, f.State)
	assert.Equal(t, 2, f.StateVersion)
	assert.Equal(t, 8, f.SizeFor(models.TeamA))
	assert.Equal(t, 8, f.SizeFor(models.TeamB))

	_, err = env.fixtureSvc.ConfirmTeams(ctx, testTenant, 1, 2)
	require.ErrorIs(t, err, ErrTeamsNotBalanced)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 2, env.fixtures.get(1).StateVersion, "rejected guard must not bump the version")

	out, err := env.balanceSvc.Balance(ctx, testTenant, 1, BalanceInput{Seed: "test", StateVersion: 2})
	require.NoError(t, err)
	assert.True(t, out.Fixture.IsBalanced)
	assert.Equal(t, 3, out.Fixture.StateVersion)
	require.NotNil(t, out.Fixture.BalanceType)
	assert.Equal(t, models.BalanceTypeRandom, *out.Fixture.BalanceType)
	assert.Len(t, out.Result.Assignments, 16)

	f, err = env.fixtureSvc.ConfirmTeams(ctx, testTenant, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, models.FixtureStateTeamsBalanced, f.State)
	assert.Equal(t, 4, f.StateVersion)

	f, err = env.fixtureSvc.Complete(ctx, testTenant, 1, CompleteInput{StateVersion: 4, TeamAScore: 3, TeamBScore: 2})
	require.NoError(t, err)
	assert.Equal(t, models.FixtureStateCompleted, f.State)
	assert.Equal(t, 5, f.StateVersion)

	match, err := env.matches.GetByFixture(ctx, nil, testTenant, 1)
	require.NoError(t, err)
	results := env.matches.results[match.ID]
	require.Len(t, results, 16)
	wins := 0
	for _, r := range results {
		if r.Result == models.ResultWin {
			wins++
			assert.Equal(t, models.TeamA, r.Team)
		}
	}
	assert.Equal(t, 8, wins)

	require.Len(t, env.jobs.requests, 1)
	assert.Equal(t, models.TriggerPostMatch, env.jobs.requests[0].TriggeredBy)
	assert.Equal(t, "post-match:1:5", env.jobs.requests[0].RequestID)
	require.NotNil(t, env.jobs.requests[0].MatchID)
	assert.Equal(t, 1, *env.jobs.requests[0].MatchID)

	f, err = env.fixtureSvc.UndoCompletion(ctx, testTenant, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, models.FixtureStateTeamsBalanced, f.State)
	assert.Equal(t, 6, f.StateVersion)
	_, err = env.matches.GetByFixture(ctx, nil, testTenant, 1)
	assert.Error(t, err, "undo must delete the completed match")
	assert.Empty(t, env.matches.results[match.ID])
	assert.Equal(t, []int{1}, env.reports.removed)
	require.Len(t, env.jobs.requests, 2)
	assert.Equal(t, "undo-completion:1:6", env.jobs.requests[1].RequestID)

	f, err = env.fixtureSvc.UnlockTeams(ctx, testTenant, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, models.FixtureStatePoolLocked, f.State)

	f, err = env.fixtureSvc.UnlockPool(ctx, testTenant, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, models.FixtureStateDraft, f.State)
	assert.Equal(t, 8, f.StateVersion)
	assert.False(t, f.IsBalanced)
	assert.Nil(t, f.ActualSizeA)
	assert.Nil(t, f.ActualSizeB)
	assert.Nil(t, f.BalanceType)
	counts, err := env.poolSvc.Counts(ctx, nil, testTenant, 1)
	require.NoError(t, err)
	assert.Equal(t, 16, counts.Unassigned)

	_, err = env.fixtureSvc.UndoCompletion(ctx, testTenant, 1, 8)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// каждая успешная операция рассылает обновление
	assert.Len(t, env.notifier.updates, 7)
	for i := 1; i < len(env.notifier.updates); i++ {
		assert.Greater(t, env.notifier.updates[i].StateVersion, env.notifier.updates[i-1].StateVersion)
	}
}

func TestFixtureTransition_ConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	eight := 8
	env := newFixtureEnv(t, 0, models.Fixture{
		ID: 1, TenantID: testTenant, State: models.FixtureStateTeamsBalanced, StateVersion: 10,
		IsBalanced: true, ActualSizeA: &eight, ActualSizeB: &eight,
	})

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.fixtureSvc.UnlockTeams(ctx, testTenant, 1, 10)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
	assert.Equal(t, 11, env.fixtures.get(1).StateVersion)
}

func TestFixtureTransition_ErrorOrder(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t, 0)

	_, err := env.fixtureSvc.UnlockTeams(ctx, testTenant, 99, 1)
	assert.ErrorIs(t, err, ErrFixtureNotFound)

	_, err = env.fixtureSvc.UnlockTeams(ctx, models.TenantID(8), 1, 1)
	assert.ErrorIs(t, err, ErrFixtureNotFound, "another tenant's fixture is invisible")

	_, err = env.fixtureSvc.UnlockTeams(ctx, testTenant, 1, 5)
	assert.ErrorIs(t, err, ErrConflict, "stale version wins over wrong state")

	_, err = env.fixtureSvc.UnlockTeams(ctx, testTenant, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.fixtureSvc.UnlockTeams(ctx, 0, 1, 1)
	assert.ErrorIs(t, err, ErrTenantRequired)
}

func TestConfirmTeams_UnbalancedGuardWinsOverVersionAndState(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t, 16)

	// Draft, версия 1: и состояние, и устаревшая версия неверны
	_, err := env.fixtureSvc.ConfirmTeams(ctx, testTenant, 1, 5)
	require.ErrorIs(t, err, ErrTeamsNotBalanced)

	_, err = env.fixtureSvc.LockPool(ctx, testTenant, 1, 1, nil)
	require.NoError(t, err)

	_, err = env.fixtureSvc.ConfirmTeams(ctx, testTenant, 1, 1)
	require.ErrorIs(t, err, ErrTeamsNotBalanced)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, 2, env.fixtures.get(1).StateVersion)

	_, err = env.fixtureSvc.ConfirmTeams(ctx, 99, 1, 2)
	assert.ErrorIs(t, err, ErrFixtureNotFound)
}

func TestConfirmTeams_BalancedButStale(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t, 16)

	_, err := env.fixtureSvc.LockPool(ctx, testTenant, 1, 1, nil)
	require.NoError(t, err)
	_, err = env.balanceSvc.Balance(ctx, testTenant, 1, BalanceInput{Seed: "test", StateVersion: 2})
	require.NoError(t, err)

	_, err = env.fixtureSvc.ConfirmTeams(ctx, testTenant, 1, 2)
	assert.ErrorIs(t, err, ErrConflict)

	f, err := env.fixtureSvc.ConfirmTeams(ctx, testTenant, 1, 3)
	require.NoError(t, err)
	_, err = env.fixtureSvc.ConfirmTeams(ctx, testTenant, 1, f.StateVersion)
	assert.ErrorIs(t, err, ErrInvalidTransition, "already TeamsBalanced")
}

func TestLockPool_ValidatesBounds(t *testing.T) {
	ctx := context.Background()

	env := newFixtureEnv(t, 6)
	_, err := env.fixtureSvc.LockPool(ctx, testTenant, 1, 1, nil)
	require.ErrorIs(t, err, balancing.ErrInvalidPoolSize)
	assert.Equal(t, models.FixtureStateDraft, env.fixtures.get(1).State)

	env = newFixtureEnv(t, 12)
	_, err = env.fixtureSvc.LockPool(ctx, testTenant, 1, 1, &balancing.Sizes{A: 5, B: 6})
	require.ErrorIs(t, err, balancing.ErrSizeMismatch)

	f, err := env.fixtureSvc.LockPool(ctx, testTenant, 1, 1, &balancing.Sizes{A: 5, B: 7})
	require.NoError(t, err)
	assert.Equal(t, 5, f.SizeFor(models.TeamA))
	assert.Equal(t, 7, f.SizeFor(models.TeamB))
}

func TestConfirmTeams_RejectsIncompleteManualLayout(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t, 8)

	_, err := env.fixtureSvc.LockPool(ctx, testTenant, 1, 1, nil)
	require.NoError(t, err)
	_, err = env.balanceSvc.Balance(ctx, testTenant, 1, BalanceInput{Seed: "x", StateVersion: 2})
	require.NoError(t, err)

	// один игрок уходит из команды вручную
	_, err = env.poolSvc.AssignSlot(ctx, testTenant, 1, 1, SlotInput{Team: models.TeamUnassigned, StateVersion: 3})
	require.NoError(t, err)

	_, err = env.fixtureSvc.ConfirmTeams(ctx, testTenant, 1, 4)
	require.ErrorIs(t, err, ErrSlotsIncomplete)
	assert.Equal(t, models.FixtureStatePoolLocked, env.fixtures.get(1).State)
}

func TestComplete_RejectsNegativeScore(t *testing.T) {
	env := newFixtureEnv(t, 0)
	_, err := env.fixtureSvc.Complete(context.Background(), testTenant, 1, CompleteInput{StateVersion: 1, TeamAScore: -1})
	assert.ErrorIs(t, err, ErrInvalidScore)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestComplete_EnqueueFailureDoesNotFailCompletion(t *testing.T) {
	ctx := context.Background()
	four := 4
	env := newFixtureEnv(t, 8, models.Fixture{
		ID: 1, TenantID: testTenant, State: models.FixtureStateTeamsBalanced, StateVersion: 3,
		IsBalanced: true, ActualSizeA: &four, ActualSizeB: &four,
	})
	env.jobs.err = errors.New("queue down")

	f, err := env.fixtureSvc.Complete(ctx, testTenant, 1, CompleteInput{StateVersion: 3, TeamAScore: 1, TeamBScore: 1})
	require.NoError(t, err)
	assert.Equal(t, models.FixtureStateCompleted, f.State)
}

func TestUndoCompletion_MissingMatchRecordStillTransitions(t *testing.T) {
	env := newFixtureEnv(t, 0, models.Fixture{
		ID: 1, TenantID: testTenant, State: models.FixtureStateCompleted, StateVersion: 4, IsBalanced: true,
	})
	f, err := env.fixtureSvc.UndoCompletion(context.Background(), testTenant, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, models.FixtureStateTeamsBalanced, f.State)
}
