package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// snapshotter lets fakeTx roll a fake repository back when fn fails.
type snapshotter interface {
	snapshot() (restore func())
}

type fakeTx struct {
	repos []snapshotter
}

func (tx fakeTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	restores := make([]func(), 0, len(tx.repos))
	for _, r := range tx.repos {
		restores = append(restores, r.snapshot())
	}
	if err := fn(nil); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

type fakeFixtureRepo struct {
	mu       sync.Mutex
	fixtures map[int]models.Fixture
}

func newFakeFixtureRepo(fixtures ...models.Fixture) *fakeFixtureRepo {
	r := &fakeFixtureRepo{fixtures: map[int]models.Fixture{}}
	for _, f := range fixtures {
		r.fixtures[f.ID] = f
	}
	return r
}

func (r *fakeFixtureRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, tenantID models.TenantID, id int) (*models.Fixture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fixtures[id]
	if !ok || f.TenantID != tenantID {
		return nil, repositories.ErrFixtureNotFound
	}
	return &f, nil
}

func (r *fakeFixtureRepo) UpdateVersioned(_ context.Context, _ repositories.SQLExecutor, tenantID models.TenantID, id int,
	expectedVersion int, expectedState models.FixtureState, patch models.FixturePatch) (*models.Fixture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fixtures[id]
	if !ok || f.TenantID != tenantID || f.StateVersion != expectedVersion || f.State != expectedState {
		return nil, repositories.ErrFixtureVersionConflict
	}
	f.State = patch.NextState
	f.StateVersion++
	if patch.IsBalanced != nil {
		f.IsBalanced = *patch.IsBalanced
	}
	if patch.ClearBalanceType {
		f.BalanceType = nil
	}
	if patch.BalanceType != nil {
		bt := *patch.BalanceType
		f.BalanceType = &bt
	}
	if patch.ClearSizes {
		f.ActualSizeA, f.ActualSizeB = nil, nil
	}
	if patch.ActualSizeA != nil {
		a := *patch.ActualSizeA
		f.ActualSizeA = &a
	}
	if patch.ActualSizeB != nil {
		b := *patch.ActualSizeB
		f.ActualSizeB = &b
	}
	r.fixtures[id] = f
	return &f, nil
}

func (r *fakeFixtureRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[int]models.Fixture, len(r.fixtures))
	for k, v := range r.fixtures {
		saved[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.fixtures = saved
	}
}

func (r *fakeFixtureRepo) get(id int) models.Fixture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fixtures[id]
}

type fakePoolRepo struct {
	mu      sync.Mutex
	entries map[int][]models.PoolEntry
}

func newFakePoolRepo() *fakePoolRepo {
	return &fakePoolRepo{entries: map[int][]models.PoolEntry{}}
}

func (r *fakePoolRepo) seed(fixtureID int, playerIDs ...int) {
	for _, id := range playerIDs {
		r.entries[fixtureID] = append(r.entries[fixtureID], models.PoolEntry{FixtureID: fixtureID, PlayerID: id, Team: models.TeamUnassigned})
	}
}

func (r *fakePoolRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[int][]models.PoolEntry, len(r.entries))
	for k, v := range r.entries {
		saved[k] = append([]models.PoolEntry(nil), v...)
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries = saved
	}
}

func (r *fakePoolRepo) Attach(_ context.Context, _ repositories.SQLExecutor, _ models.TenantID, fixtureID, playerID int) (*models.PoolEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[fixtureID] {
		if e.PlayerID == playerID {
			return nil, repositories.ErrPlayerAlreadyInPool
		}
	}
	e := models.PoolEntry{FixtureID: fixtureID, PlayerID: playerID, Team: models.TeamUnassigned, CreatedAt: time.Now()}
	r.entries[fixtureID] = append(r.entries[fixtureID], e)
	return &e, nil
}

func (r *fakePoolRepo) Detach(_ context.Context, _ repositories.SQLExecutor, _ models.TenantID, fixtureID, playerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.entries[fixtureID]
	for i, e := range list {
		if e.PlayerID == playerID {
			r.entries[fixtureID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return repositories.ErrPoolEntryNotFound
}

func (r *fakePoolRepo) List(_ context.Context, _ repositories.SQLExecutor, _ models.TenantID, fixtureID int) ([]models.PoolEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PoolEntry, len(r.entries[fixtureID]))
	copy(out, r.entries[fixtureID])
	// как в SQL: ORDER BY team, slot_number NULLS LAST, player_id
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Team != b.Team {
			return a.Team < b.Team
		}
		if (a.SlotNumber == nil) != (b.SlotNumber == nil) {
			return b.SlotNumber == nil
		}
		if a.SlotNumber != nil && *a.SlotNumber != *b.SlotNumber {
			return *a.SlotNumber < *b.SlotNumber
		}
		return a.PlayerID < b.PlayerID
	})
	return out, nil
}

func (r *fakePoolRepo) Counts(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int) (models.PoolCounts, error) {
	entries, _ := r.List(ctx, exec, tenantID, fixtureID)
	return countEntries(entries), nil
}

func (r *fakePoolRepo) ClearAssignments(_ context.Context, _ repositories.SQLExecutor, _ models.TenantID, fixtureID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries[fixtureID] {
		r.entries[fixtureID][i].Team = models.TeamUnassigned
		r.entries[fixtureID][i].SlotNumber = nil
	}
	return nil
}

func (r *fakePoolRepo) ApplyAssignments(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int, assignments []models.Assignment) error {
	_ = r.ClearAssignments(ctx, exec, tenantID, fixtureID)
	r.mu.Lock()
	defer r.mu.Unlock()
	byPlayer := make(map[int]models.Assignment, len(assignments))
	for _, a := range assignments {
		byPlayer[a.PlayerID] = a
	}
	for i, e := range r.entries[fixtureID] {
		a, ok := byPlayer[e.PlayerID]
		if !ok {
			return repositories.ErrAssignmentsIncomplete
		}
		slot := a.SlotNumber
		r.entries[fixtureID][i].Team = a.Team
		r.entries[fixtureID][i].SlotNumber = &slot
	}
	return nil
}

func (r *fakePoolRepo) SetSlot(_ context.Context, _ repositories.SQLExecutor, _ models.TenantID, fixtureID, playerID int, team models.Team, slot *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries[fixtureID] {
		if e.PlayerID == playerID {
			r.entries[fixtureID][i].Team = team
			r.entries[fixtureID][i].SlotNumber = slot
			return nil
		}
	}
	return repositories.ErrPoolEntryNotFound
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]models.CompletedMatch
	results map[int][]models.PlayerMatchResult
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: map[int]models.CompletedMatch{}, results: map[int][]models.PlayerMatchResult{}}
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, tenantID models.TenantID, match *models.CompletedMatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[match.FixtureID]; ok {
		return repositories.ErrCompletedMatchExists
	}
	r.nextID++
	match.ID = r.nextID
	match.TenantID = tenantID
	r.matches[match.FixtureID] = *match
	return nil
}

func (r *fakeMatchRepo) CreatePlayerResults(_ context.Context, _ repositories.SQLExecutor, _ models.TenantID, matchID int, results []models.PlayerMatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[matchID] = append(r.results[matchID], results...)
	return nil
}

func (r *fakeMatchRepo) GetByFixture(_ context.Context, _ repositories.SQLExecutor, _ models.TenantID, fixtureID int) (*models.CompletedMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[fixtureID]
	if !ok {
		return nil, repositories.ErrCompletedMatchNotFound
	}
	return &m, nil
}

func (r *fakeMatchRepo) DeleteByFixture(_ context.Context, _ repositories.SQLExecutor, _ models.TenantID, fixtureID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[fixtureID]
	if !ok {
		return 0, repositories.ErrCompletedMatchNotFound
	}
	delete(r.matches, fixtureID)
	delete(r.results, m.ID)
	return m.ID, nil
}

type fakePlayerRepo struct {
	attributes map[int]models.PlayerAttributes
	weights    []models.BalanceWeight
}

func (r *fakePlayerRepo) ListAttributes(_ context.Context, _ models.TenantID, playerIDs []int) (map[int]models.PlayerAttributes, error) {
	out := make(map[int]models.PlayerAttributes, len(playerIDs))
	for _, id := range playerIDs {
		if a, ok := r.attributes[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r *fakePlayerRepo) ListBalanceWeights(context.Context, models.TenantID) ([]models.BalanceWeight, error) {
	return r.weights, nil
}

type fakeTenantRepo struct {
	tenants map[models.TenantID]models.Tenant
}

func (r *fakeTenantRepo) GetByID(_ context.Context, tenantID models.TenantID) (*models.Tenant, error) {
	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, repositories.ErrTenantNotFound
	}
	return &t, nil
}

func (r *fakeTenantRepo) ListActive(context.Context) ([]models.Tenant, error) {
	var out []models.Tenant
	for _, t := range r.tenants {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeJobRepo struct {
	mu     sync.Mutex
	nextID int
	jobs   map[int]*models.StatsJob
	keys   map[string]bool
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[int]*models.StatsJob{}, keys: map[string]bool{}}
}

func (r *fakeJobRepo) Enqueue(_ context.Context, tenantID models.TenantID, job *models.StatsJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenantID.String() + "/" + job.Payload.RequestID
	if r.keys[key] {
		return repositories.ErrDuplicateStatsJob
	}
	r.keys[key] = true
	r.nextID++
	job.ID = r.nextID
	job.TenantID = tenantID
	job.Status = models.JobStatusQueued
	stored := *job
	r.jobs[job.ID] = &stored
	return nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, tenantID models.TenantID, id int) (*models.StatsJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.TenantID != tenantID {
		return nil, repositories.ErrStatsJobNotFound
	}
	out := *j
	return &out, nil
}

func (r *fakeJobRepo) ListRecent(_ context.Context, tenantID models.TenantID, _ int) ([]models.StatsJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.StatsJob
	for _, j := range r.jobs {
		if j.TenantID == tenantID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID > out[k].ID })
	return out, nil
}

func (r *fakeJobRepo) TenantsWithQueued(context.Context) ([]models.TenantID, error) { return nil, nil }

func (r *fakeJobRepo) ClaimNext(context.Context, models.TenantID) (*models.StatsJob, error) {
	return nil, nil
}

func (r *fakeJobRepo) Complete(context.Context, models.TenantID, int, models.JobResults) error {
	return nil
}

func (r *fakeJobRepo) Fail(context.Context, models.TenantID, int, models.JobResults, string) error {
	return nil
}

func (r *fakeJobRepo) Requeue(context.Context, models.TenantID, int, models.JobResults, string) error {
	return nil
}

func (r *fakeJobRepo) RecoverStale(context.Context, time.Time, string) ([]models.StatsJob, error) {
	return nil, nil
}

func (r *fakeJobRepo) setStatus(id int, status models.JobStatus, retries int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].Status = status
	r.jobs[id].RetryCount = retries
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []models.Fixture
}

func (n *recordingNotifier) FixtureUpdated(_ context.Context, f *models.Fixture) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, *f)
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	requests []EnqueueRequest
	err      error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, tenantID models.TenantID, req EnqueueRequest) (*models.StatsJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.requests = append(e.requests, req)
	return &models.StatsJob{ID: len(e.requests), TenantID: tenantID, Payload: models.JobPayload{RequestID: req.RequestID}}, nil
}

type recordingRemover struct {
	removed []int
}

func (r *recordingRemover) Remove(_ context.Context, _ models.TenantID, fixtureID int) error {
	r.removed = append(r.removed, fixtureID)
	return nil
}
