package sessions_test

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sessions"
	"github.com/mcdev12/focusflow/go/internal/sessionstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	Topic   string
	Payload any
}

// recordingHub captures everything published
type recordingHub struct {
	mu       sync.Mutex
	messages []published
}

func (r *recordingHub) Publish(topic string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, published{Topic: topic, Payload: payload})
}

func (r *recordingHub) On(topic string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, m := range r.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	app   *sessions.App
	store *sessionstore.Memory
	hub   *recordingHub
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := sessionstore.NewMemory()
	hub := &recordingHub{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	app := sessions.NewApp(store, hub, sessions.NewCodeGenerator(nil, store), clock, zerolog.Nop())
	return &fixture{app: app, store: store, hub: hub, clock: clock}
}

func (f *fixture) create(t *testing.T, totalCycles int) *models.Session {
	t.Helper()
	s, err := f.app.CreateSession(context.Background(), sessions.CreateSessionRequest{
		CreatorID:        uuid.New(),
		DurationMinutes:  25,
		BreakMinutes:     5,
		LongBreakMinutes: 15,
		TotalCycles:      totalCycles,
	})
	require.NoError(t, err)
	return s
}

func intPtr(i int) *int { return &i }

func TestCreateSession_ScenarioA(t *testing.T) {
	f := newFixture(t)

	s := f.create(t, 4)

	assert.Equal(t, models.SessionStatusCreated, s.Status)
	assert.Equal(t, 1, s.CurrentCycle)
	assert.False(t, s.IsRunning)
	assert.False(t, s.IsBreak)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, s.Code)
	assert.Equal(t, f.clock.Now(), s.CreatedAt)
	assert.Empty(t, f.hub.messages, "creation is not broadcast")

	other := f.create(t, 4)
	assert.NotEqual(t, s.Code, other.Code)
}

func TestCreateSession_Validation(t *testing.T) {
	f := newFixture(t)
	valid := sessions.CreateSessionRequest{DurationMinutes: 25, BreakMinutes: 5, LongBreakMinutes: 15, TotalCycles: 4}

	cases := map[string]func(r *sessions.CreateSessionRequest){
		"zero duration":     func(r *sessions.CreateSessionRequest) { r.DurationMinutes = 0 },
		"negative break":    func(r *sessions.CreateSessionRequest) { r.BreakMinutes = -1 },
		"nan long break":    func(r *sessions.CreateSessionRequest) { r.LongBreakMinutes = math.NaN() },
		"infinite duration": func(r *sessions.CreateSessionRequest) { r.DurationMinutes = math.Inf(1) },
		"zero cycles":       func(r *sessions.CreateSessionRequest) { r.TotalCycles = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			_, err := f.app.CreateSession(context.Background(), req)
			assert.ErrorIs(t, err, sessions.ErrValidation)
		})
	}
}

func TestSetStatus_ScenarioB(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)
	startedAt := f.clock.Now()

	active, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, active.Status)
	require.NotNil(t, active.StartedAt)
	assert.Equal(t, startedAt, *active.StartedAt)

	f.clock.Advance(time.Minute)
	again, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusActive)
	require.NoError(t, err)
	assert.Equal(t, startedAt, *again.StartedAt)

	// the repeated transition is a no-op and is not broadcast
	assert.Len(t, f.hub.On(sessions.SessionTopic(s.Code)), 1)
}

func TestSetStatus_PauseAndResumeKeepsStartedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	_, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusActive)
	require.NoError(t, err)
	first := f.clock.Now()

	f.clock.Advance(5 * time.Minute)
	paused, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPaused, paused.Status)

	resumed, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusActive)
	require.NoError(t, err)
	assert.Equal(t, first, *resumed.StartedAt)
}

func TestSetStatus_PausedFromCreatedSetsStartedAtOnResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	paused, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusPaused)
	require.NoError(t, err)
	assert.Nil(t, paused.StartedAt)

	active, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusActive)
	require.NoError(t, err)
	assert.NotNil(t, active.StartedAt)
}

func TestSetStatus_CompletedStopsTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)
	_, err := f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(300), IsRunning: true, IsBreak: true})
	require.NoError(t, err)

	done, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, done.Status)
	assert.False(t, done.IsRunning)
	assert.False(t, done.IsBreak)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, f.clock.Now(), *done.CompletedAt)
}

func TestSetStatus_EndedEarlyStopsTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)
	_, err := f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(300), IsRunning: true})
	require.NoError(t, err)

	ended, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusEndedEarly)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEndedEarly, ended.Status)
	assert.False(t, ended.IsRunning)
}

func TestSetStatus_TerminalStatesRejectTransitions(t *testing.T) {
	ctx := context.Background()
	for _, terminal := range []models.SessionStatus{models.SessionStatusCompleted, models.SessionStatusEndedEarly} {
		t.Run(string(terminal), func(t *testing.T) {
			f := newFixture(t)
			s := f.create(t, 4)
			_, err := f.app.SetStatus(ctx, s.ID, terminal)
			require.NoError(t, err)
			before := len(f.hub.On(sessions.SessionTopic(s.Code)))

			for _, next := range []models.SessionStatus{
				models.SessionStatusCreated, models.SessionStatusActive, models.SessionStatusPaused,
				models.SessionStatusCompleted, models.SessionStatusEndedEarly,
			} {
				_, err := f.app.SetStatus(ctx, s.ID, next)
				if next == terminal {
					assert.NoError(t, err)
					continue
				}
				assert.ErrorIs(t, err, sessions.ErrConflict, "%s -> %s", terminal, next)
			}

			assert.Len(t, f.hub.On(sessions.SessionTopic(s.Code)), before)
			got, err := f.app.GetSession(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, terminal, got.Status)
		})
	}
}

func TestSetStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	_, err := f.app.SetStatus(ctx, s.ID, models.SessionStatus("SLEEPING"))
	assert.ErrorIs(t, err, sessions.ErrValidation)

	_, err = f.app.SetStatus(ctx, uuid.New(), models.SessionStatusActive)
	assert.ErrorIs(t, err, sessions.ErrNotFound)

	_, err = f.app.SetStatus(ctx, s.ID, models.SessionStatusActive)
	require.NoError(t, err)
	_, err = f.app.SetStatus(ctx, s.ID, models.SessionStatusCreated)
	assert.ErrorIs(t, err, sessions.ErrConflict)
}

func TestAdvanceCycle_ScenarioC(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)
	_, err := f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(10), IsRunning: true, IsBreak: true})
	require.NoError(t, err)
	before := len(f.hub.On(sessions.SessionTopic(s.Code)))

	done, err := f.app.AdvanceCycle(ctx, s.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, done.CurrentCycle)
	assert.Equal(t, models.SessionStatusCompleted, done.Status)
	assert.False(t, done.IsRunning)
	assert.False(t, done.IsBreak)
	assert.NotNil(t, done.CompletedAt)

	snapshots := f.hub.On(sessions.SessionTopic(s.Code))
	require.Len(t, snapshots, before+1)
	snap, ok := snapshots[len(snapshots)-1].Payload.(*models.Session)
	require.True(t, ok)
	assert.Equal(t, models.SessionStatusCompleted, snap.Status)
	assert.Equal(t, 4, snap.CurrentCycle)
	assert.False(t, snap.IsRunning)
	assert.False(t, snap.IsBreak)
	assert.NotNil(t, snap.CompletedAt)
}

func TestAdvanceCycle_ClampsBeyondTotal(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, 4)

	done, err := f.app.AdvanceCycle(context.Background(), s.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 4, done.CurrentCycle)
	assert.Equal(t, models.SessionStatusCompleted, done.Status)
}

func TestAdvanceCycle_MidSessionKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)
	_, err := f.app.SetStatus(ctx, s.ID, models.SessionStatusActive)
	require.NoError(t, err)

	mid, err := f.app.AdvanceCycle(ctx, s.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, mid.CurrentCycle)
	assert.Equal(t, models.SessionStatusActive, mid.Status)

	// repeating the same cycle is accepted and still broadcast
	same, err := f.app.AdvanceCycle(ctx, s.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, same.CurrentCycle)
	assert.Len(t, f.hub.On(sessions.SessionTopic(s.Code)), 3)
}

func TestAdvanceCycle_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	_, err := f.app.AdvanceCycle(ctx, s.ID, 0)
	assert.ErrorIs(t, err, sessions.ErrValidation)

	_, err = f.app.AdvanceCycle(ctx, uuid.New(), 2)
	assert.ErrorIs(t, err, sessions.ErrNotFound)

	_, err = f.app.AdvanceCycle(ctx, s.ID, 3)
	require.NoError(t, err)
	_, err = f.app.AdvanceCycle(ctx, s.ID, 2)
	assert.ErrorIs(t, err, sessions.ErrValidation, "regressing cycles are rejected")

	_, err = f.app.AdvanceCycle(ctx, s.ID, 4)
	require.NoError(t, err)
	_, err = f.app.AdvanceCycle(ctx, s.ID, 4)
	assert.ErrorIs(t, err, sessions.ErrConflict, "completed sessions reject further cycles")
}

func TestAdvanceCycle_NeverExceedsTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for total := 1; total <= 5; total++ {
		s := f.create(t, total)
		for cycle := 1; cycle <= total+2; cycle++ {
			got, err := f.app.AdvanceCycle(ctx, s.ID, cycle)
			if err != nil {
				assert.ErrorIs(t, err, sessions.ErrConflict)
				got, err = f.app.GetSession(ctx, s.ID)
				require.NoError(t, err)
			}
			assert.LessOrEqual(t, got.CurrentCycle, got.TotalCycles)

			checked, err := f.app.CheckCompletion(ctx, s.ID)
			require.NoError(t, err)
			assert.LessOrEqual(t, checked.CurrentCycle, checked.TotalCycles)
		}
	}
}

func TestCheckCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 2)

	// not yet at the last cycle: nothing happens
	same, err := f.app.CheckCompletion(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCreated, same.Status)
	assert.Empty(t, f.hub.On(sessions.SessionTopic(s.Code)))

	// simulate a missed completion: cycle reached without status update
	_, err = f.store.UpdateSession(ctx, s.ID, func(m *models.Session) (bool, error) {
		m.CurrentCycle = 2
		m.Status = models.SessionStatusActive
		m.IsRunning = true
		return true, nil
	})
	require.NoError(t, err)

	done, err := f.app.CheckCompletion(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, done.Status)
	assert.False(t, done.IsRunning)
	assert.NotNil(t, done.CompletedAt)
	assert.Len(t, f.hub.On(sessions.SessionTopic(s.Code)), 1)

	// idempotent: second call changes nothing and broadcasts nothing
	f.clock.Advance(time.Hour)
	again, err := f.app.CheckCompletion(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, done, again)
	assert.Len(t, f.hub.On(sessions.SessionTopic(s.Code)), 1)

	_, err = f.app.CheckCompletion(ctx, uuid.New())
	assert.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestUpdateTimerState_ScenarioD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	first, err := f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(1200), IsRunning: true})
	require.NoError(t, err)
	require.NotNil(t, first.TimerStartedAt)
	assert.Equal(t, f.clock.Now(), *first.TimerStartedAt)

	f.clock.Advance(time.Second)
	_, err = f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(1199), IsRunning: true})
	require.NoError(t, err)

	got, err := f.app.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentTimeLeft)
	assert.Equal(t, 1199, *got.CurrentTimeLeft)
	assert.Equal(t, f.clock.Now(), *got.TimerStartedAt)
	assert.Len(t, f.hub.On(sessions.SessionTopic(s.Code)), 2)
}

func TestUpdateTimerState_PauseKeepsTimerStartedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	_, err := f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(600), IsRunning: true})
	require.NoError(t, err)
	startedAt := f.clock.Now()

	f.clock.Advance(time.Minute)
	paused, err := f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(540), IsBreak: true})
	require.NoError(t, err)
	assert.False(t, paused.IsRunning)
	assert.True(t, paused.IsBreak)
	assert.Equal(t, startedAt, *paused.TimerStartedAt)
}

func TestUpdateTimerState_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	_, err := f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(-1)})
	assert.ErrorIs(t, err, sessions.ErrValidation)

	_, err = f.app.UpdateTimerState(ctx, uuid.New(), sessions.UpdateTimerStateRequest{TimeLeft: intPtr(1)})
	assert.ErrorIs(t, err, sessions.ErrNotFound)

	_, err = f.app.SetStatus(ctx, s.ID, models.SessionStatusEndedEarly)
	require.NoError(t, err)
	_, err = f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(1), IsRunning: true})
	assert.ErrorIs(t, err, sessions.ErrConflict)
}

func TestRecordJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)
	user := &models.User{ID: uuid.New(), Username: "calm-otter-12"}

	got, err := f.app.RecordJoin(ctx, s.ID, user)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	joins := f.hub.On(sessions.UserJoinedTopic(s.Code))
	require.Len(t, joins, 1)
	event, ok := joins[0].Payload.(sessions.UserJoinedEvent)
	require.True(t, ok)
	assert.Equal(t, "calm-otter-12", event.User)
	assert.Equal(t, user.ID, event.UserID)
	assert.Equal(t, f.clock.Now(), event.Timestamp)
	assert.Empty(t, f.hub.On(sessions.SessionTopic(s.Code)))

	_, err = f.app.RecordJoin(ctx, uuid.New(), user)
	assert.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestGetSessionByCode_ScenarioE(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	unknown := "ZZZZZZ"
	if s.Code == unknown {
		unknown = "YYYYYY"
	}
	_, err := f.app.GetSessionByCode(ctx, unknown)
	assert.ErrorIs(t, err, sessions.ErrNotFound)

	got, err := f.app.GetSessionByCode(ctx, strings.ToLower(s.Code))
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = f.app.GetSessionByCode(ctx, "AB")
	assert.ErrorIs(t, err, sessions.ErrValidation)
}

func TestListSessionsByCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := uuid.New()
	req := sessions.CreateSessionRequest{CreatorID: creator, DurationMinutes: 25, BreakMinutes: 5, LongBreakMinutes: 15, TotalCycles: 4}

	older, err := f.app.CreateSession(ctx, req)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	newer, err := f.app.CreateSession(ctx, req)
	require.NoError(t, err)

	list, err := f.app.ListSessionsByCreator(ctx, creator)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

// racingStore reports a fresh code as free once but rejects the insert,
// as happens when another creator wins the race for the same code.
type racingStore struct {
	*sessionstore.Memory
	rejected bool
}

func (r *racingStore) CreateSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	if !r.rejected {
		r.rejected = true
		return nil, sessions.ErrCodeTaken
	}
	return r.Memory.CreateSession(ctx, s)
}

func TestCreateSession_RetriesWhenCodeTakenOnInsert(t *testing.T) {
	store := &racingStore{Memory: sessionstore.NewMemory()}
	app := sessions.NewApp(store, &recordingHub{}, nil, clockwork.NewFakeClock(), zerolog.Nop())

	s, err := app.CreateSession(context.Background(), sessions.CreateSessionRequest{
		DurationMinutes: 25, BreakMinutes: 5, LongBreakMinutes: 15, TotalCycles: 1,
	})
	require.NoError(t, err)
	assert.True(t, store.rejected)
	assert.Len(t, s.Code, sessions.CodeLength)
}

func TestConcurrentTimerUpdatesAreLastWriterWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(i), IsRunning: true})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := f.app.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentTimeLeft)
	assert.GreaterOrEqual(t, *got.CurrentTimeLeft, 0)
	assert.Less(t, *got.CurrentTimeLeft, 50)
	assert.Equal(t, int64(51), got.Version)

	// late snapshots may be dropped, but what went out is in commit order
	// and ends on the stored state
	snaps := f.hub.On(sessions.SessionTopic(s.Code))
	require.NotEmpty(t, snaps)
	assert.LessOrEqual(t, len(snaps), 50)
	var last int64
	for _, m := range snaps {
		snap := m.Payload.(*models.Session)
		assert.Greater(t, snap.Version, last)
		last = snap.Version
	}
	assert.Equal(t, got, snaps[len(snaps)-1].Payload.(*models.Session))
}

// stallingStore holds the first update after it commits, before the app
// gets to broadcast it.
type stallingStore struct {
	*sessionstore.Memory
	once      sync.Once
	committed chan struct{}
	release   chan struct{}
}

func newStallingStore() *stallingStore {
	return &stallingStore{
		Memory:    sessionstore.NewMemory(),
		committed: make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (s *stallingStore) UpdateSession(ctx context.Context, id uuid.UUID, fn sessions.MutateFunc) (*models.Session, error) {
	out, err := s.Memory.UpdateSession(ctx, id, fn)
	stall := false
	s.once.Do(func() { stall = true })
	if stall {
		close(s.committed)
		<-s.release
	}
	return out, err
}

func TestBroadcastsFollowCommitOrder(t *testing.T) {
	store := newStallingStore()
	hub := &recordingHub{}
	app := sessions.NewApp(store, hub, nil, clockwork.NewFakeClock(), zerolog.Nop())
	ctx := context.Background()

	s, err := app.CreateSession(ctx, sessions.CreateSessionRequest{
		DurationMinutes: 25, BreakMinutes: 5, LongBreakMinutes: 15, TotalCycles: 4,
	})
	require.NoError(t, err)

	timerDone := make(chan error, 1)
	go func() {
		_, err := app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(1500), IsRunning: true})
		timerDone <- err
	}()
	<-store.committed

	// commits after the timer update but broadcasts first
	completed, err := app.AdvanceCycle(ctx, s.ID, 4)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusCompleted, completed.Status)

	close(store.release)
	require.NoError(t, <-timerDone)

	stored, err := store.GetSession(ctx, s.ID)
	require.NoError(t, err)

	snaps := hub.On(sessions.SessionTopic(s.Code))
	require.Len(t, snaps, 1, "the superseded timer snapshot must not be broadcast")
	last := snaps[0].Payload.(*models.Session)
	assert.Equal(t, stored, last)
	assert.Equal(t, models.SessionStatusCompleted, last.Status)
	assert.False(t, last.IsRunning)
}

func TestBroadcastIsIndependentOfCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.create(t, 4)

	updated, err := f.app.UpdateTimerState(ctx, s.ID, sessions.UpdateTimerStateRequest{TimeLeft: intPtr(100), IsRunning: true})
	require.NoError(t, err)
	*updated.CurrentTimeLeft = 5

	snap := f.hub.On(sessions.SessionTopic(s.Code))[0].Payload.(*models.Session)
	assert.Equal(t, 100, *snap.CurrentTimeLeft)
}
