// Package saga содержит многошаговые процессы, которые согласованно вызывают
// несколько компонентов движка прогрессии.
package saga

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pulsepet/progression/internal/application/progression"
	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/domain/streak"
	"github.com/pulsepet/progression/pkg/logger"
	"github.com/pulsepet/progression/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH UPDATE SAGA
// Поток: История → Вехи метрик → Серия → Ротация недели →
//
//	Прогресс вызовов → Эволюция
//
// Каждый шаг может разблокировать достижения, а через маршрутизатор наград
// и выдать косметику. Обновления одного пользователя выполняются строго
// последовательно.
// ══════════════════════════════════════════════════════════════════════════════

// HealthUpdate - событие "дневные метрики обновлены".
type HealthUpdate struct {
	UserID string `json:"user_id"`

	// Today - метрики текущего дня.
	Today health.DailyMetrics `json:"today"`

	// Qualifying - день засчитывается в серию.
	Qualifying bool `json:"qualifying"`

	// Week - метрики дней текущей недели. Если пусто, берутся из истории.
	Week []health.DailyMetrics `json:"week,omitempty"`

	// EvolutionCount - число эволюций питомца, если оно изменилось.
	EvolutionCount *int `json:"evolution_count,omitempty"`
}

// Validate проверяет входные данные.
func (u HealthUpdate) Validate() error {
	if u.UserID == "" {
		return shared.ErrEmptyUserID
	}
	if !timeutil.IsValidDateKey(u.Today.Date) {
		return shared.NewDomainError("saga", "HealthUpdate", shared.ErrInvalidFormat,
			fmt.Sprintf("invalid date key %q", u.Today.Date))
	}
	if u.Today.Steps < 0 {
		return shared.NewDomainError("saga", "HealthUpdate", shared.ErrInvalidInput, "steps cannot be negative")
	}
	if u.EvolutionCount != nil && *u.EvolutionCount < 0 {
		return shared.NewDomainError("saga", "HealthUpdate", shared.ErrInvalidInput, "evolution count cannot be negative")
	}
	return nil
}

// HealthUpdateStep - шаг процесса.
type HealthUpdateStep string

const (
	StepHistory    HealthUpdateStep = "history"
	StepMilestones HealthUpdateStep = "milestones"
	StepStreak     HealthUpdateStep = "streak"
	StepRotation   HealthUpdateStep = "rotation"
	StepChallenges HealthUpdateStep = "challenges"
	StepEvolution  HealthUpdateStep = "evolution"
	StepComplete   HealthUpdateStep = "complete"
)

// HealthUpdateResult - итог обработки одного обновления.
type HealthUpdateResult struct {
	UserID            string                     `json:"user_id"`
	Milestones        []progression.UnlockResult `json:"milestones"`
	Streak            streak.RecordResult        `json:"streak"`
	ChallengesRotated bool                       `json:"challenges_rotated"`
	Challenges        progression.ProgressReport `json:"challenges"`
	Evolution         []progression.UnlockResult `json:"evolution"`
	ProcessedAt       time.Time                  `json:"processed_at"`
}

// NewUnlocks возвращает все впервые полученные достижения за обновление.
func (r *HealthUpdateResult) NewUnlocks() []string {
	var ids []string
	for _, group := range [][]progression.UnlockResult{r.Milestones, r.Evolution} {
		for _, u := range group {
			if u.IsNewUnlock {
				ids = append(ids, u.Achievement.ID)
			}
		}
	}
	return ids
}

// healthUpdateState - состояние выполнения процесса.
type healthUpdateState struct {
	CurrentStep HealthUpdateStep
	Input       HealthUpdate
	History     []health.DailyMetrics
	Result      *HealthUpdateResult
	FailedStep  HealthUpdateStep
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// HealthUpdateSaga проводит обновление метрик через все компоненты движка.
type HealthUpdateSaga struct {
	engine *progression.Engine
	clock  shared.Clock
	log    *logger.Logger
	locks  *userLocks
	gate   StepGate
}

// StepGate решает, выполнять ли шаг для пользователя. Шаг истории
// выполняется всегда.
type StepGate func(step HealthUpdateStep, userID string) bool

// NewHealthUpdateSaga создаёт процесс над движком.
func NewHealthUpdateSaga(engine *progression.Engine, clock shared.Clock, log *logger.Logger) *HealthUpdateSaga {
	if clock == nil {
		clock = shared.SystemClock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HealthUpdateSaga{
		engine: engine,
		clock:  clock,
		log:    log.With(logger.Component("health_update")),
		locks:  newUserLocks(),
	}
}

// WithStepGate включает выборочное отключение шагов (например, по флагам).
func (s *HealthUpdateSaga) WithStepGate(gate StepGate) *HealthUpdateSaga {
	s.gate = gate
	return s
}

// Execute выполняет все шаги по порядку. Ошибка возвращается только для
// некорректного ввода или отмены контекста; сбои хранилища поглощаются
// компонентами и превращаются в пустые результаты.
func (s *HealthUpdateSaga) Execute(ctx context.Context, input HealthUpdate) (*HealthUpdateResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	release := s.locks.acquire(input.UserID)
	defer release()

	state := &healthUpdateState{
		Input: input,
		Result: &HealthUpdateResult{
			UserID:     input.UserID,
			Milestones: []progression.UnlockResult{},
			Evolution:  []progression.UnlockResult{},
		},
	}

	steps := []struct {
		step HealthUpdateStep
		run  func(context.Context, *healthUpdateState) error
	}{
		{StepHistory, s.stepHistory},
		{StepMilestones, s.stepMilestones},
		{StepStreak, s.stepStreak},
		{StepRotation, s.stepRotation},
		{StepChallenges, s.stepChallenges},
		{StepEvolution, s.stepEvolution},
	}

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return s.fail(state, st.step, err)
		}
		if s.gate != nil && st.step != StepHistory && !s.gate(st.step, input.UserID) {
			s.log.Debug("step skipped", logger.UserID(input.UserID), logger.String("step", string(st.step)))
			continue
		}
		state.CurrentStep = st.step
		if err := st.run(ctx, state); err != nil {
			return s.fail(state, st.step, err)
		}
	}

	state.CurrentStep = StepComplete
	state.Result.ProcessedAt = s.clock().UTC()

	s.log.Info("health update processed",
		logger.UserID(input.UserID),
		logger.String("date", input.Today.Date),
		logger.Int("streak", state.Result.Streak.NewStreak),
		logger.Any("new_unlocks", state.Result.NewUnlocks()),
		logger.Int("challenges_completed", len(state.Result.Challenges.Completed)),
	)
	return state.Result, nil
}

func (s *HealthUpdateSaga) fail(state *healthUpdateState, step HealthUpdateStep, err error) (*HealthUpdateResult, error) {
	state.FailedStep = step
	state.Error = err
	s.log.Error("health update failed",
		logger.UserID(state.Input.UserID),
		logger.String("step", string(step)),
		logger.Err(err),
	)
	return nil, fmt.Errorf("health update step %s: %w", step, err)
}

// stepHistory вливает день в скользящую историю и регистрирует пользователя
// для еженедельной ротации. Недоступная история не сохраняется, чтобы не
// затереть её одним днём.
func (s *HealthUpdateSaga) stepHistory(ctx context.Context, state *healthUpdateState) error {
	userID := state.Input.UserID
	history, err := s.engine.LoadHistory(ctx, userID)
	merged := health.Merge(history, state.Input.Today, health.HistoryRetentionDays)
	state.History = merged

	if err != nil {
		s.log.Warn("health history unavailable, not persisting this day",
			logger.UserID(userID), logger.Err(err))
	} else if s.engine.History != nil {
		if err := s.engine.History.Save(ctx, userID, merged); err != nil {
			s.log.Error("health history write lost", logger.UserID(userID), logger.Err(err))
		}
	}

	if s.engine.Directory != nil {
		if err := s.engine.Directory.Add(ctx, userID); err != nil {
			s.log.Warn("user directory update failed", logger.UserID(userID), logger.Err(err))
		}
	}
	return nil
}

func (s *HealthUpdateSaga) stepMilestones(ctx context.Context, state *healthUpdateState) error {
	results, err := s.engine.Rewards.CheckMilestone(ctx, state.Input.UserID, state.Input.Today)
	if err != nil {
		return err
	}
	state.Result.Milestones = results
	return nil
}

func (s *HealthUpdateSaga) stepStreak(ctx context.Context, state *healthUpdateState) error {
	res, err := s.engine.Streaks.RecordDailyProgress(ctx, state.Input.UserID, state.Input.Today.Date, state.Input.Qualifying)
	if err != nil {
		return err
	}
	state.Result.Streak = res
	return nil
}

func (s *HealthUpdateSaga) stepRotation(ctx context.Context, state *healthUpdateState) error {
	_, rotated, err := s.engine.Challenges.EnsureCurrentWeek(ctx, state.Input.UserID, state.History)
	if err != nil {
		return err
	}
	state.Result.ChallengesRotated = rotated
	return nil
}

func (s *HealthUpdateSaga) stepChallenges(ctx context.Context, state *healthUpdateState) error {
	week := state.Input.Week
	if len(week) == 0 {
		week = weekOf(state.History, state.Input.Today.Date)
	} else {
		week = health.Merge(week, state.Input.Today, 0)
	}
	report, err := s.engine.Challenges.UpdateAllChallengeProgress(ctx, state.Input.UserID, state.Input.Today.Date, week)
	if err != nil {
		return err
	}
	state.Result.Challenges = report
	return nil
}

func (s *HealthUpdateSaga) stepEvolution(ctx context.Context, state *healthUpdateState) error {
	if state.Input.EvolutionCount == nil {
		return nil
	}
	results, err := s.engine.Rewards.UnlockByCondition(ctx, state.Input.UserID,
		achievement.ConditionEvolutionCount, float64(*state.Input.EvolutionCount))
	if err != nil {
		return err
	}
	state.Result.Evolution = results
	return nil
}

// weekOf выбирает из истории дни календарной недели дня today.
func weekOf(history []health.DailyMetrics, today string) []health.DailyMetrics {
	day, err := timeutil.ParseDateKey(today)
	if err != nil {
		return nil
	}
	var out []health.DailyMetrics
	for _, d := range history {
		t, err := timeutil.ParseDateKey(d.Date)
		if err != nil {
			continue
		}
		if timeutil.IsSameWeek(t, day) {
			out = append(out, d)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// PER-USER LOCKS
// ══════════════════════════════════════════════════════════════════════════════

// userLocks выдаёт мьютекс на пользователя и удаляет его, когда он никому
// не нужен.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// acquire копирует userID: ключ карты не должен делить память с буфером запроса.
func (l *userLocks) acquire(userID string) func() {
	userID = strings.Clone(userID)
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &userLock{}
		l.locks[userID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
