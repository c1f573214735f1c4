package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации
	ErrValidationFailed = errors.New("validation failed")
	ErrTenantRequired   = errors.New("tenant id is required")
	ErrPoolMismatch     = fmt.Errorf("%w: player list does not match the fixture pool", ErrValidationFailed)
	ErrInvalidSlot      = fmt.Errorf("%w: invalid team or slot", ErrValidationFailed)
	ErrInvalidScore     = fmt.Errorf("%w: scores must be non-negative", ErrValidationFailed)
	ErrInvalidTrigger   = fmt.Errorf("%w: unknown trigger source", ErrValidationFailed)

	// Конечный автомат матча
	ErrInvalidTransition = errors.New("invalid fixture state transition")
	ErrTeamsNotBalanced  = fmt.Errorf("%w: teams are not balanced", ErrInvalidTransition)
	ErrSlotsIncomplete   = fmt.Errorf("%w: team slots are incomplete", ErrInvalidTransition)
	ErrPoolNotEditable   = fmt.Errorf("%w: pool can only change while the fixture is a draft", ErrInvalidTransition)

	// Конфликт версий: вызывающий должен перечитать матч
	ErrConflict     = errors.New("fixture was changed by someone else, please refresh")
	ErrSlotTaken    = errors.New("slot is already taken")
	ErrPlayerInPool = errors.New("player is already in the pool")

	// Сущности
	ErrFixtureNotFound   = errors.New("fixture not found")
	ErrPlayerNotFound    = errors.New("player not found in this club")
	ErrPoolEntryNotFound = errors.New("player is not in the fixture pool")
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrStatsJobNotFound  = errors.New("stats job not found")

	// Задачи статистики
	ErrDuplicateJob    = errors.New("a stats job with this request id already exists")
	ErrJobNotRetryable = errors.New("only failed stats jobs can be retried")
)
