package repository

import "errors"

var (
	// ErrRoundConflict означает, что условная фиксация раунда проиграла гонку:
	// current_round уже изменился, участники уже выбыли или запись раунда уже существует.
	ErrRoundConflict = errors.New("round was already committed by another caller")
	// ErrContestAlreadyCompleted означает, что конкурс уже в статусе completed.
	ErrContestAlreadyCompleted = errors.New("contest is already completed")
)
