package contestengine

import (
	"errors"
	"fmt"

	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

var (
	// ErrContestNotFound - конкурс с указанным ID не существует
	ErrContestNotFound = fmt.Errorf("%w: contest", apperrors.ErrNotFound)
	// ErrAlreadyCompleted - конкурс уже дошёл до финального раунда. Повторять бессмысленно.
	ErrAlreadyCompleted = fmt.Errorf("%w: contest already completed", apperrors.ErrConflict)
	// ErrRoundInProgress - раунд этого конкурса уже выполняет другой вызов. Временная ошибка.
	ErrRoundInProgress = fmt.Errorf("%w: round already in progress", apperrors.ErrConflict)
	// ErrNoActiveParticipants - после фильтрации идентичностей не осталось активных участников
	ErrNoActiveParticipants = errors.New("no active participants")
	// ErrInvalidSelection - запрошено больше элементов, чем есть, или отрицательное количество
	ErrInvalidSelection = errors.New("invalid selection size")
)
