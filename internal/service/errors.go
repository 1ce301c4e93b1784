package service

import (
	"fmt"

	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// Ошибки сервиса конкурсов
var (
	ErrRegistrationClosed = fmt.Errorf("%w: registration is closed", apperrors.ErrConflict)
	ErrInvalidVariant     = fmt.Errorf("%w: unknown contest variant", apperrors.ErrValidation)
	ErrInvalidWindow      = fmt.Errorf("%w: registration end must be after start", apperrors.ErrValidation)
)
