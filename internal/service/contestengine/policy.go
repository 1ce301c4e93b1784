package contestengine

import "github.com/yourusername/contest-api/internal/domain/entity"

const (
	// MinFinalists - нижняя граница пула финалистов после третьего раунда
	MinFinalists = 10
	// ScheduledWinners - количество победителей конкурса по расписанию
	ScheduledWinners = 5
	// ManualWinners - количество победителей ручного конкурса
	ManualWinners = 1
)

// WinnerTarget возвращает целевое количество победителей финального раунда
func WinnerTarget(variant string) int {
	if variant == entity.ContestVariantManual {
		return ManualWinners
	}
	return ScheduledWinners
}

// FinalistTarget возвращает количество выживших после третьего раунда: max(10, ceil(n/5))
func FinalistTarget(activeCount int) int {
	target := (activeCount + 4) / 5
	if target < MinFinalists {
		target = MinFinalists
	}
	return target
}

// WinnerCount возвращает количество победителей финального раунда при activeCount активных
func WinnerCount(activeCount int, variant string) int {
	if activeCount <= 0 {
		return 0
	}
	return min(WinnerTarget(variant), activeCount)
}

// EliminationCount возвращает, сколько участников выбывает в раунде round
// при activeCount активных. Функция чистая и никогда не возвращает отрицательное значение.
func EliminationCount(round, activeCount int, variant string) int {
	if activeCount <= 0 {
		return 0
	}

	switch round {
	case 1, 2:
		return activeCount / 2
	case 3:
		return max(0, activeCount-FinalistTarget(activeCount))
	case entity.FinalRound:
		return activeCount - WinnerCount(activeCount, variant)
	default:
		return 0
	}
}
