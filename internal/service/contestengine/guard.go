package contestengine

import (
	"sync"
)

// RoundGuard - внутрипроцессный замок раундов по ID конкурса.
// Захват неблокирующий: второй вызов для того же конкурса сразу получает отказ.
type RoundGuard struct {
	mu   sync.Mutex
	held map[uint]struct{}
}

// NewRoundGuard создает пустой замок
func NewRoundGuard() *RoundGuard {
	return &RoundGuard{held: make(map[uint]struct{})}
}

// TryAcquire захватывает конкурс. Возвращает функцию освобождения и true при успехе.
// Функция освобождения идемпотентна.
func (g *RoundGuard) TryAcquire(contestID uint) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[contestID]; busy {
		return nil, false
	}
	g.held[contestID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, contestID)
			g.mu.Unlock()
		})
	}, true
}

// Held сообщает, захвачен ли конкурс в этом процессе
func (g *RoundGuard) Held(contestID uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.held[contestID]
	return busy
}
