package contestengine

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// randIntn возвращает равномерное число из [0, n) на основе crypto/rand
func randIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("crypto/rand: %w", err)
	}
	return int(v.Int64()), nil
}

// Partition случайно делит items на выбранные k элементов и остаток.
// Используется частичный Fisher–Yates: первые k позиций перемешанной копии.
// Исходный срез не изменяется.
func Partition[T any](items []T, k int) (selected, rest []T, err error) {
	n := len(items)
	if k < 0 || k > n {
		return nil, nil, fmt.Errorf("%w: k=%d, n=%d", ErrInvalidSelection, k, n)
	}

	shuffled := make([]T, n)
	copy(shuffled, items)
	for i := 0; i < k; i++ {
		j, err := randIntn(n - i)
		if err != nil {
			return nil, nil, err
		}
		j += i
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:k:k], shuffled[k:], nil
}

// SelectRandom выбирает k различных элементов без возвращения.
// Порядок результата не несёт смысла.
func SelectRandom[T any](items []T, k int) ([]T, error) {
	selected, _, err := Partition(items, k)
	return selected, err
}
