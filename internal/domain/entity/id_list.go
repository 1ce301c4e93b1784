package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// IDList - пользовательский тип для хранения списка идентификаторов в JSONB
type IDList []uint

// Scan реализует интерфейс sql.Scanner для IDList
func (l *IDList) Scan(value interface{}) error {
	// NULL из базы превращаем в пустой список
	if value == nil {
		*l = IDList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte or string")
	}

	if len(bytes) == 0 {
		*l = IDList{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Value реализует интерфейс driver.Valuer для IDList
func (l IDList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil // Пустой JSON массив вместо null
	}
	return json.Marshal(l)
}

// Contains проверяет наличие идентификатора в списке
func (l IDList) Contains(id uint) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}
