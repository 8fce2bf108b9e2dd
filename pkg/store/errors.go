// Package store хранит каталог опций и товары в SQLite и отдаёт
// гидратированные снимки каталога.
//
// Ошибки возвращаются вверх по стеку и поддерживают errors.Is() и
// errors.As().
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound возвращается когда сущность не найдена.
//
// Пример использования:
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // 404
//	}
var ErrNotFound = errors.New("entity not found")

// ErrInvalidInput возвращается для записей без обязательных полей.
var ErrInvalidInput = errors.New("invalid input")

// ErrNilStorage возвращается когда хранилище не инициализировано.
var ErrNilStorage = errors.New("storage not initialized")

// NotFoundError - ошибка с контекстом сущности.
//
// Поддерживает errors.Is() с ErrNotFound.
type NotFoundError struct {
	Entity string // "product", "group", "item"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Is проверяет что ошибка является ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// WrapNotFound оборачивает ошибку с контекстом сущности.
func WrapNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsNotFound - обёртка над errors.Is().
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
