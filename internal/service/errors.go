// Пакет service — бизнес-логика confighost поверх blobstore и каталога.
package service

import (
	"fmt"
	"net/http"

	apierrors "github.com/bigkaa/confighost/internal/api/errors"
)

// Error — типизированная ошибка сервисного слоя.
// Несёт HTTP статус-код и машиночитаемый код, чтобы handlers
// не разбирали внутренности ошибок хранилищ.
type Error struct {
	// StatusCode — HTTP статус-код для ответа
	StatusCode int
	// Code — машиночитаемый код ошибки
	Code string
	// Message — человекочитаемое описание
	Message string
	// Err — исходная ошибка (для логов, не для клиента)
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// validationErr — 400 некорректные входные данные.
func validationErr(message string, err error) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       apierrors.CodeValidationError,
		Message:    message,
		Err:        err,
	}
}

// notFoundErr — 404 ресурс не найден.
func notFoundErr(message string, err error) *Error {
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       apierrors.CodeNotFound,
		Message:    message,
		Err:        err,
	}
}

// tooLargeErr — 413 файл превышает лимит.
func tooLargeErr(message string, err error) *Error {
	return &Error{
		StatusCode: http.StatusRequestEntityTooLarge,
		Code:       apierrors.CodeFileTooLarge,
		Message:    message,
		Err:        err,
	}
}

// persistenceErr — 500 отказ каталога.
func persistenceErr(message string, err error) *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       apierrors.CodePersistenceError,
		Message:    message,
		Err:        err,
	}
}

// internalErr — 500 внутренняя ошибка.
func internalErr(message string, err error) *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       apierrors.CodeInternalError,
		Message:    message,
		Err:        err,
	}
}
