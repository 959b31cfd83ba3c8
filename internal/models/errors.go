package models

import (
	"errors"

	"github.com/gofiber/fiber/v3"
)

// Коды ошибок ядра обменов. Все ошибки доменного уровня восстанавливаются
// на границе HTTP и отдаются клиенту структурированным отказом.
const (
	CodeInvalidProposal = "INVALID_PROPOSAL"
	CodeForbidden       = "FORBIDDEN"
	CodeInvalidState    = "INVALID_STATE"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyExists   = "ALREADY_EXISTS"
)

// AppError представляет доменную ошибку с машинным кодом
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

// ErrInvalidProposal — нарушение инвариантов при создании предложения
func ErrInvalidProposal(msg string) *AppError {
	return &AppError{Code: CodeInvalidProposal, Message: msg}
}

// ErrForbidden — действие запрещено для данного пользователя
func ErrForbidden(msg string) *AppError {
	return &AppError{Code: CodeForbidden, Message: msg}
}

// ErrInvalidState — переход из неподходящего статуса, в том числе
// проигранная гонка с параллельным переходом
func ErrInvalidState(msg string) *AppError {
	return &AppError{Code: CodeInvalidState, Message: msg}
}

// ErrNotFound — запрошенная сущность отсутствует
func ErrNotFound(msg string) *AppError {
	return &AppError{Code: CodeNotFound, Message: msg}
}

// ErrAlreadyExists — дубликат уже существующей записи
func ErrAlreadyExists(msg string) *AppError {
	return &AppError{Code: CodeAlreadyExists, Message: msg}
}

// IsCode сообщает, несёт ли ошибка указанный код
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// httpStatus сопоставляет код ошибки статусу HTTP
func httpStatus(code string) int {
	switch code {
	case CodeInvalidProposal:
		return fiber.StatusBadRequest
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeInvalidState:
		return fiber.StatusConflict
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeAlreadyExists:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// RespondWithError отдаёт ошибку клиенту в едином формате
func RespondWithError(c fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(httpStatus(appErr.Code)).JSON(appErr)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Внутренняя ошибка сервера",
	})
}
