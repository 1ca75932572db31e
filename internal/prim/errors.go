package prim

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrValidation        = errors.New("geçersiz veri")
	ErrNoActiveRate      = errors.New("aktif prim oranı bulunamadı")
	ErrDuplicateContract = errors.New("bu sözleşme numarası zaten kayıtlı")
	ErrNotFound          = errors.New("kayıt bulunamadı")
	ErrInvalidTransition = errors.New("geçersiz durum geçişi")
	ErrPeriodLocked      = errors.New("primi ödenmiş satışın dönemi değiştirilemez")
	ErrConcurrentUpdate  = errors.New("kayıt eşzamanlı başka bir işlem tarafından değiştirildi")
)

// HTTPError - Motor hatalarını fiber hatalarına çevirir. Sınıflandırılamayan
// hatalar olduğu gibi döner ve merkezi ErrorHandler'da 500'e düşer.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoActiveRate):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateContract),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrPeriodLocked),
		errors.Is(err, ErrConcurrentUpdate):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
