package admin

import (
	"strconv"
	"strings"

	"emlak-backend/internal/database"
	"emlak-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"` // "danisman" | "admin", boşsa danisman
}

// -------------------------------------------------
// POST /api/admin/users
// -------------------------------------------------
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		if body.Email == "" || body.Password == "" || body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}

		role := models.RoleSalesperson
		if body.Role != "" {
			role = models.UserRole(body.Role)
			if role != models.RoleSalesperson && role != models.RoleAdmin {
				return fiber.NewError(fiber.StatusBadRequest, "Rol 'danisman' veya 'admin' olmalı")
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			Phone:        body.Phone,
			PasswordHash: string(hash),
			Role:         role,
			IsActive:     true,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusConflict, "Kullanıcı oluşturulamadı, email kayıtlı olabilir")
		}

		return c.Status(fiber.StatusCreated).JSON(user)
	}
}

// -------------------------------------------------
// GET /api/admin/users?role=danisman
// -------------------------------------------------
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.User{}).Order("name ASC")

		if role := c.Query("role"); role != "" {
			q = q.Where("role = ?", role)
		}

		var users []models.User
		if err := q.Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar alınamadı")
		}

		return c.JSON(users)
	}
}

// -------------------------------------------------
// PATCH /api/admin/users/:id/active
// İşten ayrılan danışman pasife çekilir; satışları ve defter kayıtları kalır.
// -------------------------------------------------
func SetUserActiveHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil || id < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Kullanıcı ID geçersiz")
		}

		var body struct {
			IsActive bool `json:"is_active"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		res := database.DB.Model(&models.User{}).
			Where("id = ?", id).
			Update("is_active", body.IsActive)
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı güncellenemedi")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Kullanıcı bulunamadı")
		}

		return c.JSON(fiber.Map{"id": id, "is_active": body.IsActive})
	}
}
