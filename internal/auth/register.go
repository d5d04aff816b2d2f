package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"library-backend/internal/engine"
	"library-backend/internal/store"
)

var emailRX = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

const maxCredentialLength = 255

type registration struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (r *registration) validate() []engine.ErrorDetail {
	var errs []engine.ErrorDetail
	check := func(ok bool, field, rule, msg string) {
		if !ok {
			errs = append(errs, engine.ErrorDetail{Field: field, Rule: rule, Message: msg})
		}
	}

	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))

	check(r.Name != "", "name", "required", "name is required")
	check(utf8.RuneCountInString(r.Name) <= maxCredentialLength, "name", "max_length",
		fmt.Sprintf("name must be at most %d characters", maxCredentialLength))

	switch {
	case r.Email == "":
		check(false, "email", "required", "email is required")
	case len(r.Email) > maxCredentialLength:
		check(false, "email", "max_length", fmt.Sprintf("email must be at most %d characters", maxCredentialLength))
	default:
		check(emailRX.MatchString(r.Email), "email", "email", "email must be a valid email address")
	}

	if r.Password == "" {
		check(false, "password", "required", "password is required")
	} else {
		check(r.Password == r.PasswordConfirmation, "password", "confirmed", "password confirmation does not match")
	}
	return errs
}

// Register handles POST /api/v1/auth/register. The new account gets no
// roles and is signed in straight away.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var body registration
	if err := c.BodyParser(&body); err != nil {
		return engine.BadRequestError("Invalid request body")
	}
	if errs := body.validate(); len(errs) > 0 {
		return engine.ValidationError(errs)
	}

	ctx := c.Context()
	userID, err := CreateUser(ctx, h.store, body.Name, body.Email, body.Password, nil)
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return engine.ValidationError([]engine.ErrorDetail{
				{Field: "email", Rule: "unique", Message: "email has already been taken"},
			})
		}
		return fmt.Errorf("register %s: %w", body.Email, err)
	}

	pair, err := h.generateTokenPair(ctx, userID, body.Email)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": pair})
}
