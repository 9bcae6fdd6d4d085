package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	// MaxEmailLen максимальная длина email (RFC 5321)
	MaxEmailLen = 254
	// MaxNameLen максимальная длина отображаемого имени
	MaxNameLen = 100
	// MaxPasswordLen - bcrypt игнорирует все после 72 байт
	MaxPasswordLen = 72
)

// ValidateEmail проверяет, что email задан и похож на адрес вида user@host
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLen)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return fmt.Errorf("email is not a valid address")
	}

	return nil
}

// ValidateName проверяет отображаемое имя пользователя
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if utf8.RuneCountInString(name) > MaxNameLen {
		return fmt.Errorf("name must not exceed %d characters", MaxNameLen)
	}

	return nil
}

// ValidatePassword проверяет пароль при регистрации.
// Требований к сложности нет, только границы длины.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordLen)
	}

	return nil
}
