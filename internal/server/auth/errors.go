package auth

import "errors"

// Ошибки Token Issuer. Все терминальные и не повторяются на сервере.
var (
	// ErrInvalidCredentials - неизвестный email или неверный пароль, без различия
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidInput - в запросе не хватает обязательных полей
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmailTaken - email уже зарегистрирован
	ErrEmailTaken = errors.New("email already registered")

	// ErrNoRefreshToken - refresh cookie отсутствует
	ErrNoRefreshToken = errors.New("refresh token required")

	// ErrInvalidRefreshToken - секрет не совпал ни с одной записью, в том числе уже ротированный
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrRefreshTokenExpired - запись найдена, но срок жизни истек
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// ErrUserNotFound - владелец refresh token удален
	ErrUserNotFound = errors.New("user not found")

	// ErrForbidden - пользователь меняет чужую запись
	ErrForbidden = errors.New("forbidden")
)
