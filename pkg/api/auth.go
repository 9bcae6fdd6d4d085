package api

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// AuthResponse возвращается login и refresh.
// Refresh token в теле не передается, только в cookie.
type AuthResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"token"` // JWT access token
}

// UserResponse описывает пользователя без токенов
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name"`
}

// UpdateUserRequest меняет отображаемое имя
type UpdateUserRequest struct {
	Name string `json:"name"`
}

// ChangePasswordRequest меняет пароль. Текущий пароль обязателен.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// DeleteUsersResponse - результат удаления всех пользователей
type DeleteUsersResponse struct {
	Deleted int `json:"deleted"`
}

// MessageResponse представляет ответ с текстовым сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse представляет ответ с ошибкой.
// Error - машиночитаемый вид ошибки (InvalidRefreshToken и т.п.)
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status      string `json:"status"`
	SigningMode string `json:"signing_mode"`
	Storage     string `json:"storage"`
	Version     string `json:"version,omitempty"`
}

// RefreshCookieName - имя HttpOnly cookie с refresh token
const RefreshCookieName = "refreshToken"
