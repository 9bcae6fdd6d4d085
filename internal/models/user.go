package models

import "time"

// User представляет учетную запись пользователя (credential record)
type User struct {
	CreatedAt    time.Time `json:"created_at"`    // время создания
	ID           string    `json:"id"`            // UUID пользователя
	Email        string    `json:"email"`         // уникальный email
	Name         string    `json:"name"`          // отображаемое имя
	PasswordHash string    `json:"-"`             // bcrypt хеш пароля, наружу не отдается
}

// RefreshToken представляет запись refresh token.
// Сырой секрет не хранится, только его keyed hash.
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"` // абсолютное время истечения
	CreatedAt time.Time `json:"created_at"` // время выдачи (логин)
	ID        string    `json:"id"`         // UUID записи, не меняется при ротации
	UserID    string    `json:"user_id"`    // владелец токена
	TokenHash string    `json:"token_hash"` // HMAC-SHA256 от сырого секрета
}

// Expired reports whether the record is logically dead at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
