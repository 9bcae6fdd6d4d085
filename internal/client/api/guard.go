package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/learnhub/pkg/api"
)

// SessionExpiredMessage показывается пользователю, когда refresh не удался
const SessionExpiredMessage = "Session expired. Please log in again."

// ErrNoAccessToken - refresh ответил без токена
var ErrNoAccessToken = errors.New("refresh response has no access token")

// Fetch выполняет запрос с текущим access token.
//
// На 401 или 403 один раз вызывает refresh. Если refresh удался, новый токен
// сохраняется и исходный запрос повторяется ровно один раз; ответ повтора
// возвращается как есть. Если refresh не удался, локальная сессия очищается,
// пользователь получает уведомление и переход на экран логина, а вызывающему
// возвращается исходный ответ 401/403.
//
// body может быть nil; он отправляется повторно, поэтому передается срезом.
func (c *Client) Fetch(ctx context.Context, method, path string, body []byte, header http.Header) (*http.Response, error) {
	token, err := c.store.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	resp, err := c.send(ctx, method, path, body, header, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	// Тело исходного ответа буферизуем, оно может понадобиться вызывающему
	original, err := bufferBody(resp)
	if err != nil {
		return nil, err
	}

	newToken, err := c.refresh(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "access token refresh failed", slog.Any("error", err))
		return original, nil
	}

	return c.send(ctx, method, path, body, header, newToken)
}

// refresh обменивает refresh cookie на новый access token.
// Параллельные вызовы объединяются, если coalescing включен.
func (c *Client) refresh(ctx context.Context) (string, error) {
	if c.group == nil {
		return c.doRefresh(ctx)
	}

	ch := c.group.DoChan("refresh", func() (any, error) {
		// Отмена одного из ожидающих не должна прерывать общий refresh
		return c.doRefresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	var resp api.AuthResponse
	err := c.doRequest(ctx, http.MethodPost, PathRefresh, nil, &resp)
	if err == nil && resp.Token == "" {
		err = ErrNoAccessToken
	}
	if err != nil {
		c.expireSession(ctx)
		return "", err
	}

	if err := c.store.SaveToken(ctx, resp.Token, identityOf(&resp)); err != nil {
		return "", fmt.Errorf("failed to save access token: %w", err)
	}
	return resp.Token, nil
}

// expireSession очищает сессию, уведомляет пользователя и
// переводит на экран логина, если он еще не открыт
func (c *Client) expireSession(ctx context.Context) {
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.ErrorContext(ctx, "failed to clear session", slog.Any("error", err))
	}

	if c.notifier != nil {
		c.notifier.Notify(SessionExpiredMessage)
	}

	if c.navigator == nil || c.navigator.CurrentView() == c.loginView {
		return
	}

	if c.redirectDelay <= 0 {
		c.navigator.Navigate(c.loginView)
		return
	}
	time.AfterFunc(c.redirectDelay, func() {
		c.navigator.Navigate(c.loginView)
	})
}

func bufferBody(resp *http.Response) (*http.Response, error) {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}
