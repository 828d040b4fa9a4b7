package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUpdateSize bounds a single webhook body.
const maxUpdateSize = 1 << 20

// Webhook receives Bot API updates. It always answers 200 so Telegram does
// not redeliver; every failure is logged with the update id.
func Webhook(bot *Bot, secret string, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if secret != "" {
			got := c.Request().Header.Get(secretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				log.Warn("telegram webhook secret mismatch", zap.String("remote_ip", c.RealIP()))
				return c.NoContent(http.StatusOK)
			}
		}

		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxUpdateSize))
		if err != nil {
			log.Warn("telegram update unreadable", zap.Error(err))
			return c.NoContent(http.StatusOK)
		}
		var u tgbotapi.Update
		if err := json.Unmarshal(body, &u); err != nil {
			log.Warn("telegram update malformed", zap.Error(err))
			return c.NoContent(http.StatusOK)
		}

		if err := handleSafely(c, bot, u); err != nil {
			log.Error("telegram update failed", zap.Int("update_id", u.UpdateID), zap.Error(err))
		}
		return c.NoContent(http.StatusOK)
	}
}

func handleSafely(c echo.Context, bot *Bot, u tgbotapi.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return bot.HandleUpdate(c.Request().Context(), u)
}
