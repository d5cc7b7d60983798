package bot

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/turrn3r/walletlink/core"
)

// SecretHeader carries the shared secret Telegram sends with webhook calls
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// CheckSecret compares the received webhook secret in constant time
func CheckSecret(got, want string) error {
	if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return core.ErrUnauthorized
	}
	return nil
}

// DecodeUpdate reads one update object from a webhook body
func DecodeUpdate(r io.Reader) (tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&update); err != nil {
		return tgbotapi.Update{}, fmt.Errorf("failed to decode update: %v: %w", err, core.ErrInvalidInput)
	}
	return update, nil
}
