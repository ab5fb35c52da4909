package bot

import (
	"context"
	"errors"
	"net"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/keyboard"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

// messageAPI is the part of telebot.API the sender uses.
type messageAPI interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Sender delivers notifications through the Telegram Bot API.
type Sender struct {
	api messageAPI
}

var _ notify.Sender = (*Sender)(nil)

// NewSender returns a notify.Sender backed by api, normally a *telebot.Bot.
func NewSender(api messageAPI) *Sender {
	return &Sender{api: api}
}

// Send posts msg to chatID. Proofs are attached as a photo with the text as
// caption; a proof uploaded as an image document is re-sent as a document.
func (s *Sender) Send(ctx context.Context, chatID int64, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := chatRecipient(chatID)
	var opts []interface{}
	if markup := keyboard.FromButtons(msg.Buttons); markup != nil {
		opts = append(opts, markup)
	}

	var err error
	if msg.PhotoRef == "" {
		_, err = s.api.Send(to, msg.Text, opts...)
		return classify(err)
	}

	_, err = s.api.Send(to, &telebot.Photo{File: telebot.File{FileID: msg.PhotoRef}, Caption: msg.Text}, opts...)
	var apiErr *telebot.Error
	if errors.As(err, &apiErr) && apiErr.Code == 400 {
		_, err = s.api.Send(to, &telebot.Document{File: telebot.File{FileID: msg.PhotoRef}, Caption: msg.Text}, opts...)
	}

	return classify(err)
}

type chatRecipient int64

func (r chatRecipient) Recipient() string {
	return strconv.FormatInt(int64(r), 10)
}

// classify marks transient Telegram failures as retryable. Permanent ones
// such as a user blocking the bot are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var flood telebot.FloodError
	var floodPtr *telebot.FloodError
	if errors.As(err, &flood) || errors.As(err, &floodPtr) {
		return apperrors.NewExternalAPIError("telegram", err)
	}

	var apiErr *telebot.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 500 || apiErr.Code == 429 {
			return apperrors.NewExternalAPIError("telegram", err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewExternalAPIError("telegram", err)
	}

	return err
}
