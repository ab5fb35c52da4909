package keyboard

import (
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"
)

// Callback actions of user-facing buttons. Staff decision actions live in
// package notify next to the messages that carry them.
const (
	ActionTopUpPay        = "topup_pay"
	ActionTopUpCancel     = "topup_cancel"
	ActionRegisterRequest = "register_request"
	ActionHistory         = "history"
)

var channelLabels = map[string]string{
	"kpay": "KBZ Pay",
	"wave": "Wave Pay",
}

// Builder creates the inline keyboards of the top-up flow.
type Builder struct {
	log *slog.Logger
}

func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// PaymentChannels offers one button per channel and a cancel button.
func (b *Builder) PaymentChannels(channels []string) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()

	row := make([]InlineButton, 0, len(channels))
	for _, ch := range channels {
		label, ok := channelLabels[ch]
		if !ok {
			label = strings.ToUpper(ch)
		}
		row = append(row, InlineButton{Text: "💳 " + label, Action: ActionTopUpPay, Data: ch})
	}
	kb.AddRow(row...)
	kb.AddRow(InlineButton{Text: "Cancel ❌", Action: ActionTopUpCancel})

	return b.build(kb)
}

// CancelButton builds a single top-up cancel button.
func (b *Builder) CancelButton() *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().AddRow(InlineButton{Text: "Cancel ❌", Action: ActionTopUpCancel}))
}

func (b *Builder) RegisterButton() *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().AddRow(InlineButton{Text: "📝 Request access", Action: ActionRegisterRequest}))
}

// History renders the pagination row of the history view, or nil for a
// single page.
func (b *Builder) History(page, pages int) *telebot.ReplyMarkup {
	if pages <= 1 {
		return nil
	}
	return b.build(NewInlineKeyboard().AddRow(PaginationButtons(ActionHistory, page, pages)...))
}

func (b *Builder) build(kb *InlineKeyboardBuilder) *telebot.ReplyMarkup {
	markup, err := kb.Build()
	if err != nil {
		b.log.Error("failed to build inline keyboard", slog.Any("error", err))
		return nil
	}
	return markup
}
