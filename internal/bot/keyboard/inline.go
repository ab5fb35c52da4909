package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

// InlineButton is a button whose callback data is Action[:Data].
type InlineButton struct {
	Text   string
	Action string
	Data   string
}

// InlineKeyboardBuilder accumulates button rows before rendering telebot markup.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{rows: make([][]InlineButton, 0)}
}

// AddRow appends a row. Empty rows are skipped.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]InlineButton, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)
	return b
}

// Build renders the markup. It fails when any button's callback data is over
// the Telegram limit.
func (b *InlineKeyboardBuilder) Build() (*telebot.ReplyMarkup, error) {
	inline := make([][]telebot.InlineButton, len(b.rows))
	for i, row := range b.rows {
		inline[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			data, err := EncodeCallback(btn.Action, btn.Data)
			if err != nil {
				return nil, err
			}
			inline[i][j] = telebot.InlineButton{Text: btn.Text, Data: data}
		}
	}

	return &telebot.ReplyMarkup{InlineKeyboard: inline}, nil
}

// FromButtons converts rendered notification buttons. Nil is returned for no
// buttons so callers can pass the result straight to Send.
func FromButtons(rows [][]notify.Button) *telebot.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}

	inline := make([][]telebot.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]telebot.InlineButton, len(row))
		for i, btn := range row {
			out[i] = telebot.InlineButton{Text: btn.Text, Data: btn.Data}
		}
		inline = append(inline, out)
	}

	return &telebot.ReplyMarkup{InlineKeyboard: inline}
}
