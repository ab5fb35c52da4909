package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// Main menu labels. Each maps to the command it triggers.
const (
	MenuPrice   = "💎 Price list"
	MenuBalance = "💰 Balance"
	MenuHistory = "📜 History"
	MenuHelp    = "❓ Help"
)

var menuCommands = map[string]string{
	MenuPrice:   "/price",
	MenuBalance: "/balance",
	MenuHistory: "/history",
	MenuHelp:    "/start",
}

// MenuCommand returns the command behind a main menu label.
func MenuCommand(text string) (string, bool) {
	cmd, ok := menuCommands[text]
	return cmd, ok
}

// MainMenu builds the persistent reply keyboard for authorized users.
func MainMenu() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: false,
	}

	markup.Reply(
		markup.Row(markup.Text(MenuPrice), markup.Text(MenuBalance)),
		markup.Row(markup.Text(MenuHistory), markup.Text(MenuHelp)),
	)

	return markup
}
