package keyboard

import (
	"fmt"
	"strconv"
)

// PaginationButtons returns up to three buttons (prev, current page, next)
// sharing action, each carrying the page number it opens.
func PaginationButtons(action string, page, totalPages int) []InlineButton {
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)

	buttons := make([]InlineButton, 0, 3)

	if page > 1 {
		buttons = append(buttons, InlineButton{Text: "◀️ Prev", Action: action, Data: strconv.Itoa(page - 1)})
	}

	buttons = append(buttons, InlineButton{
		Text:   fmt.Sprintf("Page %d/%d", page, totalPages),
		Action: action,
		Data:   strconv.Itoa(page),
	})

	if page < totalPages {
		buttons = append(buttons, InlineButton{Text: "Next ▶️", Action: action, Data: strconv.Itoa(page + 1)})
	}

	return buttons
}
