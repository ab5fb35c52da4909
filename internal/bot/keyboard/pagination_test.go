package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/keyboard"
)

func TestPaginationButtons(t *testing.T) {
	testCases := []struct {
		name      string
		page      int
		total     int
		wantTexts []string
		wantData  []string
	}{
		{name: "first page", page: 1, total: 5, wantTexts: []string{"Page 1/5", "Next ▶️"}, wantData: []string{"1", "2"}},
		{name: "middle page", page: 3, total: 5, wantTexts: []string{"◀️ Prev", "Page 3/5", "Next ▶️"}, wantData: []string{"2", "3", "4"}},
		{name: "last page", page: 5, total: 5, wantTexts: []string{"◀️ Prev", "Page 5/5"}, wantData: []string{"4", "5"}},
		{name: "page beyond total is clamped", page: 9, total: 2, wantTexts: []string{"◀️ Prev", "Page 2/2"}, wantData: []string{"1", "2"}},
		{name: "single page", page: 1, total: 0, wantTexts: []string{"Page 1/1"}, wantData: []string{"1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buttons := keyboard.PaginationButtons(keyboard.ActionHistory, tc.page, tc.total)
			require.Len(t, buttons, len(tc.wantTexts))

			for i := range tc.wantTexts {
				assert.Equal(t, tc.wantTexts[i], buttons[i].Text)
				assert.Equal(t, keyboard.ActionHistory, buttons[i].Action)
				assert.Equal(t, tc.wantData[i], buttons[i].Data)
			}
		})
	}
}
