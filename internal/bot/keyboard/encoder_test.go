package keyboard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/keyboard"
)

func TestEncodeCallback(t *testing.T) {
	tests := []struct {
		name      string
		action    string
		data      string
		want      string
		wantError bool
	}{
		{name: "with data", action: "topup_pay", data: "kpay", want: "topup_pay:kpay"},
		{name: "without data", action: "topup_cancel", want: "topup_cancel"},
		{name: "exceeds limit", action: strings.Repeat("x", keyboard.CallbackDataLimitBytes+1), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := keyboard.EncodeCallback(tt.action, tt.data)
			if tt.wantError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCallback(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantAction string
		wantData   string
		wantErr    bool
	}{
		{name: "action and data", input: "topup_approve:TOP20240501100000123-42", wantAction: "topup_approve", wantData: "TOP20240501100000123-42"},
		{name: "only action", input: "register_request", wantAction: "register_request"},
		{name: "multiple separators", input: "history:2:extra", wantAction: "history", wantData: "2:extra"},
		{name: "telebot unique prefix", input: "\forder_confirm:ORD1-42", wantAction: "order_confirm", wantData: "ORD1-42"},
		{name: "empty input", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, data, err := keyboard.DecodeCallback(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantData, data)
		})
	}
}
