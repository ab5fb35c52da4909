package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CallbackDataSeparator = ":"
	// CallbackDataLimitBytes is the Telegram limit for callback_data.
	CallbackDataLimitBytes = 64
)

// EncodeCallback joins an action and its argument as "action:data".
func EncodeCallback(action, data string) (string, error) {
	payload := action
	if data != "" {
		payload = action + CallbackDataSeparator + data
	}

	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits callback data at the first separator.
func DecodeCallback(callbackData string) (action, data string, err error) {
	if callbackData == "" {
		return "", "", errors.New("callback data is empty")
	}

	// telebot prefixes data of buttons registered with a Unique with "\f"
	callbackData = strings.TrimPrefix(callbackData, "\f")

	action, data, _ = strings.Cut(callbackData, CallbackDataSeparator)
	return action, data, nil
}
