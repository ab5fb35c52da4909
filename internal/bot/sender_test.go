package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

type sentMessage struct {
	to   string
	what interface{}
	opts []interface{}
}

type fakeAPI struct {
	sent []sentMessage
	errs []error
}

func (f *fakeAPI) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	f.sent = append(f.sent, sentMessage{to: to.Recipient(), what: what, opts: opts})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &telebot.Message{}, nil
}

func TestSender_Text(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api)

	err := s.Send(context.Background(), 42, notify.Message{
		Text:    "hello",
		Buttons: [][]notify.Button{{{Text: "OK", Data: "order_confirm:1"}}},
	})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "42", api.sent[0].to)
	assert.Equal(t, "hello", api.sent[0].what)
	require.Len(t, api.sent[0].opts, 1)
	assert.IsType(t, &telebot.ReplyMarkup{}, api.sent[0].opts[0])
}

func TestSender_PhotoFallsBackToDocument(t *testing.T) {
	api := &fakeAPI{errs: []error{&telebot.Error{Code: 400, Description: "Bad Request: wrong file type"}}}
	s := NewSender(api)

	err := s.Send(context.Background(), -100, notify.Message{Text: "proof", PhotoRef: "file-1"})
	require.NoError(t, err)
	require.Len(t, api.sent, 2)

	photo, ok := api.sent[0].what.(*telebot.Photo)
	require.True(t, ok)
	assert.Equal(t, "proof", photo.Caption)

	doc, ok := api.sent[1].what.(*telebot.Document)
	require.True(t, ok)
	assert.Equal(t, "file-1", doc.FileID)
	assert.Empty(t, api.sent[1].opts)
}

func TestSender_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"server error", &telebot.Error{Code: 502, Description: "Bad Gateway"}, true},
		{"too many requests", &telebot.Error{Code: 429, Description: "Too Many Requests"}, true},
		{"blocked", &telebot.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSender(&fakeAPI{errs: []error{tt.err}})
			err := s.Send(context.Background(), 1, notify.Message{Text: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))
		})
	}
}

func TestSender_CancelledContext(t *testing.T) {
	api := &fakeAPI{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, NewSender(api).Send(ctx, 1, notify.Message{Text: "x"}), context.Canceled)
	assert.Empty(t, api.sent)
}
