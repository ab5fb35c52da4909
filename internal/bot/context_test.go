package bot

import (
	"fmt"
	"sync"

	telebot "gopkg.in/telebot.v3"
)

// fakeContext records what handlers send. Methods the bot never calls fall
// through to the nil embedded interface and panic.
type fakeContext struct {
	telebot.Context

	sender   *telebot.User
	chat     *telebot.Chat
	message  *telebot.Message
	callback *telebot.Callback

	mu        sync.Mutex
	store     map[string]interface{}
	sent      []string
	markups   []*telebot.ReplyMarkup
	edits     []string
	responses []*telebot.CallbackResponse
}

func newTextContext(userID int64, text string) *fakeContext {
	user := &telebot.User{ID: userID, FirstName: fmt.Sprintf("user%d", userID)}
	chat := &telebot.Chat{ID: userID}
	return &fakeContext{
		sender:  user,
		chat:    chat,
		message: &telebot.Message{ID: 1, Sender: user, Chat: chat, Text: text},
	}
}

func newPhotoContext(userID int64, fileID string) *fakeContext {
	c := newTextContext(userID, "")
	c.message.Photo = &telebot.Photo{File: telebot.File{FileID: fileID}}
	return c
}

func newCallbackContext(userID int64, id, data string) *fakeContext {
	c := newTextContext(userID, "")
	c.message.Text = "prompt"
	c.callback = &telebot.Callback{ID: id, Sender: c.sender, Message: c.message, Data: data}
	return c
}

func (c *fakeContext) Sender() *telebot.User       { return c.sender }
func (c *fakeContext) Chat() *telebot.Chat         { return c.chat }
func (c *fakeContext) Callback() *telebot.Callback { return c.callback }
func (c *fakeContext) Message() *telebot.Message   { return c.message }

func (c *fakeContext) Text() string {
	if c.message == nil {
		return ""
	}
	return c.message.Text
}

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, fmt.Sprint(what))
	var markup *telebot.ReplyMarkup
	for _, opt := range opts {
		if m, ok := opt.(*telebot.ReplyMarkup); ok {
			markup = m
		}
	}
	c.markups = append(c.markups, markup)
	return nil
}

func (c *fakeContext) Edit(what interface{}, _ ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, fmt.Sprint(what))
	return nil
}

func (c *fakeContext) EditCaption(caption string, _ ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, caption)
	return nil
}

func (c *fakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(resp) == 0 {
		c.responses = append(c.responses, &telebot.CallbackResponse{})
		return nil
	}
	c.responses = append(c.responses, resp...)
	return nil
}

func (c *fakeContext) Set(key string, val interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]interface{})
	}
	c.store[key] = val
}

func (c *fakeContext) Get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[key]
}

func (c *fakeContext) lastSent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeContext) lastMarkup() *telebot.ReplyMarkup {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.markups) == 0 {
		return nil
	}
	return c.markups[len(c.markups)-1]
}

func (c *fakeContext) lastResponse() *telebot.CallbackResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.responses) == 0 {
		return nil
	}
	return c.responses[len(c.responses)-1]
}
