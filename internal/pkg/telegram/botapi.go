package telegram

import (
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// BotAPI is a direct Telegram Bot API client used for out-of-band sends:
// notifications fired by the workflow and cron jobs run outside any
// telebot handler context.
type BotAPI struct {
	token  string
	client *resty.Client
}

// NewBotAPI creates a new direct Telegram Bot API client.
func NewBotAPI(token string) *BotAPI {
	return &BotAPI{
		token:  token,
		client: resty.New().SetBaseURL("https://api.telegram.org/bot" + token),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Call makes a raw API call and decodes the envelope.
func (b *BotAPI) Call(method string, params map[string]interface{}) (json.RawMessage, error) {
	resp, err := b.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(params).
		Post("/" + method)
	if err != nil {
		return nil, fmt.Errorf("telegram API call %s failed: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("telegram API call %s: bad response: %w", method, err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("telegram API call %s rejected: %s", method, envelope.Description)
	}
	return envelope.Result, nil
}

// SendMessage sends an HTML-formatted text message and returns the new
// message id.
func (b *BotAPI) SendMessage(chatID string, text string, replyMarkup interface{}) (int, error) {
	params := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if replyMarkup != nil {
		params["reply_markup"] = replyMarkup
	}

	result, err := b.Call("sendMessage", params)
	if err != nil {
		return 0, err
	}
	var msg struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("sendMessage: bad result: %w", err)
	}
	return msg.MessageID, nil
}

// SendPhoto sends a photo by Telegram file id with an HTML caption.
func (b *BotAPI) SendPhoto(chatID, fileID, caption string, replyMarkup interface{}) (int, error) {
	params := map[string]interface{}{
		"chat_id":    chatID,
		"photo":      fileID,
		"caption":    caption,
		"parse_mode": "HTML",
	}
	if replyMarkup != nil {
		params["reply_markup"] = replyMarkup
	}

	result, err := b.Call("sendPhoto", params)
	if err != nil {
		return 0, err
	}
	var msg struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("sendPhoto: bad result: %w", err)
	}
	return msg.MessageID, nil
}

// DeleteMessage deletes a previously sent message.
func (b *BotAPI) DeleteMessage(chatID string, messageID int) error {
	_, err := b.Call("deleteMessage", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	})
	return err
}

// EditMessageText edits a message's text.
func (b *BotAPI) EditMessageText(chatID string, messageID int, text string) error {
	_, err := b.Call("editMessageText", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	})
	return err
}

// ForwardMessage forwards a message between chats and returns the new
// message id.
func (b *BotAPI) ForwardMessage(toChatID, fromChatID string, messageID int) (int, error) {
	result, err := b.Call("forwardMessage", map[string]interface{}{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	})
	if err != nil {
		return 0, err
	}
	var msg struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("forwardMessage: bad result: %w", err)
	}
	return msg.MessageID, nil
}

// IsChatMember reports whether the user belongs to the chat. "left" and
// "kicked" count as absent; lookup failures count as present so a broken
// channel cannot lock users out.
func (b *BotAPI) IsChatMember(chatID, userID string) bool {
	result, err := b.Call("getChatMember", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	})
	if err != nil {
		return true
	}
	var member struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(result, &member); err != nil {
		return true
	}
	return member.Status != "left" && member.Status != "kicked"
}

// SetWebhook sets the webhook URL.
func (b *BotAPI) SetWebhook(url string) error {
	_, err := b.Call("setWebhook", map[string]interface{}{
		"url": url,
	})
	return err
}
