package notifier

import "spreadwatch/pkg/telegram"

// TelegramSender returns c as a Sender, or nil when it lacks a token or chat id so that
// the gateway built on it stays disabled.
func TelegramSender(c *telegram.Client) Sender {
	if c == nil || !c.Configured() {
		return nil
	}
	return c
}
