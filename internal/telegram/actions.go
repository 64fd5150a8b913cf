package telegram

import (
	"context"
	"time"
)

// Chat action values understood by sendChatAction.
const (
	ActionTyping      = "typing"
	ActionRecordVoice = "record_voice"
	ActionUploadVoice = "upload_voice"
)

// actionRefresh is how often the action indicator is re-sent. Telegram clears
// a chat action after about five seconds, so refreshing at four keeps it
// visible for the duration of a long operation.
const actionRefresh = 4 * time.Second

// ActionSender is the subset of the client used by StartActionLoop.
type ActionSender interface {
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// StartActionLoop keeps the given chat action visible until the returned stop
// function is called or ctx is cancelled. Failures are ignored; the indicator
// is cosmetic and must never fail the surrounding operation.
func StartActionLoop(ctx context.Context, c ActionSender, chatID int64, action string) (stop func()) {
	loopCtx, cancel := context.WithCancel(ctx)

	go func() {
		_ = c.SendChatAction(loopCtx, chatID, action)

		ticker := time.NewTicker(actionRefresh)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				_ = c.SendChatAction(loopCtx, chatID, action)
			}
		}
	}()

	return cancel
}
