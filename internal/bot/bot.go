// Package bot routes incoming Telegram updates to the chat, speech and
// transform pipelines and owns the per-user conversation, lock and intent
// state.
package bot

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/voxrelay/voxrelay/internal/auth"
	"github.com/voxrelay/voxrelay/internal/chat"
	"github.com/voxrelay/voxrelay/internal/elevenlabs"
	"github.com/voxrelay/voxrelay/internal/llm"
	"github.com/voxrelay/voxrelay/internal/metrics"
	"github.com/voxrelay/voxrelay/internal/retry"
	"github.com/voxrelay/voxrelay/internal/spool"
	"github.com/voxrelay/voxrelay/internal/state"
	"github.com/voxrelay/voxrelay/internal/telegram"
)

// Recognized commands.
const (
	cmdStart  = "/start"
	cmdHelp   = "/help"
	cmdChat   = "/chat"
	cmdSay    = "/say"
	cmdVoice  = "/voice"
	cmdReset  = "/reset"
	cmdStatus = "/status"
)

// Messenger is the Telegram surface the bot uses.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendVoiceFile(ctx context.Context, chatID int64, path string) (*telegram.Message, error)
	DownloadFile(ctx context.Context, fileID, dstPath string) (int64, error)
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

var _ Messenger = (*telegram.Client)(nil)

// Generator produces an assistant reply for a conversation.
type Generator interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

var _ Generator = (*llm.Client)(nil)

// Synthesizer produces audio from text or re-voices existing audio.
type Synthesizer interface {
	TextToSpeech(ctx context.Context, text string, ov elevenlabs.Overrides, dstPath string) error
	SpeechToSpeech(ctx context.Context, srcPath, dstPath string) error
}

var _ Synthesizer = (*elevenlabs.Client)(nil)

// Deps carries the bot's collaborators. Generator may be nil, which disables
// the chat pipeline while keeping the voice pipelines available.
type Deps struct {
	Auth      *auth.Registry
	History   *chat.Store
	Telegram  Messenger
	Generator Generator
	Synth     Synthesizer
	Spool     *spool.Spool
	Metrics   *metrics.Metrics
	Retry     retry.Policy
	Logger    *slog.Logger
}

// Bot owns the per-user state and dispatches updates to pipelines.
type Bot struct {
	auth     *auth.Registry
	history  *chat.Store
	tg       Messenger
	gen      Generator
	voice    Synthesizer
	spool    *spool.Spool
	metrics  *metrics.Metrics
	retry    retry.Policy
	logger   *slog.Logger
	ops      *state.Operations
	intents  *state.Intents
	sessions *state.Sessions

	startedAt time.Time
	wg        sync.WaitGroup
}

// New creates a Bot with fresh lock, intent and session state.
func New(deps Deps) *Bot {
	return &Bot{
		auth:      deps.Auth,
		history:   deps.History,
		tg:        deps.Telegram,
		gen:       deps.Generator,
		voice:     deps.Synth,
		spool:     deps.Spool,
		metrics:   deps.Metrics,
		retry:     deps.Retry,
		logger:    deps.Logger,
		ops:       state.NewOperations(),
		intents:   state.NewIntents(),
		sessions:  state.NewSessions(),
		startedAt: time.Now(),
	}
}

// HandleUpdate processes the update in its own goroutine so one slow
// pipeline never blocks polling. Per-user exclusivity is enforced by the
// operation lock, not by serialization.
func (b *Bot) HandleUpdate(u telegram.Update) {
	b.metrics.RecordUpdate()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.process(u)
	}()
}

// Wait blocks until all in-flight updates have settled. Pipelines are never
// cancelled mid-flight; shutdown waits for them instead.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) process(u telegram.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil {
		b.logger.Debug("skipping update without sender", "update_id", u.UpdateID)
		return
	}

	userID := msg.From.ID
	chatID := msg.Chat.ID
	ctx := context.Background()

	// Fault boundary: a panic in one update must never take the process
	// down or leave the user's lock or intent wedged.
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling update",
				"update_id", u.UpdateID,
				"user_id", userID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			b.ops.Release(userID)
			b.intents.Clear(userID)
			b.reply(ctx, chatID, msgInternalError)
		}
	}()

	if !b.auth.Allowed(userID) {
		b.logger.Warn("unauthorized user rejected",
			"user_id", userID,
			"username", msg.From.Username,
		)
		b.reply(ctx, chatID, msgUnauthorized)
		return
	}

	b.sessions.Touch(userID)

	if msg.Voice != nil || msg.Audio != nil {
		b.handleAudio(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	name, args := splitCommand(text)

	// The transform command is the only input that does not cancel an
	// armed intent.
	if name == cmdVoice {
		b.handleVoiceCommand(ctx, chatID, userID, msg.MessageID)
		return
	}
	if _, armed := b.intents.Consume(userID); armed {
		b.reply(ctx, chatID, msgTransformCancelled)
		return
	}

	switch name {
	case cmdStart, cmdHelp:
		b.reply(ctx, chatID, helpReply(b.gen != nil))
	case cmdReset:
		b.history.Reset(userID)
		b.reply(ctx, chatID, msgResetDone)
	case cmdChat:
		if args == "" {
			b.reply(ctx, chatID, msgChatUsage)
			return
		}
		b.runChat(ctx, chatID, userID, args)
	case cmdSay:
		b.runSpeak(ctx, chatID, userID, args)
	case cmdStatus:
		b.handleStatusCommand(ctx, chatID, userID)
	default:
		if text == "" {
			b.logger.Debug("ignoring message without text", "user_id", userID)
			return
		}
		// Everything else, including unknown commands, is an implicit
		// chat request.
		b.runChat(ctx, chatID, userID, text)
	}
}

// handleAudio dispatches an incoming voice or audio message. Audio is only
// meaningful while a transform intent is armed; anything else is dropped.
func (b *Bot) handleAudio(ctx context.Context, msg *telegram.Message) {
	userID := msg.From.ID

	if _, ok := b.intents.Consume(userID); !ok {
		b.logger.Debug("ignoring unsolicited audio", "user_id", userID)
		return
	}

	fileID := ""
	switch {
	case msg.Voice != nil:
		fileID = msg.Voice.FileID
	case msg.Audio != nil:
		fileID = msg.Audio.FileID
	}

	b.runTransform(ctx, msg.Chat.ID, userID, fileID)
}

// handleVoiceCommand arms the transform intent. A held operation lock
// rejects the command without touching the intent; an armed intent stays
// armed.
func (b *Bot) handleVoiceCommand(ctx context.Context, chatID, userID int64, messageID int) {
	if _, held := b.ops.Kind(userID); held {
		b.reply(ctx, chatID, msgStillProcessing)
		return
	}
	if _, armed := b.intents.Peek(userID); armed {
		b.reply(ctx, chatID, msgAudioAlreadyExpected)
		return
	}
	b.intents.Arm(userID, messageID)
	b.reply(ctx, chatID, msgSendAudioNow)
}

func (b *Bot) handleStatusCommand(ctx context.Context, chatID, userID int64) {
	if !b.auth.Admin(userID) {
		b.reply(ctx, chatID, msgAdminOnly)
		return
	}
	files, bytes := b.spool.Stats()
	b.reply(ctx, chatID, statusText(statusSnapshot{
		uptime:     time.Since(b.startedAt),
		sessions:   b.sessions.Len(),
		histories:  b.history.Users(),
		activeOps:  b.ops.Active(),
		armed:      b.intents.Armed(),
		spoolFiles: files,
		spoolBytes: bytes,
		chatOn:     b.gen != nil,
	}))
}

// reply delivers a notice, logging delivery failures instead of propagating
// them.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.tg.SendText(ctx, chatID, text); err != nil {
		b.logger.Warn("notice delivery failed", "chat_id", chatID, "error", err)
	}
}

// splitCommand splits "/cmd@BotName args" into the normalized command name
// and its argument string. Non-command text returns an empty name.
func splitCommand(text string) (name, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	name, args, _ = strings.Cut(text, " ")
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(args)
}
