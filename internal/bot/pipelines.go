package bot

import (
	"context"
	"errors"
	"time"

	"github.com/voxrelay/voxrelay/internal/elevenlabs"
	"github.com/voxrelay/voxrelay/internal/llm"
	"github.com/voxrelay/voxrelay/internal/metrics"
	"github.com/voxrelay/voxrelay/internal/retry"
	"github.com/voxrelay/voxrelay/internal/state"
	"github.com/voxrelay/voxrelay/internal/telegram"
	"github.com/voxrelay/voxrelay/internal/voiceopts"
)

// Backend labels for retry metrics.
const (
	backendGeneration = "generation"
	backendSynthesis  = "synthesis"
)

// runChat generates an assistant reply from the user's full conversation
// history. The user message stays in the history even when the backend call
// fails; only a successful call appends the assistant reply.
func (b *Bot) runChat(ctx context.Context, chatID, userID int64, text string) {
	if b.gen == nil {
		b.reply(ctx, chatID, msgChatDisabled)
		return
	}
	if !b.ops.TryAcquire(userID, state.KindGeneratingText) {
		b.reply(ctx, chatID, msgStillProcessing)
		return
	}
	defer b.ops.Release(userID)

	outcome := metrics.OutcomeError
	finish := b.track(state.KindGeneratingText)
	defer func() { finish(outcome) }()

	stop := telegram.StartActionLoop(ctx, b.tg, chatID, telegram.ActionTyping)
	defer stop()

	b.history.Append(userID, llm.Message{Role: llm.RoleUser, Content: text})

	reply, err := retry.Do(ctx, b.policy(backendGeneration), b.logger, func(ctx context.Context) (string, error) {
		return b.gen.Complete(ctx, b.history.History(userID))
	})
	if err != nil {
		b.logger.Error("chat completion failed", "user_id", userID, "error", err)
		b.reply(ctx, chatID, msgChatFailed)
		return
	}

	b.history.Append(userID, llm.Message{Role: llm.RoleAssistant, Content: reply})

	if err := b.tg.SendText(ctx, chatID, reply); err != nil {
		b.logger.Error("reply delivery failed", "user_id", userID, "error", err)
		b.reply(ctx, chatID, msgDeliveryFailed)
		return
	}
	outcome = metrics.OutcomeOK
}

// runSpeak synthesizes the command body into a voice note. Parse failures
// and empty bodies are rejected before any lock or backend work.
func (b *Bot) runSpeak(ctx context.Context, chatID, userID int64, args string) {
	res, err := voiceopts.Parse(args)
	if err != nil {
		var parseErr *voiceopts.ParseError
		if errors.As(err, &parseErr) {
			b.reply(ctx, chatID, speakParseErrorText(parseErr))
			return
		}
		b.reply(ctx, chatID, msgSayUsage)
		return
	}
	if res.Body == "" {
		b.reply(ctx, chatID, msgSayUsage)
		return
	}

	if !b.ops.TryAcquire(userID, state.KindTextToVoice) {
		b.reply(ctx, chatID, msgStillProcessing)
		return
	}
	defer b.ops.Release(userID)

	outcome := metrics.OutcomeError
	finish := b.track(state.KindTextToVoice)
	defer func() { finish(outcome) }()

	stop := telegram.StartActionLoop(ctx, b.tg, chatID, telegram.ActionRecordVoice)
	defer stop()

	out := b.spool.Path(".ogg")
	defer b.spool.Remove(out)

	ov := elevenlabs.Overrides{
		Stability:       res.Overrides.Stability,
		SimilarityBoost: res.Overrides.SimilarityBoost,
		Speed:           res.Overrides.Speed,
	}
	err = b.withRetry(ctx, backendSynthesis, func(ctx context.Context) error {
		return b.voice.TextToSpeech(ctx, res.Body, ov, out)
	})
	if err != nil {
		b.logger.Error("speech synthesis failed", "user_id", userID, "error", err)
		b.reply(ctx, chatID, msgSynthesisFailed)
		return
	}

	if _, err := b.tg.SendVoiceFile(ctx, chatID, out); err != nil {
		b.logger.Error("voice delivery failed", "user_id", userID, "error", err)
		b.reply(ctx, chatID, msgDeliveryFailed)
		return
	}
	outcome = metrics.OutcomeOK
}

// runTransform re-voices the user's audio message. The intent was already
// consumed by the router; both the downloaded input and the produced output
// are deleted on every exit path.
func (b *Bot) runTransform(ctx context.Context, chatID, userID int64, fileID string) {
	if !b.ops.TryAcquire(userID, state.KindVoiceTransform) {
		b.reply(ctx, chatID, msgStillProcessing)
		return
	}
	defer b.ops.Release(userID)

	outcome := metrics.OutcomeError
	finish := b.track(state.KindVoiceTransform)
	defer func() { finish(outcome) }()

	stop := telegram.StartActionLoop(ctx, b.tg, chatID, telegram.ActionRecordVoice)
	defer stop()

	in := b.spool.Path(".oga")
	defer b.spool.Remove(in)
	out := b.spool.Path(".ogg")
	defer b.spool.Remove(out)

	if _, err := b.tg.DownloadFile(ctx, fileID, in); err != nil {
		b.logger.Error("audio download failed", "user_id", userID, "file_id", fileID, "error", err)
		b.reply(ctx, chatID, msgDownloadFailed)
		return
	}

	err := b.withRetry(ctx, backendSynthesis, func(ctx context.Context) error {
		return b.voice.SpeechToSpeech(ctx, in, out)
	})
	if err != nil {
		b.logger.Error("voice transform failed", "user_id", userID, "error", err)
		b.reply(ctx, chatID, msgTransformFailed)
		return
	}

	if _, err := b.tg.SendVoiceFile(ctx, chatID, out); err != nil {
		b.logger.Error("voice delivery failed", "user_id", userID, "error", err)
		b.reply(ctx, chatID, msgDeliveryFailed)
		return
	}
	outcome = metrics.OutcomeOK
}

// track opens a metrics span for one pipeline run. The returned finish is
// run via defer so the active gauge stays balanced even when a pipeline
// panics.
func (b *Bot) track(kind state.Kind) func(outcome string) {
	b.metrics.PipelineStarted()
	start := time.Now()
	return func(outcome string) {
		b.metrics.PipelineFinished(string(kind), outcome, time.Since(start))
	}
}

// policy returns the bot's retry policy with retry accounting for the given
// backend attached.
func (b *Bot) policy(backend string) retry.Policy {
	p := b.retry
	p.OnRetry = func(int, error) {
		b.metrics.RecordRetry(backend)
	}
	return p
}

// withRetry adapts an error-only operation to the retry helper.
func (b *Bot) withRetry(ctx context.Context, backend string, op func(context.Context) error) error {
	_, err := retry.Do(ctx, b.policy(backend), b.logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
