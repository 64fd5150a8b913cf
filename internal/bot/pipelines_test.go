package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/voxrelay/voxrelay/internal/llm"
	"github.com/voxrelay/voxrelay/internal/retry"
	"github.com/voxrelay/voxrelay/internal/state"
)

func instantSleep(context.Context, time.Duration) error { return nil }

func TestChatAppendsExchange(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(userAllowed, "/chat hello"))

	seen := f.gen.seen()
	if len(seen) != 2 {
		t.Fatalf("generator saw %d messages, want 2", len(seen))
	}
	if seen[0].Role != llm.RoleSystem {
		t.Fatalf("first message role = %q, want %q", seen[0].Role, llm.RoleSystem)
	}
	if seen[1].Role != llm.RoleUser || seen[1].Content != "hello" {
		t.Fatalf("second message = %+v, want user %q", seen[1], "hello")
	}

	if got := f.tg.lastText(t); got != f.gen.reply {
		t.Fatalf("delivered reply = %q, want %q", got, f.gen.reply)
	}
	if got := f.bot.history.Len(userAllowed); got != 3 {
		t.Fatalf("history.Len() = %d, want 3", got)
	}
	if got := f.bot.ops.Active(); got != 0 {
		t.Fatalf("ops.Active() = %d after pipeline, want 0", got)
	}
}

func TestPlainTextIsImplicitChat(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(userAllowed, "what's the weather like"))

	if got := f.gen.callCount(); got != 1 {
		t.Fatalf("generator called %d times, want 1", got)
	}
	if got := f.tg.lastText(t); got != f.gen.reply {
		t.Fatalf("delivered reply = %q, want %q", got, f.gen.reply)
	}
}

func TestChatSeesGrowingHistory(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(userAllowed, "/chat first"))
	f.handle(textUpdate(userAllowed, "/chat second"))

	seen := f.gen.seen()
	if len(seen) != 4 {
		t.Fatalf("generator saw %d messages on second call, want 4", len(seen))
	}
	if seen[3].Content != "second" {
		t.Fatalf("latest message = %q, want %q", seen[3].Content, "second")
	}
}

func TestChatDisabledWithoutGenerator(t *testing.T) {
	f := newFixture(t)
	f.bot.gen = nil

	f.handle(textUpdate(userAllowed, "/chat hello"))

	if got := f.tg.lastText(t); got != msgChatDisabled {
		t.Fatalf("reply = %q, want %q", got, msgChatDisabled)
	}
	if got := f.bot.history.Users(); got != 0 {
		t.Fatalf("history.Users() = %d, want 0", got)
	}

	// Voice pipelines stay available.
	f.handle(textUpdate(userAllowed, "/say still here"))
	if got := f.synth.ttsCount(); got != 1 {
		t.Fatalf("synthesis ran %d times, want 1", got)
	}
}

func TestChatFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errTransient

	f.handle(textUpdate(userAllowed, "/chat hello"))

	if got := f.tg.lastText(t); got != msgChatFailed {
		t.Fatalf("reply = %q, want %q", got, msgChatFailed)
	}
	hist := f.bot.history.History(userAllowed)
	if len(hist) != 2 {
		t.Fatalf("history has %d entries after failure, want 2", len(hist))
	}
	if hist[1].Role != llm.RoleUser || hist[1].Content != "hello" {
		t.Fatalf("kept entry = %+v, want the user message", hist[1])
	}
	if got := f.bot.ops.Active(); got != 0 {
		t.Fatalf("ops.Active() = %d after failure, want 0", got)
	}
}

func TestChatDeliveryFailureKeepsAssistantReply(t *testing.T) {
	f := newFixture(t)
	f.tg.sendErr = errTransient

	f.handle(textUpdate(userAllowed, "/chat hello"))

	hist := f.bot.history.History(userAllowed)
	if len(hist) != 3 {
		t.Fatalf("history has %d entries, want 3", len(hist))
	}
	if hist[2].Role != llm.RoleAssistant {
		t.Fatalf("last entry role = %q, want %q", hist[2].Role, llm.RoleAssistant)
	}
}

func TestChatRetriesUntilSuccess(t *testing.T) {
	f := newFixture(t)
	f.bot.retry = retry.Policy{MaxAttempts: 3, Sleep: instantSleep}
	f.gen.failUntil = 2

	f.handle(textUpdate(userAllowed, "/chat hello"))

	if got := f.gen.callCount(); got != 3 {
		t.Fatalf("generator called %d times, want 3", got)
	}
	if got := f.tg.lastText(t); got != f.gen.reply {
		t.Fatalf("delivered reply = %q, want %q", got, f.gen.reply)
	}
	retries := testutil.ToFloat64(f.bot.metrics.BackendRetries.WithLabelValues(backendGeneration))
	if retries != 2 {
		t.Fatalf("recorded %v retries, want 2", retries)
	}
}

func TestChatExhaustedRetriesFail(t *testing.T) {
	f := newFixture(t)
	f.bot.retry = retry.Policy{MaxAttempts: 3, Sleep: instantSleep}
	f.gen.err = errTransient

	f.handle(textUpdate(userAllowed, "/chat hello"))

	if got := f.gen.callCount(); got != 3 {
		t.Fatalf("generator called %d times, want 3", got)
	}
	if got := f.tg.lastText(t); got != msgChatFailed {
		t.Fatalf("reply = %q, want %q", got, msgChatFailed)
	}
}

func TestChatBusyRejected(t *testing.T) {
	f := newFixture(t)
	if !f.bot.ops.TryAcquire(userAllowed, state.KindVoiceTransform) {
		t.Fatal("could not pre-acquire operation lock")
	}
	defer f.bot.ops.Release(userAllowed)

	f.handle(textUpdate(userAllowed, "/chat hello"))

	if got := f.tg.lastText(t); got != msgStillProcessing {
		t.Fatalf("reply = %q, want %q", got, msgStillProcessing)
	}
	if f.gen.callCount() != 0 {
		t.Fatalf("generator called while user was busy")
	}
	if f.bot.history.Users() != 0 {
		t.Fatalf("history was touched while user was busy")
	}
}

func TestBusyUserDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	if !f.bot.ops.TryAcquire(userAllowed, state.KindGeneratingText) {
		t.Fatal("could not pre-acquire operation lock")
	}
	defer f.bot.ops.Release(userAllowed)

	f.handle(textUpdate(userAdmin, "/chat hello"))

	if got := f.tg.lastText(t); got != f.gen.reply {
		t.Fatalf("reply = %q, want %q", got, f.gen.reply)
	}
}

func TestSayProducesVoiceNote(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(userAllowed, `/say -s 0.4 -v 1.1 "Hello there"`))

	if got := f.synth.ttsCount(); got != 1 {
		t.Fatalf("synthesis ran %d times, want 1", got)
	}
	if f.synth.ttsText != "Hello there" {
		t.Fatalf("synthesized text = %q, want %q", f.synth.ttsText, "Hello there")
	}
	ov := f.synth.ttsOv
	if ov.Stability == nil || *ov.Stability != 0.4 {
		t.Fatalf("stability override = %v, want 0.4", ov.Stability)
	}
	if ov.Speed == nil || *ov.Speed != 1.1 {
		t.Fatalf("speed override = %v, want 1.1", ov.Speed)
	}
	if ov.SimilarityBoost != nil {
		t.Fatalf("similarity override = %v, want nil", *ov.SimilarityBoost)
	}
	if got := f.tg.voiceCount(); got != 1 {
		t.Fatalf("delivered %d voice notes, want 1", got)
	}
	f.assertSpoolEmpty(t)
	if got := f.bot.ops.Active(); got != 0 {
		t.Fatalf("ops.Active() = %d after pipeline, want 0", got)
	}
}

func TestSayParseErrorSkipsBackend(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(userAllowed, "/say -s high hello"))

	if got := f.synth.ttsCount(); got != 0 {
		t.Fatalf("synthesis ran %d times on a parse error, want 0", got)
	}
	got := f.tg.lastText(t)
	if !strings.Contains(got, "-s") || !strings.Contains(got, "high") {
		t.Fatalf("reply = %q, want a hint naming the bad -s value", got)
	}
	f.assertSpoolEmpty(t)
}

func TestSayTrailingFlagRejected(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(userAllowed, "/say hello -v"))

	if got := f.synth.ttsCount(); got != 0 {
		t.Fatalf("synthesis ran %d times on a trailing flag, want 0", got)
	}
	if got := f.tg.lastText(t); !strings.Contains(got, "-v") {
		t.Fatalf("reply = %q, want a hint naming the -v flag", got)
	}
}

func TestSayEmptyBodyRejected(t *testing.T) {
	f := newFixture(t)

	for _, text := range []string{"/say", "/say -s 0.5"} {
		f.handle(textUpdate(userAllowed, text))
		if got := f.tg.lastText(t); got != msgSayUsage {
			t.Fatalf("%q reply = %q, want %q", text, got, msgSayUsage)
		}
	}
	if got := f.synth.ttsCount(); got != 0 {
		t.Fatalf("synthesis ran %d times on empty bodies, want 0", got)
	}
}

func TestSaySynthesisFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.synth.err = errTransient

	f.handle(textUpdate(userAllowed, "/say hello"))

	if got := f.tg.lastText(t); got != msgSynthesisFailed {
		t.Fatalf("reply = %q, want %q", got, msgSynthesisFailed)
	}
	if got := f.tg.voiceCount(); got != 0 {
		t.Fatalf("delivered %d voice notes after failure, want 0", got)
	}
	f.assertSpoolEmpty(t)
}

func TestSayDeliveryFailureCleansArtifact(t *testing.T) {
	f := newFixture(t)
	f.tg.voiceErr = errTransient

	f.handle(textUpdate(userAllowed, "/say hello"))

	if got := f.tg.lastText(t); got != msgDeliveryFailed {
		t.Fatalf("reply = %q, want %q", got, msgDeliveryFailed)
	}
	f.assertSpoolEmpty(t)
}

func TestTransformDeliversVoiceNote(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(userAllowed, "/voice"))
	f.handle(voiceUpdate(userAllowed, "file-1"))

	if got := f.synth.stsCount(); got != 1 {
		t.Fatalf("transform ran %d times, want 1", got)
	}
	if got := f.tg.voiceCount(); got != 1 {
		t.Fatalf("delivered %d voice notes, want 1", got)
	}
	if got := f.bot.intents.Armed(); got != 0 {
		t.Fatalf("intents.Armed() = %d after transform, want 0", got)
	}
	f.assertSpoolEmpty(t)
	if got := f.bot.ops.Active(); got != 0 {
		t.Fatalf("ops.Active() = %d after pipeline, want 0", got)
	}
}

func TestTransformDownloadFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.tg.downloadErr = errTransient

	f.handle(textUpdate(userAllowed, "/voice"))
	f.handle(voiceUpdate(userAllowed, "file-1"))

	if got := f.tg.lastText(t); got != msgDownloadFailed {
		t.Fatalf("reply = %q, want %q", got, msgDownloadFailed)
	}
	if got := f.synth.stsCount(); got != 0 {
		t.Fatalf("transform ran %d times after a failed download, want 0", got)
	}
	f.assertSpoolEmpty(t)
}

func TestTransformFailureCleansArtifacts(t *testing.T) {
	f := newFixture(t)
	f.synth.err = errTransient

	f.handle(textUpdate(userAllowed, "/voice"))
	f.handle(voiceUpdate(userAllowed, "file-1"))

	if got := f.tg.lastText(t); got != msgTransformFailed {
		t.Fatalf("reply = %q, want %q", got, msgTransformFailed)
	}
	f.assertSpoolEmpty(t)
	if got := f.bot.intents.Armed(); got != 0 {
		t.Fatalf("intents.Armed() = %d, want 0", got)
	}
}
