package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/voxrelay/voxrelay/internal/auth"
	"github.com/voxrelay/voxrelay/internal/chat"
	"github.com/voxrelay/voxrelay/internal/elevenlabs"
	"github.com/voxrelay/voxrelay/internal/llm"
	"github.com/voxrelay/voxrelay/internal/metrics"
	"github.com/voxrelay/voxrelay/internal/retry"
	"github.com/voxrelay/voxrelay/internal/spool"
	"github.com/voxrelay/voxrelay/internal/telegram"
)

const (
	userAllowed  int64 = 1001
	userAdmin    int64 = 1002
	userStranger int64 = 4004
)

var errTransient = errors.New("backend unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentText struct {
	chatID int64
	text   string
}

// fakeMessenger records outgoing traffic and can inject failures.
type fakeMessenger struct {
	mu          sync.Mutex
	texts       []sentText
	voices      []string
	sendErr     error
	voiceErr    error
	downloadErr error
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, sentText{chatID: chatID, text: text})
	return nil
}

func (f *fakeMessenger) SendVoiceFile(_ context.Context, chatID int64, path string) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voiceErr != nil {
		return nil, f.voiceErr
	}
	f.voices = append(f.voices, path)
	return &telegram.Message{MessageID: 1, Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) DownloadFile(_ context.Context, _, dstPath string) (int64, error) {
	f.mu.Lock()
	err := f.downloadErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	data := []byte("source-audio")
	if err := os.WriteFile(dstPath, data, 0o600); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (f *fakeMessenger) SendChatAction(context.Context, int64, string) error {
	return nil
}

func (f *fakeMessenger) sentTexts() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.texts...)
}

func (f *fakeMessenger) lastText(t *testing.T) string {
	t.Helper()
	texts := f.sentTexts()
	if len(texts) == 0 {
		t.Fatal("no text messages were sent")
	}
	return texts[len(texts)-1].text
}

func (f *fakeMessenger) voiceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.voices)
}

// fakeGenerator fails the first failUntil calls, then replies.
type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	reply     string
	err       error
	failUntil int
	panicMsg  string
	lastSeen  []llm.Message
}

func (f *fakeGenerator) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSeen = append([]llm.Message(nil), messages...)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return "", f.err
	}
	if f.calls <= f.failUntil {
		return "", errTransient
	}
	return f.reply, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGenerator) seen() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Message(nil), f.lastSeen...)
}

// fakeSynth writes a small artifact on success and records call settings.
type fakeSynth struct {
	mu       sync.Mutex
	ttsCalls int
	stsCalls int
	ttsText  string
	ttsOv    elevenlabs.Overrides
	err      error
	panicMsg string
}

func (f *fakeSynth) TextToSpeech(_ context.Context, text string, ov elevenlabs.Overrides, dstPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttsCalls++
	f.ttsText = text
	f.ttsOv = ov
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dstPath, []byte("tts-audio"), 0o600)
}

func (f *fakeSynth) SpeechToSpeech(_ context.Context, srcPath, dstPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stsCalls++
	if f.err != nil {
		return f.err
	}
	if _, err := os.Stat(srcPath); err != nil {
		return err
	}
	return os.WriteFile(dstPath, []byte("sts-audio"), 0o600)
}

func (f *fakeSynth) ttsCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttsCalls
}

func (f *fakeSynth) stsCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stsCalls
}

type fixture struct {
	bot   *Bot
	tg    *fakeMessenger
	gen   *fakeGenerator
	synth *fakeSynth
	spool *spool.Spool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sp, err := spool.New(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("spool.New() error: %v", err)
	}
	tg := &fakeMessenger{}
	gen := &fakeGenerator{reply: "here is my answer"}
	synth := &fakeSynth{}
	b := New(Deps{
		Auth:      auth.NewRegistry([]int64{userAllowed, userAdmin}, []int64{userAdmin}),
		History:   chat.NewStore("You are a concise assistant."),
		Telegram:  tg,
		Generator: gen,
		Synth:     synth,
		Spool:     sp,
		Metrics:   metrics.New(),
		Retry:     retry.Policy{MaxAttempts: 1},
		Logger:    discardLogger(),
	})
	return &fixture{bot: b, tg: tg, gen: gen, synth: synth, spool: sp}
}

// handle feeds one update through the bot and waits for it to settle.
func (f *fixture) handle(u telegram.Update) {
	f.bot.HandleUpdate(u)
	f.bot.Wait()
}

func (f *fixture) assertSpoolEmpty(t *testing.T) {
	t.Helper()
	count, bytes := f.spool.Stats()
	if count != 0 || bytes != 0 {
		t.Fatalf("spool not empty after settle: %d files, %d bytes", count, bytes)
	}
}

func textUpdate(userID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 10,
			From:      &telegram.User{ID: userID, Username: "someone"},
			Chat:      telegram.Chat{ID: userID, Type: "private"},
			Text:      text,
		},
	}
}

func voiceUpdate(userID int64, fileID string) telegram.Update {
	return telegram.Update{
		UpdateID: 2,
		Message: &telegram.Message{
			MessageID: 11,
			From:      &telegram.User{ID: userID, Username: "someone"},
			Chat:      telegram.Chat{ID: userID, Type: "private"},
			Voice:     &telegram.Voice{FileID: fileID, Duration: 3},
		},
	}
}
