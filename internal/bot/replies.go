package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/voxrelay/voxrelay/internal/voiceopts"
)

// User-facing notices. Internals never leak into these; details go to the
// log instead.
const (
	msgUnauthorized = "Sorry, this bot is private."

	msgInternalError = "Something went wrong on my side. Please try again."

	msgStillProcessing = "I'm still working on your previous request. Please wait for it to finish."

	msgSendAudioNow         = "Send me a voice message and I'll re-voice it."
	msgAudioAlreadyExpected = "I'm already waiting for your voice message."
	msgTransformCancelled   = "Okay, cancelled. Send /voice again when you have audio for me."

	msgChatDisabled = "Chat is not enabled on this bot."
	msgChatUsage    = "Tell me what to answer: /chat <your message>"
	msgChatFailed   = "I couldn't get an answer right now. Please try again in a moment."

	msgSayUsage = "Give me something to say: /say [-s stability] [-v speed] [-b similarity] <text>"

	msgSynthesisFailed = "I couldn't produce the audio right now. Please try again in a moment."
	msgTransformFailed = "I couldn't transform that voice message. Please try again in a moment."
	msgDownloadFailed  = "I couldn't fetch that voice message. Please send it again."
	msgDeliveryFailed  = "I made the reply but couldn't deliver it. Please try again."

	msgResetDone = "Conversation cleared. We're starting fresh."

	msgAdminOnly = "This command is for admins only."

	helpText = `I turn text into voice and re-voice audio.

/chat <text> - talk to the assistant (plain text works too)
/say <text> - speak the text as a voice note
/voice - send your next voice message through my voice
/reset - forget our conversation

Tuning /say: -s stability (0-1), -v speed (0.7-1.2), -b similarity (0-1).
Example: /say -s 0.4 -v 1.1 "Hello there"`
)

func helpReply(chatOn bool) string {
	if chatOn {
		return helpText
	}
	return helpText + "\n\n" + msgChatDisabled
}

// speakParseErrorText turns a flag parse failure into a short usage hint.
func speakParseErrorText(err *voiceopts.ParseError) string {
	if err.Token == "" {
		return fmt.Sprintf("The %s flag needs a number after it.\n%s", err.Flag, msgSayUsage)
	}
	return fmt.Sprintf("The %s flag needs a number, not %q.\n%s", err.Flag, err.Token, msgSayUsage)
}

// statusSnapshot is the admin /status data, gathered under no lock; counts
// may be momentarily inconsistent with each other.
type statusSnapshot struct {
	uptime     time.Duration
	sessions   int
	histories  int
	activeOps  int
	armed      int
	spoolFiles int
	spoolBytes int64
	chatOn     bool
}

func statusText(s statusSnapshot) string {
	chat := "on"
	if !s.chatOn {
		chat = "off"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Uptime: %s\n", s.uptime.Truncate(time.Second))
	fmt.Fprintf(&sb, "Sessions: %d\n", s.sessions)
	fmt.Fprintf(&sb, "Conversations: %d\n", s.histories)
	fmt.Fprintf(&sb, "Active operations: %d\n", s.activeOps)
	fmt.Fprintf(&sb, "Armed transforms: %d\n", s.armed)
	fmt.Fprintf(&sb, "Spool: %d files, %s\n", s.spoolFiles, formatBytes(s.spoolBytes))
	fmt.Fprintf(&sb, "Chat: %s", chat)
	return sb.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
