// Package telegram serves OCR to Telegram users over long polling.
//
// A photo, or an image sent as a document, is recognized and the text is
// sent back as a reply. A caption of "dual" or "/dual" runs the alphabetic
// and numeric passes instead of a single unrestricted one. The image is
// fetched by the recognizer through its URL path, so the bot never holds
// file bytes itself.
package telegram

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ironsheep/dual-ocr/internal/imaging"
	"github.com/ironsheep/dual-ocr/internal/ocr"
	"github.com/ironsheep/dual-ocr/internal/recognizer"
)

// maxReplyRunes keeps replies under Telegram's 4096 character limit.
const maxReplyRunes = 3900

const helpText = "Send a photo and I will reply with the text in it.\n" +
	"Add the caption \"dual\" to get letters and numbers separately.\n" +
	"Commands: /start, /help"

// Bot is the subset of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Recognizer runs OCR requests.
type Recognizer interface {
	Recognize(ctx context.Context, req recognizer.Request) (*ocr.Outcome, error)
}

// Router turns updates into recognition requests and replies.
type Router struct {
	bot    Bot
	rec    Recognizer
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewRouter creates a Router.
func NewRouter(bot Bot, rec Recognizer, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{bot: bot, rec: rec, logger: logger}
}

// HandleUpdate processes one update synchronously.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			r.reply(msg, helpText)
		default:
			r.reply(msg, "Unknown command. "+helpText)
		}
		return
	}

	fileID, ok := imageFileID(msg)
	if !ok {
		if msg.Text != "" {
			r.reply(msg, helpText)
		}
		return
	}

	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		r.logger.Error("failed to resolve file", "chat_id", cid, "error", err)
		r.reply(msg, "Could not download the image, please try again.")
		return
	}

	mode := modeFromCaption(msg.Caption)
	out, err := r.rec.Recognize(ctx, recognizer.Request{
		Image: imaging.Input{URL: url},
		Mode:  mode,
	})
	if err != nil {
		r.logger.Warn("recognition failed", "chat_id", cid, "kind", ocr.KindOf(err), "error", err)
		r.reply(msg, errorText(err))
		return
	}
	r.reply(msg, formatOutcome(out, mode))
}

// dispatch handles upd in the background, tracked for Wait.
func (r *Router) dispatch(ctx context.Context, upd tgbotapi.Update) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.HandleUpdate(ctx, upd)
	}()
}

// Wait blocks until every dispatched update has been handled.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) reply(to *tgbotapi.Message, text string) {
	m := tgbotapi.NewMessage(to.Chat.ID, truncate(text, maxReplyRunes))
	m.ReplyToMessageID = to.MessageID
	if _, err := r.bot.Send(m); err != nil {
		r.logger.Error("failed to send reply", "chat_id", to.Chat.ID, "error", err)
	}
}

// imageFileID picks the largest photo size, or an image document.
func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if n := len(msg.Photo); n > 0 {
		return msg.Photo[n-1].FileID, true
	}
	if d := msg.Document; d != nil && strings.HasPrefix(d.MimeType, "image/") {
		return d.FileID, true
	}
	return "", false
}

func modeFromCaption(caption string) recognizer.Mode {
	c := strings.ToLower(strings.TrimSpace(caption))
	if c == "dual" || c == "/dual" {
		return recognizer.ModeDual
	}
	return recognizer.ModeSingle
}

func formatOutcome(out *ocr.Outcome, mode recognizer.Mode) string {
	if mode != recognizer.ModeDual {
		text, _ := out.Text(ocr.PassText)
		if text == "" {
			return "No text found."
		}
		return text
	}

	if out.AllFailed() {
		return errorText(out.Err())
	}
	var b strings.Builder
	section := func(title, name string) {
		b.WriteString(title)
		b.WriteString(":\n")
		text, ok := out.Text(name)
		switch {
		case !ok:
			b.WriteString("(failed)")
		case text == "":
			b.WriteString("(none)")
		default:
			b.WriteString(text)
		}
	}
	section("Letters", ocr.PassAlphabetic)
	b.WriteString("\n\n")
	section("Numbers", ocr.PassNumeric)
	return b.String()
}

func errorText(err error) string {
	switch ocr.KindOf(err) {
	case ocr.KindInvalidInput:
		return "That file does not look like a supported image."
	case ocr.KindNetwork:
		return "Could not download the image, please try again."
	case ocr.KindRecognitionTimeout:
		return "Recognition took too long, please try a smaller image."
	default:
		return "Recognition failed, please try again later."
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
