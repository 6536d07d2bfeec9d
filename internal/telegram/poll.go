package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// pollTimeout is the long polling timeout in seconds.
const pollTimeout = 30

const (
	baseRetryDelay = time.Second
	maxRetryDelay  = 15 * time.Second
)

// Poller fetches updates. *tgbotapi.BotAPI implements it.
type Poller interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Run connects with token and serves updates until ctx is done.
func Run(ctx context.Context, token string, rec Recognizer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	r := NewRouter(bot, rec, logger)
	r.Poll(ctx, bot)
	return nil
}

// Poll long-polls p and dispatches every update until ctx is done, then
// waits for in-flight updates to finish. Polling errors are retried with a
// delay and never end the loop.
func (r *Router) Poll(ctx context.Context, p Poller) {
	defer r.Wait()

	offset := 0
	for {
		if ctx.Err() != nil {
			r.logger.Info("telegram polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = pollTimeout

		updates, err := p.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelay(err), baseRetryDelay), maxRetryDelay)
			r.logger.Warn("telegram polling error", "error", err, "retry_in", d)
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			r.dispatch(ctx, upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// retryDelay derives a backoff from a polling error, honoring Telegram's
// "retry after N" hint on 429 responses.
func retryDelay(err error) time.Duration {
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
