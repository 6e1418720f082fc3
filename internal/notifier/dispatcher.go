package notifier

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

const maxSynopsisRunes = 200

// Sender delivers HTML formatted messages to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
}

// Dispatcher formats new episode notifications and hands them to a Sender.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	policy  *bluemonday.Policy
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher that sends at most ratePerSec messages
// per second. A non-positive rate disables the limit.
func NewDispatcher(sender Sender, ratePerSec int, logger *slog.Logger) *Dispatcher {
	limit, burst := rate.Inf, 1
	if ratePerSec > 0 {
		limit, burst = rate.Limit(ratePerSec), ratePerSec
	}

	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)

	return &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(limit, burst),
		policy:  policy,
		logger:  logger.With("component", "notifier"),
	}
}

// Notify sends one notification. Episodes with a poster go out as a photo
// with caption; if the photo is rejected the text is sent on its own.
// Errors wrapping domain.ErrNotSent mean no send was attempted.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, showName string, ep domain.Episode) error {
	// Wait refuses up front when the deadline is closer than the next token.
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", domain.ErrNotSent, err)
	}

	msg := d.Format(showName, ep)

	if ep.ImageURL != "" {
		err := d.sender.SendPhoto(ctx, userID, ep.ImageURL, msg)
		if err == nil {
			return nil
		}
		d.logger.Warn("photo send failed, falling back to text",
			"user_id", userID,
			"image_url", ep.ImageURL,
			"error", err,
		)
	}

	if err := d.sender.SendText(ctx, userID, msg); err != nil {
		return fmt.Errorf("send to %d: %w", userID, err)
	}
	return nil
}

// Format renders the notification body in Telegram HTML.
func (d *Dispatcher) Format(showName string, ep domain.Episode) string {
	var b strings.Builder

	b.WriteString("🔥 <b>New episode is out!</b>\n")

	b.WriteString("🎬 <b>")
	b.WriteString(html.EscapeString(showName))
	b.WriteString("</b>")
	if ep.PremiereYear > 0 {
		fmt.Fprintf(&b, " (%d)", ep.PremiereYear)
	}
	b.WriteString("\n")

	b.WriteString("🔢 ")
	b.WriteString(episodeCode(ep))
	if ep.Title != "" {
		b.WriteString(" · <i>")
		b.WriteString(html.EscapeString(ep.Title))
		b.WriteString("</i>")
	}
	b.WriteString("\n")

	if synopsis := d.Synopsis(ep.Summary); synopsis != "" {
		b.WriteString("\n")
		b.WriteString(synopsis)
		b.WriteString("\n")
	}

	if ep.URL != "" {
		b.WriteString("\n<a href=\"")
		b.WriteString(html.EscapeString(ep.URL))
		b.WriteString("\">Episode page</a>")
	}

	return strings.TrimRight(b.String(), "\n")
}

// Synopsis strips markup from an upstream summary, collapses whitespace and
// truncates it to maxSynopsisRunes. The result is escaped for HTML.
func (d *Dispatcher) Synopsis(summary string) string {
	text := html.UnescapeString(d.policy.Sanitize(summary))
	text = strings.Join(strings.Fields(text), " ")
	return html.EscapeString(truncate(text, maxSynopsisRunes))
}

func episodeCode(ep domain.Episode) string {
	switch {
	case ep.Season > 0 && ep.Number > 0:
		return fmt.Sprintf("S%02dE%02d", ep.Season, ep.Number)
	case ep.Season > 0:
		return fmt.Sprintf("S%02d special", ep.Season)
	default:
		return "Special"
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit-1]), " ") + "…"
}
