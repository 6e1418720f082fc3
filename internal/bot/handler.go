package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

const (
	actionDelete = "del:"

	helpText = `Get a message whenever a new episode of your shows comes out.

/add &lt;name or TVMaze link&gt; - subscribe
/list - your shows
/del &lt;name&gt; - unsubscribe
/calendar - upcoming episodes
/help - this message`

	errorText = "Something went wrong, please try again later."
)

// Handler implements the bot commands on top of the store and catalog.
type Handler struct {
	subs    SubscriptionStore
	users   UserStore
	tx      TransactionManager
	catalog Catalog
	adminID int64
	logger  *slog.Logger
}

func NewHandler(
	subs SubscriptionStore,
	users UserStore,
	tx TransactionManager,
	catalog Catalog,
	adminID int64,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		subs:    subs,
		users:   users,
		tx:      tx,
		catalog: catalog,
		adminID: adminID,
		logger:  logger.With("component", "bot"),
	}
}

// Handle answers one request. It never fails: internal errors are logged and
// turned into a generic reply.
func (h *Handler) Handle(ctx context.Context, req Request) Reply {
	if req.Callback {
		return h.handleAction(ctx, req)
	}

	cmd, arg := ParseCommand(req.Text)

	switch cmd {
	case "start", "help":
		return Reply{Text: helpText}
	case "add":
		return h.add(ctx, req, arg)
	case "list":
		return h.list(ctx, req)
	case "del":
		return h.del(ctx, req, arg)
	case "calendar":
		return h.calendar(ctx, req)
	case "stats":
		if h.adminID == 0 || req.UserID != h.adminID {
			return Reply{Text: helpText}
		}
		return h.stats(ctx)
	default:
		return Reply{Text: helpText}
	}
}

// ParseCommand splits "/add@SomeBot Game of Thrones" into ("add", "Game of
// Thrones"). Text that is not a command yields an empty command.
func ParseCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}

	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i:]
	}
	head, _, _ = strings.Cut(head[1:], "@")

	return strings.ToLower(head), strings.TrimSpace(rest)
}

func (h *Handler) add(ctx context.Context, req Request, query string) Reply {
	if query == "" {
		return Reply{Text: "Example: /add Lost"}
	}

	show, ok := h.catalog.Resolve(ctx, query)
	if !ok {
		return Reply{Text: fmt.Sprintf("Nothing found for “%s”.", html.EscapeString(query))}
	}

	var inserted bool
	err := h.tx.WithTransaction(ctx, func(ctx context.Context) error {
		user := domain.User{
			ID:        req.UserID,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}
		if err := h.users.Upsert(ctx, user); err != nil {
			return err
		}

		var err error
		inserted, err = h.subs.InsertIfAbsent(ctx, req.UserID, show.ID, show.Name)
		return err
	})
	if err != nil {
		h.logger.Error("subscribe failed",
			"user_id", req.UserID,
			"show_id", show.ID,
			"error", err,
		)
		return Reply{Text: errorText}
	}

	name := html.EscapeString(show.Name)
	if !inserted {
		return Reply{Text: fmt.Sprintf("You are already subscribed to <b>%s</b>.", name)}
	}

	h.logger.Info("subscribed", "user_id", req.UserID, "show_id", show.ID)
	return Reply{Text: fmt.Sprintf("Subscribed to <b>%s</b>! I will let you know when a new episode is out.", name)}
}

func (h *Handler) list(ctx context.Context, req Request) Reply {
	subs, err := h.subs.ListForUser(ctx, req.UserID)
	if err != nil {
		h.logger.Error("list failed", "user_id", req.UserID, "error", err)
		return Reply{Text: errorText}
	}
	if len(subs) == 0 {
		return Reply{Text: "You have no subscriptions yet. Try /add Lost"}
	}

	var b strings.Builder
	b.WriteString("📺 Your shows:\n")

	buttons := make([][]Button, 0, len(subs))
	for _, sub := range subs {
		b.WriteString("\n• ")
		b.WriteString(html.EscapeString(sub.ShowName))

		buttons = append(buttons, []Button{{
			Label:  "❌ " + sub.ShowName,
			Action: DeleteAction(sub.ShowID),
		}})
	}

	return Reply{Text: b.String(), Buttons: buttons}
}

func (h *Handler) del(ctx context.Context, req Request, name string) Reply {
	if name == "" {
		return Reply{Text: "Example: /del Lost"}
	}

	removed, err := h.subs.Delete(ctx, req.UserID, name)
	if err != nil {
		h.logger.Error("unsubscribe failed", "user_id", req.UserID, "error", err)
		return Reply{Text: errorText}
	}

	escaped := html.EscapeString(name)
	if !removed {
		return Reply{Text: fmt.Sprintf("You are not subscribed to <b>%s</b>.", escaped)}
	}
	return Reply{Text: fmt.Sprintf("Removed <b>%s</b>.", escaped)}
}

// DeleteAction is the button action that unsubscribes from a show.
func DeleteAction(showID int64) string {
	return actionDelete + strconv.FormatInt(showID, 10)
}

func (h *Handler) handleAction(ctx context.Context, req Request) Reply {
	raw, ok := strings.CutPrefix(req.Text, actionDelete)
	if !ok {
		return Reply{Text: "This button is no longer supported."}
	}

	showID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || showID <= 0 {
		return Reply{Text: "This button is no longer supported."}
	}

	removed, err := h.subs.DeleteShow(ctx, req.UserID, showID)
	if err != nil {
		h.logger.Error("unsubscribe failed", "user_id", req.UserID, "show_id", showID, "error", err)
		return Reply{Text: errorText}
	}
	if !removed {
		return Reply{Text: "You were not subscribed to this show."}
	}
	return Reply{Text: "Unsubscribed."}
}

func (h *Handler) calendar(ctx context.Context, req Request) Reply {
	subs, err := h.subs.ListForUser(ctx, req.UserID)
	if err != nil {
		h.logger.Error("calendar failed", "user_id", req.UserID, "error", err)
		return Reply{Text: errorText}
	}
	if len(subs) == 0 {
		return Reply{Text: "You have no subscriptions yet. Try /add Lost"}
	}

	var b strings.Builder
	b.WriteString("📅 Upcoming episodes:\n")

	for _, sub := range subs {
		b.WriteString("\n<b>")
		b.WriteString(html.EscapeString(sub.ShowName))
		b.WriteString("</b>: ")

		ep, ok := h.catalog.NextEpisode(ctx, sub.ShowID)
		if !ok {
			b.WriteString("no date announced")
			continue
		}

		if ep.Airdate != "" {
			b.WriteString(ep.Airdate)
		} else {
			b.WriteString("date TBA")
		}
		if ep.Season > 0 && ep.Number > 0 {
			fmt.Fprintf(&b, ", S%02dE%02d", ep.Season, ep.Number)
		}
		if ep.Title != "" {
			b.WriteString(" <i>")
			b.WriteString(html.EscapeString(ep.Title))
			b.WriteString("</i>")
		}
	}

	return Reply{Text: b.String()}
}

func (h *Handler) stats(ctx context.Context) Reply {
	stats, err := h.subs.Stats(ctx)
	if err != nil {
		h.logger.Error("stats failed", "error", err)
		return Reply{Text: errorText}
	}
	return Reply{Text: FormatStats(stats)}
}

// FormatStats renders the admin statistics message.
func FormatStats(stats domain.Stats) string {
	return fmt.Sprintf("📊 <b>Stats</b>\n\nUsers: %d\nSubscriptions: %d\nShows: %d",
		stats.Users, stats.Subscriptions, stats.Shows)
}
