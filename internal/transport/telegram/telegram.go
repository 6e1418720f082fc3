package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/bot"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/config"
)

// Handler answers transport-neutral requests.
type Handler interface {
	Handle(ctx context.Context, req bot.Request) bot.Reply
}

// Adapter connects the bot handler and the notifier to the Telegram Bot API.
type Adapter struct {
	bot    *tele.Bot
	logger *slog.Logger
}

func New(cfg config.TelegramConfig, logger *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}

	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger = logger.With("component", "telegram")

	b, err := tele.NewBot(tele.Settings{
		Token:     cfg.Token,
		Poller:    &tele.LongPoller{Timeout: timeout},
		ParseMode: tele.ModeHTML,
		OnError: func(err error, c tele.Context) {
			logger.Error("update handling failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Adapter{bot: b, logger: logger}, nil
}

func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	return err
}

func (a *Adapter) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption}
	_, err := a.bot.Send(tele.ChatID(chatID), photo, &tele.SendOptions{ParseMode: tele.ModeHTML})
	return err
}

// Serve registers the update handlers and long-polls until ctx is done.
func (a *Adapter) Serve(ctx context.Context, h Handler) error {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		req := newRequest(c.Sender(), c.Text(), false)
		return a.reply(c, h.Handle(ctx, req))
	})

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		if err := c.Respond(); err != nil {
			a.logger.Warn("callback answer failed", "error", err)
		}
		req := newRequest(c.Sender(), cb.Data, true)
		return a.reply(c, h.Handle(ctx, req))
	})

	if err := a.bot.SetCommands(menuCommands(bot.Commands)); err != nil {
		a.logger.Warn("set bot commands failed", "error", err)
	}

	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()

	a.logger.Info("polling started", "bot", a.bot.Me.Username)
	a.bot.Start()
	a.logger.Info("polling stopped")

	return ctx.Err()
}

func (a *Adapter) reply(c tele.Context, r bot.Reply) error {
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	}
	if markup := renderMarkup(r.Buttons); markup != nil {
		opts.ReplyMarkup = markup
	}
	return c.Send(r.Text, opts)
}

func newRequest(sender *tele.User, text string, callback bool) bot.Request {
	req := bot.Request{Text: text, Callback: callback}
	if sender != nil {
		req.UserID = sender.ID
		req.Username = sender.Username
		req.FirstName = sender.FirstName
		req.LastName = sender.LastName
	}
	return req
}

func renderMarkup(rows [][]bot.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}

	rm := &tele.ReplyMarkup{}
	inline := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		btns := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			btns = append(btns, tele.Btn{Text: b.Label, Data: b.Action})
		}
		inline = append(inline, rm.Row(btns...))
	}
	rm.Inline(inline...)

	return rm
}

func menuCommands(cmds []bot.Command) []tele.Command {
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, tele.Command{Text: c.Name, Description: c.Description})
	}
	return out
}
