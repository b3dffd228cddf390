// Package chat runs the Twitch IRC bot: it records every channel message to
// the document store and dispatches prefixed messages as commands.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"golang.org/x/time/rate"

	"github.com/quillen/chatrelay/config"
	"github.com/quillen/chatrelay/db"
	"github.com/quillen/chatrelay/telemetry"
)

// Store is the slice of the document store the bot needs.
type Store interface {
	InsertMessage(ctx context.Context, m *db.ChatMessage) error
	GetCommand(ctx context.Context, channel, name string) (*db.Command, error)
	IncrementCommandUse(ctx context.Context, channel, name string) error
	ListCommandNames(ctx context.Context, channel string) ([]string, error)
}

// Sender delivers one outbound chat line. Satisfied by *twitch.Client.
type Sender interface {
	Say(channel, text string)
}

// Bot joins one channel, records chat, and answers commands. Outbound
// messages pass through a token-bucket limiter so the bot stays under
// Twitch's message rate cap.
type Bot struct {
	channel  string
	prefix   string
	store    Store
	registry *Registry
	sender   Sender
	limiter  *rate.Limiter
	sendWait time.Duration
}

// NewBot wires a bot for cfg's channel. The sender is injected so tests can
// capture output without an IRC connection.
func NewBot(cfg *config.Config, store Store, registry *Registry, sender Sender) *Bot {
	return &Bot{
		channel:  cfg.TwitchChannel,
		prefix:   cfg.CommandPrefix,
		store:    store,
		registry: registry,
		sender:   sender,
		limiter:  rate.NewLimiter(rate.Limit(cfg.ChatSendRate), cfg.ChatSendBurst),
		sendWait: cfg.ChatSendWait,
	}
}

// Run connects to Twitch IRC and blocks until ctx is cancelled or the
// connection fails. Credentials come from cfg; call ValidateChatReady first.
func Run(ctx context.Context, cfg *config.Config, store Store, registry *Registry) error {
	if err := cfg.ValidateChatReady(); err != nil {
		return err
	}
	client := twitch.NewClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken)
	bot := NewBot(cfg, store, registry, client)

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		bot.HandleMessage(ctx, msg)
	})

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		client.Disconnect()
		close(done)
	}()

	client.Join(cfg.TwitchChannel)
	slog.Info("twitch chat bot connecting",
		slog.String("channel", cfg.TwitchChannel),
		slog.String("username", cfg.TwitchBotUsername))
	if err := client.Connect(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("twitch chat connect: %w", err)
	}
	<-done
	return nil
}

// HandleMessage records one incoming message and dispatches it when it
// carries the command prefix.
func (b *Bot) HandleMessage(ctx context.Context, msg twitch.PrivateMessage) {
	badges := ""
	for k, v := range msg.User.Badges {
		badges += k + ":" + fmt.Sprintf("%v", v) + ","
	}
	emotes := ""
	for _, e := range msg.Emotes {
		emotes += e.Name + ","
	}
	replyToID := ""
	replyToUsername := ""
	if msg.Reply != nil {
		replyToID = msg.Reply.ParentMsgID
		replyToUsername = msg.Reply.ParentUserLogin
	}
	m := &db.ChatMessage{
		Channel:         b.channel,
		Username:        msg.User.Name,
		Message:         msg.Message,
		SentAt:          time.Now().UTC(),
		Badges:          badges,
		Emotes:          emotes,
		Color:           msg.User.Color,
		ReplyToID:       replyToID,
		ReplyToUsername: replyToUsername,
	}
	if err := b.store.InsertMessage(ctx, m); err != nil {
		slog.Error("failed to insert chat message", slog.Any("err", err))
	} else {
		telemetry.MessagesRecorded.Inc()
	}

	if strings.HasPrefix(msg.Message, b.prefix) {
		b.dispatch(ctx, msg)
	}
}

func (b *Bot) dispatch(ctx context.Context, msg twitch.PrivateMessage) {
	fields := strings.Fields(strings.TrimPrefix(msg.Message, b.prefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	reply, err := b.registry.Dispatch(ctx, b, name, args, msg)
	if err != nil {
		slog.Error("command failed", slog.String("command", name), slog.Any("err", err))
		return
	}
	if reply == "" {
		return
	}
	telemetry.IncCommandDispatched(name)
	b.Say(ctx, reply)
}

// Say sends one line to the channel, waiting for a limiter slot. Messages
// are dropped (and counted) when no slot frees up within the send window.
func (b *Bot) Say(ctx context.Context, text string) {
	waitCtx, cancel := context.WithTimeout(ctx, b.sendWait)
	defer cancel()
	if err := b.limiter.Wait(waitCtx); err != nil {
		telemetry.SendsThrottled.Inc()
		slog.Warn("outbound chat message dropped by rate limiter", slog.Any("err", err))
		return
	}
	b.sender.Say(b.channel, text)
	telemetry.MessagesSent.Inc()
}

// isMod reports whether the sender may run mod-only commands. Broadcasters
// count as mods.
func isMod(msg twitch.PrivateMessage) bool {
	return msg.User.Badges["moderator"] > 0 || msg.User.Badges["broadcaster"] > 0
}
