package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/quillen/chatrelay/db"
	"github.com/quillen/chatrelay/twitchapi"
)

// HandlerFunc answers one command invocation. An empty reply with a nil
// error means "handled, nothing to say".
type HandlerFunc func(ctx context.Context, b *Bot, args []string, msg twitch.PrivateMessage) (string, error)

type handlerEntry struct {
	fn      HandlerFunc
	modOnly bool
}

// Registry is the static command table. Built-in handlers are registered
// once at startup; anything not in the table falls through to the
// channel-defined commands in the store.
type Registry struct {
	handlers map[string]handlerEntry
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]handlerEntry)}
}

// Register adds a built-in handler. Duplicate or empty names are an error so
// a typo in startup wiring fails fast instead of shadowing a handler.
func (r *Registry) Register(name string, modOnly bool, fn HandlerFunc) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || fn == nil {
		return fmt.Errorf("register command: name and handler required")
	}
	if _, dup := r.handlers[name]; dup {
		return fmt.Errorf("register command: %q already registered", name)
	}
	r.handlers[name] = handlerEntry{fn: fn, modOnly: modOnly}
	return nil
}

// Names returns the registered built-in command names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dispatch resolves one command: built-ins first, then the channel's stored
// commands. Unknown names and permission misses are silent.
func (r *Registry) Dispatch(ctx context.Context, b *Bot, name string, args []string, msg twitch.PrivateMessage) (string, error) {
	if entry, ok := r.handlers[name]; ok {
		if entry.modOnly && !isMod(msg) {
			return "", nil
		}
		return entry.fn(ctx, b, args, msg)
	}

	cmd, err := b.store.GetCommand(ctx, b.channel, name)
	if errors.Is(err, db.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup command %q: %w", name, err)
	}
	if cmd.ModOnly && !isMod(msg) {
		return "", nil
	}
	if err := b.store.IncrementCommandUse(ctx, b.channel, name); err != nil {
		// Use counts are best effort; still answer.
		return cmd.Response, nil
	}
	return cmd.Response, nil
}

// StreamSource is the slice of the Helix client the uptime command needs.
type StreamSource interface {
	GetStream(ctx context.Context, login string) (*twitchapi.StreamInfo, error)
}

// RegisterBuiltins installs the stock handlers: !uptime and !commands.
func RegisterBuiltins(r *Registry, streams StreamSource) error {
	if err := r.Register("uptime", false, uptimeHandler(streams)); err != nil {
		return err
	}
	return r.Register("commands", false, commandListHandler(r))
}

func uptimeHandler(streams StreamSource) HandlerFunc {
	return func(ctx context.Context, b *Bot, _ []string, _ twitch.PrivateMessage) (string, error) {
		info, err := streams.GetStream(ctx, b.channel)
		if err != nil {
			return "", fmt.Errorf("get stream: %w", err)
		}
		if info == nil {
			return fmt.Sprintf("%s is offline", b.channel), nil
		}
		up := time.Since(info.StartedAt).Round(time.Minute)
		return fmt.Sprintf("%s has been live for %s", b.channel, up), nil
	}
}

func commandListHandler(r *Registry) HandlerFunc {
	return func(ctx context.Context, b *Bot, _ []string, _ twitch.PrivateMessage) (string, error) {
		names := r.Names()
		custom, err := b.store.ListCommandNames(ctx, b.channel)
		if err != nil {
			return "", fmt.Errorf("list commands: %w", err)
		}
		names = append(names, custom...)
		sort.Strings(names)
		for i, n := range names {
			names[i] = b.prefix + n
		}
		return "Available commands: " + strings.Join(names, ", "), nil
	}
}
