package chat

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/quillen/chatrelay/config"
	"github.com/quillen/chatrelay/db"
	"github.com/quillen/chatrelay/telemetry"
	"github.com/quillen/chatrelay/twitchapi"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

type fakeStore struct {
	messages    []*db.ChatMessage
	commands    map[string]*db.Command
	incremented []string
}

func (f *fakeStore) InsertMessage(_ context.Context, m *db.ChatMessage) error {
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeStore) GetCommand(_ context.Context, _, name string) (*db.Command, error) {
	if c, ok := f.commands[name]; ok {
		return c, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) IncrementCommandUse(_ context.Context, _, name string) error {
	f.incremented = append(f.incremented, name)
	return nil
}

func (f *fakeStore) ListCommandNames(_ context.Context, _ string) ([]string, error) {
	var names []string
	for n := range f.commands {
		names = append(names, n)
	}
	return names, nil
}

type fakeSender struct {
	lines []string
}

func (f *fakeSender) Say(_, text string) {
	f.lines = append(f.lines, text)
}

type fakeStreams struct {
	info *twitchapi.StreamInfo
	err  error
}

func (f *fakeStreams) GetStream(context.Context, string) (*twitchapi.StreamInfo, error) {
	return f.info, f.err
}

func testBot(t *testing.T, store *fakeStore, registry *Registry) (*Bot, *fakeSender) {
	t.Helper()
	if store.commands == nil {
		store.commands = map[string]*db.Command{}
	}
	cfg := &config.Config{
		TwitchChannel: "testchan",
		CommandPrefix: "!",
		ChatSendRate:  100,
		ChatSendBurst: 10,
		ChatSendWait:  time.Second,
	}
	sender := &fakeSender{}
	return NewBot(cfg, store, registry, sender), sender
}

func privMsg(text string, badges map[string]int) twitch.PrivateMessage {
	return twitch.PrivateMessage{
		User:    twitch.User{Name: "viewer", Badges: badges},
		Message: text,
	}
}

func TestHandleMessageRecords(t *testing.T) {
	store := &fakeStore{}
	bot, sender := testBot(t, store, NewRegistry())

	bot.HandleMessage(context.Background(), privMsg("hello world", nil))

	if len(store.messages) != 1 {
		t.Fatalf("recorded %d messages, want 1", len(store.messages))
	}
	m := store.messages[0]
	if m.Channel != "testchan" || m.Username != "viewer" || m.Message != "hello world" {
		t.Errorf("recorded %+v", m)
	}
	if m.SentAt.IsZero() {
		t.Error("SentAt not set")
	}
	if len(sender.lines) != 0 {
		t.Errorf("plain message triggered a reply: %v", sender.lines)
	}
}

func TestDispatchCustomCommand(t *testing.T) {
	store := &fakeStore{commands: map[string]*db.Command{
		"lurk": {Name: "lurk", Response: "enjoy the lurk"},
	}}
	bot, sender := testBot(t, store, NewRegistry())

	bot.HandleMessage(context.Background(), privMsg("!lurk", nil))

	if len(sender.lines) != 1 || sender.lines[0] != "enjoy the lurk" {
		t.Fatalf("sent %v, want the lurk response", sender.lines)
	}
	if len(store.incremented) != 1 || store.incremented[0] != "lurk" {
		t.Errorf("use count increments = %v", store.incremented)
	}
	// Commands are also recorded as messages.
	if len(store.messages) != 1 {
		t.Errorf("command message not recorded")
	}
}

func TestUnknownCommandIsSilent(t *testing.T) {
	store := &fakeStore{}
	bot, sender := testBot(t, store, NewRegistry())

	bot.HandleMessage(context.Background(), privMsg("!nosuchthing", nil))

	if len(sender.lines) != 0 {
		t.Errorf("unknown command replied: %v", sender.lines)
	}
}

func TestModOnlyCustomCommand(t *testing.T) {
	store := &fakeStore{commands: map[string]*db.Command{
		"raid": {Name: "raid", Response: "raid time", ModOnly: true},
	}}
	bot, sender := testBot(t, store, NewRegistry())
	ctx := context.Background()

	bot.HandleMessage(ctx, privMsg("!raid", nil))
	if len(sender.lines) != 0 {
		t.Fatalf("non-mod ran a mod-only command: %v", sender.lines)
	}

	bot.HandleMessage(ctx, privMsg("!raid", map[string]int{"moderator": 1}))
	if len(sender.lines) != 1 || sender.lines[0] != "raid time" {
		t.Fatalf("mod dispatch sent %v", sender.lines)
	}

	sender.lines = nil
	bot.HandleMessage(ctx, privMsg("!raid", map[string]int{"broadcaster": 1}))
	if len(sender.lines) != 1 {
		t.Fatal("broadcaster should count as mod")
	}
}

func TestBuiltinUptime(t *testing.T) {
	registry := NewRegistry()
	started := time.Now().Add(-90 * time.Minute)
	if err := RegisterBuiltins(registry, &fakeStreams{info: &twitchapi.StreamInfo{StartedAt: started}}); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	bot, sender := testBot(t, &fakeStore{}, registry)

	bot.HandleMessage(context.Background(), privMsg("!uptime", nil))

	if len(sender.lines) != 1 || !strings.Contains(sender.lines[0], "live for 1h30m") {
		t.Fatalf("uptime reply = %v", sender.lines)
	}
}

func TestBuiltinUptimeOffline(t *testing.T) {
	registry := NewRegistry()
	if err := RegisterBuiltins(registry, &fakeStreams{}); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	bot, sender := testBot(t, &fakeStore{}, registry)

	bot.HandleMessage(context.Background(), privMsg("!uptime", nil))

	if len(sender.lines) != 1 || sender.lines[0] != "testchan is offline" {
		t.Fatalf("offline reply = %v", sender.lines)
	}
}

func TestBuiltinCommandList(t *testing.T) {
	registry := NewRegistry()
	if err := RegisterBuiltins(registry, &fakeStreams{}); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	store := &fakeStore{commands: map[string]*db.Command{
		"lurk": {Name: "lurk", Response: "enjoy"},
	}}
	bot, sender := testBot(t, store, registry)

	bot.HandleMessage(context.Background(), privMsg("!commands", nil))

	if len(sender.lines) != 1 {
		t.Fatalf("sent %v", sender.lines)
	}
	for _, want := range []string{"!uptime", "!commands", "!lurk"} {
		if !strings.Contains(sender.lines[0], want) {
			t.Errorf("command list %q missing %q", sender.lines[0], want)
		}
	}
}

func TestRegistryRejectsDuplicatesAndEmpty(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, *Bot, []string, twitch.PrivateMessage) (string, error) { return "", nil }

	if err := r.Register("uptime", false, noop); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register("UPTIME", false, noop); err == nil {
		t.Error("duplicate register accepted")
	}
	if err := r.Register("", false, noop); err == nil {
		t.Error("empty name accepted")
	}
	if err := r.Register("x", false, nil); err == nil {
		t.Error("nil handler accepted")
	}
}

func TestSayDropsWhenThrottled(t *testing.T) {
	store := &fakeStore{}
	cfg := &config.Config{
		TwitchChannel: "testchan",
		CommandPrefix: "!",
		ChatSendRate:  0.001, // effectively one message per bucket
		ChatSendBurst: 1,
		ChatSendWait:  10 * time.Millisecond,
	}
	sender := &fakeSender{}
	bot := NewBot(cfg, store, NewRegistry(), sender)
	ctx := context.Background()

	bot.Say(ctx, "first")
	bot.Say(ctx, "second")

	if len(sender.lines) != 1 || sender.lines[0] != "first" {
		t.Fatalf("sent %v, want only the first message", sender.lines)
	}
}
