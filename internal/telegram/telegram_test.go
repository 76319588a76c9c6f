package telegram

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"career_support_bot/internal/config"
	"career_support_bot/internal/dispatch"
)

type fakeBot struct {
	starts int
	run    func(ctx context.Context, start int)
}

func (f *fakeBot) Start(ctx context.Context) {
	f.starts++
	if f.run != nil {
		f.run(ctx, f.starts)
	}
}

type recordingHandler struct {
	updates []*models.Update
}

func (r *recordingHandler) Handle(_ context.Context, _ dispatch.Sender, update *models.Update) {
	r.updates = append(r.updates, update)
}

func shrinkRestartDelay(t *testing.T) {
	t.Helper()

	orig := restartBase
	restartBase = time.Millisecond
	t.Cleanup(func() { restartBase = orig })
}

func TestNewClientCreatesBot(t *testing.T) {
	origCreateBot := createBot
	defer func() { createBot = origCreateBot }()

	var gotToken string
	var gotOptions []bot.Option
	b := &fakeBot{}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		gotToken = token
		gotOptions = options
		return b, nil
	}

	cfg := config.Config{TelegramToken: "token-123"}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := NewClient(cfg, &recordingHandler{}, logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if client == nil || client.bot == nil {
		t.Fatalf("expected client and bot to be initialized")
	}

	if gotToken != cfg.TelegramToken {
		t.Fatalf("expected token %q, got %q", cfg.TelegramToken, gotToken)
	}

	if len(gotOptions) != 3 {
		t.Fatalf("expected 3 bot options (allowed updates, default handler, error handler), got %d", len(gotOptions))
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(config.Config{}, nil, nil); err == nil {
		t.Fatal("expected an error without a token")
	}
}

func TestNewClientPropagatesBotError(t *testing.T) {
	origCreateBot := createBot
	defer func() { createBot = origCreateBot }()

	expected := errors.New("boom")
	createBot = func(string, ...bot.Option) (botRunner, error) {
		return nil, expected
	}

	_, err := NewClient(config.Config{TelegramToken: "token"}, nil, nil)
	if !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}

func TestStartStopsOnCanceledContext(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	fb := &fakeBot{}
	client := &Client{bot: fb, logger: logrus.NewEntry(hookLogger)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client.Start(ctx)

	if fb.starts != 1 {
		t.Fatalf("expected a single polling run, got %d", fb.starts)
	}

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries (start/stop), got %d", len(entries))
	}
	if entries[0].Data["event"] != "telegram_listen" {
		t.Fatalf("expected start log event, got %v", entries[0].Data["event"])
	}
	if entries[1].Data["event"] != "telegram_stopped" {
		t.Fatalf("expected stop log event, got %v", entries[1].Data["event"])
	}
}

func TestStartRestartsCrashedPollingWithGrowingDelay(t *testing.T) {
	shrinkRestartDelay(t)

	hookLogger, hook := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fb := &fakeBot{
		run: func(_ context.Context, start int) {
			if start == 3 {
				cancel()
			}
		},
	}
	client := &Client{bot: fb, logger: logrus.NewEntry(hookLogger)}

	client.Start(ctx)

	if fb.starts != 3 {
		t.Fatalf("expected 3 polling runs, got %d", fb.starts)
	}

	var delays []int64
	for _, entry := range hook.AllEntries() {
		if entry.Data["event"] == "telegram_restart" {
			delay, ok := entry.Data["delay_ms"].(int64)
			if !ok {
				t.Fatalf("expected delay_ms int64, got %T", entry.Data["delay_ms"])
			}
			delays = append(delays, delay)
		}
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 restart entries, got %d", len(delays))
	}
	if delays[1] <= delays[0] {
		t.Fatalf("expected the restart delay to grow, got %v", delays)
	}
}

func TestStartRecoversFromPanic(t *testing.T) {
	shrinkRestartDelay(t)

	hookLogger, hook := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fb := &fakeBot{
		run: func(_ context.Context, start int) {
			if start == 1 {
				panic("poller exploded")
			}
			cancel()
		},
	}
	client := &Client{bot: fb, logger: logrus.NewEntry(hookLogger)}

	client.Start(ctx)

	if fb.starts != 2 {
		t.Fatalf("expected the poller to restart after the panic, got %d runs", fb.starts)
	}

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Data["event"] == "telegram_panic" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a telegram_panic log entry")
	}
}

func TestDefaultHandlerRoutesMessagesToDispatcher(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	recorder := &recordingHandler{}
	handler := defaultHandler(recorder, logrus.NewEntry(hookLogger))

	update := &models.Update{
		Message: &models.Message{
			From: &models.User{ID: 99},
			Chat: models.Chat{ID: 199},
			Text: "Get free PDF",
		},
	}

	handler(context.Background(), nil, update)
	handler(context.Background(), nil, &models.Update{})
	handler(context.Background(), nil, nil)

	if len(recorder.updates) != 1 {
		t.Fatalf("expected only the message update to be routed, got %d", len(recorder.updates))
	}
	if recorder.updates[0] != update {
		t.Fatal("expected the original update to reach the dispatcher")
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected log entry from handler")
	}
	if entry.Data["event"] != "telegram_update" {
		t.Fatalf("expected event=telegram_update, got %v", entry.Data["event"])
	}
	if entry.Data["user_id"] != int64(99) || entry.Data["chat_id"] != int64(199) {
		t.Fatalf("expected user_id=99 and chat_id=199, got user_id=%v chat_id=%v", entry.Data["user_id"], entry.Data["chat_id"])
	}
	if entry.Data["text"] != "Get free PDF" {
		t.Fatalf("expected text to be logged, got %v", entry.Data["text"])
	}
}
