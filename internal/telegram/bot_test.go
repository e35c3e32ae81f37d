package telegram

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdateSource struct {
	mu         sync.Mutex
	calls      []string
	webhookURL string
	// deleteCtxErr is the state of the context DeleteWebhook was called with.
	deleteCtxErr error
}

func (f *fakeUpdateSource) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
}

func (f *fakeUpdateSource) Start(ctx context.Context) {
	f.record("start")
	<-ctx.Done()
}

func (f *fakeUpdateSource) StartWebhook(ctx context.Context) {
	f.record("startWebhook")
	<-ctx.Done()
}

func (f *fakeUpdateSource) SetWebhook(_ context.Context, params *bot.SetWebhookParams) (bool, error) {
	f.record("setWebhook")
	f.webhookURL = params.URL

	return true, nil
}

func (f *fakeUpdateSource) DeleteWebhook(ctx context.Context, _ *bot.DeleteWebhookParams) (bool, error) {
	f.record("deleteWebhook")
	f.deleteCtxErr = ctx.Err()

	return true, nil
}

func (f *fakeUpdateSource) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func newTestClient(src *fakeUpdateSource, webhookURL string) *Client {
	return &Client{
		bot:        src,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		webhookURL: webhookURL,
	}
}

func TestRunWebhookDeletesWebhookOnShutdown(t *testing.T) {
	src := &fakeUpdateSource{}
	client := newTestClient(src, "https://example.org/telegram/webhook")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, client.Run(ctx))

	assert.Equal(t, []string{"setWebhook", "startWebhook", "deleteWebhook"}, src.calls)
	assert.Equal(t, "https://example.org/telegram/webhook", src.webhookURL)
	assert.NoError(t, src.deleteCtxErr)
	assert.NotNil(t, client.WebhookHandler())
}

func TestRunPollingClearsWebhookFirst(t *testing.T) {
	src := &fakeUpdateSource{}
	client := newTestClient(src, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, client.Run(ctx))

	assert.Equal(t, []string{"deleteWebhook", "start"}, src.calls)
	assert.Nil(t, client.WebhookHandler())
}
