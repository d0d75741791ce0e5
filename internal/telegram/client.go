package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PetoAdam/homenavi/lamp-relay/internal/observability"
)

// Client sends bot replies through the Bot API.
// It never calls getMe, so constructing one does no network I/O.
type Client struct {
	bot  *tgbotapi.BotAPI
	http *http.Client
}

// New builds a client. endpoint is a Bot API format string with two verbs
// (token, method); empty means the public Telegram endpoint.
func New(token, endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	hc := &http.Client{Timeout: timeout}
	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: hc,
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)
	return &Client{bot: bot, http: hc}
}

// ctxClient binds outgoing Bot API requests to ctx; tgbotapi builds its
// requests without one.
type ctxClient struct {
	ctx context.Context
	hc  *http.Client
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.hc.Do(req.WithContext(c.ctx))
}

// withContext returns a copy of the bot whose requests are cancelled with ctx.
func (c *Client) withContext(ctx context.Context) *tgbotapi.BotAPI {
	bot := *c.bot
	bot.Client = ctxClient{ctx: ctx, hc: c.http}
	return &bot
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	ctx, span := otel.Tracer("lamp-relay").Start(ctx, "telegram.send_message")
	defer span.End()
	span.SetAttributes(attribute.Int64("chat.id", chatID))

	_, err := c.withContext(ctx).Send(tgbotapi.NewMessage(chatID, text))
	observability.ObserveGatewayCall("telegram", "send_message", err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}
