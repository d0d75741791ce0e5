package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PetoAdam/homenavi/lamp-relay/internal/events"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/lamp"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/yandex"
)

const (
	secretHeader   = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBody  = 1 << 20
	maxErrorDetail = 180
)

// handleWebhook answers 200 for every authenticated, well-formed update so
// Telegram never redelivers because of a business-level failure.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebhookSecret == "" || r.Header.Get(secretHeader) != s.opts.WebhookSecret {
		writeText(w, http.StatusForbidden, "forbidden")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBody))
	if err != nil {
		writeText(w, http.StatusBadRequest, "bad json")
		return
	}
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		writeText(w, http.StatusBadRequest, "bad json")
		return
	}

	s.processUpdate(r.Context(), update)
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) processUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !s.chatAllowed(chatID) {
		slog.Warn("rejected message from chat outside allow-list", "chat_id", chatID)
		s.reply(ctx, chatID, lamp.UnauthorizedText)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	s.reply(ctx, chatID, s.runCommand(ctx, chatID, lamp.ParseCommand(text)))
}

func (s *Server) chatAllowed(chatID int64) bool {
	return s.opts.AllowedChatID == "" || strconv.FormatInt(chatID, 10) == s.opts.AllowedChatID
}

func (s *Server) runCommand(ctx context.Context, chatID int64, cmd lamp.Command) string {
	switch cmd.Name {
	case lamp.CmdID:
		return fmt.Sprintf("🆔 chat_id: %d", chatID)
	case lamp.CmdPing:
		status, err := s.devices.Ping(ctx)
		if err != nil {
			slog.Warn("ping: yandex unreachable", "error", err)
			return "pong. yandex_status=error"
		}
		return fmt.Sprintf("pong. yandex_status=%d", status)
	}

	out := lamp.MapCommand(cmd)
	if len(out.Actions) == 0 {
		return out.Reply
	}
	res, err := s.devices.SubmitActions(ctx, s.opts.DeviceID, out.Actions)
	if err != nil {
		slog.Warn("submit actions failed", "source", events.SourceTelegram, "command", cmd.Name, "error", err)
		return gatewayErrorText(res)
	}
	s.publish(ctx, events.SourceTelegram, out.Actions)
	return out.Reply
}

func (s *Server) reply(ctx context.Context, chatID int64, text string) {
	if err := s.messenger.SendText(ctx, chatID, text); err != nil {
		slog.Warn("telegram reply failed", "chat_id", chatID, "error", err)
	}
}

func gatewayErrorText(res yandex.Result) string {
	if res.Status == 0 {
		return "❌ Ошибка при обращении к Yandex IoT"
	}
	text := fmt.Sprintf("❌ Ошибка Yandex IoT (HTTP %d)", res.Status)
	if detail := truncate(strings.TrimSpace(res.Body), maxErrorDetail); detail != "" {
		text += ": " + detail
	}
	return text
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
