package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/metrics"
)

type stubAPI struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	status    string
	chat      tgbotapi.Chat
	err       error
}

func (s *stubAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	return tgbotapi.Message{MessageID: 321}, nil
}

func (s *stubAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.requested = append(s.requested, c)
	if s.err != nil {
		return nil, s.err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *stubAPI) GetChatMember(tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	if s.err != nil {
		return tgbotapi.ChatMember{}, s.err
	}
	return tgbotapi.ChatMember{Status: s.status}, nil
}

func (s *stubAPI) GetChat(tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	if s.err != nil {
		return tgbotapi.Chat{}, s.err
	}
	return s.chat, nil
}

func TestChatRole(t *testing.T) {
	api := &stubAPI{status: "creator"}
	role, err := NewClient(api, nil).ChatRole(context.Background(), -1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != domain.RoleCreator {
		t.Fatalf("expected creator, got %q", role)
	}
}

func TestSendBuildsMessage(t *testing.T) {
	api := &stubAPI{}
	id, err := NewClient(api, nil).Send(context.Background(), domain.OutgoingMessage{
		ChatID:    -10,
		Text:      "<b>hi</b>",
		ParseMode: domain.ParseModeHTML,
		ReplyTo:   5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 321 {
		t.Fatalf("expected message id 321, got %d", id)
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable %T", api.sent[0])
	}
	if msg.ChatID != -10 || msg.ParseMode != "HTML" || msg.ReplyToMessageID != 5 || msg.Text != "<b>hi</b>" {
		t.Fatalf("unexpected message config: %+v", msg)
	}
}

func TestDeleteWrapsError(t *testing.T) {
	api := &stubAPI{err: errors.New("message to delete not found")}
	err := NewClient(api, nil).Delete(context.Background(), -10, 7)
	if err == nil || !errors.Is(err, api.err) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	del, ok := api.requested[0].(tgbotapi.DeleteMessageConfig)
	if !ok || del.ChatID != -10 || del.MessageID != 7 {
		t.Fatalf("unexpected delete request: %+v", api.requested[0])
	}
}

func TestUserInfo(t *testing.T) {
	api := &stubAPI{chat: tgbotapi.Chat{ID: 42, UserName: "neo", FirstName: "Thomas", LastName: "Anderson"}}
	user, err := NewClient(api, nil).UserInfo(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 42 || user.Username != "neo" || user.DisplayName() != "Thomas Anderson" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestCancelledContext(t *testing.T) {
	api := &stubAPI{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(api, nil).Send(ctx, domain.OutgoingMessage{ChatID: 1, Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(api.sent) != 0 {
		t.Fatal("nothing must be sent after cancellation")
	}
}

type stubResolver struct {
	names []string
	user  domain.User
	err   error
}

func (s *stubResolver) ResolveUsername(_ context.Context, username string) (domain.User, error) {
	s.names = append(s.names, username)
	return s.user, s.err
}

func TestResolveUsernameDelegates(t *testing.T) {
	resolver := &stubResolver{user: domain.User{ID: 77, Username: "bob"}}
	user, err := NewClient(&stubAPI{}, resolver).ResolveUsername(context.Background(), "@bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 77 || len(resolver.names) != 1 || resolver.names[0] != "@bob" {
		t.Fatalf("unexpected delegation: user=%+v names=%v", user, resolver.names)
	}
}

func TestResolveUsernameWithoutResolver(t *testing.T) {
	if _, err := NewClient(&stubAPI{}, nil).ResolveUsername(context.Background(), "@bob"); !errors.Is(err, ErrUsernameUnsupported) {
		t.Fatalf("expected ErrUsernameUnsupported, got %v", err)
	}
}

func TestMetricsUseConstantTarget(t *testing.T) {
	api := &stubAPI{}
	client := NewClient(api, nil)
	counter := metrics.NetworkRequestTotal.WithLabelValues(component, "send_message", "bot_api", "success")
	before := testutil.ToFloat64(counter)
	for _, chatID := range []int64{-1001, -1002, -1003} {
		if _, err := client.Send(context.Background(), domain.OutgoingMessage{ChatID: chatID, Text: "x"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Fatalf("expected 3 sends under one series, got %v", got)
	}
	for _, chatID := range []string{"-1001", "-1002", "-1003"} {
		if v := testutil.ToFloat64(metrics.NetworkRequestTotal.WithLabelValues(component, "send_message", chatID, "success")); v != 0 {
			t.Fatalf("per-chat series %s must not be used", chatID)
		}
	}
}
