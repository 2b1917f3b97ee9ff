package mtproto

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/metrics"
)

var (
	// ErrNotReady возвращается, пока клиент не авторизовался.
	ErrNotReady = errors.New("mtproto: client is not ready")
	// ErrUsernameNotFound — имя не занято или принадлежит не пользователю.
	ErrUsernameNotFound = errors.New("mtproto: username does not belong to a user")
)

// usernameAPI — метод tg.Client, которым пользуется резолвер.
type usernameAPI interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
}

// Resolver ищет пользователей по @username через MTProto с авторизацией бота.
// Bot API такого метода не даёт.
type Resolver struct {
	client *telegram.Client
	token  string
	log    zerolog.Logger

	mu  sync.RWMutex
	api usernameAPI
}

// NewResolver создаёт MTProto клиент на базе токена бота. Сессия хранится в памяти.
func NewResolver(apiID int, apiHash, botToken string, log zerolog.Logger) *Resolver {
	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: &session.StorageMemory{},
		NoUpdates:      true,
	})
	return &Resolver{client: client, token: botToken, log: log}
}

// Run подключается, авторизуется ботом и держит соединение до отмены контекста.
func (r *Resolver) Run(ctx context.Context) error {
	return r.client.Run(ctx, func(ctx context.Context) error {
		if _, err := r.client.Auth().Bot(ctx, r.token); err != nil {
			return fmt.Errorf("mtproto: авторизация бота: %w", err)
		}
		r.setAPI(r.client.API())
		r.log.Info().Msg("MTProto клиент готов")
		<-ctx.Done()
		r.setAPI(nil)
		return ctx.Err()
	})
}

func (r *Resolver) setAPI(api usernameAPI) {
	r.mu.Lock()
	r.api = api
	r.mu.Unlock()
}

// ResolveUsername возвращает пользователя по имени, с @ или без.
func (r *Resolver) ResolveUsername(ctx context.Context, username string) (domain.User, error) {
	r.mu.RLock()
	api := r.api
	r.mu.RUnlock()
	if api == nil {
		return domain.User{}, ErrNotReady
	}
	name := strings.TrimPrefix(strings.TrimSpace(username), "@")
	start := time.Now()
	res, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: name})
	metrics.ObserveNetworkRequest("telegram_mtproto", "resolve_username", "mtproto", start, err)
	if err != nil {
		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return domain.User{}, fmt.Errorf("%w: @%s", ErrUsernameNotFound, name)
		}
		return domain.User{}, fmt.Errorf("contacts.resolveUsername @%s: %w", name, err)
	}
	return userFromResolved(res, name)
}

func userFromResolved(res *tg.ContactsResolvedPeer, name string) (domain.User, error) {
	peer, ok := res.Peer.(*tg.PeerUser)
	if !ok {
		return domain.User{}, fmt.Errorf("%w: @%s", ErrUsernameNotFound, name)
	}
	for _, u := range res.Users {
		user, ok := u.(*tg.User)
		if !ok || user.ID != peer.UserID {
			continue
		}
		return domain.User{
			ID:        user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			IsBot:     user.Bot,
		}, nil
	}
	return domain.User{ID: peer.UserID, Username: name}, nil
}
