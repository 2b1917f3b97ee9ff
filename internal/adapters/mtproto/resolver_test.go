package mtproto

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"
)

type stubUsernameAPI struct {
	requested []string
	res       *tg.ContactsResolvedPeer
	err       error
}

func (s *stubUsernameAPI) ContactsResolveUsername(_ context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	s.requested = append(s.requested, req.Username)
	return s.res, s.err
}

func newTestResolver(api usernameAPI) *Resolver {
	r := &Resolver{log: zerolog.Nop()}
	r.setAPI(api)
	return r
}

func TestResolveUsername(t *testing.T) {
	api := &stubUsernameAPI{res: &tg.ContactsResolvedPeer{
		Peer: &tg.PeerUser{UserID: 42},
		Users: []tg.UserClass{
			&tg.User{ID: 7, Username: "other"},
			&tg.User{ID: 42, Username: "neo", FirstName: "Thomas", LastName: "Anderson"},
		},
	}}
	user, err := newTestResolver(api).ResolveUsername(context.Background(), "@neo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 42 || user.Username != "neo" || user.DisplayName() != "Thomas Anderson" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if len(api.requested) != 1 || api.requested[0] != "neo" {
		t.Fatalf("expected lookup of bare name, got %v", api.requested)
	}
}

func TestResolveUsernameChannel(t *testing.T) {
	api := &stubUsernameAPI{res: &tg.ContactsResolvedPeer{Peer: &tg.PeerChannel{ChannelID: 100}}}
	if _, err := newTestResolver(api).ResolveUsername(context.Background(), "news"); !errors.Is(err, ErrUsernameNotFound) {
		t.Fatalf("expected ErrUsernameNotFound, got %v", err)
	}
}

func TestResolveUsernameNotOccupied(t *testing.T) {
	api := &stubUsernameAPI{err: tgerr.New(400, "USERNAME_NOT_OCCUPIED")}
	if _, err := newTestResolver(api).ResolveUsername(context.Background(), "ghost"); !errors.Is(err, ErrUsernameNotFound) {
		t.Fatalf("expected ErrUsernameNotFound, got %v", err)
	}
}

func TestResolveUsernameNotReady(t *testing.T) {
	r := &Resolver{log: zerolog.Nop()}
	if _, err := r.ResolveUsername(context.Background(), "neo"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}
