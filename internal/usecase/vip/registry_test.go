package vip

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"tg-group-guard/internal/adapters/vipstore"
)

type stubStore struct {
	mu      sync.Mutex
	loaded  []string
	loadErr error
	saveErr error
	saves   [][]string
}

func (s *stubStore) Load(context.Context) ([]string, error) {
	return s.loaded, s.loadErr
}

func (s *stubStore) Save(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, ids)
	return s.saveErr
}

func (s *stubStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func TestAddIsIdempotent(t *testing.T) {
	store := &stubStore{}
	reg := NewRegistry(store, zerolog.Nop())
	ctx := context.Background()

	input := []string{"5", "3", "5", "1", "3", "3", "9"}
	distinct := map[string]struct{}{}
	for _, id := range input {
		_, seen := distinct[id]
		distinct[id] = struct{}{}
		if added := reg.Add(ctx, id); added == seen {
			t.Fatalf("Add(%s) = %v, expected %v", id, added, !seen)
		}
	}
	if got, want := reg.List(), []string{"5", "3", "1", "9"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	if store.saveCount() != len(distinct) {
		t.Fatalf("expected %d writes, got %d", len(distinct), store.saveCount())
	}
}

func TestAddRejectsBlank(t *testing.T) {
	reg := NewRegistry(&stubStore{}, zerolog.Nop())
	if reg.Add(context.Background(), "  ") {
		t.Fatal("blank id must not be added")
	}
}

func TestLoadCollapsesDuplicates(t *testing.T) {
	reg := NewRegistry(&stubStore{loaded: []string{"1", "2", "1", " 3 ", ""}}, zerolog.Nop())
	if n := reg.Load(context.Background()); n != 3 {
		t.Fatalf("expected 3 ids, got %d", n)
	}
	if got, want := reg.List(), []string{"1", "2", "3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}

func TestLoadFailureLeavesEmptyRegistry(t *testing.T) {
	reg := NewRegistry(&stubStore{loaded: []string{"1"}, loadErr: errors.New("boom")}, zerolog.Nop())
	if n := reg.Load(context.Background()); n != 0 {
		t.Fatalf("expected empty registry, got %d", n)
	}
	if reg.IsMember("1") {
		t.Fatal("registry must stay empty after failed load")
	}
}

func TestSaveFailureKeepsInMemoryAddition(t *testing.T) {
	store := &stubStore{saveErr: errors.New("disk full")}
	reg := NewRegistry(store, zerolog.Nop())
	ctx := context.Background()

	if !reg.AddUser(ctx, 42) {
		t.Fatal("expected Add to report a new member")
	}
	if !reg.IsVIP(42) {
		t.Fatal("in-memory addition must survive a failed write")
	}
	if !reg.Dirty() {
		t.Fatal("registry must be dirty after failed write")
	}

	store.saveErr = nil
	if err := reg.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if reg.Dirty() {
		t.Fatal("close must flush pending changes")
	}
	last := store.saves[len(store.saves)-1]
	if !reflect.DeepEqual(last, []string{"42"}) {
		t.Fatalf("unexpected flushed snapshot %v", last)
	}
}

func TestCloseSkipsCleanRegistry(t *testing.T) {
	store := &stubStore{loadErr: errors.New("malformed")}
	reg := NewRegistry(store, zerolog.Nop())
	reg.Load(context.Background())
	if err := reg.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if store.saveCount() != 0 {
		t.Fatal("clean registry must not overwrite the store on close")
	}
}

func TestListReturnsCopy(t *testing.T) {
	reg := NewRegistry(&stubStore{}, zerolog.Nop())
	reg.Add(context.Background(), "1")
	list := reg.List()
	list[0] = "changed"
	if !reg.IsMember("1") || reg.List()[0] != "1" {
		t.Fatal("List must return a snapshot copy")
	}
}

func TestConcurrentAdd(t *testing.T) {
	store := &stubStore{}
	reg := NewRegistry(store, zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := strconv.Itoa(i)
				reg.Add(ctx, id)
				reg.IsMember(id)
			}
		}()
	}
	wg.Wait()

	got := reg.List()
	if len(got) != 50 {
		t.Fatalf("expected 50 distinct ids, got %d", len(got))
	}
	sort.Strings(got)
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Fatalf("duplicate id %s", got[i])
		}
	}
	if store.saveCount() != 50 {
		t.Fatalf("expected 50 writes, got %d", store.saveCount())
	}
	last := store.saves[len(store.saves)-1]
	if len(last) != 50 {
		t.Fatalf("last write must contain every id, got %d", len(last))
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vip_users.json")
	if err := os.WriteFile(path, []byte(`["111","222"]`), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	reg := NewRegistry(vipstore.NewFile(path), zerolog.Nop())
	reg.Load(ctx)

	if !reg.IsVIP(111) {
		t.Fatal("111 must be VIP after load")
	}
	if reg.IsVIP(333) {
		t.Fatal("333 must not be VIP before add")
	}
	if !reg.AddUser(ctx, 333) {
		t.Fatal("333 must be added")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n  \"111\",\n  \"222\",\n  \"333\"\n]\n"
	if string(data) != want {
		t.Fatalf("unexpected store content:\n%s", data)
	}

	reloaded := NewRegistry(vipstore.NewFile(path), zerolog.Nop())
	reloaded.Load(ctx)
	if !reloaded.IsVIP(333) {
		t.Fatal("333 must stay VIP after reload")
	}
	if got := reloaded.List(); !reflect.DeepEqual(got, []string{"111", "222", "333"}) {
		t.Fatalf("unexpected order after reload: %v", got)
	}
}
