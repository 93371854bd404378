package deletion

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/adapters/repo"
	"tg-wp-mirror/internal/domain"
)

type stubSnapshot struct {
	live map[int64]struct{}
	err  error
}

func (s stubSnapshot) LiveMessageIDs(context.Context, []int64) (map[int64]struct{}, error) {
	return s.live, s.err
}

type fakeDeleter struct {
	deleted map[int64]string
	err     error
}

func (f *fakeDeleter) Delete(_ context.Context, target domain.Target, postID int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted[postID] = target.Key
	return nil
}

type stubRouter struct{}

func (stubRouter) Route(string) (string, domain.Target) { return "", domain.Target{Key: "default"} }

func (stubRouter) Lookup(key string) domain.Target { return domain.Target{Key: key} }

func seed(t *testing.T, posts *repo.Memory) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []int64{10, 11, 12} {
		if err := posts.UpsertText(ctx, id, "text", "fa", "", ""); err != nil {
			t.Fatalf("UpsertText: %v", err)
		}
		postID, target := id*10, "fa"
		if err := posts.SetDestinationIDs(ctx, id, domain.DestinationIDs{PostID: &postID, Target: &target}); err != nil {
			t.Fatalf("SetDestinationIDs: %v", err)
		}
	}
}

func live(ids ...int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestReconcileDeletesStale(t *testing.T) {
	ctx := context.Background()
	posts := repo.NewMemory()
	seed(t, posts)
	deleter := &fakeDeleter{deleted: map[int64]string{}}
	r := NewReconciler(posts, stubSnapshot{live: live(10, 12)}, deleter, stubRouter{}, false, zerolog.Nop())

	report, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Stale != 1 {
		t.Fatalf("ожидали одно удаление, получили %+v", report)
	}
	if len(deleter.deleted) != 1 || deleter.deleted[110] != "fa" {
		t.Fatalf("ожидали удаление поста 110 на fa, получили %v", deleter.deleted)
	}
	for id, wantDeleted := range map[int64]bool{10: false, 11: true, 12: false} {
		row, _, _ := posts.Get(ctx, id)
		if row.Deleted != wantDeleted {
			t.Fatalf("сообщение %d: deleted=%v", id, row.Deleted)
		}
	}
}

func TestReconcileDeleteFailureKeepsMark(t *testing.T) {
	ctx := context.Background()
	posts := repo.NewMemory()
	seed(t, posts)
	deleter := &fakeDeleter{err: errors.New("500")}
	r := NewReconciler(posts, stubSnapshot{live: live(10)}, deleter, stubRouter{}, false, zerolog.Nop())

	report, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Stale != 2 || report.DeleteFailed != 2 {
		t.Fatalf("неожиданный отчёт %+v", report)
	}
	active, _ := posts.ListActive(ctx)
	if len(active) != 1 || active[0].MessageID != 10 {
		t.Fatalf("строки остаются удалёнными несмотря на сбой: %+v", active)
	}
}

func TestReconcileRefusesEmptySnapshot(t *testing.T) {
	posts := repo.NewMemory()
	seed(t, posts)
	deleter := &fakeDeleter{deleted: map[int64]string{}}
	r := NewReconciler(posts, stubSnapshot{live: live()}, deleter, stubRouter{}, false, zerolog.Nop())

	report, err := r.Reconcile(context.Background())
	if err != nil || !report.Skipped {
		t.Fatalf("пустой снимок должен пропускаться: %+v %v", report, err)
	}
	if active, _ := posts.ListActive(context.Background()); len(active) != 3 {
		t.Fatalf("ничего не должно удаляться")
	}
}

func TestReconcileAppliesEmptySnapshotWhenAllowed(t *testing.T) {
	ctx := context.Background()
	posts := repo.NewMemory()
	seed(t, posts)
	deleter := &fakeDeleter{deleted: map[int64]string{}}
	r := NewReconciler(posts, stubSnapshot{live: live()}, deleter, stubRouter{}, true, zerolog.Nop())

	report, err := r.Reconcile(ctx)
	if err != nil || report.Skipped {
		t.Fatalf("пустой снимок должен применяться: %+v %v", report, err)
	}
	if report.Stale != 3 {
		t.Fatalf("ожидали 3 удалённых сообщения, получили %+v", report)
	}
	if active, _ := posts.ListActive(ctx); len(active) != 0 {
		t.Fatalf("активных строк не должно остаться: %+v", active)
	}
}

func TestReconcileSnapshotError(t *testing.T) {
	posts := repo.NewMemory()
	seed(t, posts)
	r := NewReconciler(posts, stubSnapshot{err: domain.ErrTransport}, &fakeDeleter{}, stubRouter{}, false, zerolog.Nop())
	if _, err := r.Reconcile(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("ожидали ErrTransport, получили %v", err)
	}
}
