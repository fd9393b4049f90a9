package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/transfer"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	media_ref TEXT NOT NULL DEFAULT '',
	scheduled_at TIMESTAMPTZ,
	delivered BOOLEAN NOT NULL DEFAULT FALSE,
	claimed_until TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// testRepo runs the contract tests against Postgres when POSTGRES_TEST_URI
// is set and against the in-memory implementation otherwise, so the two
// stay in agreement.
func testRepo(t *testing.T) PostRepository {
	t.Helper()

	uri := os.Getenv("POSTGRES_TEST_URI")
	if uri == "" {
		return NewMemoryPostRepository()
	}

	db, err := sql.Open("postgres", uri)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if _, err := db.Exec("TRUNCATE posts RESTART IDENTITY"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewPostRepository(db)
}

func mustCreate(t *testing.T, r PostRepository, post models.Post) int64 {
	t.Helper()
	id, err := r.Create(context.Background(), nil, &post)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return id
}

func mustSchedule(t *testing.T, r PostRepository, id int64, at time.Time) {
	t.Helper()
	if ok, err := r.SetSchedule(context.Background(), id, &at); err != nil || !ok {
		t.Fatalf("set schedule: ok=%v err=%v", ok, err)
	}
}

func TestListByOwnerOrdering(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	base := time.Now().Add(time.Hour).Truncate(time.Second)

	a := mustCreate(t, r, models.Post{UserID: 1, Title: "A"}) // draft
	b := mustCreate(t, r, models.Post{UserID: 1, Title: "B"})
	c := mustCreate(t, r, models.Post{UserID: 1, Title: "C"})
	mustSchedule(t, r, b, base.Add(10*time.Minute)) // T1
	mustSchedule(t, r, c, base)                     // T2 < T1

	posts, err := r.ListByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("want 3 posts, got %d", len(posts))
	}
	if posts[0].ID != c || posts[1].ID != b || posts[2].ID != a {
		t.Fatalf("want order [C B A], got [%d %d %d] (C=%d B=%d A=%d)",
			posts[0].ID, posts[1].ID, posts[2].ID, c, b, a)
	}
}

func TestDraftsInListAreNewestFirst(t *testing.T) {
	r := testRepo(t)

	first := mustCreate(t, r, models.Post{UserID: 1, Title: "old"})
	second := mustCreate(t, r, models.Post{UserID: 1, Title: "new"})

	posts, err := r.ListByOwner(context.Background(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if posts[0].ID != second || posts[1].ID != first {
		t.Fatalf("drafts not newest first: [%d %d]", posts[0].ID, posts[1].ID)
	}
}

func TestClaimDueCandidacy(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	now := time.Now()

	mustCreate(t, r, models.Post{UserID: 1, Title: "draft"})
	future := mustCreate(t, r, models.Post{UserID: 1, Title: "future"})
	due := mustCreate(t, r, models.Post{UserID: 1, Title: "due"})
	mustSchedule(t, r, future, now.Add(time.Hour))
	mustSchedule(t, r, due, now.Add(-time.Second))

	claimed, err := r.ClaimDue(ctx, now, time.Minute, 10)
	if err != nil {
		t.Fatalf("claim due: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != due {
		t.Fatalf("want only the due post %d, got %v", due, claimed)
	}

	// A claimed post is excluded until its lease resolves.
	again, err := r.ClaimDue(ctx, now, time.Minute, 10)
	if err != nil {
		t.Fatalf("claim due again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("claimed post handed out twice: %v", again)
	}

	// Releasing the claim restores candidacy.
	if err := r.ReleaseClaim(ctx, due); err != nil {
		t.Fatalf("release: %v", err)
	}
	released, err := r.ClaimDue(ctx, now, time.Minute, 10)
	if err != nil {
		t.Fatalf("claim due after release: %v", err)
	}
	if len(released) != 1 || released[0].ID != due {
		t.Fatalf("released post not claimable: %v", released)
	}
}

func TestClaimOneExcludedByScanClaim(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	now := time.Now()

	id := mustCreate(t, r, models.Post{UserID: 1, Title: "X"})
	mustSchedule(t, r, id, now.Add(-time.Second))

	if claimed, _ := r.ClaimDue(ctx, now, time.Minute, 10); len(claimed) != 1 {
		t.Fatalf("scan claim failed: %v", claimed)
	}

	post, err := r.ClaimOne(ctx, id, now, time.Minute)
	if err != nil {
		t.Fatalf("claim one: %v", err)
	}
	if post != nil {
		t.Fatal("manual claim succeeded while scan claim held")
	}

	// An expired lease no longer excludes.
	later := now.Add(2 * time.Minute)
	post, err = r.ClaimOne(ctx, id, later, time.Minute)
	if err != nil {
		t.Fatalf("claim one after lease expiry: %v", err)
	}
	if post == nil {
		t.Fatal("expired lease still excludes the post")
	}
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	id := mustCreate(t, r, models.Post{UserID: 1, Title: "X"})

	gone, err := r.MarkDelivered(ctx, id)
	if err != nil || !gone {
		t.Fatalf("first mark delivered: gone=%v err=%v", gone, err)
	}
	gone, err = r.MarkDelivered(ctx, id)
	if err != nil {
		t.Fatalf("second mark delivered: %v", err)
	}
	if gone {
		t.Fatal("second mark delivered deleted something")
	}
	if post, _ := r.GetByID(ctx, id); post != nil {
		t.Fatal("post survived mark delivered")
	}
}

func TestCancelScheduleRemovesCandidacy(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	now := time.Now()

	id := mustCreate(t, r, models.Post{UserID: 1, Title: "X"})
	mustSchedule(t, r, id, now.Add(-time.Second))

	if ok, err := r.SetSchedule(ctx, id, nil); err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}

	claimed, err := r.ClaimDue(ctx, now.Add(time.Hour), time.Minute, 10)
	if err != nil {
		t.Fatalf("claim due: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("cancelled post still a candidate: %v", claimed)
	}

	post, err := r.GetByID(ctx, id)
	if err != nil || post == nil {
		t.Fatalf("cancelled post missing: post=%v err=%v", post, err)
	}
	if post.ScheduledAt != nil {
		t.Fatal("schedule not cleared")
	}
}

func TestUpdatePartialFields(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	id := mustCreate(t, r, models.Post{UserID: 1, Title: "T", Body: "B", MediaRef: "m1"})

	newBody := "B2"
	if ok, err := r.Update(ctx, id, &transfer.PostUpdate{Body: &newBody}); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	post, _ := r.GetByID(ctx, id)
	if post.Title != "T" || post.Body != "B2" || post.MediaRef != "m1" {
		t.Fatalf("omitted fields changed: %+v", post)
	}

	// Explicit empty value clears the clearable media ref.
	empty := ""
	if ok, err := r.Update(ctx, id, &transfer.PostUpdate{MediaRef: &empty}); err != nil || !ok {
		t.Fatalf("clear media: ok=%v err=%v", ok, err)
	}
	post, _ = r.GetByID(ctx, id)
	if post.MediaRef != "" {
		t.Fatalf("media ref not cleared: %+v", post)
	}

	if ok, err := r.Update(ctx, 9999, &transfer.PostUpdate{Body: &newBody}); err != nil || ok {
		t.Fatalf("update of missing post: ok=%v err=%v", ok, err)
	}
}
