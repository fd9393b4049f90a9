package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/delivery"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/notify"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/repository"
)

type stubGateway struct {
	mu      sync.Mutex
	calls   int
	outcome delivery.Outcome

	// started receives one signal per Deliver call before blocking.
	started chan struct{}
	// block, when non-nil, holds Deliver until closed.
	block chan struct{}
}

func (g *stubGateway) Deliver(ctx context.Context, dest delivery.Destination, msg delivery.Message) delivery.Outcome {
	g.mu.Lock()
	g.calls++
	started, block := g.started, g.block
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outcome
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *stubGateway) setOutcome(out delivery.Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcome = out
}

type fakeChannels struct{}

func (fakeChannels) GetByUserID(ctx context.Context, userID int64) (*models.Channel, error) {
	return &models.Channel{ID: 1, UserID: userID, ChatID: -100200300}, nil
}

func (fakeChannels) Upsert(ctx context.Context, channel *models.Channel) (int64, error) {
	return 1, nil
}

func (fakeChannels) Remove(ctx context.Context, userID int64) error { return nil }

type fakeMedia struct {
	mu      sync.Mutex
	deleted []string
}

func (m *fakeMedia) PublicURL(key string) string { return "https://media.test/" + key }

func (m *fakeMedia) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}

func newTestEngine(gw delivery.Gateway) (*Engine, repository.PostRepository, *fakeMedia, notify.Bus) {
	pr := repository.NewMemoryPostRepository()
	media := &fakeMedia{}
	bus := notify.New()
	e := NewEngine(pr, fakeChannels{}, gw, media, bus, Config{
		ClaimLease:  time.Minute,
		BatchLimit:  50,
		Concurrency: 4,
	})
	return e, pr, media, bus
}

func createPost(t *testing.T, pr repository.PostRepository, post models.Post) int64 {
	t.Helper()
	id, err := pr.Create(context.Background(), nil, &post)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return id
}

func schedulePast(t *testing.T, pr repository.PostRepository, id int64) {
	t.Helper()
	at := time.Now().Add(-time.Second)
	if ok, err := pr.SetSchedule(context.Background(), id, &at); err != nil || !ok {
		t.Fatalf("set schedule: ok=%v err=%v", ok, err)
	}
}

func TestScanIgnoresDrafts(t *testing.T) {
	gw := &stubGateway{outcome: delivery.Success()}
	e, pr, _, _ := newTestEngine(gw)

	id := createPost(t, pr, models.Post{UserID: 7, Title: "X", Body: "Y"})

	e.Scan()

	if got := gw.callCount(); got != 0 {
		t.Fatalf("draft was delivered: %d gateway calls", got)
	}
	post, err := pr.GetByID(context.Background(), id)
	if err != nil || post == nil {
		t.Fatalf("draft vanished: post=%v err=%v", post, err)
	}
}

func TestScanDeliversDuePost(t *testing.T) {
	gw := &stubGateway{outcome: delivery.Success()}
	e, pr, _, bus := newTestEngine(gw)

	events, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	id := createPost(t, pr, models.Post{UserID: 7, Title: "X", Body: "Y"})
	schedulePast(t, pr, id)

	e.Scan()

	if got := gw.callCount(); got != 1 {
		t.Fatalf("want exactly one delivery, got %d", got)
	}
	post, err := pr.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if post != nil {
		t.Fatal("delivered post still in store")
	}

	select {
	case ev := <-events:
		if ev.Type != notify.EventPostsUpdated {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no posts_updated event observed")
	}
}

func TestTransientFailureRetriesNextTick(t *testing.T) {
	gw := &stubGateway{outcome: delivery.Transient("network down")}
	e, pr, _, _ := newTestEngine(gw)

	id := createPost(t, pr, models.Post{UserID: 7, Title: "X"})
	schedulePast(t, pr, id)

	before, _ := pr.GetByID(context.Background(), id)

	e.Scan()

	post, err := pr.GetByID(context.Background(), id)
	if err != nil || post == nil {
		t.Fatalf("post gone after transient failure: post=%v err=%v", post, err)
	}
	if post.Delivered {
		t.Fatal("delivered flag set after failed delivery")
	}
	if !post.ScheduledAt.Equal(*before.ScheduledAt) {
		t.Fatal("schedule changed by failed delivery")
	}

	gw.setOutcome(delivery.Success())
	e.Scan()

	if post, _ := pr.GetByID(context.Background(), id); post != nil {
		t.Fatal("post not delivered after gateway recovered")
	}
	if got := gw.callCount(); got != 2 {
		t.Fatalf("want 2 gateway calls, got %d", got)
	}
}

func TestPermanentFailureStaysCandidate(t *testing.T) {
	gw := &stubGateway{outcome: delivery.Permanent("bad chat")}
	e, pr, _, _ := newTestEngine(gw)

	id := createPost(t, pr, models.Post{UserID: 7, Title: "X"})
	schedulePast(t, pr, id)

	e.Scan()
	e.Scan()

	// Permanently failing posts are never dropped silently; they keep
	// retrying until the owner intervenes.
	if post, _ := pr.GetByID(context.Background(), id); post == nil {
		t.Fatal("post dropped after permanent failure")
	}
	if got := gw.callCount(); got != 2 {
		t.Fatalf("want one attempt per tick, got %d", got)
	}
}

func TestManualAndScanExcludeEachOther(t *testing.T) {
	gw := &stubGateway{
		outcome: delivery.Success(),
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	e, pr, _, _ := newTestEngine(gw)

	id := createPost(t, pr, models.Post{UserID: 7, Title: "X"})
	schedulePast(t, pr, id)

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		e.Scan()
	}()
	<-gw.started // scan holds the claim and is mid-delivery

	if _, err := e.DispatchNow(context.Background(), id); !errors.Is(err, ErrBusy) {
		t.Fatalf("manual dispatch during in-flight scan: want ErrBusy, got %v", err)
	}

	close(gw.block)
	<-scanDone

	if _, err := e.DispatchNow(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("manual dispatch after delivery: want ErrNotFound, got %v", err)
	}
	if got := gw.callCount(); got != 1 {
		t.Fatalf("want exactly one delivery, got %d", got)
	}
}

func TestCancellationDuringFlightIsBenign(t *testing.T) {
	gw := &stubGateway{
		outcome: delivery.Success(),
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	e, pr, _, _ := newTestEngine(gw)

	id := createPost(t, pr, models.Post{UserID: 7, Title: "X"})
	schedulePast(t, pr, id)

	type result struct {
		out delivery.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := e.DispatchNow(context.Background(), id)
		done <- result{out, err}
	}()
	<-gw.started

	// Owner cancels the schedule while the attempt is in flight.
	if ok, err := pr.SetSchedule(context.Background(), id, nil); err != nil || !ok {
		t.Fatalf("cancel schedule: ok=%v err=%v", ok, err)
	}

	close(gw.block)
	res := <-done
	if res.err != nil || !res.out.OK() {
		t.Fatalf("in-flight attempt after cancel: out=%+v err=%v", res.out, res.err)
	}

	// The post must not reappear as a candidate.
	claimed, err := pr.ClaimDue(context.Background(), time.Now().Add(time.Hour), time.Minute, 10)
	if err != nil {
		t.Fatalf("claim due: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("cancelled post reappeared as candidate: %v", claimed)
	}
}

func TestOwnerDeleteDuringFlightIsBenign(t *testing.T) {
	gw := &stubGateway{
		outcome: delivery.Success(),
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	e, pr, _, _ := newTestEngine(gw)

	id := createPost(t, pr, models.Post{UserID: 7, Title: "X"})
	schedulePast(t, pr, id)

	done := make(chan error, 1)
	go func() {
		_, err := e.DispatchNow(context.Background(), id)
		done <- err
	}()
	<-gw.started

	if ok, err := pr.Remove(context.Background(), id); err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}

	close(gw.block)
	if err := <-done; err != nil {
		t.Fatalf("in-flight attempt after owner delete: %v", err)
	}
}

func TestDeliveredLocalMediaIsReleased(t *testing.T) {
	gw := &stubGateway{outcome: delivery.Success()}
	e, pr, media, _ := newTestEngine(gw)

	id := createPost(t, pr, models.Post{UserID: 7, Title: "X", MediaRef: "abc123"})
	schedulePast(t, pr, id)

	e.Scan()

	media.mu.Lock()
	defer media.mu.Unlock()
	if len(media.deleted) != 1 || media.deleted[0] != "abc123" {
		t.Fatalf("local media not released: %v", media.deleted)
	}
}

func TestExternalMediaIsPassedThrough(t *testing.T) {
	gw := &stubGateway{outcome: delivery.Success()}
	e, pr, media, _ := newTestEngine(gw)

	id := createPost(t, pr, models.Post{UserID: 7, Title: "X", MediaRef: "https://example.com/pic.png"})
	schedulePast(t, pr, id)

	e.Scan()

	media.mu.Lock()
	defer media.mu.Unlock()
	if len(media.deleted) != 0 {
		t.Fatalf("external ref must not be cleaned up locally: %v", media.deleted)
	}
}

func TestDispatchNowUnknownPost(t *testing.T) {
	gw := &stubGateway{outcome: delivery.Success()}
	e, _, _, _ := newTestEngine(gw)

	if _, err := e.DispatchNow(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
