package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/delivery"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/notify"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/repository"
)

var (
	// ErrNotFound: the post does not exist (never did, or already delivered
	// and removed, or deleted by its owner).
	ErrNotFound = errors.New("post not found")
	// ErrBusy: another delivery attempt currently holds the claim.
	ErrBusy = errors.New("post delivery already in flight")
)

// MediaStore is the slice of the media service the engine needs: deriving a
// public URL for a stored object and releasing it after a successful send.
type MediaStore interface {
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

type Config struct {
	ClaimLease  time.Duration
	BatchLimit  int
	Concurrency int
}

// Engine turns due posts into delivered, removed posts, at most once per
// post, whether triggered by the periodic scan or a direct "send now".
//
// Both paths go through the store's claim operations, so a post can never be
// in flight twice: the scanner's batch claim and the manual single-post claim
// exclude each other on the same row.
type Engine struct {
	pr    repository.PostRepository
	cr    repository.ChannelRepository
	gw    delivery.Gateway
	media MediaStore
	bus   notify.Bus

	cfg Config

	// now is swapped in tests.
	now func() time.Time
}

func NewEngine(
	pr repository.PostRepository,
	cr repository.ChannelRepository,
	gw delivery.Gateway,
	media MediaStore,
	bus notify.Bus,
	cfg Config) *Engine {
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	return &Engine{
		pr:    pr,
		cr:    cr,
		gw:    gw,
		media: media,
		bus:   bus,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Scan is one tick of the periodic loop: claim due candidates and deliver
// them concurrently under the semaphore cap. A failure on one post never
// aborts the rest of the batch, and nothing here may take down the cron
// loop that schedules the next tick.
func (e *Engine) Scan() {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("dispatch scan panicked", "panic", p)
		}
	}()

	ctx := context.Background()
	now := e.now()

	posts, err := e.pr.ClaimDue(ctx, now, e.cfg.ClaimLease, e.cfg.BatchLimit)
	if err != nil {
		slog.Error("claiming due posts failed", "error", err)
		return
	}
	if len(posts) == 0 {
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.cfg.Concurrency)

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			out := e.deliverClaimed(ctx, post)
			if !out.OK() {
				slog.Warn("scheduled delivery failed",
					"post_id", post.ID, "user_id", post.UserID,
					"permanent", out.Status == delivery.StatusPermanent, "reason", out.Reason)
			}
		}(post)
	}

	wg.Wait()
}

// DispatchNow delivers one post immediately, outside the tick cadence. The
// caller receives the delivery outcome synchronously. ErrBusy means the scan
// (or another manual request) already holds the claim; the post stays intact
// and the call can simply be retried.
func (e *Engine) DispatchNow(ctx context.Context, id int64) (delivery.Outcome, error) {
	now := e.now()

	post, err := e.pr.ClaimOne(ctx, id, now, e.cfg.ClaimLease)
	if err != nil {
		return delivery.Outcome{}, err
	}
	if post == nil {
		// Either the record is gone or someone else holds the claim.
		existing, err := e.pr.GetByID(ctx, id)
		if err != nil {
			return delivery.Outcome{}, err
		}
		if existing == nil {
			return delivery.Outcome{}, ErrNotFound
		}
		return delivery.Outcome{}, ErrBusy
	}

	return e.deliverClaimed(ctx, post), nil
}

// deliverClaimed runs the delivery + terminal-transition sequence for a post
// this engine has already claimed. On success the record is removed and a
// change event emitted; on failure the claim is released so the post returns
// to normal candidate status for the next tick or a retried manual call.
func (e *Engine) deliverClaimed(ctx context.Context, post *models.Post) delivery.Outcome {
	dest, out := e.destination(ctx, post.UserID)
	if !out.OK() {
		e.release(ctx, post.ID)
		return out
	}

	msg := delivery.Message{Caption: delivery.Caption(post.Title, post.Body)}
	localMedia := ""
	if post.MediaRef != "" {
		if delivery.IsExternalRef(post.MediaRef) {
			msg.MediaURL = post.MediaRef
		} else {
			localMedia = post.MediaRef
			msg.MediaURL = e.media.PublicURL(localMedia)
		}
	}

	out = e.gw.Deliver(ctx, dest, msg)
	if !out.OK() {
		e.release(ctx, post.ID)
		return out
	}

	gone, err := e.pr.MarkDelivered(ctx, post.ID)
	if err != nil {
		// The send went out but the record could not be removed. The claim
		// lease keeps the post out of candidacy for now; if the store stays
		// broken past the lease the post may be re-sent (at-least-once).
		slog.Error("mark delivered failed", "post_id", post.ID, "error", err)
		return delivery.Success()
	}
	if !gone {
		// Already removed: a concurrent success or an owner delete.
		slog.Info("post already gone on delivery", "post_id", post.ID)
	}

	if localMedia != "" {
		if err := e.media.Delete(ctx, localMedia); err != nil {
			slog.Warn("releasing delivered media failed", "media_ref", localMedia, "error", err)
		}
	}

	e.bus.Publish(notify.Event{Type: notify.EventPostsUpdated})
	return delivery.Success()
}

func (e *Engine) destination(ctx context.Context, userID int64) (delivery.Destination, delivery.Outcome) {
	channel, err := e.cr.GetByUserID(ctx, userID)
	if err != nil {
		return delivery.Destination{}, delivery.Transient(err.Error())
	}
	if channel == nil {
		// Undeliverable until the owner connects a channel; retried on later
		// ticks rather than silently dropped.
		return delivery.Destination{}, delivery.Permanent("no connected channel")
	}
	return delivery.Destination{ChatID: channel.ChatID}, delivery.Success()
}

func (e *Engine) release(ctx context.Context, id int64) {
	if err := e.pr.ReleaseClaim(ctx, id); err != nil {
		slog.Error("releasing claim failed", "post_id", id, "error", err)
	}
}
