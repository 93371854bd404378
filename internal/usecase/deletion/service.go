package deletion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// Deleter удаляет пост на сайте назначения.
type Deleter interface {
	Delete(ctx context.Context, target domain.Target, postID int64) error
}

// Report содержит итог сверки удалений.
type Report struct {
	Active       int  `json:"active"`
	Live         int  `json:"live"`
	Stale        int  `json:"stale"`
	DeleteFailed int  `json:"delete_failed"`
	Skipped      bool `json:"skipped"`
}

// Reconciler находит исчезнувшие из канала сообщения и удаляет их копии.
type Reconciler struct {
	posts      domain.PostRepo
	snapshot   domain.LiveSnapshot
	deleter    Deleter
	router     domain.Router
	allowEmpty bool
	log        zerolog.Logger
}

// NewReconciler создаёт сервис.
func NewReconciler(posts domain.PostRepo, snapshot domain.LiveSnapshot, deleter Deleter, router domain.Router, allowEmpty bool, log zerolog.Logger) *Reconciler {
	return &Reconciler{posts: posts, snapshot: snapshot, deleter: deleter, router: router, allowEmpty: allowEmpty, log: log}
}

// Reconcile вычисляет stale = активные − живые и для каждого помечает строку и удаляет пост.
// Пустой снимок при наличии активных строк не применяется, если не включён allowEmpty.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	var report Report
	active, err := r.posts.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("список активных сообщений: %w", err)
	}
	report.Active = len(active)
	if len(active) == 0 {
		return report, nil
	}
	ids := make([]int64, 0, len(active))
	for _, a := range active {
		ids = append(ids, a.MessageID)
	}
	live, err := r.snapshot.LiveMessageIDs(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("снимок канала: %w", err)
	}
	report.Live = len(live)
	if len(live) == 0 && !r.allowEmpty {
		report.Skipped = true
		metrics.DeletionSkipped.Inc()
		r.log.Warn().Int("active", len(active)).Msg("deletion: пустой снимок канала, удаление пропущено")
		return report, nil
	}

	for _, a := range active {
		if _, ok := live[a.MessageID]; ok {
			continue
		}
		log := r.log.With().Int64("message_id", a.MessageID).Logger()
		if err := r.posts.MarkDeleted(ctx, a.MessageID); err != nil {
			log.Error().Err(err).Msg("deletion: не удалось пометить сообщение удалённым")
			continue
		}
		report.Stale++
		metrics.PostsDeleted.Inc()
		if a.DestinationPostID == nil {
			log.Info().Msg("deletion: сообщение удалено, поста на сайте не было")
			continue
		}
		target := r.router.Lookup(a.DestinationTarget)
		if err := r.deleter.Delete(ctx, target, *a.DestinationPostID); err != nil {
			report.DeleteFailed++
			log.Warn().Err(err).Int64("post_id", *a.DestinationPostID).Str("target", target.Key).Msg("deletion: пост не удалён")
			continue
		}
		log.Info().Int64("post_id", *a.DestinationPostID).Str("target", target.Key).Msg("deletion: пост удалён")
	}
	return report, nil
}
