package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
	"tg-wp-mirror/internal/usecase/deletion"
	"tg-wp-mirror/internal/usecase/publish"
)

// State описывает фазу прохода синхронизации.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateProcessing
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing"
	case StateReconciling:
		return "reconciling"
	default:
		return "idle"
	}
}

// Publisher создаёт и обновляет посты.
type Publisher interface {
	Publish(ctx context.Context, target domain.Target, d publish.Draft) (domain.RemotePost, error)
	Update(ctx context.Context, target domain.Target, postID int64, d publish.Draft) error
}

// Reconciler сверяет удаления.
type Reconciler interface {
	Reconcile(ctx context.Context) (deletion.Report, error)
}

type Options struct {
	TitleLimit      int
	SocialTextLimit int
	LockTTL         time.Duration
}

// Deps: Deletion, Announcer и Lock необязательны.
type Deps struct {
	Source    domain.EventSource
	Posts     domain.PostRepo
	Media     domain.MediaCache
	Router    domain.Router
	Publisher Publisher
	Deletion  Reconciler
	Announcer domain.Announcer
	Lock      domain.PassLock
}

// PassReport — итог одного прохода.
type PassReport struct {
	PassID     string           `json:"pass_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Events     int              `json:"events"`
	Ignored    int              `json:"ignored"`
	Skipped    int              `json:"skipped"`
	Created    int              `json:"created"`
	Updated    int              `json:"updated"`
	Recreated  int              `json:"recreated"`
	Failed     int              `json:"failed"`
	Deletion   *deletion.Report `json:"deletion,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Status отдаётся на /status.
type Status struct {
	State    string      `json:"state"`
	LastPass *PassReport `json:"last_pass,omitempty"`
}

// Service проводит один проход: Idle → Fetching → Processing → Reconciling → Idle.
type Service struct {
	deps  Deps
	opts  Options
	log   zerolog.Logger
	state atomic.Int32

	mu   sync.Mutex
	last *PassReport
}

// NewService создаёт оркестратор.
func NewService(deps Deps, opts Options, log zerolog.Logger) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &Service{deps: deps, opts: opts, log: log}
}

// State возвращает текущее состояние.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Status возвращает состояние и отчёт последнего прохода.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.State().String()}
	if s.last != nil {
		last := *s.last
		st.LastPass = &last
	}
	return st
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeRecreated
)

// RunPass выполняет один проход. Ошибки отдельных событий не прерывают пачку.
// Пока предыдущий проход не вернулся в Idle, возвращается domain.ErrPassInProgress.
func (s *Service) RunPass(ctx context.Context) (PassReport, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateFetching)) {
		metrics.PassesTotal.WithLabelValues("skipped").Inc()
		return PassReport{}, domain.ErrPassInProgress
	}
	defer s.state.Store(int32(StateIdle))

	report := PassReport{PassID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := s.log.With().Str("pass_id", report.PassID).Logger()

	if s.deps.Lock != nil {
		release, ok, err := s.deps.Lock.Acquire(ctx, s.opts.LockTTL)
		if err != nil {
			return s.finish(log, report, fmt.Errorf("блокировка прохода: %w", err))
		}
		if !ok {
			metrics.PassesTotal.WithLabelValues("skipped").Inc()
			log.Info().Msg("mirror: проход уже выполняется другим процессом")
			return report, domain.ErrPassInProgress
		}
		defer release()
	}

	events, err := s.deps.Source.FetchEvents(ctx)
	if err != nil {
		return s.finish(log, report, fmt.Errorf("получение событий: %w", err))
	}
	report.Events = len(events)

	s.state.Store(int32(StateProcessing))
	// Подтверждается только префикс пачки до первой ошибки.
	var ackUpdateID int64 = -1
	failed := false
	for _, ev := range events {
		metrics.EventsTotal.WithLabelValues(ev.Kind.String()).Inc()
		switch ev.Kind {
		case domain.EventNew, domain.EventEdited:
		default:
			report.Ignored++
			if !failed && ev.UpdateID > ackUpdateID {
				ackUpdateID = ev.UpdateID
			}
			log.Debug().Int64("update_id", ev.UpdateID).Int64("chat_id", ev.ChannelID).Str("reason", ev.Reason).Msg("mirror: событие пропущено")
			continue
		}
		if err := ctx.Err(); err != nil {
			return s.finish(log, report, err)
		}
		res, err := s.handle(ctx, log, ev)
		if err != nil {
			report.Failed++
			failed = true
			log.Error().Err(err).Int64("message_id", ev.MessageID).Str("kind", ev.Kind.String()).Msg("mirror: сообщение не синхронизировано")
			continue
		}
		if !failed && ev.UpdateID > ackUpdateID {
			ackUpdateID = ev.UpdateID
		}
		switch res {
		case outcomeCreated:
			report.Created++
		case outcomeUpdated:
			report.Updated++
		case outcomeRecreated:
			report.Recreated++
		default:
			report.Skipped++
		}
	}
	if ackUpdateID >= 0 {
		if err := s.deps.Source.Ack(ctx, ackUpdateID); err != nil {
			log.Error().Err(err).Int64("update_id", ackUpdateID).Msg("mirror: не удалось подтвердить апдейты")
		}
	}

	if s.deps.Deletion != nil {
		s.state.Store(int32(StateReconciling))
		rep, err := s.deps.Deletion.Reconcile(ctx)
		if err != nil {
			log.Error().Err(err).Msg("mirror: сверка удалений не выполнена")
		} else {
			report.Deletion = &rep
		}
	}
	return s.finish(log, report, nil)
}

func (s *Service) finish(log zerolog.Logger, report PassReport, err error) (PassReport, error) {
	report.FinishedAt = time.Now().UTC()
	result := "ok"
	switch {
	case err != nil:
		result = "error"
		report.Error = err.Error()
		log.Error().Err(err).Msg("mirror: проход прерван")
	case report.Failed > 0:
		result = "partial"
	}
	metrics.PassesTotal.WithLabelValues(result).Inc()
	metrics.PassSeconds.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	if err == nil {
		log.Info().
			Int("events", report.Events).
			Int("created", report.Created).
			Int("updated", report.Updated).
			Int("recreated", report.Recreated).
			Int("failed", report.Failed).
			Dur("took", report.FinishedAt.Sub(report.StartedAt)).
			Msg("mirror: проход завершён")
	}
	s.mu.Lock()
	last := report
	s.last = &last
	s.mu.Unlock()
	return report, err
}

func (s *Service) handle(ctx context.Context, log zerolog.Logger, ev domain.FeedEvent) (outcome, error) {
	log = log.With().Int64("message_id", ev.MessageID).Logger()
	row, exists, err := s.deps.Posts.Get(ctx, ev.MessageID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("чтение строки: %w", err)
	}
	if exists && row.Deleted {
		log.Debug().Msg("mirror: сообщение помечено удалённым, правка пропущена")
		return outcomeSkipped, nil
	}

	ref := ev.AttachmentRef
	if exists && row.ImageSourceRef != "" {
		ref = row.ImageSourceRef
	}
	var mediaPath string
	if ref != "" {
		mediaPath, err = s.deps.Media.EnsureLocal(ctx, ref)
		if err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("mirror: вложение не скачано, публикуем без него")
			mediaPath = ""
		}
	}

	lang, routed := s.deps.Router.Route(ev.Text)
	if err := s.deps.Posts.UpsertText(ctx, ev.MessageID, ev.Text, lang, ref, mediaPath); err != nil {
		return outcomeSkipped, fmt.Errorf("сохранение текста: %w", err)
	}

	draft := publish.Draft{
		MessageID: ev.MessageID,
		Title:     publish.Title(ev.MessageID, ev.Text, s.opts.TitleLimit),
		Content:   ev.Text,
		MediaPath: mediaPath,
	}

	if !exists || !row.HasDestination() {
		target := routed
		if exists && row.DestinationTarget != "" {
			target = s.deps.Router.Lookup(row.DestinationTarget)
		}
		if err := s.create(ctx, log, target, draft, lang, true); err != nil {
			return outcomeSkipped, err
		}
		return outcomeCreated, nil
	}

	target := s.deps.Router.Lookup(row.DestinationTarget)
	err = s.deps.Publisher.Update(ctx, target, *row.DestinationPostID, draft)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Int64("post_id", *row.DestinationPostID).Str("target", target.Key).Msg("mirror: пост пропал с сайта, создаём заново")
		if err := s.create(ctx, log, target, draft, lang, false); err != nil {
			return outcomeSkipped, err
		}
		return outcomeRecreated, nil
	case err != nil:
		return outcomeSkipped, err
	}
	log.Info().Int64("post_id", *row.DestinationPostID).Str("target", target.Key).Msg("mirror: пост обновлён")
	return outcomeUpdated, nil
}

// create публикует пост и записывает его id. Анонс отправляется только при первом создании.
func (s *Service) create(ctx context.Context, log zerolog.Logger, target domain.Target, draft publish.Draft, lang string, announce bool) error {
	key := target.Key
	if err := s.deps.Posts.SetDestinationIDs(ctx, draft.MessageID, domain.DestinationIDs{Target: &key}); err != nil {
		return fmt.Errorf("сохранение сайта назначения: %w", err)
	}
	post, err := s.deps.Publisher.Publish(ctx, target, draft)
	if err != nil {
		return err
	}
	id := post.ID
	if err := s.deps.Posts.SetDestinationIDs(ctx, draft.MessageID, domain.DestinationIDs{PostID: &id}); err != nil {
		return fmt.Errorf("пост %d создан, но id не сохранён: %w", post.ID, err)
	}
	log.Info().Int64("post_id", post.ID).Str("target", key).Str("lang", lang).Msg("mirror: пост создан")

	if !announce || s.deps.Announcer == nil {
		return nil
	}
	a := domain.Announcement{
		MessageID:     draft.MessageID,
		Title:         draft.Title,
		Text:          domain.Truncate(draft.Content, s.opts.SocialTextLimit),
		Language:      lang,
		Link:          post.Link,
		ImageLocation: draft.MediaPath,
	}
	if err := s.deps.Announcer.Announce(ctx, a); err != nil {
		log.Warn().Err(err).Int64("post_id", post.ID).Msg("mirror: анонс не отправлен")
	}
	return nil
}
