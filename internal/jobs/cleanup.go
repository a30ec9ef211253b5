package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sugarloaf/chat-server-go/internal/repository"
)

// CleanupJob periodically removes expired admin sessions and, when a
// retention window is configured, purges resolved chat sessions older
// than that window. A zero retention keeps resolved sessions forever.
type CleanupJob struct {
	adminSessionRepo repository.AdminSessionRepository
	chatSessionRepo  repository.ChatSessionRepository
	retention        time.Duration
	interval         time.Duration
	done             chan struct{}
}

func NewCleanupJob(
	adminSessionRepo repository.AdminSessionRepository,
	chatSessionRepo repository.ChatSessionRepository,
	retention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		adminSessionRepo: adminSessionRepo,
		chatSessionRepo:  chatSessionRepo,
		retention:        retention,
		interval:         interval,
		done:             make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "admin sessions", j.adminSessionRepo.DeleteExpired)

	if j.retention > 0 {
		cutoff := time.Now().Add(-j.retention)
		j.runCleanup(ctx, "resolved chat sessions", func(ctx context.Context) (int64, error) {
			return j.chatSessionRepo.DeleteResolvedBefore(ctx, cutoff)
		})
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
