package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"

	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/infrastructure/logger"
	"github.com/convohq/chat-api/internal/infrastructure/metrics"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

const CronJobTimeout = 5 * time.Minute

type Crontab struct {
	ctab            *crontab.Crontab
	chatService     *chat.ChatService
	streamMarkerTTL time.Duration
}

func NewCrontab(chatService *chat.ChatService, streamMarkerTTL time.Duration) *Crontab {
	return &Crontab{
		ctab:            crontab.New(),
		chatService:     chatService,
		streamMarkerTTL: streamMarkerTTL,
	}
}

// Run schedules the pruning job and blocks until ctx is cancelled.
func (c *Crontab) Run(ctx context.Context) error {
	// execute once on server start
	c.pruneStreamMarkers(ctx)

	if err := c.ctab.AddJob("0 * * * *", func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		c.pruneStreamMarkers(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add stream pruning job")
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) pruneStreamMarkers(ctx context.Context) {
	log := logger.GetLogger()

	deleted, err := c.chatService.PruneStreams(ctx, c.streamMarkerTTL)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune stream markers")
		return
	}
	if deleted > 0 {
		metrics.StreamMarkersPrunedTotal.Add(float64(deleted))
		log.Info().Int64("deleted", deleted).Msg("pruned expired stream markers")
	}
}
