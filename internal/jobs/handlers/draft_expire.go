package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Sweeper expires abandoned top-up drafts.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type DraftExpireHandler struct {
	sweeper Sweeper
	log     *slog.Logger
}

func NewDraftExpireHandler(sweeper Sweeper, log *slog.Logger) *DraftExpireHandler {
	if log == nil {
		log = slog.Default()
	}

	return &DraftExpireHandler{sweeper: sweeper, log: log}
}

func (h *DraftExpireHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	expired, err := h.sweeper.Sweep(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "draft expiry: sweep failed", slog.String("task_type", t.Type()), slog.Any("error", err))
		return err
	}

	if expired > 0 {
		h.log.InfoContext(ctx, "draft expiry: drafts discarded", slog.Int("count", expired))
	}
	return nil
}
