package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"powerindex/internal/publisher"
)

// Publish executes the gate once for a single delivery date.
func (a *App) Publish(ctx context.Context, opts PublishOptions) error {
	deliveryDate := publisher.DeliveryDate(time.Now())
	if opts.Date != "" {
		parsed, err := time.Parse("2006-01-02", opts.Date)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
		deliveryDate = parsed
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := a.newService(nil, store)

	summary, err := svc.PublishDate(ctx, deliveryDate, opts.DryRun)
	if err != nil {
		return err
	}
	if summary.Errors > 0 {
		return fmt.Errorf("%d of %d areas errored; see logs", summary.Errors, len(a.Config.Index.Areas))
	}
	return nil
}

// Backfill 依次对一段交割日期范围重新执行发布流程。
// Already-committed dates skip naturally through the on-chain check.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	start := opts.From.UTC().Truncate(24 * time.Hour)
	end := opts.To.UTC().Truncate(24 * time.Hour)
	if start.After(end) {
		return errors.New("回填范围为空，请检查 --from/--to")
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("回填 dry-run：不会读取承诺也不会上链")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := a.newService(nil, store)

	processed := 0
	failed := 0
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		summary, err := svc.PublishDate(ctx, date, opts.DryRun)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Str("delivery_date", date.Format("2006-01-02")).Msg("回填失败")
			continue
		}
		if summary.Errors > 0 {
			failed++
		}
		processed++
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("回填完成")
	if failed > 0 {
		return errors.New("部分日期回填失败，请检查日志")
	}
	return nil
}
