package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"powerindex/internal/storage"
)

// Show prints recent publication outcomes or run summaries.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Runs {
		return showRuns(ctx, store, opts.Limit)
	}
	return showPublications(ctx, store, opts.Limit)
}

func showPublications(ctx context.Context, store storage.PublicationStore, limit int) error {
	pubs, err := store.ListRecentPublications(ctx, limit)
	if err != nil {
		return err
	}
	if len(pubs) == 0 {
		fmt.Fprintln(os.Stdout, "no publications found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tArea\tValue\tPeriods\tStatus\tDataset Hash\tTx\tError")

	for _, pub := range pubs {
		errMsg := ""
		if pub.Error != nil {
			errMsg = sanitizeInline(*pub.Error)
		}
		tx := ""
		if pub.TxHash != nil {
			tx = shorten(*pub.TxHash)
		}
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			pub.DateNum,
			pub.Area,
			decimal.New(pub.Value1e6, -6).StringFixed(6),
			pub.PeriodCount,
			pub.Status,
			shorten(pub.DatasetHash),
			tx,
			errMsg,
		)
	}

	writer.Flush()
	return nil
}

func showRuns(ctx context.Context, store storage.RunStore, limit int) error {
	runs, err := store.ListRecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Run At (UTC)\tDate\tCommitted\tSkipped Already\tSkipped Not Final\tErrors\tDry Run")

	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%d\t%d\t%d\t%d\t%t\n",
			run.CreatedAt.UTC().Format(time.RFC3339),
			run.DateNum,
			run.Committed,
			run.SkippedAlready,
			run.SkippedNotFinal,
			run.Errors,
			run.DryRun,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func shorten(v string) string {
	if len(v) <= 16 {
		return v
	}
	return v[:10] + "…" + v[len(v)-4:]
}
