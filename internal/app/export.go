package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"powerindex/internal/publisher"
	"powerindex/internal/storage"
)

// Export renders publication history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.AddDate(0, 0, -opts.MaxPoints)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	pubs, err := store.ListPublicationsBetween(ctx, publisher.DateNum(from), publisher.DateNum(to))
	if err != nil {
		return err
	}

	// Only rows that carry a computed value chart sensibly.
	values := pubs[:0]
	for _, pub := range pubs {
		if pub.Status == "published" || pub.Status == "dry_run" {
			values = append(values, pub)
		}
	}
	if len(values) == 0 {
		a.Logger.Info().Msg("no published values found for export window")
		return nil
	}

	downsampled := downsamplePublications(values, opts.MaxPoints)
	a.Logger.Info().Int("total", len(values)).Int("exported", len(downsampled)).Msg("exporting publications")

	if opts.CSVPath != "" {
		if err := writePublicationsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePublicationsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePublications(pubs []storage.Publication, max int) []storage.Publication {
	if max <= 0 || len(pubs) <= max {
		return pubs
	}
	if max == 1 {
		return pubs[len(pubs)-1:]
	}

	result := make([]storage.Publication, 0, max)
	step := float64(len(pubs)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(pubs) {
			idx = len(pubs) - 1
		}
		result = append(result, pubs[idx])
	}
	return result
}

func writePublicationsCSV(path string, pubs []storage.Publication) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"yyyymmdd", "area", "value", "value_1e6", "period_count", "dataset_hash", "status", "tx_hash"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, pub := range pubs {
		tx := ""
		if pub.TxHash != nil {
			tx = *pub.TxHash
		}
		record := []string{
			fmt.Sprintf("%d", pub.DateNum),
			pub.Area,
			decimal.New(pub.Value1e6, -6).StringFixed(6),
			fmt.Sprintf("%d", pub.Value1e6),
			fmt.Sprintf("%d", pub.PeriodCount),
			pub.DatasetHash,
			pub.Status,
			tx,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePublicationsPNG(path string, pubs []storage.Publication) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	byArea := make(map[string][]storage.Publication)
	for _, pub := range pubs {
		byArea[pub.Area] = append(byArea[pub.Area], pub)
	}

	areas := make([]string, 0, len(byArea))
	for area := range byArea {
		areas = append(areas, area)
	}
	sort.Strings(areas)

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}

	series := make([]chart.Series, 0, len(areas))
	for _, area := range areas {
		rows := byArea[area]
		x := make([]time.Time, len(rows))
		y := make([]float64, len(rows))
		for i, pub := range rows {
			x[i] = dateNumTime(pub.DateNum)
			y[i] = decimal.New(pub.Value1e6, -6).InexactFloat64()
		}
		series = append(series, chart.TimeSeries{
			Name:    area,
			XValues: x,
			YValues: y,
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Daily index value",
			ValueFormatter: valueFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func dateNumTime(dateNum uint32) time.Time {
	year := int(dateNum / 10_000)
	month := time.Month(dateNum / 100 % 100)
	day := int(dateNum % 100)
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
