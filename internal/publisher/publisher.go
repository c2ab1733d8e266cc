package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"powerindex/internal/alerting"
	"powerindex/internal/chain"
	"powerindex/internal/config"
	"powerindex/internal/index"
	"powerindex/internal/nordpool"
	"powerindex/internal/scheduler"
	"powerindex/internal/storage"
)

// MarketDataSource supplies batched day-ahead auction data.
type MarketDataSource interface {
	Token(ctx context.Context) (string, error)
	DayAheadPrices(ctx context.Context, token string, areas []string, date string) ([]nordpool.AreaPrices, error)
	DayAheadVolumes(ctx context.Context, token string, areas []string, date string) ([]nordpool.AreaVolumes, error)
}

// CommitmentReader answers "has this (index, area, date) been published?".
type CommitmentReader interface {
	Commitment(ctx context.Context, indexID, areaID common.Hash, yyyymmdd uint32) (chain.Commitment, error)
}

// ReportSender commits a computed result on-chain.
type ReportSender interface {
	SendReport(ctx context.Context, r chain.Report) (string, error)
}

// Service orchestrates one publish run per delivery date: fetch once for all
// areas, then drive each area through the publish gate. The core computation
// is a pure function of the raw data; idempotency comes from the on-chain
// commitment check, not from local state.
type Service struct {
	scheduler   *scheduler.Scheduler
	market      MarketDataSource
	commitments CommitmentReader
	sender      ReportSender
	pubStore    storage.PublicationStore
	runStore    storage.RunStore
	notifier    alerting.Notifier
	logger      zerolog.Logger

	indexName        string
	areas            []string
	currency         string
	variant          index.Variant
	enforceVWAPCount bool
	publishHour      int
	forceRun         bool
	dryRun           bool
	channels         []string
	alertsOn         bool
	locker           storage.AdvisoryLocker
	lockKey          int64
}

// New constructs the publisher service.
func New(cfg *config.Config, sched *scheduler.Scheduler, market MarketDataSource, commitments CommitmentReader, sender ReportSender, pubStore storage.PublicationStore, runStore storage.RunStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := pubStore.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:        sched,
		market:           market,
		commitments:      commitments,
		sender:           sender,
		pubStore:         pubStore,
		runStore:         runStore,
		notifier:         notifier,
		logger:           logger.With().Str("component", "publisher").Logger(),
		indexName:        cfg.Index.Name,
		areas:            cfg.Index.Areas,
		currency:         cfg.NordPool.Currency,
		variant:          index.Variant(cfg.Index.Variant),
		enforceVWAPCount: cfg.Index.EnforceVWAPPeriodCount,
		publishHour:      cfg.Publish.PublishHourUTC,
		forceRun:         cfg.Publish.ForceRun,
		dryRun:           cfg.Publish.DryRun,
		channels:         cfg.Alerting.Channels,
		alertsOn:         cfg.Alerting.Enabled,
		locker:           locker,
		lockKey:          cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the scheduled publish loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.Tick)
}

// Tick executes one scheduled attempt. Before the publish hour the tick is a
// no-op; after it, re-runs are harmless because already-committed areas skip.
func (s *Service) Tick(ctx context.Context, bucket time.Time) error {
	hour := bucket.UTC().Hour()
	if !s.forceRun && hour < s.publishHour {
		s.logger.Debug().Int("hour", hour).Int("publish_hour", s.publishHour).Msg("before publish hour, skipping tick")
		return nil
	}
	if s.forceRun {
		s.logger.Info().Msg("force_run=true, publish hour gate bypassed")
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.PublishDate(ctx, DeliveryDate(bucket), s.dryRun)
	return err
}

// DeliveryDate returns the day-ahead delivery date for a run started at now:
// the next UTC calendar day.
func DeliveryDate(now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, 1)
}

// DateNum encodes a delivery date as a uint32 YYYYMMDD.
func DateNum(t time.Time) uint32 {
	t = t.UTC()
	return uint32(t.Year())*10_000 + uint32(t.Month())*100 + uint32(t.Day())
}

// PublishDate runs the full gate for every configured area for one delivery
// date. A failure fetching the shared batched data fails the whole run;
// anything after that is isolated per area. The returned summary is always
// complete, even when every area errored.
func (s *Service) PublishDate(ctx context.Context, deliveryDate time.Time, dryRun bool) (Summary, error) {
	dateStr := deliveryDate.UTC().Format("2006-01-02")
	dateNum := DateNum(deliveryDate)
	summary := Summary{DeliveryDate: dateStr}

	token, err := s.market.Token(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetch token: %w", err)
	}

	prices, err := s.market.DayAheadPrices(ctx, token, s.areas, dateStr)
	if err != nil {
		return summary, fmt.Errorf("fetch prices: %w", err)
	}
	pricesByArea := make(map[string]nordpool.AreaPrices, len(prices))
	for _, item := range prices {
		if item.DeliveryArea != "" {
			pricesByArea[item.DeliveryArea] = item
		}
	}

	var volumesByArea map[string]nordpool.AreaVolumes
	if s.variant == index.VariantVWAP {
		volumes, err := s.market.DayAheadVolumes(ctx, token, s.areas, dateStr)
		if err != nil {
			return summary, fmt.Errorf("fetch volumes: %w", err)
		}
		volumesByArea = make(map[string]nordpool.AreaVolumes, len(volumes))
		for _, item := range volumes {
			if item.DeliveryArea != "" {
				volumesByArea[item.DeliveryArea] = item
			}
		}
	}

	indexID := chain.IndexID(s.indexName)

	var failedAreas []string
	for _, area := range s.areas {
		outcome := s.processArea(ctx, area, indexID, dateNum, dateStr, dryRun, pricesByArea, volumesByArea)
		summary.add(outcome)
		if outcome.Kind == OutcomeError {
			failedAreas = append(failedAreas, area)
		}
		s.recordOutcome(ctx, outcome, dateNum)
	}

	s.logger.Info().
		Str("delivery_date", dateStr).
		Int("committed", summary.Committed).
		Int("skipped_already", summary.SkippedAlready).
		Int("skipped_not_final", summary.SkippedNotFinal).
		Int("errors", summary.Errors).
		Msg("publish run summary")

	if s.runStore != nil {
		run := storage.RunRecord{
			DateNum:         dateNum,
			Committed:       summary.Committed,
			SkippedAlready:  summary.SkippedAlready,
			SkippedNotFinal: summary.SkippedNotFinal,
			Errors:          summary.Errors,
			DryRun:          dryRun,
		}
		if _, err := s.runStore.InsertRun(ctx, run); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist run summary")
		}
	}

	if s.alertsOn && s.notifier != nil && summary.Errors > 0 {
		note := alerting.Notification{
			DeliveryDate:    dateStr,
			IndexName:       s.indexName,
			Committed:       summary.Committed,
			SkippedAlready:  summary.SkippedAlready,
			SkippedNotFinal: summary.SkippedNotFinal,
			Errors:          summary.Errors,
			FailedAreas:     failedAreas,
			Channels:        s.channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Msg("failed to dispatch run alert")
		}
	}

	return summary, nil
}

// processArea drives one area through the gate to exactly one terminal
// outcome. Every failure is converted to an Error outcome here so that one
// area can never abort its siblings.
func (s *Service) processArea(ctx context.Context, area string, indexID common.Hash, dateNum uint32, dateStr string, dryRun bool, prices map[string]nordpool.AreaPrices, volumes map[string]nordpool.AreaVolumes) Outcome {
	areaID := chain.AreaID(area)

	if !dryRun {
		com, err := s.commitments.Commitment(ctx, indexID, areaID, dateNum)
		if err != nil {
			return s.errOutcome(area, dateStr, fmt.Sprintf("commitment check: %v", err))
		}
		if com.ReportedAt != 0 {
			s.logger.Info().Str("area", area).Str("delivery_date", dateStr).Msg("already committed, skipping")
			return Outcome{Area: area, Kind: OutcomeSkippedAlready}
		}
	} else {
		s.logger.Debug().Str("area", area).Msg("dry run: commitment check skipped")
	}

	item, ok := prices[area]
	if !ok {
		return s.errOutcome(area, dateStr, "missing from response")
	}
	if item.Status != nordpool.StatusFinal {
		s.logger.Info().Str("area", area).Str("status", string(item.Status)).Msg("auction not final, skipping")
		return Outcome{Area: area, Kind: OutcomeSkippedNotFinal, Status: item.Status}
	}

	var (
		res index.Result
		err error
	)
	if s.variant == index.VariantVWAP {
		vols, ok := volumes[area]
		if !ok {
			return s.errOutcome(area, dateStr, "volumes missing from response")
		}
		if vols.Status != nordpool.StatusFinal {
			s.logger.Info().Str("area", area).Str("status", string(vols.Status)).Msg("volume feed not final, skipping")
			return Outcome{Area: area, Kind: OutcomeSkippedNotFinal, Status: vols.Status}
		}
		res, err = index.ComputeVWAP(item.Prices, vols.Volumes, s.enforceVWAPCount)
	} else {
		res, err = index.ComputeMean(item.Prices)
	}
	if err != nil {
		return s.errOutcome(area, dateStr, err.Error())
	}

	if dryRun {
		s.logMarker("DRY_RUN", area, dateStr, dateNum, res)
		return Outcome{Area: area, Kind: OutcomeDryRun, Result: res}
	}

	txHash, err := s.sender.SendReport(ctx, chain.Report{
		IndexID:     indexID,
		YYYYMMDD:    dateNum,
		AreaID:      areaID,
		Value1e6:    big.NewInt(res.Value1e6),
		DatasetHash: common.HexToHash(res.DatasetHash),
	})
	if err != nil {
		return s.errOutcome(area, dateStr, fmt.Sprintf("send report: %v", err))
	}

	s.logMarker("PUBLISHED", area, dateStr, dateNum, res)
	s.logger.Info().Str("area", area).Str("tx", txHash).Msg("report committed")
	return Outcome{Area: area, Kind: OutcomePublished, Result: res, TxHash: txHash}
}

func (s *Service) errOutcome(area, dateStr, msg string) Outcome {
	s.logger.Error().Str("area", area).Str("delivery_date", dateStr).Str("reason", msg).Msg("area errored")
	return Outcome{Area: area, Kind: OutcomeError, Err: msg}
}

type markerPayload struct {
	IndexName   string `json:"indexName"`
	Area        string `json:"area"`
	Date        string `json:"date"`
	DateNum     uint32 `json:"dateNum"`
	Currency    string `json:"currency"`
	Value1e6    string `json:"value1e6"`
	DatasetHash string `json:"datasetHash"`
	PeriodCount int    `json:"periodCount"`
}

// logMarker emits the POWERINDEX_JSON line. Downstream tooling parses this
// exact field set; keep it stable.
func (s *Service) logMarker(kind, area, dateStr string, dateNum uint32, res index.Result) {
	payload := markerPayload{
		IndexName:   s.indexName,
		Area:        area,
		Date:        dateStr,
		DateNum:     dateNum,
		Currency:    s.currency,
		Value1e6:    fmt.Sprintf("%d", res.Value1e6),
		DatasetHash: res.DatasetHash,
		PeriodCount: res.PeriodCount,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode marker payload")
		return
	}
	s.logger.Info().Str("kind", kind).Msg("POWERINDEX_JSON " + string(encoded))
}

func (s *Service) recordOutcome(ctx context.Context, o Outcome, dateNum uint32) {
	if s.pubStore == nil {
		return
	}

	pub := storage.Publication{
		IndexName:   s.indexName,
		Area:        o.Area,
		DateNum:     dateNum,
		Value1e6:    o.Result.Value1e6,
		PeriodCount: o.Result.PeriodCount,
		DatasetHash: o.Result.DatasetHash,
		Status:      string(o.Kind),
	}
	if o.TxHash != "" {
		tx := o.TxHash
		pub.TxHash = &tx
	}
	if o.Err != "" {
		msg := o.Err
		pub.Error = &msg
	}

	if err := s.pubStore.UpsertPublication(ctx, pub); err != nil {
		s.logger.Error().Err(err).Str("area", o.Area).Msg("failed to persist outcome")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
