package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertPublicationSQL = `INSERT INTO index_publications (
        index_name,
        area,
        yyyymmdd,
        value_1e6,
        period_count,
        dataset_hash,
        status,
        tx_hash,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (index_name, area, yyyymmdd) DO UPDATE
    SET
        value_1e6    = EXCLUDED.value_1e6,
        period_count = EXCLUDED.period_count,
        dataset_hash = EXCLUDED.dataset_hash,
        status       = EXCLUDED.status,
        tx_hash      = EXCLUDED.tx_hash,
        error        = EXCLUDED.error;`

	listPublicationsBetweenSQL = `SELECT
        index_name,
        area,
        yyyymmdd,
        value_1e6,
        period_count,
        dataset_hash,
        status,
        tx_hash,
        error,
        created_at
    FROM index_publications
    WHERE yyyymmdd >= $1
      AND yyyymmdd <= $2
    ORDER BY yyyymmdd, area;`

	listRecentPublicationsSQL = `SELECT
        index_name,
        area,
        yyyymmdd,
        value_1e6,
        period_count,
        dataset_hash,
        status,
        tx_hash,
        error,
        created_at
    FROM index_publications
    ORDER BY yyyymmdd DESC, area
    LIMIT $1;`

	countPublicationsSQL = `SELECT COUNT(*) FROM index_publications;`

	insertRunSQL = `INSERT INTO publish_runs (
        yyyymmdd,
        committed,
        skipped_already,
        skipped_not_final,
        errors,
        dry_run
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, yyyymmdd, committed, skipped_already, skipped_not_final, errors, dry_run, created_at;`

	listRecentRunsSQL = `SELECT
        id,
        yyyymmdd,
        committed,
        skipped_already,
        skipped_not_final,
        errors,
        dry_run,
        created_at
    FROM publish_runs
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PublicationStore defines operations for the publication audit trail.
type PublicationStore interface {
	UpsertPublication(ctx context.Context, pub Publication) error
	ListPublicationsBetween(ctx context.Context, fromDateNum, toDateNum uint32) ([]Publication, error)
	ListRecentPublications(ctx context.Context, limit int) ([]Publication, error)
	CountPublications(ctx context.Context) (int64, error)
}

// RunStore defines operations for run summary auditing.
type RunStore interface {
	InsertRun(ctx context.Context, run RunRecord) (RunRecord, error)
	ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to publications and runs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertPublication persists or updates one per-area outcome.
func (s *Store) UpsertPublication(ctx context.Context, pub Publication) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var txHash interface{}
	if pub.TxHash != nil {
		txHash = *pub.TxHash
	}
	var errMsg interface{}
	if pub.Error != nil {
		errMsg = *pub.Error
	}

	_, execErr := pool.Exec(ctx, upsertPublicationSQL,
		pub.IndexName,
		pub.Area,
		int64(pub.DateNum),
		pub.Value1e6,
		pub.PeriodCount,
		pub.DatasetHash,
		pub.Status,
		txHash,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert publication: %w", execErr)
	}
	return nil
}

// ListPublicationsBetween lists publications within an inclusive yyyymmdd window.
func (s *Store) ListPublicationsBetween(ctx context.Context, fromDateNum, toDateNum uint32) ([]Publication, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPublicationsBetweenSQL, int64(fromDateNum), int64(toDateNum))
	if queryErr != nil {
		return nil, fmt.Errorf("list publications between: %w", queryErr)
	}
	defer rows.Close()

	return collectPublications(rows, 0)
}

// ListRecentPublications lists the most recent outcomes ordered by descending date.
func (s *Store) ListRecentPublications(ctx context.Context, limit int) ([]Publication, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPublicationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent publications: %w", queryErr)
	}
	defer rows.Close()

	return collectPublications(rows, limit)
}

// CountPublications counts stored publication rows.
func (s *Store) CountPublications(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countPublicationsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count publications: %w", scanErr)
	}
	return count, nil
}

// InsertRun persists a run summary.
func (s *Store) InsertRun(ctx context.Context, run RunRecord) (RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return RunRecord{}, err
	}

	row := pool.QueryRow(ctx, insertRunSQL,
		int64(run.DateNum),
		run.Committed,
		run.SkippedAlready,
		run.SkippedNotFinal,
		run.Errors,
		run.DryRun,
	)

	rec, scanErr := scanRun(row)
	if scanErr != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", scanErr)
	}
	return rec, nil
}

// ListRecentRuns lists the most recent run summaries.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		rec     RunRecord
		dateNum int64
	)
	if err := row.Scan(
		&rec.ID,
		&dateNum,
		&rec.Committed,
		&rec.SkippedAlready,
		&rec.SkippedNotFinal,
		&rec.Errors,
		&rec.DryRun,
		&rec.CreatedAt,
	); err != nil {
		return RunRecord{}, err
	}
	rec.DateNum = uint32(dateNum)
	return rec, nil
}

func collectPublications(rows pgx.Rows, sizeHint int) ([]Publication, error) {
	pubs := make([]Publication, 0, sizeHint)
	for rows.Next() {
		pub, scanErr := scanPublication(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		pubs = append(pubs, pub)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return pubs, nil
}

func scanPublication(rows pgx.Rows) (Publication, error) {
	var (
		pub     Publication
		dateNum int64
		txHash  sql.NullString
		errMsg  sql.NullString
	)

	if err := rows.Scan(
		&pub.IndexName,
		&pub.Area,
		&dateNum,
		&pub.Value1e6,
		&pub.PeriodCount,
		&pub.DatasetHash,
		&pub.Status,
		&txHash,
		&errMsg,
		&pub.CreatedAt,
	); err != nil {
		return Publication{}, err
	}

	pub.DateNum = uint32(dateNum)
	if txHash.Valid {
		value := txHash.String
		pub.TxHash = &value
	}
	if errMsg.Valid {
		msg := errMsg.String
		pub.Error = &msg
	}

	return pub, nil
}
