package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bondfeed-etl/internal/config"
	"bondfeed-etl/internal/etl"
	"bondfeed-etl/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	defaultQueryTimeout = 300 * time.Second
	defaultPoolMinConns = 1
	defaultPoolMaxConns = 5
)

// rowMapper converts one streamed result row into a source record.
// Mapping failures skip the row with a warning, never abort the stream.
type rowMapper func(rows pgx.Rows, businessDate string) (models.SourceRecord, error)

// sqlExtractor runs a templated query against a tick database and maps
// the streamed rows through a family-specific row mapper.
type sqlExtractor struct {
	name         string
	category     string
	url          string
	user         string
	password     string
	template     string
	queryTimeout time.Duration
	mapRow       rowMapper
	logger       *zap.Logger

	pool *pgxpool.Pool
}

func newSQLExtractor(src config.SourceConfig, mapRow rowMapper, logger *zap.Logger) *sqlExtractor {
	return &sqlExtractor{
		name:         src.Name,
		category:     src.Category,
		url:          src.Properties["db.url"],
		user:         src.Properties["db.user"],
		password:     src.Properties["db.password"],
		template:     src.Properties["sql.template"],
		queryTimeout: time.Duration(src.IntProperty("sql.timeout_seconds", int(defaultQueryTimeout/time.Second))) * time.Second,
		mapRow:       mapRow,
		logger:       logger,
	}
}

// poolConfig builds the bounded pool configuration. Credentials from the
// property bag override whatever the URL carries.
func (e *sqlExtractor) poolConfig() (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(e.url)
	if err != nil {
		return nil, err
	}
	cfg.MinConns = defaultPoolMinConns
	cfg.MaxConns = defaultPoolMaxConns
	if e.user != "" {
		cfg.ConnConfig.User = e.user
	}
	if e.password != "" {
		cfg.ConnConfig.Password = e.password
	}
	return cfg, nil
}

func (e *sqlExtractor) Name() string     { return e.name }
func (e *sqlExtractor) Category() string { return e.category }

// Setup acquires the bounded connection pool with backoff retry. Three
// consecutive connect failures surface as TargetUnavailable.
func (e *sqlExtractor) Setup(ctx context.Context, ec *etl.Context) error {
	poolCfg, err := e.poolConfig()
	if err != nil {
		return etl.NewError(etl.KindConfig, etl.SubprocessExtract, ec.CurrentDate(),
			fmt.Sprintf("%s: invalid db url", e.name), err)
	}

	attempt := 0
	err = etl.Retry(ctx, etl.RetryAttempts, etl.RetryInitialDelay, func() error {
		attempt++
		pool, perr := pgxpool.NewWithConfig(ctx, poolCfg)
		if perr == nil {
			perr = pool.Ping(ctx)
			if perr != nil {
				pool.Close()
			}
		}
		if perr != nil {
			e.logger.Warn("db connect failed",
				zap.String("extractor", e.name),
				zap.Int("attempt", attempt),
				zap.Error(perr))
			return perr
		}
		e.pool = pool
		return nil
	})
	if err != nil {
		return etl.NewError(etl.KindTargetUnavailable, etl.SubprocessExtract, ec.CurrentDate(),
			fmt.Sprintf("%s: database unavailable", e.name), err)
	}
	return nil
}

func (e *sqlExtractor) ValidateSource(ec *etl.Context) error {
	if e.template == "" {
		return fmt.Errorf("%s: empty sql template", e.name)
	}
	if !strings.Contains(e.template, "{BUSINESS_DATE}") {
		return fmt.Errorf("%s: sql template has no {BUSINESS_DATE} placeholder", e.name)
	}
	if e.pool == nil {
		return fmt.Errorf("%s: setup not run", e.name)
	}
	return nil
}

func (e *sqlExtractor) Extract(ctx context.Context, ec *etl.Context) ([]models.SourceRecord, error) {
	date := ec.CurrentDate()
	query := substituteBusinessDate(e.template, date)

	qctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	rows, err := e.pool.Query(qctx, query)
	if err != nil {
		return nil, e.queryError(date, err)
	}
	defer rows.Close()

	dotted := date.Format(etl.DottedDateFormat)
	var records []models.SourceRecord
	for rows.Next() {
		rec, merr := e.mapRow(rows, dotted)
		if merr != nil {
			e.logger.Warn("skipping bad tick row",
				zap.String("extractor", e.name),
				zap.Error(merr))
			continue
		}
		if verr := rec.Validate(); verr != nil {
			e.logger.Warn("skipping invalid record",
				zap.String("extractor", e.name),
				zap.Error(verr))
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, e.queryError(date, err)
	}
	// No rows for the day is a valid, empty extraction.
	return records, nil
}

func (e *sqlExtractor) queryError(date time.Time, err error) error {
	kind := etl.KindExtract
	if errors.Is(err, context.DeadlineExceeded) {
		kind = etl.KindTimeout
	}
	return etl.NewError(kind, etl.SubprocessExtract, date,
		fmt.Sprintf("%s: query failed", e.name), err)
}

func (e *sqlExtractor) Cleanup() {
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
}

// substituteBusinessDate replaces {BUSINESS_DATE} with the day as an
// 8-digit integer literal.
func substituteBusinessDate(template string, date time.Time) string {
	return strings.ReplaceAll(template, "{BUSINESS_DATE}", etl.FormatBusinessDate(date))
}

// mapBondFutureRow scans one bond-future tick row. Expected column order:
// product_id, exchange, last_price, bid_price, bid_volume, offer_price,
// offer_volume, volume, open_interest, event_time, receive_time.
func mapBondFutureRow(rows pgx.Rows, businessDate string) (models.SourceRecord, error) {
	var (
		productID, exchange             *string
		lastPrice, bidPrice, offerPrice *float64
		bidVolume, offerVolume          *int64
		volume, openInterest            *int64
		eventTime, receiveTime          *time.Time
	)
	if err := rows.Scan(&productID, &exchange, &lastPrice, &bidPrice, &bidVolume,
		&offerPrice, &offerVolume, &volume, &openInterest, &eventTime, &receiveTime); err != nil {
		return nil, err
	}

	q := models.NewBondFutureQuote()
	q.BusinessDate = businessDate
	if productID != nil {
		q.ExchProductID = *productID
	}
	if exchange != nil {
		q.Exchange = *exchange
	}
	if lastPrice != nil {
		q.LastPrice = *lastPrice
	}
	if bidPrice != nil {
		q.BidPrice = *bidPrice
	}
	if bidVolume != nil {
		q.BidVolume = *bidVolume
	}
	if offerPrice != nil {
		q.OfferPrice = *offerPrice
	}
	if offerVolume != nil {
		q.OfferVolume = *offerVolume
	}
	if volume != nil {
		q.Volume = *volume
	}
	if openInterest != nil {
		q.OpenInterest = *openInterest
	}
	if eventTime != nil {
		q.EventTime = *eventTime
	}
	if receiveTime != nil {
		q.ReceiveTime = *receiveTime
	}
	return q, nil
}
