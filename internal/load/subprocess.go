// Package load implements the LOAD and CLEAN stages against the columnar
// target store.
package load

import (
	"context"
	"fmt"
	"sort"

	"bondfeed-etl/internal/columnar"
	"bondfeed-etl/internal/etl"
	"bondfeed-etl/internal/models"

	"go.uber.org/zap"
)

// typeOrder fixes the per-type insertion order: quotes before trades,
// futures last.
var typeOrder = []string{
	models.TypeXbondQuote,
	models.TypeXbondTrade,
	models.TypeBondFutureQuote,
}

// tableFor maps each data type onto its transient table.
var tableFor = map[string]string{
	models.TypeXbondQuote:      "xbond_quote_stream_temp",
	models.TypeXbondTrade:      "xbond_trade_stream_temp",
	models.TypeBondFutureQuote: "fut_market_price_stream_temp",
}

// Subprocess is the LOAD stage: open exactly one session to the columnar
// target, run the transient-table setup script, insert each data type in
// fixed order sorted by receive time, and leave the session in the
// context for Clean to reuse.
type Subprocess struct {
	connector columnar.Connector
	logger    *zap.Logger
}

func NewSubprocess(connector columnar.Connector, logger *zap.Logger) *Subprocess {
	return &Subprocess{connector: connector, logger: logger}
}

func (s *Subprocess) Type() etl.SubprocessType { return etl.SubprocessLoad }

func (s *Subprocess) ValidateContext(ec *etl.Context) error {
	if !ec.Has(etl.KeyTransformedData) {
		return etl.NewError(etl.KindConfig, etl.SubprocessLoad, ec.CurrentDate(), "transformedData missing from context", nil)
	}
	return nil
}

func (s *Subprocess) Execute(ctx context.Context, ec *etl.Context) (int, error) {
	date := ec.CurrentDate()
	records, _ := ec.TransformedData()

	session, err := columnar.ConnectWithRetry(ctx, s.connector, etl.SubprocessLoad, date, s.logger)
	if err != nil {
		return 0, err
	}
	// Clean owns closing; it reuses this session to drop what setup
	// created, even when an insert below fails.
	ec.SetTargetSession(session)

	if err := session.RunScript(ctx, columnar.SetupScript); err != nil {
		return 0, etl.NewError(etl.KindLoad, etl.SubprocessLoad, date, "setup script failed", err)
	}

	byType := make(map[string][]*models.TargetRecord)
	for _, rec := range records {
		byType[rec.DataType()] = append(byType[rec.DataType()], rec)
	}

	total := 0
	for _, dataType := range typeOrder {
		group := byType[dataType]
		if len(group) == 0 {
			continue
		}

		sorted := sortByReceiveTime(group, s.logger)
		if len(sorted) == 0 {
			continue
		}

		table := tableFor[dataType]
		columns := sorted[0].Columns()
		rows := make([][]any, len(sorted))
		for i, rec := range sorted {
			rows[i] = rec.Values()
		}

		n, err := session.Insert(ctx, table, columns, rows)
		if err != nil {
			// Rows already inserted for earlier types stay in the
			// transient tables; Clean erases them.
			return 0, etl.NewError(etl.KindLoad, etl.SubprocessLoad, date,
				fmt.Sprintf("failed to load %s into %s", dataType, table), err)
		}
		s.logger.Info("loaded data type",
			zap.String("data_type", dataType),
			zap.String("table", table),
			zap.String("date", etl.FormatBusinessDate(date)),
			zap.Int("rows", n))
		total += n
	}

	ec.SetLoadedDataCount(total)
	return total, nil
}

// sortByReceiveTime stable-sorts rows ascending by receive time so ties
// keep input order. Rows without a receive time are dropped with a
// warning; they cannot take part in the load-time ordering.
func sortByReceiveTime(records []*models.TargetRecord, logger *zap.Logger) []*models.TargetRecord {
	kept := make([]*models.TargetRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := rec.ReceiveTime(); !ok {
			logger.Warn("dropping record without receive_time",
				zap.String("data_type", rec.DataType()))
			continue
		}
		kept = append(kept, rec)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		ti, _ := kept[i].ReceiveTime()
		tj, _ := kept[j].ReceiveTime()
		return ti.Before(tj)
	})
	return kept
}
