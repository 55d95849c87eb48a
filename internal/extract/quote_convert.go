package extract

import (
	"io"
	"math"
	"strings"

	"bondfeed-etl/internal/models"

	"go.uber.org/zap"
)

// Constants imposed on every XBOND record during conversion.
const (
	productTypeBond = "BOND"
	exchangeCfets   = "CFETS"
	sourceXbond     = "XBOND"
	quoteLevelL2    = "L2"
	statusNormal    = "Normal"
)

func nan() float64 { return math.NaN() }

// interbankProductID suffixes a bare CFETS code with the .IB market tag.
func interbankProductID(id string) string {
	if id == "" || strings.Contains(id, ".") {
		return id
	}
	return id + ".IB"
}

// mapSettlement maps the CFETS settlement type onto settle speed:
// 1 (T+0) -> 0, 2 (T+1) -> 1. Anything else stays unset.
func mapSettlement(settlementType int64) int64 {
	switch settlementType {
	case 1:
		return 0
	case 2:
		return 1
	default:
		return models.SentinelInt
	}
}

// produceQuotes is the AllPriceDepth row producer: parse the file, then
// fold the per-side/per-level rows into grouped L2 quote records.
func produceQuotes(logger *zap.Logger, r io.Reader) ([]models.SourceRecord, error) {
	rows, err := parseQuoteRows(logger, r)
	if err != nil {
		return nil, err
	}
	return convertQuoteRows(logger, rows), nil
}

// convertQuoteRows groups rows by message offset, preserving first-seen
// order, and emits one quote per group. Depth slots follow the pinned
// mapping: level 1 is the indicative best (slot 0), levels 2-6 are the
// tradable slots 1-5. A later row only fills a slot the earlier rows
// left null.
func convertQuoteRows(logger *zap.Logger, rows []rawQuoteRow) []models.SourceRecord {
	grouped := make(map[int64]*models.XbondQuote)
	var order []int64

	for _, row := range rows {
		q, ok := grouped[row.MQOffset]
		if !ok {
			q = models.NewXbondQuote()
			q.MQOffset = row.MQOffset
			q.ProductType = productTypeBond
			q.Exchange = exchangeCfets
			q.Source = sourceXbond
			q.Level = quoteLevelL2
			q.Status = statusNormal
			grouped[row.MQOffset] = q
			order = append(order, row.MQOffset)
		}

		if q.BusinessDate == "" {
			q.BusinessDate = row.BusinessDate
		}
		if q.ExchProductID == "" {
			q.ExchProductID = interbankProductID(row.ProductID)
		}
		if q.SettleSpeed == models.SentinelInt {
			q.SettleSpeed = mapSettlement(row.SettlementType)
		}
		if q.EventTime.IsZero() {
			q.EventTime = row.EventTime
		}
		if q.ReceiveTime.IsZero() {
			q.ReceiveTime = row.ReceiveTime
		}

		if row.Level < 1 || row.Level > 6 {
			logger.Warn("quote row with out-of-range level",
				zap.Int64("mq_offset", row.MQOffset),
				zap.Int("level", row.Level))
			continue
		}

		slot := row.Level - 1
		side := &q.Bid[slot]
		if row.Side == "offer" {
			side = &q.Offer[slot]
		}
		fillDepthLevel(side, row, slot == 0)
	}

	out := make([]models.SourceRecord, 0, len(order))
	for _, offset := range order {
		out = append(out, grouped[offset])
	}
	return out
}

// fillDepthLevel writes one row into a depth slot. Earlier non-null values
// win; slot 0 carries the indicative volume, deeper slots the tradable one.
func fillDepthLevel(d *models.DepthLevel, row rawQuoteRow, indicative bool) {
	if math.IsNaN(d.Price) {
		d.Price = row.Price
	}
	if math.IsNaN(d.Yield) {
		d.Yield = row.Yield
	}
	if d.YieldType == "" {
		d.YieldType = row.YieldType
	}
	if indicative {
		if math.IsNaN(d.Volume) {
			d.Volume = row.Volume
		}
		return
	}
	if math.IsNaN(d.TradableVolume) {
		d.TradableVolume = row.Volume
	}
}
