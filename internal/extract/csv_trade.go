package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"bondfeed-etl/internal/models"

	"go.uber.org/zap"
)

// rawTradeRow is one line of an XbondCfetsDeal file. The bridge_flag and
// operator columns are documented "always empty" upstream and must never
// be carried onto the record.
type rawTradeRow struct {
	TradeID        string
	BusinessDate   string
	ProductID      string
	SettlementType int64
	Price          float64
	Yield          float64
	Volume         float64
	TradeSide      string
	TradeTime      time.Time
	ReceiveTime    time.Time
}

var tradeColumns = []string{
	"trade_id", "business_date", "product_id", "settlement_type",
	"price", "yield", "volume", "trade_side", "trade_time", "receive_time",
}

// produceTrades is the XbondCfetsDeal row producer.
func produceTrades(logger *zap.Logger, r io.Reader) ([]models.SourceRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx, err := columnIndex(header, tradeColumns)
	if err != nil {
		return nil, err
	}

	var records []models.SourceRecord
	line := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		row, err := parseTradeRow(fields, idx)
		if err != nil {
			logger.Warn("skipping bad trade row", zap.Int("line", line), zap.Error(err))
			continue
		}
		records = append(records, convertTradeRow(row))
	}
	return records, nil
}

func parseTradeRow(fields []string, idx map[string]int) (rawTradeRow, error) {
	var row rawTradeRow
	var err error

	row.TradeID = fieldAt(fields, idx, "trade_id")
	row.BusinessDate = fieldAt(fields, idx, "business_date")
	row.ProductID = fieldAt(fields, idx, "product_id")
	if row.SettlementType, err = parseLongField(fields, idx, "settlement_type"); err != nil {
		return row, err
	}
	row.Price = parseFloatField(fields, idx, "price")
	row.Yield = parseFloatField(fields, idx, "yield")
	row.Volume = parseFloatField(fields, idx, "volume")
	row.TradeSide = strings.ToLower(fieldAt(fields, idx, "trade_side"))
	row.TradeTime = parseTimeField(fields, idx, "trade_time")
	row.ReceiveTime = parseTimeField(fields, idx, "receive_time")
	return row, nil
}

func convertTradeRow(row rawTradeRow) *models.XbondTrade {
	t := models.NewXbondTrade()
	t.BusinessDate = row.BusinessDate
	t.ExchProductID = interbankProductID(row.ProductID)
	t.ProductType = productTypeBond
	t.Exchange = exchangeCfets
	t.Source = sourceXbond
	t.Status = statusNormal
	t.SettleSpeed = mapSettlement(row.SettlementType)
	t.TradeID = row.TradeID
	t.LastPrice = row.Price
	t.LastYield = row.Yield
	t.LastVolume = row.Volume
	t.TradeSide = row.TradeSide
	t.TradeTime = row.TradeTime
	t.ReceiveTime = row.ReceiveTime
	return t
}
