package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// rawQuoteRow is one line of an AllPriceDepth file: a single side/level of
// one L2 message, keyed by (mq_offset, side, level).
type rawQuoteRow struct {
	MQOffset       int64
	BusinessDate   string // dotted YYYY.MM.DD
	ProductID      string
	SettlementType int64
	Side           string // "bid" or "offer"
	Level          int
	Price          float64
	Yield          float64
	YieldType      string
	Volume         float64
	EventTime      time.Time
	ReceiveTime    time.Time
}

var quoteColumns = []string{
	"mq_offset", "business_date", "product_id", "settlement_type",
	"side", "level", "price", "yield", "yield_type", "volume",
	"event_time", "receive_time",
}

// parseQuoteRows streams an AllPriceDepth CSV. A malformed file fails the
// parse; a malformed field only skips that row with a warning.
func parseQuoteRows(logger *zap.Logger, r io.Reader) ([]rawQuoteRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx, err := columnIndex(header, quoteColumns)
	if err != nil {
		return nil, err
	}

	var rows []rawQuoteRow
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

		row, err := parseQuoteRow(fields, idx)
		if err != nil {
			logger.Warn("skipping bad quote row", zap.Int("line", line), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseQuoteRow(fields []string, idx map[string]int) (rawQuoteRow, error) {
	var row rawQuoteRow
	var err error

	if row.MQOffset, err = parseLongField(fields, idx, "mq_offset"); err != nil {
		return row, err
	}
	row.BusinessDate = fieldAt(fields, idx, "business_date")
	row.ProductID = fieldAt(fields, idx, "product_id")
	if row.SettlementType, err = parseLongField(fields, idx, "settlement_type"); err != nil {
		return row, err
	}

	side := strings.ToLower(fieldAt(fields, idx, "side"))
	if side != "bid" && side != "offer" {
		return row, fmt.Errorf("unknown side %q", side)
	}
	row.Side = side

	lvl, err := parseLongField(fields, idx, "level")
	if err != nil {
		return row, err
	}
	row.Level = int(lvl)

	row.Price = parseFloatField(fields, idx, "price")
	row.Yield = parseFloatField(fields, idx, "yield")
	row.YieldType = fieldAt(fields, idx, "yield_type")
	row.Volume = parseFloatField(fields, idx, "volume")
	row.EventTime = parseTimeField(fields, idx, "event_time")
	row.ReceiveTime = parseTimeField(fields, idx, "receive_time")
	return row, nil
}

func columnIndex(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return idx, nil
}

func fieldAt(fields []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func parseLongField(fields []string, idx map[string]int, name string) (int64, error) {
	s := fieldAt(fields, idx, name)
	if s == "" {
		return -1, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1, fmt.Errorf("bad %s %q", name, s)
	}
	return v, nil
}

// parseFloatField returns NaN for empty or unparseable values; the depth
// mapper treats NaN as "row had no value here".
func parseFloatField(fields []string, idx map[string]int, name string) float64 {
	s := fieldAt(fields, idx, name)
	if s == "" {
		return nan()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nan()
	}
	return v
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseTimeField(fields []string, idx map[string]int, name string) time.Time {
	s := fieldAt(fields, idx, name)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
