package models

import (
	"fmt"
	"time"
)

// RecordKey is the composite primary key shared by all source families.
type RecordKey struct {
	BusinessDate string // dotted YYYY.MM.DD
	ProductID    string
	EventTime    time.Time
}

// SourceRecord is the polymorphic output of an extractor. Schema and
// FieldValues enumerate the record's fields in the same declared order;
// the transform engine is driven entirely by these tables, never by
// reflection.
type SourceRecord interface {
	SourceType() string
	Key() RecordKey
	Validate() error
	Schema() []FieldSpec
	FieldValues() []Value
}

// DepthLevel is one bid or offer level of an xbond quote. Level 0 carries
// the indicative volume, levels 1-5 carry tradable volume.
type DepthLevel struct {
	Price          float64
	Yield          float64
	YieldType      string
	Volume         float64
	TradableVolume float64
}

func emptyDepthLevel() DepthLevel {
	return DepthLevel{
		Price:          SentinelFloat(),
		Yield:          SentinelFloat(),
		Volume:         SentinelFloat(),
		TradableVolume: SentinelFloat(),
	}
}

// XbondQuote is one grouped L2 quote snapshot from the XBOND depth files.
type XbondQuote struct {
	BusinessDate  string
	ExchProductID string
	ProductType   string
	Exchange      string
	Source        string
	Level         string
	Status        string
	SettleSpeed   int64
	MQOffset      int64
	EventTime     time.Time
	ReceiveTime   time.Time
	Bid           [6]DepthLevel
	Offer         [6]DepthLevel
}

// NewXbondQuote returns a quote with every numeric field at its sentinel.
func NewXbondQuote() *XbondQuote {
	q := &XbondQuote{
		SettleSpeed: SentinelInt,
		MQOffset:    SentinelInt,
	}
	for i := range q.Bid {
		q.Bid[i] = emptyDepthLevel()
		q.Offer[i] = emptyDepthLevel()
	}
	return q
}

func (q *XbondQuote) SourceType() string { return TypeXbondQuote }

func (q *XbondQuote) Key() RecordKey {
	return RecordKey{BusinessDate: q.BusinessDate, ProductID: q.ExchProductID, EventTime: q.EventTime}
}

func (q *XbondQuote) Validate() error {
	if q.ExchProductID == "" {
		return fmt.Errorf("xbond quote: missing product id")
	}
	if q.BusinessDate == "" {
		return fmt.Errorf("xbond quote %s: missing business date", q.ExchProductID)
	}
	if q.MQOffset < 0 {
		return fmt.Errorf("xbond quote %s: missing message offset", q.ExchProductID)
	}
	return nil
}

func (q *XbondQuote) Schema() []FieldSpec { return xbondQuoteSchema }

func (q *XbondQuote) FieldValues() []Value {
	vals := make([]Value, 0, len(xbondQuoteFields))
	for _, f := range xbondQuoteFields {
		vals = append(vals, f.get(q))
	}
	return vals
}

type xbondQuoteField struct {
	spec FieldSpec
	get  func(*XbondQuote) Value
}

var xbondQuoteFields = buildXbondQuoteFields()
var xbondQuoteSchema = specsOfQuote(xbondQuoteFields)

func specsOfQuote(fields []xbondQuoteField) []FieldSpec {
	specs := make([]FieldSpec, len(fields))
	for i, f := range fields {
		specs[i] = f.spec
	}
	return specs
}

func buildXbondQuoteFields() []xbondQuoteField {
	fields := []xbondQuoteField{
		{FieldSpec{"business_date", KindDateString}, func(q *XbondQuote) Value { return DateStringValue(q.BusinessDate) }},
		{FieldSpec{"exch_product_id", KindString}, func(q *XbondQuote) Value { return StringValue(q.ExchProductID) }},
		{FieldSpec{"product_type", KindString}, func(q *XbondQuote) Value { return StringValue(q.ProductType) }},
		{FieldSpec{"exchange", KindString}, func(q *XbondQuote) Value { return StringValue(q.Exchange) }},
		{FieldSpec{"source", KindString}, func(q *XbondQuote) Value { return StringValue(q.Source) }},
		{FieldSpec{"level", KindString}, func(q *XbondQuote) Value { return StringValue(q.Level) }},
		{FieldSpec{"status", KindString}, func(q *XbondQuote) Value { return StringValue(q.Status) }},
		{FieldSpec{"settle_speed", KindInt}, func(q *XbondQuote) Value { return IntValue(q.SettleSpeed) }},
		{FieldSpec{"mq_offset", KindLong}, func(q *XbondQuote) Value { return LongValue(q.MQOffset) }},
		{FieldSpec{"event_time", KindDateTime}, func(q *XbondQuote) Value { return DateTimeValue(q.EventTime) }},
		{FieldSpec{"receive_time", KindDateTime}, func(q *XbondQuote) Value { return DateTimeValue(q.ReceiveTime) }},
	}
	for lvl := 0; lvl < 6; lvl++ {
		lvl := lvl
		fields = append(fields,
			xbondQuoteField{FieldSpec{fmt.Sprintf("bid_%d_price", lvl), KindFloat}, func(q *XbondQuote) Value { return FloatValue(q.Bid[lvl].Price) }},
			xbondQuoteField{FieldSpec{fmt.Sprintf("bid_%d_yield", lvl), KindFloat}, func(q *XbondQuote) Value { return FloatValue(q.Bid[lvl].Yield) }},
			xbondQuoteField{FieldSpec{fmt.Sprintf("bid_%d_yield_type", lvl), KindString}, func(q *XbondQuote) Value { return StringValue(q.Bid[lvl].YieldType) }},
			xbondQuoteField{FieldSpec{fmt.Sprintf("offer_%d_price", lvl), KindFloat}, func(q *XbondQuote) Value { return FloatValue(q.Offer[lvl].Price) }},
			xbondQuoteField{FieldSpec{fmt.Sprintf("offer_%d_yield", lvl), KindFloat}, func(q *XbondQuote) Value { return FloatValue(q.Offer[lvl].Yield) }},
			xbondQuoteField{FieldSpec{fmt.Sprintf("offer_%d_yield_type", lvl), KindString}, func(q *XbondQuote) Value { return StringValue(q.Offer[lvl].YieldType) }},
		)
		if lvl == 0 {
			fields = append(fields,
				xbondQuoteField{FieldSpec{"bid_0_volume", KindFloat}, func(q *XbondQuote) Value { return FloatValue(q.Bid[0].Volume) }},
				xbondQuoteField{FieldSpec{"offer_0_volume", KindFloat}, func(q *XbondQuote) Value { return FloatValue(q.Offer[0].Volume) }},
			)
		} else {
			fields = append(fields,
				xbondQuoteField{FieldSpec{fmt.Sprintf("bid_%d_tradable_volume", lvl), KindFloat}, func(q *XbondQuote) Value { return FloatValue(q.Bid[lvl].TradableVolume) }},
				xbondQuoteField{FieldSpec{fmt.Sprintf("offer_%d_tradable_volume", lvl), KindFloat}, func(q *XbondQuote) Value { return FloatValue(q.Offer[lvl].TradableVolume) }},
			)
		}
	}
	return fields
}

// XbondTrade is one executed deal from the XBOND CFETS deal files.
type XbondTrade struct {
	BusinessDate  string
	ExchProductID string
	ProductType   string
	Exchange      string
	Source        string
	Status        string
	SettleSpeed   int64
	TradeID       string
	LastPrice     float64
	LastYield     float64
	LastVolume    float64
	TradeSide     string
	TradeTime     time.Time
	ReceiveTime   time.Time
}

// NewXbondTrade returns a trade with every numeric field at its sentinel.
func NewXbondTrade() *XbondTrade {
	return &XbondTrade{
		SettleSpeed: SentinelInt,
		LastPrice:   SentinelFloat(),
		LastYield:   SentinelFloat(),
		LastVolume:  SentinelFloat(),
	}
}

func (t *XbondTrade) SourceType() string { return TypeXbondTrade }

func (t *XbondTrade) Key() RecordKey {
	return RecordKey{BusinessDate: t.BusinessDate, ProductID: t.ExchProductID, EventTime: t.TradeTime}
}

func (t *XbondTrade) Validate() error {
	if t.ExchProductID == "" {
		return fmt.Errorf("xbond trade: missing product id")
	}
	if t.TradeID == "" {
		return fmt.Errorf("xbond trade %s: missing trade id", t.ExchProductID)
	}
	if t.BusinessDate == "" {
		return fmt.Errorf("xbond trade %s: missing business date", t.TradeID)
	}
	return nil
}

func (t *XbondTrade) Schema() []FieldSpec { return xbondTradeSchema }

var xbondTradeSchema = []FieldSpec{
	{"business_date", KindDateString},
	{"exch_product_id", KindString},
	{"product_type", KindString},
	{"exchange", KindString},
	{"source", KindString},
	{"status", KindString},
	{"settle_speed", KindInt},
	{"trade_id", KindString},
	{"last_price", KindFloat},
	{"last_yield", KindFloat},
	{"last_volume", KindFloat},
	{"trade_side", KindString},
	{"trade_time", KindDateTime},
	{"receive_time", KindDateTime},
}

func (t *XbondTrade) FieldValues() []Value {
	return []Value{
		DateStringValue(t.BusinessDate),
		StringValue(t.ExchProductID),
		StringValue(t.ProductType),
		StringValue(t.Exchange),
		StringValue(t.Source),
		StringValue(t.Status),
		IntValue(t.SettleSpeed),
		StringValue(t.TradeID),
		FloatValue(t.LastPrice),
		FloatValue(t.LastYield),
		FloatValue(t.LastVolume),
		StringValue(t.TradeSide),
		DateTimeValue(t.TradeTime),
		DateTimeValue(t.ReceiveTime),
	}
}

// BondFutureQuote is one tick row from the bond-future tick database.
type BondFutureQuote struct {
	BusinessDate  string
	ExchProductID string
	Exchange      string
	LastPrice     float64
	BidPrice      float64
	BidVolume     int64
	OfferPrice    float64
	OfferVolume   int64
	Volume        int64
	OpenInterest  int64
	EventTime     time.Time
	ReceiveTime   time.Time
}

// NewBondFutureQuote returns a quote with every numeric field at its sentinel.
func NewBondFutureQuote() *BondFutureQuote {
	return &BondFutureQuote{
		LastPrice:    SentinelFloat(),
		BidPrice:     SentinelFloat(),
		OfferPrice:   SentinelFloat(),
		BidVolume:    SentinelInt,
		OfferVolume:  SentinelInt,
		Volume:       SentinelInt,
		OpenInterest: SentinelInt,
	}
}

func (q *BondFutureQuote) SourceType() string { return TypeBondFutureQuote }

func (q *BondFutureQuote) Key() RecordKey {
	return RecordKey{BusinessDate: q.BusinessDate, ProductID: q.ExchProductID, EventTime: q.EventTime}
}

func (q *BondFutureQuote) Validate() error {
	if q.ExchProductID == "" {
		return fmt.Errorf("bond future quote: missing product id")
	}
	if q.BusinessDate == "" {
		return fmt.Errorf("bond future quote %s: missing business date", q.ExchProductID)
	}
	return nil
}

func (q *BondFutureQuote) Schema() []FieldSpec { return bondFutureQuoteSchema }

var bondFutureQuoteSchema = []FieldSpec{
	{"business_date", KindDateString},
	{"exch_product_id", KindString},
	{"exchange", KindString},
	{"last_price", KindFloat},
	{"bid_price", KindFloat},
	{"bid_volume", KindLong},
	{"offer_price", KindFloat},
	{"offer_volume", KindLong},
	{"volume", KindLong},
	{"open_interest", KindLong},
	{"event_time", KindDateTime},
	{"receive_time", KindDateTime},
}

func (q *BondFutureQuote) FieldValues() []Value {
	return []Value{
		DateStringValue(q.BusinessDate),
		StringValue(q.ExchProductID),
		StringValue(q.Exchange),
		FloatValue(q.LastPrice),
		FloatValue(q.BidPrice),
		LongValue(q.BidVolume),
		FloatValue(q.OfferPrice),
		LongValue(q.OfferVolume),
		LongValue(q.Volume),
		LongValue(q.OpenInterest),
		DateTimeValue(q.EventTime),
		DateTimeValue(q.ReceiveTime),
	}
}
