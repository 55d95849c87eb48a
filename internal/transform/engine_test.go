package transform

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"bondfeed-etl/internal/models"

	"go.uber.org/zap"
)

func validQuote() *models.XbondQuote {
	q := models.NewXbondQuote()
	q.BusinessDate = "2026.01.05"
	q.ExchProductID = "210210.IB"
	q.MQOffset = 2926859
	q.SettleSpeed = 1
	q.Bid[0].Price = 107.9197
	q.Bid[0].Yield = 2.55
	q.Bid[0].YieldType = "YTM"
	q.Bid[0].Volume = 5000000
	q.Bid[1].TradableVolume = 10000000
	q.EventTime = time.Date(2026, 1, 5, 9, 30, 0, 0, time.Local)
	q.ReceiveTime = time.Date(2026, 1, 5, 9, 30, 0, 100e6, time.Local)
	return q
}

func TestMappingTransformerQuote(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zap.NewNop())
	tr, _ := reg.For(models.TypeXbondQuote)

	rows, err := tr.Transform(context.Background(), []models.SourceRecord{validQuote()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]

	// Name-matched copies.
	mustString(t, row, "exch_product_id", "210210.IB")
	mustFloat(t, row, "bid_0_price", 107.9197)
	mustFloat(t, row, "bid_0_volume", 5000000)
	mustFloat(t, row, "bid_1_tradable_volume", 10000000)

	// DateString -> Date.
	v, ok := row.Get("business_date")
	if !ok || v.Null {
		t.Fatal("business_date not mapped")
	}
	if v.Kind != models.KindDate {
		t.Fatalf("business_date kind = %s, want date", v.Kind)
	}
	want := time.Date(2026, 1, 5, 0, 0, 0, 0, time.Local)
	if !v.Time.Equal(want) {
		t.Fatalf("business_date = %v, want %v", v.Time, want)
	}

	// DateTime -> Instant.
	rt, ok := row.ReceiveTime()
	if !ok || !rt.Equal(time.Date(2026, 1, 5, 9, 30, 0, 100e6, time.Local)) {
		t.Fatalf("receive_time = %v/%v", rt, ok)
	}
}

func TestMappingNullSourceKeepsSentinel(t *testing.T) {
	t.Parallel()

	q := validQuote()
	// Offer side untouched: all sentinels.
	reg := NewRegistry(zap.NewNop())
	tr, _ := reg.For(models.TypeXbondQuote)

	rows, err := tr.Transform(context.Background(), []models.SourceRecord{q})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := rows[0]

	v, ok := row.Get("offer_0_price")
	if !ok {
		t.Fatal("missing offer_0_price")
	}
	if !v.Null || !math.IsNaN(v.Float) {
		t.Fatalf("null source must leave NaN sentinel, got %+v", v)
	}

	sv, _ := row.Get("mq_offset")
	if sv.Null || sv.Int != 2926859 {
		t.Fatalf("mq_offset = %+v", sv)
	}
}

func TestMappingTradeSideRename(t *testing.T) {
	t.Parallel()

	tr := models.NewXbondTrade()
	tr.BusinessDate = "2026.01.05"
	tr.ExchProductID = "210210.IB"
	tr.TradeID = "T0001"
	tr.TradeSide = "taken"
	tr.LastPrice = 107.95

	reg := NewRegistry(zap.NewNop())
	tf, _ := reg.For(models.TypeXbondTrade)
	rows, err := tf.Transform(context.Background(), []models.SourceRecord{tr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mustString(t, rows[0], "last_trade_side", "taken")
	if _, ok := rows[0].Get("trade_side"); ok {
		t.Fatal("target must not have a trade_side column")
	}
}

func TestMappingBadDateStringFailsWithRecordIndex(t *testing.T) {
	t.Parallel()

	good := validQuote()
	bad := validQuote()
	bad.BusinessDate = "05/01/2026"

	reg := NewRegistry(zap.NewNop())
	tf, _ := reg.For(models.TypeXbondQuote)
	_, err := tf.Transform(context.Background(), []models.SourceRecord{good, bad})
	if err == nil {
		t.Fatal("expected error")
	}

	var recErr *RecordError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected RecordError, got %T: %v", err, err)
	}
	if recErr.Index != 1 {
		t.Fatalf("failing record index = %d, want 1", recErr.Index)
	}
	if recErr.SourceType != models.TypeXbondQuote {
		t.Fatalf("source type = %q", recErr.SourceType)
	}
}

func TestMappingObservesCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := NewRegistry(zap.NewNop())
	tf, _ := reg.For(models.TypeXbondQuote)
	_, err := tf.Transform(ctx, []models.SourceRecord{validQuote()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMappingPreservesInputOrder(t *testing.T) {
	t.Parallel()

	var in []models.SourceRecord
	for i := int64(0); i < 5; i++ {
		q := validQuote()
		q.MQOffset = 1000 + i
		in = append(in, q)
	}

	reg := NewRegistry(zap.NewNop())
	tf, _ := reg.For(models.TypeXbondQuote)
	rows, err := tf.Transform(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, row := range rows {
		v, _ := row.Get("mq_offset")
		if v.Int != 1000+int64(i) {
			t.Fatalf("row %d mq_offset = %d, order not preserved", i, v.Int)
		}
	}
}

func mustString(t *testing.T, row *models.TargetRecord, col, want string) {
	t.Helper()
	v, ok := row.Get(col)
	if !ok {
		t.Fatalf("missing column %s", col)
	}
	if v.Null || v.Str != want {
		t.Fatalf("%s = %+v, want %q", col, v, want)
	}
}

func mustFloat(t *testing.T, row *models.TargetRecord, col string, want float64) {
	t.Helper()
	v, ok := row.Get(col)
	if !ok {
		t.Fatalf("missing column %s", col)
	}
	if v.Null || v.Float != want {
		t.Fatalf("%s = %+v, want %f", col, v, want)
	}
}
