package indicators

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"b3-tracker/internal/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func candlesFromCloses(closes []float64) []models.Candle {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

// crossingSeries falls steadily for 40 bars then jumps, so SMA(5) crosses
// above SMA(20) exactly at bar 40.
func crossingSeries() []models.Candle {
	closes := make([]float64, 60)
	for i := range closes {
		if i <= 39 {
			closes[i] = 100 - 0.5*float64(i)
		} else {
			closes[i] = 120 + float64(i-40)
		}
	}
	return candlesFromCloses(closes)
}

func TestSMACrossover_SignalDeterminism(t *testing.T) {
	candles := crossingSeries()
	ind := NewSMACrossover(5, 20)

	tests := []struct {
		lastBar int
		want    models.Signal
	}{
		{39, models.SignalNeutral},
		{40, models.SignalBuy},
		{41, models.SignalNeutral},
	}

	for _, tt := range tests {
		series := NewSeries(candles[:tt.lastBar+1])
		cols, err := ind.Calculate(series.Candles)
		if err != nil {
			t.Fatalf("Calculate: %v", err)
		}
		for k, v := range cols {
			series.Set(k, v)
		}
		if got := ind.Signal(series); got != tt.want {
			t.Errorf("last bar %d: signal = %s, want %s", tt.lastBar, got, tt.want)
		}
	}
}

func TestSMACrossover_Values(t *testing.T) {
	cols, err := NewSMACrossover(5, 20).Calculate(crossingSeries()[:41])
	if err != nil {
		t.Fatal(err)
	}
	short, long := cols[ColSMAShort], cols[ColSMALong]
	if !math.IsNaN(short[3]) || !math.IsNaN(long[18]) {
		t.Error("leading values should be undefined")
	}
	if math.Abs(short[40]-89) > 1e-9 {
		t.Errorf("SMA5[40] = %v, want 89", short[40])
	}
	if math.Abs(long[40]-86.75) > 1e-9 {
		t.Errorf("SMA20[40] = %v, want 86.75", long[40])
	}
}

func TestSMACrossover_Sell(t *testing.T) {
	closes := []float64{10, 10, 10, 12, 12, 12, 5}
	series := NewSeries(candlesFromCloses(closes))
	ind := NewSMACrossover(2, 3)
	cols, _ := ind.Calculate(series.Candles)
	for k, v := range cols {
		series.Set(k, v)
	}
	if got := ind.Signal(series); got != models.SignalSell {
		t.Errorf("signal = %s, want SELL", got)
	}
}

func TestRSI_Extremes(t *testing.T) {
	rising := make([]float64, 20)
	flat := make([]float64, 20)
	for i := range rising {
		rising[i] = 10 + float64(i)
		flat[i] = 10
	}

	rsi := NewRSI(14, 30, 70)

	cols, _ := rsi.Calculate(candlesFromCloses(rising))
	if v := cols[ColRSI][19]; v != 100 {
		t.Errorf("rising RSI = %v, want 100", v)
	}
	series := NewSeries(candlesFromCloses(rising))
	series.Set(ColRSI, cols[ColRSI])
	if got := rsi.Signal(series); got != models.SignalSell {
		t.Errorf("rising signal = %s, want SELL", got)
	}

	cols, _ = rsi.Calculate(candlesFromCloses(flat))
	if v := cols[ColRSI][19]; !math.IsNaN(v) {
		t.Errorf("flat RSI = %v, want NaN", v)
	}
	series = NewSeries(candlesFromCloses(flat))
	series.Set(ColRSI, cols[ColRSI])
	if got := rsi.Signal(series); got != models.SignalNeutral {
		t.Errorf("flat signal = %s, want NEUTRAL", got)
	}
}

func TestRSI_KnownValue(t *testing.T) {
	// gains 1,0,2 losses 0,1,0 over the last three changes
	closes := []float64{10, 11, 10, 12}
	cols, err := NewRSI(3, 30, 70).Calculate(candlesFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	want := 100 - 100/(1+(3.0/3)/(1.0/3))
	if got := cols[ColRSI][3]; math.Abs(got-want) > 1e-9 {
		t.Errorf("RSI = %v, want %v", got, want)
	}
	// index 0 counts as a zero change, so the first full window is defined
	if math.IsNaN(cols[ColRSI][2]) {
		t.Error("RSI[2] should be defined")
	}
}

func TestBollinger_SampleStd(t *testing.T) {
	closes := []float64{1, 2, 3, 4}
	cols, err := NewBollingerBands(4, 2).Calculate(candlesFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	sd := math.Sqrt(5.0 / 3.0)
	if got := cols[ColSTD][3]; math.Abs(got-sd) > 1e-9 {
		t.Errorf("STD = %v, want %v", got, sd)
	}
	if got := cols[ColUpperBand][3]; math.Abs(got-(2.5+2*sd)) > 1e-9 {
		t.Errorf("UpperBand = %v", got)
	}
	if got := cols[ColLowerBand][3]; math.Abs(got-(2.5-2*sd)) > 1e-9 {
		t.Errorf("LowerBand = %v", got)
	}
}

func TestBollinger_Signal(t *testing.T) {
	closes := []float64{10, 10.1, 9.9, 10, 10.1, 9.9, 10, 4}
	series := NewSeries(candlesFromCloses(closes))
	b := NewBollingerBands(5, 1)
	cols, _ := b.Calculate(series.Candles)
	for k, v := range cols {
		series.Set(k, v)
	}
	if got := b.Signal(series); got != models.SignalBuy {
		t.Errorf("signal = %s, want BUY", got)
	}
}

func TestMACD_Values(t *testing.T) {
	closes := []float64{10, 11}
	cols, err := NewMACD(1, 3, 9).Calculate(candlesFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	// span 1 tracks the close; span 3 has alpha 0.5
	if got := cols[ColEMASlow][1]; math.Abs(got-10.5) > 1e-9 {
		t.Errorf("EMA_slow = %v, want 10.5", got)
	}
	if got := cols[ColMACD][1]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("MACD = %v, want 0.5", got)
	}
	if got := cols[ColMACDSignal][1]; math.Abs(got-0.1) > 1e-9 {
		t.Errorf("signal line = %v, want 0.1", got)
	}
}

func TestMACD_CrossAbove(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 11}
	m := NewMACD(2, 4, 3)
	series := NewSeries(candlesFromCloses(closes))
	cols, _ := m.Calculate(series.Candles)
	for k, v := range cols {
		series.Set(k, v)
	}
	if got := m.Signal(series); got != models.SignalBuy {
		t.Errorf("signal = %s, want BUY", got)
	}
}

func TestEngine_ShortSeriesNeutral(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 10 + float64(i)
	}
	e := NewDefaultEngine(2, DefaultParams())

	res, err := e.Analyze(context.Background(), candlesFromCloses(closes), []string{NameSMA, NameRSI, NameBollinger})
	if err != nil {
		t.Fatal(err)
	}
	for name, sig := range res.Signals {
		if sig != models.SignalNeutral {
			t.Errorf("%s signal = %s, want NEUTRAL", name, sig)
		}
	}

	res, err = e.Analyze(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Signals) != 4 {
		t.Fatalf("signals = %d, want 4", len(res.Signals))
	}
	for name, sig := range res.Signals {
		if sig != models.SignalNeutral {
			t.Errorf("empty %s signal = %s, want NEUTRAL", name, sig)
		}
	}
}

func TestEngine_Subset(t *testing.T) {
	e := NewDefaultEngine(4, DefaultParams())
	res, err := e.Analyze(context.Background(), crossingSeries(), []string{"RSI", " macd "})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Series.Has(ColRSI, ColMACD, ColMACDSignal) {
		t.Errorf("missing columns: %v", res.Series.Columns())
	}
	if res.Series.Has(ColSMAShort) || res.Series.Has(ColUpperBand) {
		t.Errorf("unrequested columns computed: %v", res.Series.Columns())
	}
	if _, ok := res.Signals[NameSMA]; ok {
		t.Error("unexpected sma signal")
	}
}

func TestEngine_UnknownIndicator(t *testing.T) {
	e := NewDefaultEngine(1, DefaultParams())
	_, err := e.Analyze(context.Background(), crossingSeries(), []string{"stochastic"})
	if !errors.Is(err, ErrUnknownIndicator) {
		t.Errorf("err = %v, want ErrUnknownIndicator", err)
	}
}

func TestEngine_Idempotent(t *testing.T) {
	e := NewDefaultEngine(2, DefaultParams())
	series := NewSeries(crossingSeries())

	if _, err := e.Enrich(context.Background(), series, []string{NameRSI}); err != nil {
		t.Fatal(err)
	}
	before := series.Column(ColRSI)
	marker := make([]float64, len(before))
	copy(marker, before)
	marker[0] = -1
	series.Set(ColRSI, marker)

	if _, err := e.Enrich(context.Background(), series, []string{NameRSI}); err != nil {
		t.Fatal(err)
	}
	if series.Column(ColRSI)[0] != -1 {
		t.Error("existing RSI column was recomputed")
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewDefaultEngine(2, DefaultParams())
	if _, err := e.Analyze(ctx, crossingSeries(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestEngine_InvalidParams(t *testing.T) {
	p := DefaultParams()
	p.RSIPeriod = 0
	e := NewDefaultEngine(1, p)
	if _, err := e.Analyze(context.Background(), crossingSeries(), []string{NameRSI}); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("err = %v, want ErrInvalidPeriod", err)
	}
}

func TestParseNames(t *testing.T) {
	if got := ParseNames(""); got != nil {
		t.Errorf("ParseNames(\"\") = %v, want nil", got)
	}
	got := ParseNames("SMA, rsi,,macd")
	want := []string{"sma", "rsi", "macd"}
	if len(got) != len(want) {
		t.Fatalf("ParseNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseNames[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSeries_Tail(t *testing.T) {
	series := NewSeries(crossingSeries())
	series.Set(ColSMAShort, rollingMean(series.Closes(), 5))
	rows := series.Tail(10)
	if len(rows) != 10 {
		t.Fatalf("rows = %d, want 10", len(rows))
	}
	if _, ok := rows[9].Values[ColSMAShort]; !ok {
		t.Error("last row missing SMA_short")
	}
	if got := NewSeries(crossingSeries()[:3]).Tail(10); len(got) != 3 {
		t.Errorf("tail of short series = %d rows, want 3", len(got))
	}
	series.Set("bad", []float64{1})
	if series.Has("bad") {
		t.Error("column with wrong length was stored")
	}
}

func closesGen() gopter.Gen {
	return gen.SliceOfN(60, gen.Float64Range(1, 500))
}

func TestRSI_BoundsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI stays within [0, 100]", prop.ForAll(
		func(closes []float64, period int) bool {
			cols, err := NewRSI(period, 30, 70).Calculate(candlesFromCloses(closes))
			if err != nil {
				return false
			}
			for _, v := range cols[ColRSI] {
				if math.IsNaN(v) {
					continue
				}
				if v < 0 || v > 100 {
					return false
				}
			}
			return true
		},
		closesGen(),
		gen.IntRange(2, 30),
	))

	properties.TestingRun(t)
}

func TestBollinger_OrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("LowerBand <= SMA <= UpperBand", prop.ForAll(
		func(closes []float64, k float64) bool {
			cols, err := NewBollingerBands(20, k).Calculate(candlesFromCloses(closes))
			if err != nil {
				return false
			}
			mid, up, lo := cols[ColSMA], cols[ColUpperBand], cols[ColLowerBand]
			for i := range mid {
				if math.IsNaN(mid[i]) {
					continue
				}
				if lo[i] > mid[i]+1e-9 || mid[i] > up[i]+1e-9 {
					return false
				}
			}
			return true
		},
		closesGen(),
		gen.Float64Range(0.5, 3),
	))

	properties.TestingRun(t)
}
