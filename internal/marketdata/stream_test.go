package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errSourceDone = errors.New("source exhausted")

// scriptedSource 按调用次数依次返回预设批次，批次耗尽后返回 errSourceDone 结束流。
type scriptedSource struct {
	batches [][]Candle
	calls   int
}

func (s *scriptedSource) Candles(_ context.Context, _ string, _ time.Time, _ time.Duration) ([]Candle, error) {
	if s.calls >= len(s.batches) {
		return nil, errSourceDone
	}
	batch := s.batches[s.calls]
	s.calls++
	return batch, nil
}

func candleAt(end time.Time) Candle {
	return Candle{
		Instrument: "SBER",
		Begin:      end.Add(-time.Hour),
		End:        end,
		Close:      100,
	}
}

func collectStream(t *testing.T, source Source) ([]Candle, error) {
	t.Helper()

	stream := NewStream(source, "SBER", 5*time.Millisecond, nil)
	out := make(chan Candle, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		errCh <- stream.Run(context.Background(), out)
	}()

	var got []Candle
	for candle := range out {
		got = append(got, candle)
	}
	return got, <-errCh
}

func TestStream_EmitsInOrder(t *testing.T) {
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	source := &scriptedSource{batches: [][]Candle{
		{candleAt(base), candleAt(base.Add(time.Hour))},
		{candleAt(base.Add(2 * time.Hour))},
	}}

	got, err := collectStream(t, source)
	if !errors.Is(err, errSourceDone) {
		t.Fatalf("expected terminal source error, got %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].End.After(got[i-1].End) {
			t.Errorf("candle %d end %s is not after previous %s", i, got[i].End, got[i-1].End)
		}
	}
}

func TestStream_DropsDuplicateEndTimes(t *testing.T) {
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	first := candleAt(base)
	second := candleAt(base.Add(time.Hour))

	// 第二批重复下发了第一根，只应看到两根。
	source := &scriptedSource{batches: [][]Candle{
		{first},
		{first, second},
	}}

	got, err := collectStream(t, source)
	if !errors.Is(err, errSourceDone) {
		t.Fatalf("expected terminal source error, got %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 candles after dedup, got %d", len(got))
	}
	if !got[0].End.Equal(first.End) || !got[1].End.Equal(second.End) {
		t.Errorf("unexpected candle sequence: %v %v", got[0].End, got[1].End)
	}
}

func TestStream_DropsOutOfOrderCandles(t *testing.T) {
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	newer := candleAt(base.Add(time.Hour))
	older := candleAt(base)

	source := &scriptedSource{batches: [][]Candle{
		{newer, older},
	}}

	got, err := collectStream(t, source)
	if !errors.Is(err, errSourceDone) {
		t.Fatalf("expected terminal source error, got %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected only the newer candle, got %d", len(got))
	}
	if !got[0].End.Equal(newer.End) {
		t.Errorf("expected candle end %s, got %s", newer.End, got[0].End)
	}
}

func TestStream_FetchErrorIsTerminal(t *testing.T) {
	source := &scriptedSource{}

	_, err := collectStream(t, source)
	if !errors.Is(err, errSourceDone) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestStream_CancelDuringSleep(t *testing.T) {
	source := &scriptedSource{batches: [][]Candle{{}, {}, {}, {}}}

	stream := NewStream(source, "SBER", time.Hour, nil)
	out := make(chan Candle, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- stream.Run(ctx, out)
	}()

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}
