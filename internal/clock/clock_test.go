package clock

import (
	"testing"
	"time"
)

func TestMoscowOffset(t *testing.T) {
	// 莫斯科不实行夏令时，全年固定 UTC+3。
	_, offset := time.Date(2024, 3, 15, 12, 0, 0, 0, Moscow).Zone()
	if offset != 3*60*60 {
		t.Errorf("expected offset +3h, got %d seconds", offset)
	}
}

func TestNowIsInMoscow(t *testing.T) {
	now := Now()
	if now.Location() != Moscow {
		t.Errorf("expected Moscow location, got %v", now.Location())
	}
}

func TestTodayIsMidnight(t *testing.T) {
	today := Today()

	if today.Location() != Moscow {
		t.Errorf("expected Moscow location, got %v", today.Location())
	}
	h, m, s := today.Clock()
	if h != 0 || m != 0 || s != 0 {
		t.Errorf("expected midnight, got %02d:%02d:%02d", h, m, s)
	}
	if today.Nanosecond() != 0 {
		t.Errorf("expected zero nanoseconds, got %d", today.Nanosecond())
	}
}
