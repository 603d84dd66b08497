package history

import (
	"testing"
	"time"
)

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestFoldDailyOHLC(t *testing.T) {
	execs := []Execution{
		{Seq: 3, At: at(2024, 5, 2, 15), Price: 120},
		{Seq: 1, At: at(2024, 5, 2, 9), Price: 100},
		{Seq: 2, At: at(2024, 5, 2, 9), Price: 90},
		{Seq: 4, At: at(2024, 5, 3, 1), Price: 130},
		{Seq: 5, At: at(2024, 6, 1, 1), Price: 999},
	}

	got := Fold(execs, 2024, time.May)
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d", len(got))
	}
	day2 := got[0]
	if day2.Day != 2 || day2.Open != 100 || day2.Close != 120 || day2.High != 120 || day2.Low != 90 {
		t.Errorf("unexpected day 2: %+v", day2)
	}
	if got[1].Day != 3 || got[1].Open != 130 || got[1].Close != 130 {
		t.Errorf("unexpected day 3: %+v", got[1])
	}
}

func TestFoldAnyYear(t *testing.T) {
	execs := []Execution{
		{Seq: 1, At: at(2023, 5, 2, 9), Price: 10},
		{Seq: 2, At: at(2024, 5, 2, 9), Price: 20},
	}
	if got := Fold(execs, 2024, time.May); len(got) != 1 || got[0].Open != 20 {
		t.Fatalf("year filter: %+v", got)
	}
	got := Fold(execs, 0, time.May)
	if len(got) != 1 || got[0].Open != 10 || got[0].Close != 20 {
		t.Fatalf("any year: %+v", got)
	}
	if got := Fold(nil, 0, time.May); len(got) != 0 {
		t.Fatalf("empty input: %+v", got)
	}
}

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(2024, time.December)
	if !from.Equal(at(2024, 12, 1, 0)) || !to.Equal(at(2025, 1, 1, 0)) {
		t.Fatalf("range %v - %v", from, to)
	}
}
