package singan

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewSchedule(t *testing.T) {
	s, err := NewSchedule(25, 250)
	if err != nil {
		t.Fatal(err)
	}
	if s.NumScale != 8 {
		t.Errorf("expected 8 scales but got %d", s.NumScale)
	}
	expected := []int{25, 33, 44, 59, 79, 105, 140, 187, 250}
	if !reflect.DeepEqual(s.Sizes, expected) {
		t.Errorf("expected %v but got %v", expected, s.Sizes)
	}
	if s.Final() != 250 {
		t.Errorf("bad final size: %d", s.Final())
	}
}

func TestScheduleIncreasing(t *testing.T) {
	for min := 1; min < 30; min++ {
		s, err := NewSchedule(min, min*9)
		if err != nil {
			t.Fatal(err)
		}
		for i := 1; i < len(s.Sizes); i++ {
			if s.Sizes[i] <= s.Sizes[i-1] {
				t.Fatalf("min %d: sizes not increasing: %v", min, s.Sizes)
			}
		}
		if s.Sizes[0] != min {
			t.Fatalf("min %d: bad first size %d", min, s.Sizes[0])
		}
	}
}

func TestScheduleErrors(t *testing.T) {
	for _, bounds := range [][2]int{{0, 10}, {10, 10}, {20, 10}, {-3, 5}} {
		_, err := NewSchedule(bounds[0], bounds[1])
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("bounds %v: expected configuration error but got %v", bounds, err)
		}
	}
}
