package services

import "testing"

func TestOccupancy(t *testing.T) {
	tests := []struct {
		count    int
		max      int
		expected float64
	}{
		{0, 10, 0},
		{5, 10, 50},
		{9, 10, 90},
		{10, 10, 100},
		{15, 10, 150},
		{3, 0, 100},  // unlimited-looking config reads as full
		{3, -1, 100}, // negative limit reads as full
		{256, 1024, 25},
	}

	for _, test := range tests {
		if got := Occupancy(test.count, test.max); got != test.expected {
			t.Errorf("Occupancy(%d, %d) = %v, expected %v", test.count, test.max, got, test.expected)
		}
	}
}

func TestIsFull(t *testing.T) {
	tests := []struct {
		count    int
		max      int
		expected bool
	}{
		{0, 10, false},
		{9, 10, false},
		{10, 10, true},
		{11, 10, true},
		{0, 0, true},
		{1, -5, true},
	}

	for _, test := range tests {
		if got := IsFull(test.count, test.max); got != test.expected {
			t.Errorf("IsFull(%d, %d) = %v, expected %v", test.count, test.max, got, test.expected)
		}
	}
}

func TestIsNearCapacity(t *testing.T) {
	tests := []struct {
		count     int
		max       int
		threshold int
		expected  bool
	}{
		{8, 10, 90, false},  // below threshold
		{9, 10, 90, true},   // exactly at threshold
		{10, 10, 90, false}, // full is not "near"
		{95, 100, 95, true},
		{94, 100, 95, false},
		{973, 1024, 95, true}, // 95.02%
		{972, 1024, 95, false},
		{5, 0, 90, false}, // zero max is full, never near
	}

	for _, test := range tests {
		if got := IsNearCapacity(test.count, test.max, test.threshold); got != test.expected {
			t.Errorf("IsNearCapacity(%d, %d, %d) = %v, expected %v", test.count, test.max, test.threshold, got, test.expected)
		}
	}
}

func TestShouldCreateNext(t *testing.T) {
	tests := []struct {
		count     int
		max       int
		threshold int
		expected  bool
	}{
		{8, 10, 90, false},
		{9, 10, 90, true},  // near capacity
		{10, 10, 90, true}, // full
		{12, 10, 90, true}, // over capacity
		{0, 10, 90, false},
		{1, 0, 90, true}, // misconfigured limit provisions a successor
	}

	for _, test := range tests {
		if got := ShouldCreateNext(test.count, test.max, test.threshold); got != test.expected {
			t.Errorf("ShouldCreateNext(%d, %d, %d) = %v, expected %v", test.count, test.max, test.threshold, got, test.expected)
		}
	}
}
