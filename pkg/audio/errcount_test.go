package audio

import "testing"

func TestErrorCounter_TripsAtThreshold(t *testing.T) {
	c := NewErrorCounter(3)
	if c.Fail() {
		t.Fatal("tripped after 1 failure, threshold 3")
	}
	if c.Fail() {
		t.Fatal("tripped after 2 failures, threshold 3")
	}
	if !c.Fail() {
		t.Fatal("did not trip after 3 failures")
	}
}

func TestErrorCounter_SuccessResetsCount(t *testing.T) {
	c := NewErrorCounter(3)
	c.Fail()
	c.Fail()
	c.Success()
	if got := c.Count(); got != 0 {
		t.Fatalf("Count after Success = %d, want 0", got)
	}

	// An isolated glitch never accumulates toward the threshold.
	for i := 0; i < 10; i++ {
		if c.Fail() {
			t.Fatalf("tripped on isolated failure %d", i)
		}
		c.Success()
	}
}

func TestErrorCounter_NonPositiveThresholdTripsImmediately(t *testing.T) {
	c := NewErrorCounter(0)
	if !c.Fail() {
		t.Fatal("threshold 0 should trip on first failure")
	}
}
