package storage

import "testing"

func TestObjectKey(t *testing.T) {
	got := ObjectKey("biz1", "veh2", "job3", 1757000000123, "front.jpg")
	want := "businesses/biz1/vehicles/veh2/jobs/job3/1757000000123-front.jpg"
	if got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}
