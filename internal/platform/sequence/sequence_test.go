package sequence

import (
	"context"
	"sort"
	"sync"
	"testing"
)

func TestFormatPrescriptionNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{1, "RX-0001"},
		{42, "RX-0042"},
		{9999, "RX-9999"},
		{10000, "RX-10000"},
	}
	for _, tt := range tests {
		if got := FormatPrescriptionNumber(tt.n); got != tt.want {
			t.Errorf("FormatPrescriptionNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestMemoryCounter_Sequential(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.Next(ctx, Prescription)
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
}

func TestMemoryCounter_IndependentNames(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()

	c.Next(ctx, "a")
	c.Next(ctx, "a")
	if got, _ := c.Next(ctx, "b"); got != 1 {
		t.Errorf("expected counter b to start at 1, got %d", got)
	}
}

func TestMemoryCounter_ConcurrentUnique(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()
	const n = 200

	var mu sync.Mutex
	var got []int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Next(ctx, Prescription)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		if v != int64(i+1) {
			t.Fatalf("expected values 1..%d without gaps or repeats, got %d at %d", n, v, i)
		}
	}
}
