package main

import (
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"ia orana", 20, []string{"ia orana"}},
		{"ia orana korua", 8, []string{"ia orana", "korua"}},
		{"ia orana korua", 5, []string{"ia", "orana", "korua"}},
		{"mañana mañana", 6, []string{"mañana", "mañana"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"uno\ndos", 10, []string{"uno", "dos"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
		for _, l := range got {
			if utf8.RuneCountInString(l) > tt.width {
				t.Errorf("line %q longer than %d", l, tt.width)
			}
		}
	}
}

func TestEventQueueDeliversInOrder(t *testing.T) {
	var q eventQueue
	// Posted before anyone listens.
	for i := 0; i < 5; i++ {
		q.post(i)
	}

	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	q.attach(func(msg any) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg.(int))
		if len(got) == 100 {
			close(done)
		}
	})
	for i := 5; i < 100; i++ {
		q.post(i)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for events")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("event %d = %d, out of order", i, v)
		}
	}
}
