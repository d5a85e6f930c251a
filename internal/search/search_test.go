package search

import (
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex() *Index {
	return NewIndex([]types.Regency{
		{Name: "Kota Jakarta Selatan", Province: "DKI Jakarta"},
		{Name: "Kota Jakarta Barat", Province: "DKI Jakarta"},
		{Name: "Denpasar", Province: "Bali"},
		{Name: "Kabupaten Bandung", Province: "Jawa Barat"},
	})
}

func resultNames(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func TestMatch(t *testing.T) {
	idx := testIndex()

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"Jakarta", []string{"Kota Jakarta Selatan", "Kota Jakarta Barat"}},
		{"jakarta selatan", []string{"Kota Jakarta Selatan"}},
		{"  DENPASAR ", []string{"Denpasar"}},
		{"bar", []string{"Kota Jakarta Barat"}},
		{"zzz-no-match", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got := idx.Match(tc.query)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, resultNames(got))
		})
	}
}

func TestMatch_CarriesParent(t *testing.T) {
	got := testIndex().Match("denpasar")
	require.Len(t, got, 1)
	assert.Equal(t, "Bali", got[0].Province)
}

func TestMatch_NilIndex(t *testing.T) {
	var idx *Index
	assert.Empty(t, idx.Match("Bali"))
	assert.Equal(t, 0, idx.Len())
}

func TestDebouncer_CollapsesBurst(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	done := make(chan struct{}, 4)
	d := NewDebouncer(20*time.Millisecond, func(q string) {
		mu.Lock()
		calls = append(calls, q)
		mu.Unlock()
		done <- struct{}{}
	})

	for _, q := range []string{"J", "Ja", "Jak", "Jakarta"} {
		d.Trigger(q)
	}
	assert.True(t, d.Pending())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced callback did not fire")
	}

	// Give a stray timer the chance to fire if one survived.
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Jakarta"}, calls)
	assert.False(t, d.Pending())
}

func TestDebouncer_Stop(t *testing.T) {
	fired := make(chan string, 1)
	d := NewDebouncer(10*time.Millisecond, func(q string) { fired <- q })

	d.Trigger("Bali")
	d.Stop()
	d.Trigger("Papua")

	select {
	case q := <-fired:
		t.Fatalf("unexpected evaluation of %q after Stop", q)
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, d.Pending())
}

func TestNewDebouncer_DefaultDelay(t *testing.T) {
	d := NewDebouncer(0, func(string) {})
	assert.Equal(t, DefaultDelay, d.delay)
}
