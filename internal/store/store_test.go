package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fitledger/internal/store"
	"example.com/fitledger/internal/store/memory"
)

type sample struct {
	Day   string   `json:"date"`
	Items []string `json:"items"`
}

func TestLoadMissingKeyReturnsDefault(t *testing.T) {
	s := memory.New()
	got := store.Load(context.Background(), s, "nothing", []sample{{Day: "default"}})
	require.Equal(t, []sample{{Day: "default"}}, got)
}

func TestLoadCorruptPayloadReturnsDefault(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Put(ctx, store.KeyMeals, []byte(`{"not":"an array"`)))

	got := store.Load[[]sample](ctx, s, store.KeyMeals, nil)
	require.Nil(t, got)
}

func TestLoadListSkipsUndecodableElements(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Put(ctx, store.KeyActivity, []byte(`[
		{"date":"2024-05-01","items":["meal"]},
		{"date":20240503,"items":["sleep"]},
		{"date":"2024-05-02","items":"planner"},
		{"date":"2024-05-04"}
	]`)))

	got := store.LoadList[sample](ctx, s, store.KeyActivity)
	require.Equal(t, []sample{
		{Day: "2024-05-01", Items: []string{"meal"}},
		{Day: "2024-05-04"},
	}, got)

	require.NoError(t, s.Put(ctx, store.KeyActivity, []byte(`{"not":"an array"}`)))
	require.Nil(t, store.LoadList[sample](ctx, s, store.KeyActivity))
}

func TestSaveLoadRoundTripPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	in := []sample{
		{Day: "2024-05-03", Items: []string{"meal"}},
		{Day: "2024-05-01", Items: []string{"sleep", "planner"}},
		{Day: "2024-05-02"},
	}
	require.NoError(t, store.Save(ctx, s, store.KeyActivity, in))

	out := store.Load[[]sample](ctx, s, store.KeyActivity, nil)
	require.Equal(t, in, out)
}

func TestSavePropagatesWriteErrors(t *testing.T) {
	err := store.Save(context.Background(), failingStore{}, store.KeyGoals, map[string]int{"calories": 1})
	require.Error(t, err)
	require.ErrorIs(t, err, errDiskFull)
}

func TestLoadToleratesReadErrors(t *testing.T) {
	got := store.Load(context.Background(), failingStore{}, store.KeyGoals, 7)
	require.Equal(t, 7, got)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	buf := []byte(`[1]`)
	require.NoError(t, s.Put(ctx, "k", buf))
	buf[1] = '9'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, `[1]`, string(got))

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

var errDiskFull = errors.New("disk full")

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errDiskFull }
func (failingStore) Put(context.Context, string, []byte) error { return errDiskFull }
func (failingStore) Close() error { return nil }
