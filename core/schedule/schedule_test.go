package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// memRepo fails the UpdateSlot calls whose 1-based index is in failOn.
type memRepo struct {
	classes map[string]Class
	failOn  map[int]bool
	updates int
}

func (r *memRepo) Get(_ context.Context, id string) (Class, error) {
	c, ok := r.classes[id]
	if !ok {
		return Class{}, ErrNotFound
	}
	return c, nil
}

func (r *memRepo) UpdateSlot(_ context.Context, id string, slot Slot) error {
	r.updates++
	if r.failOn[r.updates] {
		return errBoom
	}
	c, ok := r.classes[id]
	if !ok {
		return ErrNotFound
	}
	c.Slot = slot
	r.classes[id] = c
	return nil
}

type txRepo struct {
	*memRepo
	swapped bool
}

func (r *txRepo) SwapSlots(_ context.Context, idA, idB string) error {
	a, okA := r.classes[idA]
	b, okB := r.classes[idB]
	if !okA || !okB {
		return ErrNotFound
	}
	a.Slot, b.Slot = b.Slot, a.Slot
	r.classes[idA], r.classes[idB] = a, b
	r.swapped = true
	return nil
}

func clock(h int) time.Time {
	return time.Date(1970, 1, 1, h, 0, 0, 0, time.UTC)
}

var (
	slotA = Slot{StartTime: clock(10), EndTime: clock(11), ClassroomID: "room-1", DayOfWeek: int(time.Monday)}
	slotB = Slot{StartTime: clock(14), EndTime: clock(15), ClassroomID: "room-2", DayOfWeek: int(time.Wednesday)}
)

func newRepo(failOn ...int) *memRepo {
	r := &memRepo{
		classes: map[string]Class{
			"a": {ID: "a", Title: "Algebra", Slot: slotA},
			"b": {ID: "b", Title: "Biology", Slot: slotB},
		},
		failOn: make(map[int]bool),
	}
	for _, n := range failOn {
		r.failOn[n] = true
	}
	return r
}

func TestSwapper_Swap(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		idA, idB    string
		failOn      []int
		wantA       Slot
		wantB       Slot
		wantUpdates int
		wantErr     error
		wantErrType interface{}
	}{
		{name: "swap", idA: "a", idB: "b", wantA: slotB, wantB: slotA, wantUpdates: 2},
		{name: "same class", idA: "a", idB: "a", wantA: slotA, wantB: slotB, wantErr: ErrInvalidSwap},
		{name: "empty id", idA: "", idB: "b", wantA: slotA, wantB: slotB, wantErr: ErrInvalidSwap},
		{name: "missing class", idA: "a", idB: "zz", wantA: slotA, wantB: slotB, wantErr: ErrNotFound},
		{
			name: "first write fails", idA: "a", idB: "b", failOn: []int{1},
			wantA: slotA, wantB: slotB, wantUpdates: 1, wantErr: errBoom,
		},
		{
			name: "second write fails", idA: "a", idB: "b", failOn: []int{2},
			wantA: slotA, wantB: slotB, wantUpdates: 3, wantErrType: new(*SwapPartialFailure),
		},
		{
			name: "rollback fails", idA: "a", idB: "b", failOn: []int{2, 3},
			wantA: slotB, wantB: slotB, wantUpdates: 3, wantErrType: new(*SwapCompensationFailure),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo(tt.failOn...)
			svc := NewSwapper(repo, nopLogger{})

			err := svc.Swap(ctx, tt.idA, tt.idB)
			switch {
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			case tt.wantErrType != nil:
				assert.True(t, errors.As(err, tt.wantErrType), "got %T", err)
			default:
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantA, repo.classes["a"].Slot)
			assert.Equal(t, tt.wantB, repo.classes["b"].Slot)
			assert.Equal(t, tt.wantUpdates, repo.updates)
		})
	}
}

func TestSwapper_Swap_errorsAreDistinct(t *testing.T) {
	ctx := context.Background()

	err := NewSwapper(newRepo(2), nopLogger{}).Swap(ctx, "a", "b")
	var partial *SwapPartialFailure
	require.True(t, errors.As(err, &partial))
	assert.True(t, errors.Is(err, errBoom), "the original error is kept")
	assert.Contains(t, err.Error(), "no class was changed")

	err = NewSwapper(newRepo(2, 3), nopLogger{}).Swap(ctx, "a", "b")
	var comp *SwapCompensationFailure
	require.True(t, errors.As(err, &comp))
	assert.False(t, errors.As(err, &partial))
	assert.Equal(t, errBoom, comp.RestoreErr)
	assert.Contains(t, err.Error(), "could not be rolled back")
}

func TestSwapper_Swap_atomic(t *testing.T) {
	ctx := context.Background()
	repo := &txRepo{memRepo: newRepo(1, 2)}

	require.NoError(t, NewSwapper(repo, nopLogger{}).Swap(ctx, "a", "b"))
	assert.True(t, repo.swapped)
	assert.Equal(t, 0, repo.updates)
	assert.Equal(t, slotB, repo.classes["a"].Slot)
	assert.Equal(t, slotA, repo.classes["b"].Slot)

	err := NewSwapper(repo, nopLogger{}).Swap(ctx, "a", "zz")
	assert.True(t, errors.Is(err, ErrNotFound))
}
