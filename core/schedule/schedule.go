// Package schedule holds timetable classes and swaps the time slots of two of them.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/metrics"
)

var (
	// errors
	ErrNotFound    = errors.New("class not found")
	ErrInvalidSwap = errors.New("two different classes are required")
)

// Slot is when and where a class takes place.
type Slot struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	ClassroomID string    `json:"classroom_id"`
	DayOfWeek   int       `json:"day_of_week"` // 0: Sunday
}

type Class struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CourseID     string    `json:"course_id"`
	InstructorID string    `json:"instructor_id"`
	Slot         Slot      `json:"slot"`
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type (
	Repository interface {
		Get(ctx context.Context, id string) (Class, error)
		// UpdateSlot writes slot on class id; other fields are left untouched.
		UpdateSlot(ctx context.Context, id string, slot Slot) error
	}

	// Store is a Repository that can also add classes and classrooms.
	Store interface {
		Repository
		Create(ctx context.Context, c Class) (Class, error)
		// CreateClassroom returns the id of the classroom called name, adding it when missing.
		CreateClassroom(ctx context.Context, name string) (string, error)
	}

	// AtomicSwapper is implemented by stores able to write both classes in one transaction.
	AtomicSwapper interface {
		// SwapSlots returns ErrNotFound, writing nothing, when a class is missing.
		SwapSlots(ctx context.Context, idA, idB string) error
	}
)

// SwapPartialFailure: the second write failed and the first one was undone.
type SwapPartialFailure struct {
	ClassA, ClassB string
	Err            error
}

func (e *SwapPartialFailure) Error() string {
	return fmt.Sprintf("swap of %s and %s failed, no class was changed: %v", e.ClassA, e.ClassB, e.Err)
}
func (e *SwapPartialFailure) Unwrap() error { return e.Err }

// SwapCompensationFailure: the second write failed and so did the undo of the first one.
// ClassA holds ClassB's slot; the timetable is inconsistent until fixed by hand.
type SwapCompensationFailure struct {
	ClassA, ClassB string
	Err            error // the second write's error
	RestoreErr     error
}

func (e *SwapCompensationFailure) Error() string {
	return fmt.Sprintf(
		"swap of %s and %s failed and could not be rolled back, class %s needs fixing: %v (rollback: %v)",
		e.ClassA, e.ClassB, e.ClassA, e.Err, e.RestoreErr,
	)
}
func (e *SwapCompensationFailure) Unwrap() error { return e.Err }

type Swapper struct {
	repo   Repository
	logger core.Logger
}

func NewSwapper(repo Repository, logger core.Logger) *Swapper {
	return &Swapper{repo: repo, logger: logger}
}

func (svc *Swapper) Get(ctx context.Context, id string) (Class, error) {
	c, err := svc.repo.Get(ctx, id)
	return c, errors.Wrap(err, "finding class")
}

// Swap exchanges the slots of classes idA and idB.
//
// Stores implementing AtomicSwapper do it in one transaction. Otherwise the two writes are
// issued one after the other, and a failed second write is compensated by restoring A.
// The compensation is best-effort: when it fails too, a *SwapCompensationFailure is returned.
func (svc *Swapper) Swap(ctx context.Context, idA, idB string) error {
	outcome := "ok"
	defer func() { metrics.ObserveSwap(outcome) }()

	if idA == "" || idB == "" || idA == idB {
		outcome = "rejected"
		return ErrInvalidSwap
	}

	if tx, ok := svc.repo.(AtomicSwapper); ok {
		outcome = "atomic"
		if err := tx.SwapSlots(ctx, idA, idB); err != nil {
			outcome = "failed"
			return errors.Wrap(err, "swapping classes")
		}
		return nil
	}

	a, err := svc.repo.Get(ctx, idA)
	if err != nil {
		outcome = "rejected"
		return errors.Wrap(err, "finding class A")
	}
	b, err := svc.repo.Get(ctx, idB)
	if err != nil {
		outcome = "rejected"
		return errors.Wrap(err, "finding class B")
	}

	if err := svc.repo.UpdateSlot(ctx, a.ID, b.Slot); err != nil {
		outcome = "failed"
		return errors.Wrap(err, "updating class A")
	}
	if err := svc.repo.UpdateSlot(ctx, b.ID, a.Slot); err != nil {
		if rerr := svc.repo.UpdateSlot(ctx, a.ID, a.Slot); rerr != nil {
			outcome = "compensation_failed"
			cerr := &SwapCompensationFailure{ClassA: a.ID, ClassB: b.ID, Err: err, RestoreErr: rerr}
			svc.logger.Error(cerr.Error(), cerr, map[string]interface{}{"class_a": a.ID, "class_b": b.ID})
			return cerr
		}
		outcome = "partial"
		svc.logger.Warn(fmt.Sprintf("class swap rolled back: %v", err), err)
		return &SwapPartialFailure{ClassA: a.ID, ClassB: b.ID, Err: err}
	}
	return nil
}
