package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core/schedule"
)

type (
	classRepository struct {
		db *sqlx.DB
	}

	classRow struct {
		ID           string      `db:"id"`
		Title        string      `db:"title"`
		CourseID     null.String `db:"course_id"`
		InstructorID null.String `db:"instructor_id"`
		ClassroomID  null.String `db:"classroom_id"`
		StartTime    time.Time   `db:"start_time"`
		EndTime      time.Time   `db:"end_time"`
		DayOfWeek    int         `db:"day_of_week"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}
)

var (
	// interface compliance checks
	_ schedule.Store         = (*classRepository)(nil)
	_ schedule.AtomicSwapper = (*classRepository)(nil)
)

func NewClassRepository(db *sqlx.DB) schedule.Store {
	return &classRepository{db: db}
}

func (r classRow) class() schedule.Class {
	return schedule.Class{
		ID:           r.ID,
		Title:        r.Title,
		CourseID:     r.CourseID.String,
		InstructorID: r.InstructorID.String,
		Slot: schedule.Slot{
			StartTime:   r.StartTime.UTC(),
			EndTime:     r.EndTime.UTC(),
			ClassroomID: r.ClassroomID.String,
			DayOfWeek:   r.DayOfWeek,
		},
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const classColumns = `id, title, course_id, instructor_id, classroom_id, start_time, end_time, day_of_week, updated_at`

func getClass(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (schedule.Class, error) {
	if !isUUID(id) {
		return schedule.Class{}, schedule.ErrNotFound
	}
	stmt := `SELECT ` + classColumns + ` FROM class WHERE id = $1`
	if forUpdate {
		stmt += ` FOR UPDATE`
	}
	var row classRow
	if err := sqlx.GetContext(ctx, q, &row, stmt, id); err != nil {
		return schedule.Class{}, trapNoRowsErr(err, schedule.ErrNotFound, "finding class by ID")
	}
	return row.class(), nil
}

func updateSlot(ctx context.Context, exec sqlx.ExecerContext, id string, slot schedule.Slot) error {
	res, err := exec.ExecContext(ctx,
		`UPDATE class SET start_time = $2, end_time = $3, classroom_id = $4, day_of_week = $5, updated_at = $6
		WHERE id = $1`,
		id,
		slot.StartTime.UTC(),
		slot.EndTime.UTC(),
		null.NewString(slot.ClassroomID, slot.ClassroomID != ""),
		slot.DayOfWeek,
		time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "updating class slot")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (repo *classRepository) Get(ctx context.Context, id string) (schedule.Class, error) {
	return getClass(ctx, repo.db, id, false)
}

func (repo *classRepository) UpdateSlot(ctx context.Context, id string, slot schedule.Slot) error {
	if !isUUID(id) {
		return schedule.ErrNotFound
	}
	return updateSlot(ctx, repo.db, id, slot)
}

// SwapSlots swaps both slots in one transaction, with the two rows locked.
func (repo *classRepository) SwapSlots(ctx context.Context, idA, idB string) (err error) {
	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// rows are locked in id order so that concurrent swaps of the same pair cannot deadlock
	first, second := idA, idB
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]schedule.Class, 2)
	for _, id := range []string{first, second} {
		c, err := getClass(ctx, tx, id, true)
		if err != nil {
			return err
		}
		locked[id] = c
	}
	a, b := locked[idA], locked[idB]
	if err = updateSlot(ctx, tx, a.ID, b.Slot); err != nil {
		return err
	}
	if err = updateSlot(ctx, tx, b.ID, a.Slot); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing swap")
}

// Create inserts c, giving it an id when it has none.
func (repo *classRepository) Create(ctx context.Context, c schedule.Class) (schedule.Class, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.UpdatedAt = time.Now().UTC()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO class (`+classColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID,
		c.Title,
		null.NewString(c.CourseID, c.CourseID != ""),
		null.NewString(c.InstructorID, c.InstructorID != ""),
		null.NewString(c.Slot.ClassroomID, c.Slot.ClassroomID != ""),
		c.Slot.StartTime.UTC(),
		c.Slot.EndTime.UTC(),
		c.Slot.DayOfWeek,
		c.UpdatedAt,
	)
	if err != nil {
		return schedule.Class{}, errors.Wrap(err, "inserting class")
	}
	return c, nil
}

// CreateClassroom inserts the classroom name unless it exists, and returns its id.
func (repo *classRepository) CreateClassroom(ctx context.Context, name string) (string, error) {
	var id string
	err := repo.db.GetContext(ctx, &id,
		`INSERT INTO classroom (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		uuid.New().String(), name,
	)
	return id, errors.Wrap(err, "inserting classroom")
}
