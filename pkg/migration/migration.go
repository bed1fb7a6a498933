// Package migration applies versioned schema changes and records them in
// the foodie_migrations table. Steps run in name order, so names start
// with a timestamp:
//
//	migration.Register(migration.Table("20260101000001_create_items", &models.Item{}))
//
// Every run of `foodie migrate` forms a batch; `migrate:rollback` undoes
// the latest batch newest first.
package migration

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/foodie/pkg/logger"
)

// Step is one schema change. Up and Down run inside a transaction together
// with the bookkeeping row; databases that commit DDL implicitly (MySQL)
// only get the bookkeeping rolled back.
type Step struct {
	Name string
	Up   func(tx *gorm.DB) error
	Down func(tx *gorm.DB) error
}

// Table is a Step that auto-migrates models on the way up and drops their
// tables, in reverse order, on the way down.
func Table(name string, models ...any) Step {
	return Step{
		Name: name,
		Up:   func(tx *gorm.DB) error { return tx.AutoMigrate(models...) },
		Down: func(tx *gorm.DB) error {
			rev := slices.Clone(models)
			slices.Reverse(rev)
			return tx.Migrator().DropTable(rev...)
		},
	}
}

type applied struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"uniqueIndex;size:255;not null"`
	Batch     int       `gorm:"not null;index"`
	AppliedAt time.Time `gorm:"not null"`
}

func (applied) TableName() string { return "foodie_migrations" }

var (
	mu    sync.Mutex
	steps = map[string]Step{}
)

// Register adds steps to the global set. A repeated name panics.
func Register(s ...Step) {
	mu.Lock()
	defer mu.Unlock()
	for _, st := range s {
		if st.Name == "" || st.Up == nil {
			panic("migration: step needs a name and an Up func")
		}
		if _, dup := steps[st.Name]; dup {
			panic(fmt.Sprintf("migration: %s registered twice", st.Name))
		}
		steps[st.Name] = st
	}
}

func ordered() []Step {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Step, 0, len(steps))
	for _, st := range steps {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b Step) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func lookup(name string) (Step, bool) {
	mu.Lock()
	defer mu.Unlock()
	st, ok := steps[name]
	return st, ok
}

type Runner struct {
	db  *gorm.DB
	out io.Writer
}

func New(db *gorm.DB) *Runner { return &Runner{db: db, out: io.Discard} }

// WithOutput prints one progress line per step to w.
func (r *Runner) WithOutput(w io.Writer) *Runner {
	r.out = w
	return r
}

func (r *Runner) prepare() (map[string]applied, int, error) {
	if err := r.db.AutoMigrate(&applied{}); err != nil {
		return nil, 0, fmt.Errorf("migration: bookkeeping table: %w", err)
	}
	var rows []applied
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("migration: read bookkeeping: %w", err)
	}
	done := make(map[string]applied, len(rows))
	last := 0
	for _, row := range rows {
		done[row.Name] = row
		last = max(last, row.Batch)
	}
	return done, last, nil
}

// Run applies every pending step as a new batch and returns how many ran.
// It stops at the first failing step; the steps before it stay applied.
func (r *Runner) Run() (int, error) {
	done, last, err := r.prepare()
	if err != nil {
		return 0, err
	}
	batch := last + 1

	n := 0
	for _, st := range ordered() {
		if _, ok := done[st.Name]; ok {
			continue
		}
		fmt.Fprintf(r.out, "  ▶ %s\n", st.Name)
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := st.Up(tx); err != nil {
				return err
			}
			return tx.Create(&applied{Name: st.Name, Batch: batch, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return n, fmt.Errorf("migration: %s: %w", st.Name, err)
		}
		n++
	}

	if n == 0 {
		fmt.Fprintln(r.out, "Nothing to migrate.")
	} else {
		logger.Info("migration: applied", "steps", n, "batch", batch)
	}
	return n, nil
}

// Rollback undoes the latest batch and returns how many steps it reverted.
func (r *Runner) Rollback() (int, error) {
	done, last, err := r.prepare()
	if err != nil {
		return 0, err
	}
	if last == 0 {
		fmt.Fprintln(r.out, "Nothing to roll back.")
		return 0, nil
	}

	var names []string
	for name, row := range done {
		if row.Batch == last {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	slices.Reverse(names)

	for i, name := range names {
		st, ok := lookup(name)
		if !ok || st.Down == nil {
			return i, fmt.Errorf("migration: %s cannot be rolled back", name)
		}
		fmt.Fprintf(r.out, "  ◀ %s\n", name)
		row := done[name]
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := st.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&row).Error
		})
		if err != nil {
			return i, fmt.Errorf("migration: %s: %w", name, err)
		}
	}
	logger.Info("migration: rolled back", "steps", len(names), "batch", last)
	return len(names), nil
}

// Status is one row of migrate:status. Batch is 0 while pending.
type Status struct {
	Name  string
	Ran   bool
	Batch int
}

func (r *Runner) Status() ([]Status, error) {
	done, _, err := r.prepare()
	if err != nil {
		return nil, err
	}
	all := ordered()
	out := make([]Status, 0, len(all))
	for _, st := range all {
		row, ok := done[st.Name]
		out = append(out, Status{Name: st.Name, Ran: ok, Batch: row.Batch})
	}
	return out, nil
}
