package orm

import (
	"context"
	"math"

	"github.com/shashiranjanraj/foodie/pkg/database"
	"gorm.io/gorm"
)

type Query struct {
	db       *gorm.DB
	preloads []preload
}

type preload struct {
	assoc string
	args  []interface{}
}

// Pagination is the page metadata returned next to a paginated list.
type Pagination struct {
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

func DB() *Query {
	return &Query{db: database.DB}
}

// On starts a query against an explicit connection or transaction.
func On(db *gorm.DB) *Query {
	return &Query{db: db}
}

func (q *Query) with(db *gorm.DB) *Query {
	return &Query{db: db, preloads: q.preloads}
}

func (q *Query) WithContext(ctx context.Context) *Query {
	return q.with(q.db.WithContext(ctx))
}

func (q *Query) Model(v interface{}) *Query {
	return q.with(q.db.Model(v))
}

func (q *Query) Where(query string, args ...interface{}) *Query {
	return q.with(q.db.Where(query, args...))
}

// WhereIf applies the condition only when ok is true.
func (q *Query) WhereIf(ok bool, query string, args ...interface{}) *Query {
	if !ok {
		return q
	}
	return q.Where(query, args...)
}

// Preload is applied only to the final Find, never to counts.
func (q *Query) Preload(assoc string, args ...interface{}) *Query {
	out := q.with(q.db)
	out.preloads = append(append([]preload(nil), q.preloads...), preload{assoc: assoc, args: args})
	return out
}

func (q *Query) OrderBy(value string) *Query {
	return q.with(q.db.Order(value))
}

func (q *Query) finder() *gorm.DB {
	db := q.db
	for _, p := range q.preloads {
		db = db.Preload(p.assoc, p.args...)
	}
	return db
}

func (q *Query) Get(dest interface{}) error {
	return q.finder().Find(dest).Error
}

func (q *Query) First(dest interface{}) error {
	return q.finder().First(dest).Error
}

func (q *Query) Create(value interface{}) error {
	return q.db.Create(value).Error
}

func (q *Query) Save(value interface{}) error {
	return q.db.Save(value).Error
}

func (q *Query) Count() (int64, error) {
	var n int64
	err := q.db.Count(&n).Error
	return n, err
}

// Paginate loads one page into dest and returns its metadata. Page numbers
// start at 1; out of range values are clamped.
func (q *Query) Paginate(page, perPage int, dest interface{}) (Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	var total int64
	if err := q.db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Pagination{}, err
	}

	err := q.finder().Offset((page - 1) * perPage).Limit(perPage).Find(dest).Error
	if err != nil {
		return Pagination{}, err
	}

	last := int(math.Ceil(float64(total) / float64(perPage)))
	if last < 1 {
		last = 1
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, LastPage: last}, nil
}
