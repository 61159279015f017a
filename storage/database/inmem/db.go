// Package inmemdb implements the domain repositories in memory. It backs the "memory" DB engine and the tests.
package inmemdb

import (
	"cmp"
	"sort"
	"strings"
	"sync"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
)

var errReferenced = core.NewConflictError("the record references, or is referenced by, another record")

// DB holds every table. A single lock guards them all, like a serializable transaction would.
type DB struct {
	sync.RWMutex
	lastID int64

	users         map[int64]*user.User
	grades        map[int64]*academic.Grade
	sections      map[int64]*academic.Section
	subjects      map[int64]*academic.Subject
	gradeSubjects []academic.GradeSubject
	years         map[int64]*academic.AcademicYear
	terms         map[int64]*academic.Term
	students      map[int64]*people.Student
	teachers      map[int64]*people.Teacher
	parents       map[int64]*people.Parent
	attendance    map[int64]*attendance.Attendance
	examTypes     map[int64]*exam.ExamType
	examinations  map[int64]*exam.Examination
	results       map[int64]*exam.Result
	feeStructures map[int64]*payment.FeeStructure
	payments      map[int64]*payment.Payment
}

func Open() *DB {
	return &DB{
		users:         make(map[int64]*user.User),
		grades:        make(map[int64]*academic.Grade),
		sections:      make(map[int64]*academic.Section),
		subjects:      make(map[int64]*academic.Subject),
		years:         make(map[int64]*academic.AcademicYear),
		terms:         make(map[int64]*academic.Term),
		students:      make(map[int64]*people.Student),
		teachers:      make(map[int64]*people.Teacher),
		parents:       make(map[int64]*people.Parent),
		attendance:    make(map[int64]*attendance.Attendance),
		examTypes:     make(map[int64]*exam.ExamType),
		examinations:  make(map[int64]*exam.Examination),
		results:       make(map[int64]*exam.Result),
		feeStructures: make(map[int64]*payment.FeeStructure),
		payments:      make(map[int64]*payment.Payment),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID() int64 {
	db.lastID++
	return db.lastID
}

// rows returns copies of the table's rows, ordered by ID.
func rows[T any](table map[int64]*T) []T {
	ids := make([]int64, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]T, 0, len(ids))
	for _, id := range ids {
		items = append(items, *table[id])
	}
	return items
}

func count[T any](table map[int64]*T, match func(T) bool) int {
	n := 0
	for _, row := range table {
		if match(*row) {
			n++
		}
	}
	return n
}

func exists[T any](table map[int64]*T, excludeID int64, match func(T) bool) bool {
	for id, row := range table {
		if id != excludeID && match(*row) {
			return true
		}
	}
	return false
}

func where[T any](items []T, keep func(T) bool) []T {
	kept := items[:0]
	for _, item := range items {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

// orderings maps a sortBy field onto a comparison of two rows.
type orderings[T any] map[string]func(a, b T) int

// paginate sorts `items` as `pq` asks (`def` when it names no known field), and returns the page with the total count.
func paginate[T any](items []T, pq core.PageQuery, ords orderings[T], def string, defAsc bool) ([]T, int) {
	compare, asc := ords[def], defAsc
	if c, ok := ords[pq.SortBy]; ok {
		compare, asc = c, pq.SortOrder != "DESC"
	}
	if compare != nil {
		sort.SliceStable(items, func(i, j int) bool {
			c := compare(items[i], items[j])
			if asc {
				return c < 0
			}
			return c > 0
		})
	}

	total := len(items)
	if pq.Limit <= 0 {
		return items, total
	}
	start := pq.Offset()
	if start >= total {
		return items[:0], total
	}
	end := start + pq.Limit
	if end > total {
		end = total
	}
	return items[start:end], total
}

// matches does a case-insensitive match of `term` against any of `vals`.
func matches(term string, vals ...string) bool {
	term = strings.ToLower(term)
	for _, val := range vals {
		if strings.Contains(strings.ToLower(val), term) {
			return true
		}
	}
	return false
}

func compareDates(a, b core.Date) int { return a.Time.Compare(b.Time) }

func compareStrings(a, b string) int { return cmp.Compare(a, b) }

func inPeriod(d, start, end core.Date) bool {
	return (start.IsZero() || !d.Before(start)) && (end.IsZero() || !d.After(end))
}

func eqPtr(p *int64, id int64) bool { return p != nil && *p == id }

// assign sets *dst to *v when the caller provided `v`.
func assign[T any](dst, v *T) {
	if v != nil {
		*dst = *v
	}
}

// pageAll keeps every row.
var pageAll = core.PageQuery{}
