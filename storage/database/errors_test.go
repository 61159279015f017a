package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestConstraintViolations(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantUnique bool
		wantFK     bool
	}{
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, wantUnique: true},
		{name: "mysql referenced row", err: &mysql.MySQLError{Number: 1451}, wantFK: true},
		{name: "mysql missing row", err: &mysql.MySQLError{Number: 1452}, wantFK: true},
		{name: "mysql other", err: &mysql.MySQLError{Number: 1064}},
		{name: "postgres unique", err: &pq.Error{Code: "23505"}, wantUnique: true},
		{name: "postgres foreign key", err: &pq.Error{Code: "23503"}, wantFK: true},
		{name: "postgres other", err: &pq.Error{Code: "42601"}},
		{name: "wrapped", err: errors.Wrap(&pq.Error{Code: "23505"}, "inserting user"), wantUnique: true},
		{name: "plain", err: errors.New("boom")},
		{name: "nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantUnique, IsUniqueViolation(tt.err))
			assert.Equal(t, tt.wantFK, IsForeignKeyViolation(tt.err))
		})
	}
}
