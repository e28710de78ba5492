// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

// Generic database/sql support: transactions that retry on
// serialization failures, and string builders for the handful of
// statement shapes the store issues.

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// serializationFailure is the SQLSTATE PostgreSQL reports when a
// transaction must be retried.
const serializationFailure = "40001"

func isSerializationFailure(err error) bool {
	pqerr, ok := err.(*pq.Error)
	return ok && pqerr.Code == serializationFailure
}

// withTx runs f inside a transaction, committing if it returns nil
// and rolling back otherwise.  The whole transaction is retried if
// PostgreSQL reports a serialization failure.
func withTx(db *sql.DB, readOnly bool, f func(*sql.Tx) error) error {
	level := "SET TRANSACTION ISOLATION LEVEL REPEATABLE READ"
	if readOnly {
		level += " READ ONLY"
	}
	for {
		err := runTx(db, level, f)
		if !isSerializationFailure(err) {
			return err
		}
	}
}

// runTx makes a single attempt at a transaction.
func runTx(db *sql.DB, level string, f func(*sql.Tx) error) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rerr := tx.Rollback(); err == nil && rerr != sql.ErrTxDone {
			err = rerr
		}
	}()

	// Writers lock the rows they touch with SELECT ... FOR UPDATE,
	// so REPEATABLE READ is enough
	if _, err = tx.Exec(level); err != nil {
		return err
	}
	if err = f(tx); err != nil {
		return err
	}
	committed = true
	return tx.Commit()
}

// queryAndScan runs query in a read-only transaction and calls f once
// per result row.  f should only Scan the row.
func queryAndScan(db *sql.DB, query string, params queryParams, f func(*sql.Rows) error) error {
	return withTx(db, true, func(tx *sql.Tx) error {
		rows, err := tx.Query(query, params...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			if err := f(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

// execInTx runs a single statement in a read-write transaction.
func execInTx(db *sql.DB, query string, params queryParams) error {
	return withTx(db, false, func(tx *sql.Tx) error {
		_, err := tx.Exec(query, params...)
		return err
	})
}

// timeToNullTime maps the zero time to SQL NULL.
func timeToNullTime(t time.Time) pq.NullTime {
	return pq.NullTime{Time: t, Valid: !t.IsZero()}
}

// where renders an AND-joined WHERE clause, or nothing.
func where(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func buildSelect(outputs, tables, conditions []string) string {
	return "SELECT " + strings.Join(outputs, ", ") +
		" FROM " + strings.Join(tables, ", ") +
		where(conditions)
}

func buildUpdate(table string, changes, conditions []string) string {
	query := "UPDATE " + table
	if len(changes) > 0 {
		query += " SET " + strings.Join(changes, ", ")
	}
	return query + where(conditions)
}

// queryParams accumulates positional statement parameters.
type queryParams []interface{}

// Param appends a parameter and returns its placeholder, "$1", "$2",
// and so on.
func (qp *queryParams) Param(param interface{}) string {
	*qp = append(*qp, param)
	return fmt.Sprintf("$%d", len(*qp))
}

// fieldList is the column/value list of an INSERT or UPDATE.
// Values are SQL fragments, usually placeholders.
type fieldList struct {
	names  []string
	values []string
}

// Add appends a column whose value is a new statement parameter.
func (f *fieldList) Add(qp *queryParams, field string, value interface{}) {
	f.AddDirect(field, qp.Param(value))
}

// AddDirect appends a column with a literal SQL value.
func (f *fieldList) AddDirect(field, value string) {
	f.names = append(f.names, field)
	f.values = append(f.values, value)
}

func (f fieldList) InsertStatement(table string) string {
	return "INSERT INTO " + table +
		"(" + strings.Join(f.names, ", ") + ")" +
		" VALUES(" + strings.Join(f.values, ", ") + ")"
}

// UpdateChanges renders the list as "column=value" assignments.
func (f fieldList) UpdateChanges() []string {
	changes := make([]string, len(f.names))
	for i, name := range f.names {
		changes[i] = name + "=" + f.values[i]
	}
	return changes
}
