package devbackend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindFloat
	kindTime
)

type column struct {
	name     string
	kind     columnKind
	nullable bool
}

// table describes one relation exposed under /rest/v1.
type table struct {
	name    string
	columns []column
	view    bool
}

func (t *table) column(name string) (column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

func (t *table) hasColumn(name string) bool {
	_, ok := t.column(name)
	return ok
}

var (
	matchesTable = &table{
		name: "matches",
		columns: []column{
			{name: "id", kind: kindInt},
			{name: "home_team", kind: kindText},
			{name: "away_team", kind: kindText},
			{name: "home_score", kind: kindInt, nullable: true},
			{name: "away_score", kind: kindInt, nullable: true},
			{name: "match_date", kind: kindTime},
			{name: "location", kind: kindText},
			{name: "competition", kind: kindText},
			{name: "status", kind: kindText},
			{name: "created_at", kind: kindTime},
			{name: "updated_at", kind: kindTime},
		},
	}

	predictionsTable = &table{
		name: "predictions",
		columns: []column{
			{name: "id", kind: kindInt},
			{name: "user_id", kind: kindText},
			{name: "match_id", kind: kindInt},
			{name: "home_score", kind: kindInt},
			{name: "away_score", kind: kindInt},
			{name: "points_earned", kind: kindInt, nullable: true},
			{name: "created_at", kind: kindTime},
			{name: "updated_at", kind: kindTime},
		},
	}

	leaderboardTable = &table{
		name: "leaderboard",
		view: true,
		columns: []column{
			{name: "user_id", kind: kindText},
			{name: "username", kind: kindText},
			{name: "avatar_url", kind: kindText},
			{name: "total_points", kind: kindInt},
			{name: "predictions_count", kind: kindInt},
			{name: "correct_score_count", kind: kindInt},
			{name: "correct_outcome_count", kind: kindInt},
			{name: "accuracy_percentage", kind: kindFloat},
		},
	}

	tables = map[string]*table{
		matchesTable.name:     matchesTable,
		predictionsTable.name: predictionsTable,
		leaderboardTable.name: leaderboardTable,
	}
)

// row is one record as it travels over the wire.
type row map[string]any

// filter is one "column=op.value" condition.
type filter struct {
	column string
	op     string
	value  any // nil for "is.null"
}

var sqlOperators = map[string]string{
	"eq":  "=",
	"neq": "<>",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

type order struct {
	column string
	desc   bool
}

// selectQuery is a parsed GET request.
type selectQuery struct {
	columns []string
	filters []filter
	order   []order
	limit   int
}

// restError is a table API failure with the status and code to answer with.
type restError struct {
	status  int
	code    string
	message string
}

func (e *restError) Error() string { return e.message }

func badRequest(code, format string, args ...any) *restError {
	return &restError{status: 400, code: code, message: fmt.Sprintf(format, args...)}
}

// parseFilters reads every query parameter that names a column.
// select, order and limit are reserved; other unknown names are an error.
func parseFilters(t *table, values url.Values) ([]filter, error) {
	var out []filter
	for key, vals := range values {
		switch key {
		case "select", "order", "limit", "offset":
			continue
		}
		col, ok := t.column(key)
		if !ok {
			return nil, badRequest("42703", "column %s.%s does not exist", t.name, key)
		}
		for _, raw := range vals {
			op, operand, found := strings.Cut(raw, ".")
			if !found {
				return nil, badRequest("PGRST100", "failed to parse filter (%s)", raw)
			}
			if op == "is" {
				if operand != "null" {
					return nil, badRequest("PGRST100", "failed to parse filter (%s)", raw)
				}
				out = append(out, filter{column: key, op: "is"})
				continue
			}
			if _, ok := sqlOperators[op]; !ok {
				return nil, badRequest("PGRST100", "unsupported operator %q", op)
			}
			v, err := parseOperand(col, operand)
			if err != nil {
				return nil, err
			}
			out = append(out, filter{column: key, op: op, value: v})
		}
	}
	return out, nil
}

func parseOperand(col column, s string) (any, error) {
	switch col.kind {
	case kindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, badRequest("22P02", "invalid input syntax for type bigint: %q", s)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, badRequest("22P02", "invalid input syntax for type numeric: %q", s)
		}
		return f, nil
	case kindTime:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, badRequest("22007", "invalid input syntax for type timestamp: %q", s)
		}
		return timestamp(t), nil
	default:
		return s, nil
	}
}

func parseSelect(t *table, values url.Values) (*selectQuery, error) {
	q := &selectQuery{}

	if sel := values.Get("select"); sel != "" && sel != "*" {
		for _, name := range strings.Split(sel, ",") {
			name = strings.TrimSpace(name)
			if !t.hasColumn(name) {
				return nil, badRequest("42703", "column %s.%s does not exist", t.name, name)
			}
			q.columns = append(q.columns, name)
		}
	}

	filters, err := parseFilters(t, values)
	if err != nil {
		return nil, err
	}
	q.filters = filters

	if o := values.Get("order"); o != "" {
		for _, part := range strings.Split(o, ",") {
			name, dir, _ := strings.Cut(part, ".")
			if !t.hasColumn(name) {
				return nil, badRequest("42703", "column %s.%s does not exist", t.name, name)
			}
			q.order = append(q.order, order{column: name, desc: strings.HasPrefix(dir, "desc")})
		}
	}

	if l := values.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return nil, badRequest("PGRST102", "invalid limit %q", l)
		}
		q.limit = n
	}
	return q, nil
}

func whereClause(filters []filter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if f.op == "is" {
			parts = append(parts, f.column+" IS NULL")
			continue
		}
		parts = append(parts, f.column+" "+sqlOperators[f.op]+" ?")
		args = append(args, f.value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// selectRows runs q against t. Column names in q were validated by parseSelect.
func (db *DB) selectRows(ctx context.Context, t *table, q *selectQuery) ([]row, error) {
	cols := q.columns
	if len(cols) == 0 {
		cols = make([]string, 0, len(t.columns))
		for _, c := range t.columns {
			cols = append(cols, c.name)
		}
	}

	where, args := whereClause(q.filters)
	stmt := "SELECT " + strings.Join(cols, ", ") + " FROM " + t.name + where

	if len(q.order) > 0 {
		parts := make([]string, 0, len(q.order))
		for _, o := range q.order {
			dir := "ASC"
			if o.desc {
				dir = "DESC"
			}
			parts = append(parts, o.column+" "+dir)
		}
		stmt += " ORDER BY " + strings.Join(parts, ", ")
	}
	if q.limit > 0 {
		stmt += " LIMIT " + strconv.Itoa(q.limit)
	}

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("devbackend: selecting from %s: %w", t.name, err)
	}
	defer rows.Close()

	out := []row{}
	for rows.Next() {
		dest := make([]any, len(cols))
		for i, name := range cols {
			c, _ := t.column(name)
			switch c.kind {
			case kindInt:
				dest[i] = new(sql.NullInt64)
			case kindFloat:
				dest[i] = new(sql.NullFloat64)
			default:
				dest[i] = new(sql.NullString)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("devbackend: scanning %s row: %w", t.name, err)
		}

		r := make(row, len(cols))
		for i, name := range cols {
			switch v := dest[i].(type) {
			case *sql.NullInt64:
				if v.Valid {
					r[name] = v.Int64
				} else {
					r[name] = nil
				}
			case *sql.NullFloat64:
				if v.Valid {
					r[name] = v.Float64
				} else {
					r[name] = nil
				}
			case *sql.NullString:
				if v.Valid {
					r[name] = v.String
				} else {
					r[name] = nil
				}
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("devbackend: iterating %s rows: %w", t.name, err)
	}
	return out, nil
}

// decodeRecord turns a JSON object into column values for t, allowing only the
// columns in writable. Types are checked per column kind.
func decodeRecord(t *table, raw json.RawMessage, writable map[string]bool) (row, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()

	var in map[string]any
	if err := dec.Decode(&in); err != nil {
		return nil, badRequest("PGRST102", "Empty or invalid json")
	}

	out := make(row, len(in))
	for name, v := range in {
		col, ok := t.column(name)
		if !ok {
			return nil, badRequest("PGRST204", "Could not find the '%s' column of '%s' in the schema cache", name, t.name)
		}
		if !writable[name] {
			return nil, &restError{status: 403, code: "42501", message: fmt.Sprintf("permission denied to write column %s of table %s", name, t.name)}
		}
		val, err := columnValue(col, v)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}

func columnValue(col column, v any) (any, error) {
	if v == nil {
		if !col.nullable {
			return nil, badRequest("23502", "null value in column \"%s\" violates not-null constraint", col.name)
		}
		return nil, nil
	}

	switch col.kind {
	case kindInt:
		n, ok := v.(json.Number)
		if !ok {
			return nil, badRequest("22P02", "invalid input syntax for type bigint: %v", v)
		}
		i, err := n.Int64()
		if err != nil {
			return nil, badRequest("22P02", "invalid input syntax for type bigint: %q", n.String())
		}
		return i, nil
	case kindFloat:
		n, ok := v.(json.Number)
		if !ok {
			return nil, badRequest("22P02", "invalid input syntax for type numeric: %v", v)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, badRequest("22P02", "invalid input syntax for type numeric: %q", n.String())
		}
		return f, nil
	case kindTime:
		s, ok := v.(string)
		if !ok {
			return nil, badRequest("22007", "invalid input syntax for type timestamp: %v", v)
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, badRequest("22007", "invalid input syntax for type timestamp: %q", s)
		}
		return timestamp(ts), nil
	default:
		s, ok := v.(string)
		if !ok {
			return nil, badRequest("22P02", "invalid input syntax for type text: %v", v)
		}
		return s, nil
	}
}

// querier is what the row helpers need from *sql.DB or *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertRow inserts r into t and returns the new row id.
func (db *DB) insertRow(ctx context.Context, t *table, r row) (int64, error) {
	return insertRow(ctx, db.conn, t, r)
}

// insertAll inserts every record in one transaction. check runs inside the
// transaction before each insert; the first error rolls back all rows.
func (db *DB) insertAll(ctx context.Context, t *table, recs []row, check func(q querier, r row) error) ([]int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("devbackend: starting %s insert: %w", t.name, err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		if check != nil {
			if err := check(tx, r); err != nil {
				return nil, err
			}
		}
		id, err := insertRow(ctx, tx, t, r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("devbackend: committing %s insert: %w", t.name, err)
	}
	return ids, nil
}

func insertRow(ctx context.Context, q querier, t *table, r row) (int64, error) {
	names := make([]string, 0, len(r))
	marks := make([]string, 0, len(r))
	args := make([]any, 0, len(r))
	for _, c := range t.columns {
		if v, ok := r[c.name]; ok {
			names = append(names, c.name)
			marks = append(marks, "?")
			args = append(args, v)
		}
	}

	res, err := q.ExecContext(ctx,
		"INSERT INTO "+t.name+" ("+strings.Join(names, ", ")+") VALUES ("+strings.Join(marks, ", ")+")",
		args...,
	)
	if err != nil {
		return 0, sqlError(t, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("devbackend: reading %s insert id: %w", t.name, err)
	}
	return id, nil
}

// updateByIDs applies set to the rows of t with the given ids.
func (db *DB) updateByIDs(ctx context.Context, t *table, ids []int64, set row) error {
	if len(ids) == 0 || len(set) == 0 {
		return nil
	}

	assignments := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+len(ids))
	for _, c := range t.columns {
		if v, ok := set[c.name]; ok {
			assignments = append(assignments, c.name+" = ?")
			args = append(args, v)
		}
	}
	marks := make([]string, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args = append(args, id)
	}

	_, err := db.conn.ExecContext(ctx,
		"UPDATE "+t.name+" SET "+strings.Join(assignments, ", ")+" WHERE id IN ("+strings.Join(marks, ", ")+")",
		args...,
	)
	if err != nil {
		return sqlError(t, err)
	}
	return nil
}

// sqlError maps SQLite constraint failures to the codes the hosted service uses.
func sqlError(t *table, err error) error {
	msg := err.Error()
	switch {
	case isUniqueViolation(err):
		if name := uniqueConstraint(msg); name != "" {
			return &restError{status: 409, code: "23505", message: fmt.Sprintf("duplicate key value violates unique constraint \"%s\"", name)}
		}
		return &restError{status: 409, code: "23505", message: fmt.Sprintf("duplicate key value violates a unique constraint on \"%s\"", t.name)}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &restError{status: 409, code: "23503", message: fmt.Sprintf("insert or update on table \"%s\" violates foreign key constraint", t.name)}
	case strings.Contains(msg, "CHECK constraint failed"):
		return badRequest("23514", "new row for relation \"%s\" violates check constraint", t.name)
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return badRequest("23502", "null value violates not-null constraint on \"%s\"", t.name)
	}
	return fmt.Errorf("devbackend: writing %s: %w", t.name, err)
}

func rowIDs(rows []row) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if id, ok := r["id"].(int64); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// rowsByIDs re-reads rows after a write so the response carries stored values.
func (db *DB) rowsByIDs(ctx context.Context, t *table, ids []int64) ([]row, error) {
	out := make([]row, 0, len(ids))
	for _, id := range ids {
		rs, err := db.selectRows(ctx, t, &selectQuery{filters: []filter{{column: "id", op: "eq", value: id}}})
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

// uniqueConstraint derives the Postgres-style constraint name from a SQLite
// unique failure such as
// "UNIQUE constraint failed: predictions.user_id, predictions.match_id (2067)",
// giving "predictions_user_id_match_id_key". It returns "" when msg has no
// column list.
func uniqueConstraint(msg string) string {
	const marker = "UNIQUE constraint failed: "
	_, cols, ok := strings.Cut(msg, marker)
	if !ok {
		return ""
	}
	cols, _, _ = strings.Cut(cols, " (")

	var table string
	parts := []string{}
	for _, c := range strings.Split(cols, ",") {
		tbl, col, ok := strings.Cut(strings.TrimSpace(c), ".")
		if !ok || tbl == "" || col == "" {
			return ""
		}
		table = tbl
		parts = append(parts, col)
	}
	return table + "_" + strings.Join(parts, "_") + "_key"
}
