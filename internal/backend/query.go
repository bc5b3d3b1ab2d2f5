package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/scorecast/internal/apperror"
)

// Filter restricts a query to rows where Column compares to Value with Operator.
type Filter struct {
	Column   string
	Operator string
	Value    string
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Operator: "eq", Value: fmt.Sprint(value)}
}

// Order sorts query results by one column.
type Order struct {
	Column     string
	Descending bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Descending: true} }

// Query describes a read from one table. The zero value selects every row and column.
type Query struct {
	Select  string
	Filters []Filter
	Order   []Order
	Limit   int
}

// Values renders the query as table API parameters, e.g.
//
//	select=*&user_id=eq.42&order=match_date.asc
func (q Query) Values() url.Values {
	v := url.Values{}
	sel := q.Select
	if sel == "" {
		sel = "*"
	}
	v.Set("select", sel)

	for _, f := range q.Filters {
		v.Add(f.Column, f.Operator+"."+f.Value)
	}

	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		v.Set("order", strings.Join(parts, ","))
	}

	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func tablePath(table string) (string, error) {
	if table == "" || strings.ContainsAny(table, "/?#") {
		return "", apperror.Query(0, fmt.Sprintf("invalid table name %q", table))
	}
	return "/rest/v1/" + table, nil
}

// Query reads rows from table into dest, which must be a pointer to a slice.
func (c *Client) Query(ctx context.Context, table string, q Query, dest any) error {
	path, err := tablePath(table)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, q.Values(), nil)
	if err != nil {
		return asQueryError("select "+table, err)
	}
	if err := c.authorize(req); err != nil {
		return asQueryError("select "+table, err)
	}

	if err := c.send(req, dest); err != nil {
		return asQueryError("select "+table, err)
	}
	return nil
}

// Insert writes record into table and decodes the stored row into dest (may be nil).
func (c *Client) Insert(ctx context.Context, table string, record any, dest any) error {
	path, err := tablePath(table)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, record)
	if err != nil {
		return asQueryError("insert "+table, err)
	}
	return c.writeRow(req, "insert "+table, dest)
}

// Update applies patch to the row of table whose id matches and decodes the
// updated row into dest (may be nil). A missing or invisible row is a query error.
func (c *Client) Update(ctx context.Context, table string, id any, patch any, dest any) error {
	path, err := tablePath(table)
	if err != nil {
		return err
	}

	f := Eq("id", id)
	req, err := c.newRequest(ctx, http.MethodPatch, path, url.Values{f.Column: {f.Operator + "." + f.Value}}, patch)
	if err != nil {
		return asQueryError("update "+table, err)
	}
	return c.writeRow(req, "update "+table, dest)
}

// writeRow sends an insert/update asking for the stored representation back.
func (c *Client) writeRow(req *http.Request, op string, dest any) error {
	req.Header.Set("Prefer", "return=representation")
	if err := c.authorize(req); err != nil {
		return asQueryError(op, err)
	}

	var rows []json.RawMessage
	if err := c.send(req, &rows); err != nil {
		return asQueryError(op, err)
	}
	if len(rows) == 0 {
		return apperror.Query(http.StatusNotFound, fmt.Sprintf("%s affected no rows", op))
	}

	if dest != nil {
		if err := json.Unmarshal(rows[0], dest); err != nil {
			return asQueryError(op, fmt.Errorf("decoding row: %w", err))
		}
	}
	return nil
}
