package devbackend

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/scorecast/internal/auth"
)

// Columns each role may write. Service callers may write anything but ids.
var (
	userInsertColumns = map[string]bool{
		"user_id": true, "match_id": true, "home_score": true, "away_score": true,
		"created_at": true, "updated_at": true,
	}
	userUpdateColumns = map[string]bool{
		"home_score": true, "away_score": true, "updated_at": true,
	}
)

func serviceColumns(t *table) map[string]bool {
	out := make(map[string]bool, len(t.columns))
	for _, c := range t.columns {
		if c.name != "id" {
			out[c.name] = true
		}
	}
	return out
}

func (s *Server) lookupTable(w http.ResponseWriter, r *http.Request) (*table, bool) {
	name := chi.URLParam(r, "table")
	t, ok := tables[name]
	if !ok {
		writeRestError(w, http.StatusNotFound, "42P01", fmt.Sprintf("relation \"public.%s\" does not exist", name))
		return nil, false
	}
	return t, true
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTable(w, r)
	if !ok {
		return
	}

	q, err := parseSelect(t, r.URL.Query())
	if err != nil {
		s.restFailure(w, r, err)
		return
	}

	// Predictions are private: users see their own rows, anonymous callers none.
	if t == predictionsTable {
		p := auth.PrincipalFromContext(r.Context())
		switch p.Role {
		case auth.RoleAnon:
			writeJSON(w, http.StatusOK, []row{})
			return
		case auth.RoleUser:
			q.filters = append(q.filters, filter{column: "user_id", op: "eq", value: p.UserID})
		}
	}

	rows, err := s.db.selectRows(r.Context(), t, q)
	if err != nil {
		s.restFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// readRecords accepts a single JSON object or an array of them.
func readRecords(r *http.Request) ([]json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, badRequest("PGRST102", "Empty or invalid json")
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var many []json.RawMessage
		if err := json.Unmarshal(body, &many); err != nil {
			return nil, badRequest("PGRST102", "Empty or invalid json")
		}
		return many, nil
	}
	if trimmed == "" {
		return nil, badRequest("PGRST102", "Empty or invalid json")
	}
	return []json.RawMessage{body}, nil
}

func permissionDenied(t *table) *restError {
	return &restError{status: http.StatusForbidden, code: "42501", message: fmt.Sprintf("permission denied for table %s", t.name)}
}

func rowSecurityViolation(t *table) *restError {
	return &restError{status: http.StatusForbidden, code: "42501", message: fmt.Sprintf("new row violates row-level security policy for table \"%s\"", t.name)}
}

func predictionsClosed(matchID int64) *restError {
	return badRequest("P0001", "predictions are closed for match %d", matchID)
}

// respondWritten answers a write the way the client asked with its Prefer header.
func respondWritten(w http.ResponseWriter, r *http.Request, status int, rows []row) {
	if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		writeJSON(w, status, rows)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTable(w, r)
	if !ok {
		return
	}
	p := auth.PrincipalFromContext(r.Context())

	var writable map[string]bool
	switch {
	case t.view:
		s.restFailure(w, r, &restError{status: http.StatusMethodNotAllowed, code: "PGRST105", message: fmt.Sprintf("cannot insert into view %s", t.name)})
		return
	case p.Role == auth.RoleService:
		writable = serviceColumns(t)
	case t == predictionsTable && p.Role == auth.RoleUser:
		writable = userInsertColumns
	default:
		s.restFailure(w, r, permissionDenied(t))
		return
	}

	raws, err := readRecords(r)
	if err != nil {
		s.restFailure(w, r, err)
		return
	}

	now := s.now()
	userWrite := t == predictionsTable && p.Role == auth.RoleUser
	recs := make([]row, 0, len(raws))
	for _, raw := range raws {
		rec, err := decodeRecord(t, raw, writable)
		if err != nil {
			s.restFailure(w, r, err)
			return
		}
		if _, ok := rec["created_at"]; !ok {
			rec["created_at"] = timestamp(now)
		}
		if _, ok := rec["updated_at"]; !ok {
			rec["updated_at"] = timestamp(now)
		}
		if userWrite && rec["user_id"] != p.UserID {
			s.restFailure(w, r, rowSecurityViolation(t))
			return
		}
		recs = append(recs, rec)
	}

	var check func(querier, row) error
	if userWrite {
		check = func(q querier, rec row) error {
			matchID, _ := rec["match_id"].(int64)
			open, err := matchOpen(r.Context(), q, matchID, now)
			if err != nil {
				return err
			}
			if !open {
				return predictionsClosed(matchID)
			}
			return nil
		}
	}

	ids, err := s.db.insertAll(r.Context(), t, recs, check)
	if err != nil {
		s.restFailure(w, r, err)
		return
	}

	rows, err := s.db.rowsByIDs(r.Context(), t, ids)
	if err != nil {
		s.restFailure(w, r, err)
		return
	}
	respondWritten(w, r, http.StatusCreated, rows)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTable(w, r)
	if !ok {
		return
	}
	p := auth.PrincipalFromContext(r.Context())

	var writable map[string]bool
	switch {
	case t.view:
		s.restFailure(w, r, &restError{status: http.StatusMethodNotAllowed, code: "PGRST105", message: fmt.Sprintf("cannot update view %s", t.name)})
		return
	case p.Role == auth.RoleService:
		writable = serviceColumns(t)
	case t == predictionsTable && p.Role == auth.RoleUser:
		writable = userUpdateColumns
	default:
		s.restFailure(w, r, permissionDenied(t))
		return
	}

	filters, err := parseFilters(t, r.URL.Query())
	if err != nil {
		s.restFailure(w, r, err)
		return
	}
	if len(filters) == 0 {
		s.restFailure(w, r, badRequest("21000", "UPDATE requires a WHERE clause"))
		return
	}
	if t == predictionsTable && p.Role == auth.RoleUser {
		filters = append(filters, filter{column: "user_id", op: "eq", value: p.UserID})
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.restFailure(w, r, badRequest("PGRST102", "Empty or invalid json"))
		return
	}
	set, err := decodeRecord(t, body, writable)
	if err != nil {
		s.restFailure(w, r, err)
		return
	}
	now := s.now()
	if _, ok := set["updated_at"]; !ok {
		set["updated_at"] = timestamp(now)
	}

	targets, err := s.db.selectRows(r.Context(), t, &selectQuery{filters: filters})
	if err != nil {
		s.restFailure(w, r, err)
		return
	}

	if t == predictionsTable && p.Role == auth.RoleUser {
		for _, target := range targets {
			matchID, _ := target["match_id"].(int64)
			open, err := s.db.matchOpen(r.Context(), matchID, now)
			if err != nil {
				s.restFailure(w, r, err)
				return
			}
			if !open {
				s.restFailure(w, r, predictionsClosed(matchID))
				return
			}
		}
	}

	ids := rowIDs(targets)
	if err := s.db.updateByIDs(r.Context(), t, ids, set); err != nil {
		s.restFailure(w, r, err)
		return
	}

	if t == matchesTable {
		for _, id := range ids {
			n, err := s.db.ScoreMatch(r.Context(), id, now)
			if err != nil {
				s.restFailure(w, r, err)
				return
			}
			if n > 0 {
				s.logger.Info("match scored", slog.Int64("match_id", id), slog.Int("predictions", n))
			}
		}
	}

	rows, err := s.db.rowsByIDs(r.Context(), t, ids)
	if err != nil {
		s.restFailure(w, r, err)
		return
	}
	respondWritten(w, r, http.StatusOK, rows)
}
