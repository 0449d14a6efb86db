package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"budget/internal/allocation"
	"budget/internal/core"
	"budget/internal/session"
	"budget/internal/views"
)

const maxBodyBytes = 10 << 20 // CSV uploads included

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// entry resolves the caller's session, replying 500 on load failure.
func (s *Server) entry(w http.ResponseWriter, r *http.Request) (*sessionEntry, bool) {
	entry, err := s.sessionFor(r.Context(), userID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Session load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return entry, true
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// --- overview ---

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	var f views.Filter
	if len(body) > 0 {
		if err := json.Unmarshal(body, &f); err != nil {
			writeError(w, http.StatusBadRequest, "invalid filter")
			return
		}
	}

	key := fmt.Sprintf("%s:%d:%s", entry.sess.UserID(), entry.rev.Load(), body)
	if ov, found := s.overviewCache.Get(key); found {
		writeJSON(w, http.StatusOK, ov)
		return
	}

	ov := entry.sess.Overview(f)
	s.overviewCache.Set(key, ov)
	writeJSON(w, http.StatusOK, ov)
}

// --- transactions ---

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entry.sess.Transactions())
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	tx := entry.sess.AddTransaction(r.Context())
	s.bump(entry)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var tx core.Transaction
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction")
		return
	}
	tx.ID = id

	if err := entry.sess.UpdateTransaction(r.Context(), tx); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.bump(entry)
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := entry.sess.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.bump(entry)
	w.WriteHeader(http.StatusNoContent)
}

// --- CSV ---

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	n := entry.sess.ImportCSV(r.Context(), string(body))
	s.bump(entry)
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	_, _ = w.Write([]byte(entry.sess.ExportCSV()))
}

// --- rules ---

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entry.sess.Rules())
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	var req struct {
		Pattern  string `json:"pattern"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule")
		return
	}
	entry.sess.AddRule(r.Context(), req.Pattern, req.Category)
	s.bump(entry)
	writeJSON(w, http.StatusOK, entry.sess.Rules())
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	entry.sess.DeleteRule(r.Context(), r.PathValue("pattern"))
	s.bump(entry)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReapply(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	entry.sess.Reapply(r.Context())
	s.bump(entry)
	writeJSON(w, http.StatusOK, entry.sess.Transactions())
}

// --- allocations ---

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"allocations": entry.sess.Allocations(id),
		"total":       entry.sess.TotalAllocated(id),
	})
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req struct {
		Purpose string     `json:"purpose"`
		Amount  core.Money `json:"amount"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation")
		return
	}

	err = entry.sess.Allocate(r.Context(), id, req.Purpose, req.Amount)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoSuchTransaction):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, session.ErrNotSavings),
		errors.Is(err, allocation.ErrEmptyPurpose),
		errors.Is(err, allocation.ErrInvalidAmount),
		errors.Is(err, allocation.ErrCapacityExceeded):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.bump(entry)
	writeJSON(w, http.StatusOK, map[string]any{
		"allocations": entry.sess.Allocations(id),
		"total":       entry.sess.TotalAllocated(id),
	})
}

func (s *Server) handleDeallocate(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation index")
		return
	}

	if err := entry.sess.Deallocate(r.Context(), id, index); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.bump(entry)
	w.WriteHeader(http.StatusNoContent)
}

// --- accounts ---

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": entry.sess.Accounts(),
		"active":   entry.sess.ActiveAccount().ID,
	})
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid account")
		return
	}

	acc, err := entry.sess.AddAccount(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if acc.ID == "" {
		writeError(w, http.StatusUnprocessableEntity, "account name cannot be empty")
		return
	}
	s.bump(entry)
	writeJSON(w, http.StatusCreated, acc)
}

func (s *Server) handleRenameAccount(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid account")
		return
	}

	if err := entry.sess.RenameAccount(r.Context(), r.PathValue("id"), req.Name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.bump(entry)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSwitchAccount(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	if err := entry.sess.SwitchAccount(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.bump(entry)
	writeJSON(w, http.StatusOK, map[string]string{"active": entry.sess.ActiveAccount().ID})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	err := entry.sess.DeleteAccount(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
	case errors.Is(err, session.ErrProtectedPartition), errors.Is(err, session.ErrLastPartition):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, session.ErrNoSuchAccount):
		writeError(w, http.StatusNotFound, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.bump(entry)
	w.WriteHeader(http.StatusNoContent)
}

// --- logout ---

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	entry.sess.Logout()
	s.dropSession(entry.sess.UserID())
	w.WriteHeader(http.StatusNoContent)
}
