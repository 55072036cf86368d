package http

import (
	"net/http"

	"cardledger/internal/core"
	"cardledger/internal/ledger"
	"cardledger/internal/log"
)

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	month, err := monthQuery(r)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	paid, err := boolQuery(r, "isPaid")
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}

	entries, err := s.ledger.ListEntries(r.Context(), ownerID(r), ledger.EntryQuery{
		Month:    month,
		Category: sanitizeInput(r.URL.Query().Get("category")),
		Paid:     paid,
	})
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	writeEntries(w, http.StatusOK, entries)
}

func (s *Server) handleListCardEntries(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "cardId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	month, err := monthQuery(r)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	active, err := boolQuery(r, "active")
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}

	q := ledger.CardEntryQuery{Month: month, ActiveOnly: active != nil && *active}
	if q.ActiveOnly && q.Month == nil {
		current := core.MonthOf(s.now())
		q.Month = &current
	}

	entries, err := s.ledger.ListCardEntries(r.Context(), ownerID(r), cardID, q)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	writeEntries(w, http.StatusOK, entries)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	entry, err := s.ledger.GetEntry(r.Context(), ownerID(r), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var in ledger.NewEntry
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeBodyError(w, r, log.OpCreate, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Category = sanitizeInput(in.Category)

	entry, err := s.ledger.CreateEntry(r.Context(), in, ownerID(r))
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.structured.LogLedgerMutation(r.Context(), log.OpCreate, entry.OwnerID, entry.CardID, entry.ID)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleCreateInstallments(w http.ResponseWriter, r *http.Request) {
	var in ledger.NewInstallmentSeries
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeBodyError(w, r, log.OpCreate, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Category = sanitizeInput(in.Category)

	owner := ownerID(r)
	entries, err := s.ledger.CreateInstallments(r.Context(), in, owner)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.logSeries(r, owner, in.CardID, entries)
	writeEntries(w, http.StatusCreated, entries)
}

func (s *Server) handleCreateRemainingInstallments(w http.ResponseWriter, r *http.Request) {
	var in ledger.ExistingInstallmentSeries
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeBodyError(w, r, log.OpCreate, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Category = sanitizeInput(in.Category)

	owner := ownerID(r)
	entries, err := s.ledger.CreateRemainingInstallments(r.Context(), in, owner)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.logSeries(r, owner, in.CardID, entries)
	writeEntries(w, http.StatusCreated, entries)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var in ledger.EntryUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeBodyError(w, r, log.OpUpdate, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Category = sanitizeInput(in.Category)

	entry, err := s.ledger.UpdateEntry(r.Context(), ownerID(r), id, in)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.structured.LogLedgerMutation(r.Context(), log.OpUpdate, entry.OwnerID, entry.CardID, entry.ID)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	owner := ownerID(r)
	if err := s.ledger.DeleteEntry(r.Context(), owner, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.structured.LogLedgerMutation(r.Context(), log.OpDelete, owner, 0, id)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	entry, err := s.ledger.TogglePaid(r.Context(), ownerID(r), id)
	if err != nil {
		s.writeError(w, r, log.OpTogglePaid, err)
		return
	}
	s.structured.LogLedgerMutation(r.Context(), log.OpTogglePaid, entry.OwnerID, entry.CardID, entry.ID)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) logSeries(r *http.Request, owner, cardID int64, entries []core.InstallmentEntry) {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	s.structured.LogLedgerMutation(r.Context(), log.OpCreate, owner, cardID, ids...)
}

// writeEntries renders an empty result as [] rather than null.
func writeEntries(w http.ResponseWriter, status int, entries []core.InstallmentEntry) {
	if entries == nil {
		entries = []core.InstallmentEntry{}
	}
	writeJSON(w, status, entries)
}
