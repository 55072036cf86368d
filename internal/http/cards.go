package http

import (
	"net/http"

	"cardledger/internal/core"
	"cardledger/internal/ledger"
	"cardledger/internal/log"
)

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	month, err := monthQuery(r)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}

	cards, err := s.ledger.ListCardSummaries(r.Context(), ownerID(r), s.reference(month))
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	if cards == nil {
		cards = []core.CardSummary{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	month, err := monthQuery(r)
	if err != nil {
		s.writeError(w, r, log.OpSummarize, err)
		return
	}

	summary, err := s.ledger.CardSummary(r.Context(), ownerID(r), id, s.reference(month))
	if err != nil {
		s.writeError(w, r, log.OpSummarize, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var in ledger.CardInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeBodyError(w, r, log.OpCreate, err)
		return
	}
	in.Name = sanitizeInput(in.Name)

	card, err := s.ledger.CreateCard(r.Context(), ownerID(r), in)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.structured.LogLedgerMutation(r.Context(), log.OpCreate, card.OwnerID, card.ID)
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var in ledger.CardInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeBodyError(w, r, log.OpUpdate, err)
		return
	}
	in.Name = sanitizeInput(in.Name)

	card, err := s.ledger.UpdateCard(r.Context(), ownerID(r), id, in)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.structured.LogLedgerMutation(r.Context(), log.OpUpdate, card.OwnerID, card.ID)
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	owner := ownerID(r)
	if err := s.ledger.DeleteCard(r.Context(), owner, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.structured.LogLedgerMutation(r.Context(), log.OpDelete, owner, id)
	writeJSON(w, http.StatusNoContent, nil)
}
