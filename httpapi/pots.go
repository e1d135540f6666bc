package httpapi

import (
	"net/http"

	"github.com/billbatista/acasinha-pots/app"
	"github.com/billbatista/acasinha-pots/ledger"
	"github.com/billbatista/acasinha-pots/middleware"
	"github.com/billbatista/acasinha-pots/pot"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createPotRequest struct {
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Currency     string          `json:"currency"`
}

type updatePotRequest struct {
	Name         *string          `json:"name"`
	TargetAmount *decimal.Decimal `json:"target_amount"`
}

type joinRequest struct {
	Code string `json:"code"`
}

type joinResponse struct {
	Membership pot.Membership `json:"membership"`
	Joined     bool           `json:"joined"`
}

type statusRequest struct {
	Status pot.Status `json:"status"`
}

type roleRequest struct {
	Role pot.Role `json:"role"`
}

type depositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

// expenseRequest carries a positive cost; the stored amount is negative.
type expenseRequest struct {
	Amount      decimal.Decimal     `json:"amount"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Splits      ledger.SplitDetails `json:"split_details"`
	SplitAmong  []uuid.UUID         `json:"split_among"`
}

// editTransactionRequest carries the signed amount, as stored.
type editTransactionRequest struct {
	Amount      decimal.Decimal     `json:"amount"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Splits      ledger.SplitDetails `json:"split_details"`
}

func (s *Server) listPots(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	pots, err := s.app.ListPots(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if pots == nil {
		pots = []pot.Pot{}
	}
	writeJSON(w, http.StatusOK, pots)
}

func (s *Server) createPot(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req createPotRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.app.CreatePot(r.Context(), userID, req.Name, req.TargetAmount, req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) joinPot(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req joinRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, joined, err := s.app.JoinByCode(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if joined {
		status = http.StatusCreated
	}
	writeJSON(w, status, joinResponse{Membership: m, Joined: joined})
}

func (s *Server) getPot(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	summary, err := s.app.Summary(r.Context(), potID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) updatePot(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	var req updatePotRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.app.UpdatePot(r.Context(), potID, userID, pot.UpdateInput{Name: req.Name, TargetAmount: req.TargetAmount})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePot(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	if err := s.app.DeletePot(r.Context(), potID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.app.SetStatus(r.Context(), potID, userID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	members, err := s.app.Members(r.Context(), potID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) leavePot(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	if err := s.app.LeavePot(r.Context(), potID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}
	memberID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req roleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := s.app.SetMemberRole(r.Context(), potID, userID, memberID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}
	memberID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.app.RemoveMember(r.Context(), potID, userID, memberID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	txs, err := s.app.Transactions(r.Context(), potID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	t, err := s.app.Deposit(r.Context(), app.DepositInput{
		PotID:       potID,
		ActorID:     userID,
		Amount:      req.Amount,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) spend(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	t, err := s.app.Spend(r.Context(), app.SpendInput{
		PotID:       potID,
		ActorID:     userID,
		Cost:        req.Amount,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Splits:      req.Splits,
		SplitAmong:  req.SplitAmong,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) editTransaction(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}
	txID, err := pathID(r, "txID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req editTransactionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	t, err := s.app.EditTransaction(r.Context(), potID, txID, userID, ledger.Patch{
		Amount:      req.Amount,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Splits:      req.Splits,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}
	txID, err := pathID(r, "txID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.app.DeleteTransaction(r.Context(), potID, txID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) balances(w http.ResponseWriter, r *http.Request) {
	userID, potID, ok := potRequest(w, r)
	if !ok {
		return
	}

	balances, err := s.app.Balances(r.Context(), potID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// potRequest resolves the caller and the pot id from the path, writing the
// error response itself when either is missing.
func potRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, _ := middleware.GetUserID(r.Context())
	potID, err := pathID(r, "potID")
	if err != nil {
		writeError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, potID, true
}
