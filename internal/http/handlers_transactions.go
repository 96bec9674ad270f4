package http

import (
	"net/http"
	"strings"
	"sync/atomic"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// transactionDTO is the wire form of a transaction. Amount is a number with two
// decimals; AmountFormatted is the display string.
type transactionDTO struct {
	ID              string     `json:"id"`
	Date            core.Date  `json:"date"`
	Description     string     `json:"description"`
	Amount          core.Money `json:"amount"`
	AmountFormatted string     `json:"amount_formatted"`
	Type            string     `json:"type"`
}

type summaryDTO struct {
	TotalIncome  core.Money `json:"total_income"`
	TotalExpense core.Money `json:"total_expense"`
	Balance      core.Money `json:"balance"`
	Count        int        `json:"count"`
	Formatted    struct {
		TotalIncome  string `json:"total_income"`
		TotalExpense string `json:"total_expense"`
		Balance      string `json:"balance"`
	} `json:"formatted"`
}

type listResponse struct {
	Transactions []transactionDTO `json:"transactions"`
	Summary      summaryDTO       `json:"summary"`
}

func toTransactionDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:              t.ID,
		Date:            t.Date,
		Description:     t.Description,
		Amount:          t.Amount,
		AmountFormatted: t.Amount.Format(),
		Type:            t.Type.String(),
	}
}

func toTransactionDTOs(txns []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionDTO(t))
	}
	return out
}

func toSummaryDTO(s core.Summary) summaryDTO {
	dto := summaryDTO{
		TotalIncome:  s.TotalIncome,
		TotalExpense: s.TotalExpense,
		Balance:      s.Balance,
		Count:        s.Count,
	}
	dto.Formatted.TotalIncome = s.TotalIncome.Format()
	dto.Formatted.TotalExpense = s.TotalExpense.Format()
	dto.Formatted.Balance = s.Balance.Format()
	return dto
}

// handleTransactions lists the filtered transactions of the session owner or creates one.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// handleTransaction reads, patches or deletes one transaction by id.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.getTransaction(w, r, id)
	case http.MethodPatch, http.MethodPut:
		s.updateTransaction(w, r, id)
	case http.MethodDelete:
		s.deleteTransaction(w, r, id)
	default:
		MethodNotAllowedError("GET, PATCH, PUT, DELETE").Write(w)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	criteria, err := core.ParseCriteria(r.URL.Query())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	view, err := s.transactions.View(ctx, sess, criteria)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}

	NewResponse().JSON(listResponse{
		Transactions: toTransactionDTOs(view.Transactions),
		Summary:      toSummaryDTO(view.Summary),
	}).Write(w)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var in transactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	n, err := in.NewTransaction()
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	t, err := s.transactions.Create(ctx, sess, n)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.created, 1)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithTransaction(t.ID, t.Owner, t.Type.String(), t.Date.String(), t.Amount.Cents).
			Args()...)

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+t.ID).
		JSON(toTransactionDTO(t)).
		Write(w)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request, id string) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()
	t, err := s.transactions.Get(ctx, sess, id)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(toTransactionDTO(t)).Write(w)
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var in patchInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	patch, err := in.Patch()
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	t, err := s.transactions.Update(ctx, sess, id, patch)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.updated, 1)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction updated",
		applog.NewFields().
			WithOperation(applog.OpUpdate).
			WithTransaction(t.ID, t.Owner, t.Type.String(), t.Date.String(), t.Amount.Cents).
			Args()...)

	NewResponse().JSON(toTransactionDTO(t)).Write(w)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()
	if err := s.transactions.Delete(ctx, sess, id); err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.deleted, 1)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldTxID, id)

	NewResponse().Status(http.StatusNoContent).Write(w)
}
