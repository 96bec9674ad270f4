package http

import (
	"net/http"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type sliceDTO struct {
	Type      string     `json:"type"`
	Value     core.Money `json:"value"`
	Formatted string     `json:"formatted"`
}

// monthDTO numbers months 0-11, matching the month filter.
type monthDTO struct {
	Month   int        `json:"month"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
}

type dashboardResponse struct {
	Year      int        `json:"year"`
	Month     *int       `json:"month"` // null for the whole year
	Summary   summaryDTO `json:"summary"`
	Breakdown []sliceDTO `json:"breakdown"`
	Monthly   []monthDTO `json:"monthly"`
	Years     []int      `json:"years"`
}

// handleDashboard returns the summary, breakdown and monthly series for one period.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	month, year, err := parseDashboardParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	d, err := s.transactions.Dashboard(ctx, sess, month, year)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}

	resp := dashboardResponse{
		Year:      d.Year,
		Summary:   toSummaryDTO(d.Summary),
		Breakdown: make([]sliceDTO, 0, len(d.Breakdown)),
		Monthly:   make([]monthDTO, 0, len(d.Monthly)),
		Years:     d.Years,
	}
	if d.Month != 0 {
		m := int(d.Month) - 1
		resp.Month = &m
	}
	for _, sl := range d.Breakdown {
		resp.Breakdown = append(resp.Breakdown, sliceDTO{
			Type:      sl.Type.String(),
			Value:     sl.Value,
			Formatted: sl.Value.Format(),
		})
	}
	for _, m := range d.Monthly {
		resp.Monthly = append(resp.Monthly, monthDTO{
			Month:   int(m.Month) - 1,
			Income:  m.Income,
			Expense: m.Expense,
			Balance: m.Balance,
		})
	}
	NewResponse().JSON(resp).Write(w)
}

// handleYears lists the years with transactions, most recent first.
func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()
	years, err := s.transactions.Years(ctx, sess)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(map[string][]int{"years": years}).Write(w)
}
