package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/ledger/memory"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()

	var entries []string
	for email, password := range map[string]string{
		"ana@example.com": "secret",
		"bia@example.com": "hunter2",
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		entries = append(entries, email+":"+string(hash))
	}
	verifier, err := auth.NewStaticVerifier(entries)
	if err != nil {
		t.Fatalf("NewStaticVerifier: %v", err)
	}

	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
	}
	svc := services.NewTransactionService(memory.New(), nil)
	s := NewServer(":0", svc, auth.NewSessionStore(verifier, time.Hour), opts)
	t.Cleanup(func() { s.rateLimiter.Stop() })
	return s
}

func do(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, rd)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler.ServeHTTP(w, r)
	return w
}

func login(t *testing.T, s *Server, email, password string) string {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/login", `{"email":"`+email+`","password":"`+password+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, w.Code, w.Body.String())
	}
	var resp loginResponse
	decode(t, w, &resp)
	if resp.Token == "" {
		t.Fatal("login returned an empty token")
	}
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func create(t *testing.T, s *Server, token, date, desc, amount, typ string) transactionDTO {
	t.Helper()
	body := `{"date":"` + date + `","description":"` + desc + `","amount":"` + amount + `","type":"` + typ + `"}`
	w := do(t, s, http.MethodPost, "/api/transactions", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var dto transactionDTO
	decode(t, w, &dto)
	return dto
}

func TestHealthReadyAndMetrics(t *testing.T) {
	s := newTestServer(t, Options{})

	if w := do(t, s, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", w.Code)
	}

	w := do(t, s, http.MethodGet, "/readyz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/readyz status = %d body %s", w.Code, w.Body.String())
	}
	var ready map[string]any
	decode(t, w, &ready)
	if ready["status"] != "ready" {
		t.Errorf("readiness status = %v", ready["status"])
	}

	w = do(t, s, http.MethodGet, "/metrics", "", "")
	for _, metric := range []string{"http_requests_total", "transactions_created_total", "cache_hits_total", "rate_limit_hits_total"} {
		if !strings.Contains(w.Body.String(), metric) {
			t.Errorf("/metrics missing %s", metric)
		}
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/healthz", "", "")
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Request-ID"); got == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var body errorBody
	decode(t, w, &body)
	if body.Error == "" {
		t.Error("expected an error message")
	}
}

func TestLoginLogout(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodPost, "/api/login", `{"email":"ana@example.com","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", w.Code)
	}

	w = do(t, s, http.MethodPost, "/api/login", `{"email":"ANA@example.com","password":"secret"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body %s", w.Code, w.Body.String())
	}
	var resp loginResponse
	decode(t, w, &resp)
	if resp.Email != "ana@example.com" {
		t.Errorf("email = %q, want normalized", resp.Email)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != auth.CookieName || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %+v", cookies)
	}

	// the cookie alone authenticates
	r := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: cookies[0].Value})
	cw := httptest.NewRecorder()
	s.Handler.ServeHTTP(cw, r)
	if cw.Code != http.StatusOK {
		t.Errorf("cookie auth status = %d", cw.Code)
	}

	if w := do(t, s, http.MethodPost, "/api/logout", "", resp.Token); w.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/transactions", "", resp.Token); w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token status = %d, want 401", w.Code)
	}
}

func TestRequiresSession(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/transactions"},
		{http.MethodPost, "/api/transactions"},
		{http.MethodGet, "/api/transactions/1"},
		{http.MethodDelete, "/api/transactions/1"},
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/years"},
	} {
		w := do(t, s, tc.method, tc.path, "", "not-a-token")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", tc.method, tc.path, w.Code)
		}
	}
}

func TestTransactionCRUD(t *testing.T) {
	s := newTestServer(t, Options{})
	token := login(t, s, "ana@example.com", "secret")

	created := create(t, s, token, "2024-03-05", "Groceries", "45,90", "expense")
	if created.ID == "" || created.Amount.Cents != 4590 || created.Date.String() != "2024-03-05" {
		t.Fatalf("unexpected created transaction %+v", created)
	}
	if created.AmountFormatted != "R$ 45,90" {
		t.Errorf("formatted = %q", created.AmountFormatted)
	}

	w := do(t, s, http.MethodGet, "/api/transactions/"+created.ID, "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = do(t, s, http.MethodPatch, "/api/transactions/"+created.ID, `{"amount":50,"description":"Market"}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d body %s", w.Code, w.Body.String())
	}
	var updated transactionDTO
	decode(t, w, &updated)
	if updated.Amount.Cents != 5000 || updated.Description != "Market" || updated.Type != "expense" {
		t.Errorf("unexpected update result %+v", updated)
	}

	if w := do(t, s, http.MethodDelete, "/api/transactions/"+created.ID, "", token); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/transactions/"+created.ID, "", token); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
	if w := do(t, s, http.MethodDelete, "/api/transactions/"+created.ID, "", token); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestCreateSetsLocation(t *testing.T) {
	s := newTestServer(t, Options{})
	token := login(t, s, "ana@example.com", "secret")

	w := do(t, s, http.MethodPost, "/api/transactions",
		`{"date":"2024-01-02","description":"Salary","amount":3000,"type":"income"}`, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	var dto transactionDTO
	decode(t, w, &dto)
	if got := w.Header().Get("Location"); got != "/api/transactions/"+dto.ID {
		t.Errorf("Location = %q", got)
	}
}

func TestCreateLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Output: &buf})
	prev := slog.Default()
	applog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(prev) })

	s := newTestServer(t, Options{Logger: logger})
	token := login(t, s, "ana@example.com", "secret")
	create(t, s, token, "2024-03-05", "Rent", "1200", "expense")

	if n := strings.Count(buf.String(), "Transaction created"); n != 1 {
		t.Fatalf("create logged %d times, want 1", n)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	s := newTestServer(t, Options{})
	ana := login(t, s, "ana@example.com", "secret")
	bia := login(t, s, "bia@example.com", "hunter2")

	tx := create(t, s, ana, "2024-03-05", "Rent", "1200", "expense")

	if w := do(t, s, http.MethodGet, "/api/transactions/"+tx.ID, "", bia); w.Code != http.StatusNotFound {
		t.Errorf("foreign get status = %d, want 404", w.Code)
	}
	if w := do(t, s, http.MethodPatch, "/api/transactions/"+tx.ID, `{"amount":"1"}`, bia); w.Code != http.StatusNotFound {
		t.Errorf("foreign patch status = %d, want 404", w.Code)
	}
	if w := do(t, s, http.MethodDelete, "/api/transactions/"+tx.ID, "", bia); w.Code != http.StatusNotFound {
		t.Errorf("foreign delete status = %d, want 404", w.Code)
	}

	w := do(t, s, http.MethodGet, "/api/transactions", "", bia)
	var list listResponse
	decode(t, w, &list)
	if len(list.Transactions) != 0 || list.Summary.Count != 0 {
		t.Errorf("bia sees %d transactions", len(list.Transactions))
	}
}

// balances can be negative, which core.Money refuses to decode
type signedSummary struct {
	Balance json.Number `json:"balance"`
	Count   int         `json:"count"`
}

type listResult struct {
	Transactions []transactionDTO `json:"transactions"`
	Summary      signedSummary    `json:"summary"`
}

func TestListFiltersAndSummary(t *testing.T) {
	s := newTestServer(t, Options{})
	token := login(t, s, "ana@example.com", "secret")

	create(t, s, token, "2024-03-01", "Salary", "5000", "income")
	create(t, s, token, "2024-03-10", "Rent", "1500", "expense")
	create(t, s, token, "2024-04-02", "Coffee beans", "80,50", "expense")
	create(t, s, token, "2023-03-15", "Bonus", "1000", "income")

	tests := []struct {
		name      string
		query     string
		wantDescs []string
		balance   string
	}{
		{"all", "", []string{"Coffee beans", "Rent", "Salary", "Bonus"}, "4419.50"},
		{"march 2024", "?month=2&year=2024", []string{"Rent", "Salary"}, "3500.00"},
		{"income", "?type=income", []string{"Salary", "Bonus"}, "6000.00"},
		{"text", "?q=COFFEE", []string{"Coffee beans"}, "-80.50"},
		{"march every year", "?month=2&year=all", []string{"Rent", "Salary", "Bonus"}, "4500.00"},
		{"no match", "?year=1999", []string{}, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/transactions"+tt.query, "", token)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d body %s", w.Code, w.Body.String())
			}
			var list listResult
			decode(t, w, &list)
			if len(list.Transactions) != len(tt.wantDescs) {
				t.Fatalf("got %d transactions, want %d", len(list.Transactions), len(tt.wantDescs))
			}
			for i, want := range tt.wantDescs {
				if list.Transactions[i].Description != want {
					t.Errorf("transactions[%d] = %q, want %q", i, list.Transactions[i].Description, want)
				}
			}
			if string(list.Summary.Balance) != tt.balance {
				t.Errorf("balance = %s, want %s", list.Summary.Balance, tt.balance)
			}
			if list.Summary.Count != len(tt.wantDescs) {
				t.Errorf("count = %d", list.Summary.Count)
			}
		})
	}
}

type dashboardResult struct {
	Year      int           `json:"year"`
	Month     *int          `json:"month"`
	Summary   signedSummary `json:"summary"`
	Breakdown []sliceDTO    `json:"breakdown"`
	Monthly   []struct {
		Month   int         `json:"month"`
		Expense json.Number `json:"expense"`
		Balance json.Number `json:"balance"`
	} `json:"monthly"`
	Years []int `json:"years"`
}

func TestDashboardAndYears(t *testing.T) {
	s := newTestServer(t, Options{})
	token := login(t, s, "ana@example.com", "secret")

	create(t, s, token, "2024-01-05", "Salary", "3000", "income")
	create(t, s, token, "2024-01-20", "Rent", "1000", "expense")
	create(t, s, token, "2024-02-03", "Market", "200", "expense")
	create(t, s, token, "2022-06-01", "Old", "10", "expense")

	w := do(t, s, http.MethodGet, "/api/dashboard?month=0&year=2024", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var d dashboardResult
	decode(t, w, &d)
	if d.Year != 2024 || d.Month == nil || *d.Month != 0 {
		t.Errorf("period = %d/%v", d.Year, d.Month)
	}
	if d.Summary.Balance != "2000.00" {
		t.Errorf("january balance = %s", d.Summary.Balance)
	}
	if len(d.Breakdown) != 2 || d.Breakdown[0].Type != "income" || d.Breakdown[1].Value.Cents != 100000 {
		t.Errorf("breakdown = %+v", d.Breakdown)
	}
	if len(d.Monthly) != 12 || d.Monthly[0].Month != 0 || d.Monthly[11].Month != 11 {
		t.Fatalf("monthly = %+v", d.Monthly)
	}
	if d.Monthly[1].Expense != "200.00" || d.Monthly[1].Balance != "-200.00" {
		t.Errorf("february = %+v", d.Monthly[1])
	}
	if len(d.Years) != 2 || d.Years[0] != 2024 || d.Years[1] != 2022 {
		t.Errorf("years = %v", d.Years)
	}

	w = do(t, s, http.MethodGet, "/api/dashboard?month=all&year=2024", "", token)
	d = dashboardResult{}
	decode(t, w, &d)
	if d.Month != nil {
		t.Errorf("month = %v, want null", *d.Month)
	}
	if d.Summary.Balance != "1800.00" {
		t.Errorf("year balance = %s", d.Summary.Balance)
	}

	w = do(t, s, http.MethodGet, "/api/years", "", token)
	var years map[string][]int
	decode(t, w, &years)
	if got := years["years"]; len(got) != 2 || got[0] != 2024 {
		t.Errorf("years = %v", got)
	}
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t, Options{})
	token := login(t, s, "ana@example.com", "secret")
	tx := create(t, s, token, "2024-03-05", "Rent", "1200", "expense")

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"malformed body", http.MethodPost, "/api/transactions", `{"date":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/transactions", `{"date":"2024-01-01","colour":"red"}`, http.StatusBadRequest},
		{"bad type", http.MethodPost, "/api/transactions", `{"date":"2024-01-01","description":"x","amount":1,"type":"gift"}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/transactions", `{"date":"01/02/2024","description":"x","amount":1,"type":"income"}`, http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPost, "/api/transactions", `{"date":"2024-01-01","description":"x","amount":-5,"type":"income"}`, http.StatusUnprocessableEntity},
		{"empty description", http.MethodPost, "/api/transactions", `{"date":"2024-01-01","description":"  ","amount":1,"type":"income"}`, http.StatusUnprocessableEntity},
		{"empty patch", http.MethodPatch, "/api/transactions/" + tx.ID, `{}`, http.StatusUnprocessableEntity},
		{"bad month filter", http.MethodGet, "/api/transactions?month=12", "", http.StatusBadRequest},
		{"bad type filter", http.MethodGet, "/api/transactions?type=transfer", "", http.StatusBadRequest},
		{"bad dashboard year", http.MethodGet, "/api/dashboard?year=abc", "", http.StatusBadRequest},
		{"missing transaction", http.MethodGet, "/api/transactions/does-not-exist", "", http.StatusNotFound},
		{"list method", http.MethodPut, "/api/transactions", "", http.StatusMethodNotAllowed},
		{"item method", http.MethodPost, "/api/transactions/" + tx.ID, "", http.StatusMethodNotAllowed},
		{"login method", http.MethodGet, "/api/login", "", http.StatusMethodNotAllowed},
		{"dashboard method", http.MethodPost, "/api/dashboard", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.method, tt.path, tt.body, token)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			var body errorBody
			decode(t, w, &body)
			if body.Error == "" {
				t.Error("expected a JSON error message")
			}
		})
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	s := newTestServer(t, Options{RateLimitPerMinute: 2})

	body := `{"email":"ana@example.com","password":"wrong"}`
	for i := 0; i < 2; i++ {
		if w := do(t, s, http.MethodPost, "/api/login", body, ""); w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, w.Code)
		}
	}
	w := do(t, s, http.MethodPost, "/api/login", body, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}

	// reads are not limited
	if w := do(t, s, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
}

func TestValidationMessage(t *testing.T) {
	_, err := core.ParseDate("nope")
	if got := validationMessage(err); !strings.Contains(got, "nope") {
		t.Errorf("date message = %q", got)
	}
	if got := validationMessage(core.ErrInvalidType); got != core.ErrInvalidType.Error() {
		t.Errorf("type message = %q", got)
	}
}
