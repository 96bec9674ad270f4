package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email":"ana@example.com","password":"pw"}`, false},
		{"unknown field", `{"email":"a","extra":1}`, true},
		{"trailing data", `{"email":"a"} {"email":"b"}`, true},
		{"not json", `email=a`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			var in loginInput
			err := decodeJSON(w, r, &in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errMalformedBody) {
				t.Errorf("error %v should wrap errMalformedBody", err)
			}
		})
	}
}

func TestTransactionInputAmountForms(t *testing.T) {
	for _, body := range []string{
		`{"date":"2024-03-05","description":"Lunch","amount":12.5,"type":"expense"}`,
		`{"date":"2024-03-05","description":"Lunch","amount":"12,50","type":"expense"}`,
	} {
		r := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
		var in transactionInput
		if err := decodeJSON(httptest.NewRecorder(), r, &in); err != nil {
			t.Fatalf("decodeJSON(%s): %v", body, err)
		}
		n, err := in.NewTransaction()
		if err != nil {
			t.Fatalf("NewTransaction(%s): %v", body, err)
		}
		if n.Amount.Cents != 1250 {
			t.Errorf("amount = %d cents, want 1250", n.Amount.Cents)
		}
		if n.Type != core.Expense {
			t.Errorf("type = %q, want expense", n.Type)
		}
		if got := n.Date.String(); got != "2024-03-05" {
			t.Errorf("date = %s, want 2024-03-05", got)
		}
	}
}

func TestTransactionInputValidation(t *testing.T) {
	tests := []struct {
		name string
		in   transactionInput
		want error
	}{
		{"bad date", transactionInput{Date: "2024-02-30", Amount: "1", Type: "income"}, core.ErrInvalidDate},
		{"bad amount", transactionInput{Date: "2024-02-03", Amount: "abc", Type: "income"}, core.ErrInvalidAmount},
		{"negative amount", transactionInput{Date: "2024-02-03", Amount: "-3", Type: "income"}, core.ErrInvalidAmount},
		{"bad type", transactionInput{Date: "2024-02-03", Amount: "1", Type: "gift"}, core.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.NewTransaction()
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewTransaction() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPatchInputOnlyParsesPresentFields(t *testing.T) {
	desc := "  Rent\x00 "
	p, err := patchInput{Description: &desc}.Patch()
	if err != nil {
		t.Fatalf("Patch(): %v", err)
	}
	if p.Date != nil || p.Amount != nil || p.Type != nil {
		t.Errorf("absent fields should stay nil: %+v", p)
	}
	if p.Description == nil || *p.Description != "Rent" {
		t.Errorf("description = %v, want Rent", p.Description)
	}

	empty, err := patchInput{}.Patch()
	if err != nil || !empty.IsEmpty() {
		t.Errorf("empty input should give an empty patch, got %+v, %v", empty, err)
	}

	bad := amountField("1,2,3")
	if _, err := (patchInput{Amount: &bad}).Patch(); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("Patch() error = %v, want ErrInvalidAmount", err)
	}
}

func TestParseDashboardParams(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantMonth time.Month
		wantYear  int
		wantErr   string
	}{
		{"defaults", url.Values{}, 0, 0, ""},
		{"all months", url.Values{"month": {"all"}, "year": {"2023"}}, 0, 2023, ""},
		{"january", url.Values{"month": {"0"}}, time.January, 0, ""},
		{"december", url.Values{"month": {"11"}, "year": {"2024"}}, time.December, 2024, ""},
		{"month out of range", url.Values{"month": {"12"}}, 0, 0, "month"},
		{"month not a number", url.Values{"month": {"march"}}, 0, 0, "month"},
		{"bad year", url.Values{"year": {"20x4"}}, 0, 0, "year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			month, year, err := parseDashboardParams(tt.query)
			if tt.wantErr != "" {
				var ce *core.CriteriaError
				if !errors.As(err, &ce) || ce.Param != tt.wantErr {
					t.Fatalf("error = %v, want CriteriaError for %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if month != tt.wantMonth || year != tt.wantYear {
				t.Errorf("got month %v year %d, want %v %d", month, year, tt.wantMonth, tt.wantYear)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  padded  ", "padded"},
		{"bell\x07char", "bellchar"},
		{"line\nbreak\ttab", "line\nbreak\ttab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
