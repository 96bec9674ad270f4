// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, transaction payloads and dashboard query parameters.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

const maxBodyBytes = 1 << 20

// errMalformedBody marks request bodies that are not the expected JSON.
var errMalformedBody = errors.New("malformed request body")

// decodeJSON reads a single JSON object from r into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", errMalformedBody)
	}
	return nil
}

// amountField accepts an amount as a JSON number or string; it is parsed
// later so a bad amount is a validation error, not a malformed body.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amountField(n.String())
	return nil
}

// transactionInput is the create payload.
type transactionInput struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      amountField `json:"amount"`
	Type        string      `json:"type"`
}

// NewTransaction validates the payload. The owner is set by the service.
func (in transactionInput) NewTransaction() (core.NewTransaction, error) {
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.NewTransaction{}, err
	}
	amount, err := core.ParseAmount(string(in.Amount))
	if err != nil {
		return core.NewTransaction{}, err
	}
	typ, err := core.ParseTransactionType(in.Type)
	if err != nil {
		return core.NewTransaction{}, err
	}
	return core.NewTransaction{
		Date:        date,
		Description: sanitizeInput(in.Description),
		Amount:      amount,
		Type:        typ,
	}, nil
}

// patchInput is the update payload; absent fields are left unchanged.
type patchInput struct {
	Date        *string      `json:"date"`
	Description *string      `json:"description"`
	Amount      *amountField `json:"amount"`
	Type        *string      `json:"type"`
}

// Patch converts the payload, parsing only the fields present.
func (in patchInput) Patch() (core.TransactionPatch, error) {
	var p core.TransactionPatch
	if in.Date != nil {
		d, err := core.ParseDate(*in.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if in.Description != nil {
		desc := sanitizeInput(*in.Description)
		p.Description = &desc
	}
	if in.Amount != nil {
		m, err := core.ParseAmount(string(*in.Amount))
		if err != nil {
			return p, err
		}
		p.Amount = &m
	}
	if in.Type != nil {
		t, err := core.ParseTransactionType(*in.Type)
		if err != nil {
			return p, err
		}
		p.Type = &t
	}
	return p, nil
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// parseDashboardParams reads month (all | 0-11) and year (four digits). A
// missing month means the whole year and a missing year means the current one,
// reported as 0.
func parseDashboardParams(q url.Values) (time.Month, int, error) {
	var month time.Month
	if v := strings.ToLower(strings.TrimSpace(q.Get("month"))); v != "" && v != "all" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 0 || m > 11 {
			return 0, 0, &core.CriteriaError{Param: "month", Value: v}
		}
		month = time.Month(m + 1)
	}
	year := 0
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return 0, 0, &core.CriteriaError{Param: "year", Value: v}
		}
		year = y
	}
	return month, year, nil
}

// sanitizeInput removes control characters other than tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
