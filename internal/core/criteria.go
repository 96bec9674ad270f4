package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const allValue = "all"

// CriteriaError reports a filter parameter that could not be parsed.
type CriteriaError struct {
	Param string
	Value string
}

func (e *CriteriaError) Error() string {
	return fmt.Sprintf("invalid %s filter %q", e.Param, e.Value)
}

// ParseCriteria reads filter criteria from query parameters:
//
//	q      free text
//	type   all | income | expense
//	month  all | 0-11 (0 is January)
//	year   all | four-digit year
//
// Missing parameters mean "all".
func ParseCriteria(q url.Values) (Criteria, error) {
	c := Criteria{Query: strings.TrimSpace(q.Get("q"))}

	if v := strings.ToLower(strings.TrimSpace(q.Get("type"))); v != "" && v != allValue {
		t, err := ParseTransactionType(v)
		if err != nil {
			return Criteria{}, &CriteriaError{Param: "type", Value: v}
		}
		c.Type = TypeFilter(t)
	}

	if v := strings.ToLower(strings.TrimSpace(q.Get("month"))); v != "" && v != allValue {
		m, err := strconv.Atoi(v)
		if err != nil || m < 0 || m > 11 {
			return Criteria{}, &CriteriaError{Param: "month", Value: v}
		}
		c.Month = time.Month(m + 1)
	}

	if v := strings.ToLower(strings.TrimSpace(q.Get("year"))); v != "" && v != allValue {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return Criteria{}, &CriteriaError{Param: "year", Value: v}
		}
		c.Year = y
	}

	return c, nil
}

// Values is the inverse of ParseCriteria; "all" parameters are omitted.
func (c Criteria) Values() url.Values {
	v := url.Values{}
	if q := strings.TrimSpace(c.Query); q != "" {
		v.Set("q", q)
	}
	if !c.Type.matchesAll() {
		v.Set("type", string(c.Type))
	}
	if c.Month != 0 {
		v.Set("month", strconv.Itoa(int(c.Month)-1))
	}
	if c.Year != 0 {
		v.Set("year", strconv.Itoa(c.Year))
	}
	return v
}
