package core

import "time"

// Summary aggregates a set of transactions.
type Summary struct {
	TotalIncome  Money
	TotalExpense Money
	Balance      Money // may be negative
	Count        int
}

// View is a filtered, date-descending list with its summary.
type View struct {
	Transactions []Transaction
	Summary      Summary
}

// MonthTotals is one bar of the yearly chart.
type MonthTotals struct {
	Month   time.Month
	Income  Money
	Expense Money
	Balance Money
}

// ChartSlice is one slice of the income-vs-expense chart.
type ChartSlice struct {
	Type  TransactionType
	Value Money
}

// Summarize sums amounts by type in integer cents.
func Summarize(txns []Transaction) Summary {
	var s Summary
	for _, t := range txns {
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	s.Count = len(txns)
	return s
}

// Breakdown returns the income and expense slices of s, income first.
func Breakdown(s Summary) []ChartSlice {
	return []ChartSlice{
		{Type: Income, Value: s.TotalIncome},
		{Type: Expense, Value: s.TotalExpense},
	}
}

// MonthlySeries returns twelve entries, January to December, for the given year.
func MonthlySeries(txns []Transaction, year int) []MonthTotals {
	series := make([]MonthTotals, 12)
	for i := range series {
		series[i].Month = time.Month(i + 1)
	}
	for _, t := range txns {
		if t.Date.IsZero() || t.Date.Year() != year {
			continue
		}
		m := &series[t.Date.Month()-1]
		switch t.Type {
		case Income:
			m.Income = m.Income.Add(t.Amount)
		case Expense:
			m.Expense = m.Expense.Add(t.Amount)
		}
	}
	for i := range series {
		series[i].Balance = series[i].Income.Sub(series[i].Expense)
	}
	return series
}
