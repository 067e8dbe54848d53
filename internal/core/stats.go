package core

// RangeStats summarizes transactions over a closed date interval.
type RangeStats struct {
	TotalIncome       Money
	TotalExpenses     Money
	ExpenseByCategory map[string]Money
	TransactionCount  int
}

// Net returns income minus expenses.
func (s RangeStats) Net() Money {
	return Money{Cents: s.TotalIncome.Cents - s.TotalExpenses.Cents}
}
