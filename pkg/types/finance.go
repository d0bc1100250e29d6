package types

type FinancialRecordType string

const (
	FinancialRecordTypeIncome  FinancialRecordType = "INCOME"
	FinancialRecordTypeExpense FinancialRecordType = "EXPENSE"
)

func (t FinancialRecordType) Valid() bool {
	return t == FinancialRecordTypeIncome || t == FinancialRecordTypeExpense
}

// Period selects a trailing time window for ledger and analytics queries.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodAll     Period = "all"
)
