package types

import (
	"fmt"
	"strings"

	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
	CommonFilterOperatorContains  CommonFilterOperator = "contains"
	CommonFilterOperatorIsNull    CommonFilterOperator = "is_null"
)

type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
	// Filters are OR-ed together and AND-ed with the parent condition.
	Filters []CommonFilter `json:"filters"`
}

// Validate rejects fields outside allowed and unknown operators, recursively.
// Column names end up in SQL, so every caller must validate before Build.
func (f *CommonFilter) Validate(allowed map[string]bool) error {
	if f.Field != "" {
		if !allowed[f.Field] {
			return fmt.Errorf("filter field %q is not allowed", f.Field)
		}
		switch f.Operator {
		case CommonFilterOperatorEq, CommonFilterOperatorNotEq, CommonFilterOperatorLt, CommonFilterOperatorLte,
			CommonFilterOperatorGt, CommonFilterOperatorGte, CommonFilterOperatorIn, CommonFilterOperatorContains,
			CommonFilterOperatorIsNull:
		case CommonFilterOperatorRange, CommonFilterOperatorDateRange:
			if len(f.Values) < 2 {
				return fmt.Errorf("filter %s on %q needs two values", f.Operator, f.Field)
			}
		default:
			return fmt.Errorf("filter operator %q is not supported", f.Operator)
		}
	}
	for i := range f.Filters {
		if err := f.Filters[i].Validate(allowed); err != nil {
			return err
		}
	}
	return nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	var exprs []clause.Expression
	if e := f.expression(); e != nil {
		exprs = append(exprs, e)
	}
	if len(f.Filters) > 0 {
		var ors []clause.Expression
		for i := range f.Filters {
			ors = append(ors, &f.Filters[i])
		}
		exprs = append(exprs, clause.Or(ors...))
	}
	switch len(exprs) {
	case 0:
		return
	case 1:
		exprs[0].Build(builder)
	default:
		clause.And(exprs...).Build(builder)
	}
}

func (f *CommonFilter) expression() clause.Expression {
	if f.Field == "" {
		return nil
	}
	if f.Operator == CommonFilterOperatorIsNull {
		return clause.Eq{Column: clause.Column{Name: f.Field}, Value: nil}
	}
	if len(f.Values) == 0 {
		return nil
	}

	column := clause.Column{Name: f.Field}
	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		return clause.Eq{Column: column, Value: value}
	case CommonFilterOperatorNotEq:
		return clause.Neq{Column: column, Value: value}
	case CommonFilterOperatorLt:
		return clause.Lt{Column: column, Value: value}
	case CommonFilterOperatorLte:
		return clause.Lte{Column: column, Value: value}
	case CommonFilterOperatorGt:
		return clause.Gt{Column: column, Value: value}
	case CommonFilterOperatorGte:
		return clause.Gte{Column: column, Value: value}
	case CommonFilterOperatorRange, CommonFilterOperatorDateRange:
		if len(f.Values) < 2 {
			return nil
		}
		return clause.And(clause.Gte{Column: column, Value: f.Values[0]}, clause.Lte{Column: column, Value: f.Values[1]})
	case CommonFilterOperatorIn:
		return clause.IN{Column: column, Values: f.Values}
	case CommonFilterOperatorContains:
		// LOWER on both sides keeps the match case-insensitive on postgres and sqlite.
		return clause.Expr{
			SQL:  "LOWER(?) LIKE ?",
			Vars: []any{column, "%" + strings.ToLower(fmt.Sprint(value)) + "%"},
		}
	default:
		return nil
	}
}
