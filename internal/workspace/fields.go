package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/models"
	"github.com/maneesh/buildmanager/internal/optimistic"
)

// fields owned by other operations or by the backend
var readOnlyFields = map[string]bool{
	"projectId":       true,
	"directory":       true,
	"currentUserRole": true,
}

// BudgetSummary totals a project's expenses against its budget.
type BudgetSummary struct {
	Budget        float64 `json:"budget"`
	TotalExpenses float64 `json:"totalExpenses"`
	Remaining     float64 `json:"remaining"`
	OverBudget    bool    `json:"overBudget"`
}

// UpdateField sets one project field. The value the backend stored replaces
// the optimistic one; a failed call restores the previous value.
func (s *Store) UpdateField(ctx context.Context, field string, value any) (json.RawMessage, error) {
	if field == "" {
		return nil, apperr.New(apperr.KindValidation, "update field", "Missing 'field'")
	}
	if readOnlyFields[field] {
		return nil, apperr.New(apperr.KindValidation, "update field",
			fmt.Sprintf("field %q cannot be updated directly", field))
	}
	return s.updateFieldWith(ctx, "update field", field, func(*models.Project) (any, error) {
		return value, nil
	})
}

// updateFieldWith computes the new value of field from the current project
// inside the mutation queue, so read-modify-write updates never interleave.
func (s *Store) updateFieldWith(ctx context.Context, op, field string, compute func(*models.Project) (any, error)) (json.RawMessage, error) {
	var stored json.RawMessage
	err := s.enqueue(ctx, "update_field", func(ctx context.Context) error {
		value, err := compute(s.project.Get())
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return apperr.New(apperr.KindValidation, op, fmt.Sprintf("value for %q is not JSON: %v", field, err))
		}
		_, err = optimistic.Update(ctx, s.project, "update_field",
			func(p *models.Project) (*models.Project, error) {
				return p.WithField(field, encoded)
			},
			func(ctx context.Context, p *models.Project) (*models.Project, error) {
				echoed, err := s.api.UpdateField(ctx, s.projectID, field, json.RawMessage(encoded))
				if err != nil {
					return p, err
				}
				stored = encoded
				if len(echoed) == 0 {
					return p, nil
				}
				stored = echoed
				return p.WithField(field, echoed)
			})
		if err == nil {
			s.invalidate(ctx)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Budget summarizes the project's budget and expenses.
func (s *Store) Budget() BudgetSummary {
	return Summarize(s.project.Get())
}

// Summarize computes the budget summary of p.
func Summarize(p *models.Project) BudgetSummary {
	var total float64
	for _, e := range p.Expenses {
		if !math.IsNaN(e.Amount) && !math.IsInf(e.Amount, 0) {
			total += e.Amount
		}
	}
	remaining := p.Budget - total
	return BudgetSummary{
		Budget:        p.Budget,
		TotalExpenses: total,
		Remaining:     remaining,
		OverBudget:    remaining < 0,
	}
}

// SetBudget updates the project budget.
func (s *Store) SetBudget(ctx context.Context, amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return apperr.New(apperr.KindValidation, "set budget", "Budget must be a non-negative number")
	}
	_, err := s.UpdateField(ctx, "budget", amount)
	return err
}

func validateExpense(op string, e models.Expense) error {
	if e.Amount < 0 || math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return apperr.New(apperr.KindValidation, op, "Expense amount must be a non-negative number")
	}
	return nil
}

// updateExpenses rewrites the expense list from the one current when the
// queued job runs.
func (s *Store) updateExpenses(ctx context.Context, op string, edit func([]models.Expense) ([]models.Expense, error)) error {
	_, err := s.updateFieldWith(ctx, op, "expenses", func(p *models.Project) (any, error) {
		return edit(append([]models.Expense{}, p.Expenses...))
	})
	return err
}

// AddExpense appends e to the project's expenses.
func (s *Store) AddExpense(ctx context.Context, e models.Expense) error {
	if err := validateExpense("add expense", e); err != nil {
		return err
	}
	return s.updateExpenses(ctx, "add expense", func(list []models.Expense) ([]models.Expense, error) {
		return append(list, e), nil
	})
}

// UpdateExpense replaces the expense at index.
func (s *Store) UpdateExpense(ctx context.Context, index int, e models.Expense) error {
	if err := validateExpense("update expense", e); err != nil {
		return err
	}
	return s.updateExpenses(ctx, "update expense", func(list []models.Expense) ([]models.Expense, error) {
		if index < 0 || index >= len(list) {
			return nil, apperr.New(apperr.KindNotFound, "update expense", fmt.Sprintf("no expense at index %d", index))
		}
		list[index] = e
		return list, nil
	})
}

// RemoveExpense deletes the expense at index.
func (s *Store) RemoveExpense(ctx context.Context, index int) error {
	return s.updateExpenses(ctx, "remove expense", func(list []models.Expense) ([]models.Expense, error) {
		if index < 0 || index >= len(list) {
			return nil, apperr.New(apperr.KindNotFound, "remove expense", fmt.Sprintf("no expense at index %d", index))
		}
		return append(list[:index], list[index+1:]...), nil
	})
}
