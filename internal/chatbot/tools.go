package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"finbot/internal/core"
	"finbot/internal/llm"
)

// Tool names offered to the model. The names and argument names are part of
// the prompt contract and must stay stable.
const (
	toolInsertExpense     = "insert_expense"
	toolFetchExpenses     = "fetch_expenses"
	toolFetchByCategory   = "fetch_expenses_by_category"
	toolFetchTotalBetween = "fetch_total_expenses_between_dates"
	toolFetchBetween      = "fetch_expenses_between_dates"
	toolHighestExpenseDay = "fetch_highest_expense_day"
	toolEditExpense       = "edit_expense"
	toolDeleteExpense     = "delete_expense"
)

// toolDefinitions is the fixed tool set presented to the model. The user id
// is never a parameter here; it is injected server-side on dispatch so the
// model cannot reach another user's rows.
func toolDefinitions() []llm.Tool {
	dateProp := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc + " in YYYY-MM-DD format"}
	}
	amountProp := map[string]interface{}{
		"type":        "string",
		"description": "Expense amount as a plain decimal number, e.g. \"250\" or \"12.50\"",
	}

	return []llm.Tool{
		{
			Type: "function",
			Function: llm.Function{
				Name:        toolInsertExpense,
				Description: "Record a new expense for the user.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"date":     dateProp("Expense date"),
						"category": map[string]interface{}{"type": "string", "description": "Expense category, e.g. food, travel, clothes"},
						"amount":   amountProp,
						"description": map[string]interface{}{
							"type": "string", "description": "Short description of the expense",
						},
					},
					"required": []string{"date", "category", "amount"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        toolFetchExpenses,
				Description: "Fetch all of the user's expenses.",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        toolFetchByCategory,
				Description: "Fetch the user's expenses in one category (exact match).",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"category": map[string]interface{}{"type": "string", "description": "Category of expenses to fetch"},
					},
					"required": []string{"category"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        toolFetchTotalBetween,
				Description: "Total amount the user spent between two dates, inclusive.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"start_date": dateProp("Start date"),
						"end_date":   dateProp("End date"),
					},
					"required": []string{"start_date", "end_date"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        toolFetchBetween,
				Description: "Fetch the user's expenses between two dates, inclusive.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"start_date": dateProp("Start date"),
						"end_date":   dateProp("End date"),
					},
					"required": []string{"start_date", "end_date"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        toolHighestExpenseDay,
				Description: "The calendar day on which the user spent the most, with the total.",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        toolEditExpense,
				Description: "Edit an existing expense. Only the supplied fields change.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"expense_id": map[string]interface{}{"type": "integer", "description": "ID of the expense to edit"},
						"amount":     amountProp,
						"category":   map[string]interface{}{"type": "string", "description": "New category"},
						"description": map[string]interface{}{
							"type": "string", "description": "New description",
						},
					},
					"required": []string{"expense_id"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        toolDeleteExpense,
				Description: "Delete expenses by id or by date. One of the two must be given.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"expense_id": map[string]interface{}{"type": "integer", "description": "ID of the expense to delete"},
						"date":       dateProp("Delete every expense on this date"),
					},
				},
			},
		},
	}
}

// expenseJSON is the wire form of an expense handed back to the model.
type expenseJSON struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

func toExpenseJSON(expenses []core.Expense) []expenseJSON {
	out := make([]expenseJSON, len(expenses))
	for i, e := range expenses {
		out[i] = expenseJSON{
			ID:          e.ID,
			Date:        e.Date.String(),
			Category:    e.Category,
			Amount:      e.Amount.String(),
			Description: e.Description,
		}
	}
	return out
}

type insertArgs struct {
	Date        string      `json:"date"`
	Category    string      `json:"category"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

type categoryArgs struct {
	Category string `json:"category"`
}

type betweenArgs struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type editArgs struct {
	ExpenseID   int64       `json:"expense_id"`
	Amount      json.Number `json:"amount"`
	Category    *string     `json:"category"`
	Description *string     `json:"description"`
}

type deleteArgs struct {
	ExpenseID *int64  `json:"expense_id"`
	Date      *string `json:"date"`
}

// dispatchTool executes one model-requested tool call for the given user and
// returns the JSON payload to fold back into the conversation. Argument and
// validation problems come back as model-visible errors (ok=false); only
// storage-level failures surface as Go errors and abort the turn.
func (s *Service) dispatchTool(ctx context.Context, userID string, call llm.ToolCall) (result string, err error) {
	switch call.Name {
	case toolInsertExpense:
		var args insertArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return toolError(err), nil
		}
		date, err := core.ParseDate(args.Date)
		if err != nil {
			return toolError(fmt.Errorf("date %q: %w", args.Date, err)), nil
		}
		cents, err := parseAmount(args.Amount)
		if err != nil {
			return toolError(fmt.Errorf("amount %q: %w", args.Amount.String(), err)), nil
		}
		id, err := s.expenses.InsertExpense(ctx, core.Expense{
			UserID:      userID,
			Date:        date,
			Category:    strings.TrimSpace(args.Category),
			Amount:      core.Money{Cents: cents},
			Description: args.Description,
		})
		if err != nil {
			return s.toolOutcome(err)
		}
		return marshalResult(map[string]any{"inserted_id": id})

	case toolFetchExpenses:
		expenses, err := s.expenses.ListExpenses(ctx, userID)
		if err != nil {
			return s.toolOutcome(err)
		}
		return marshalResult(map[string]any{"expenses": toExpenseJSON(expenses)})

	case toolFetchByCategory:
		var args categoryArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return toolError(err), nil
		}
		expenses, err := s.expenses.ListExpensesByCategory(ctx, userID, strings.TrimSpace(args.Category))
		if err != nil {
			return s.toolOutcome(err)
		}
		return marshalResult(map[string]any{"expenses": toExpenseJSON(expenses)})

	case toolFetchTotalBetween:
		start, end, derr := parseRange(call.Arguments)
		if derr != nil {
			return toolError(derr), nil
		}
		total, err := s.expenses.SumBetween(ctx, userID, start, end)
		if err != nil {
			return s.toolOutcome(err)
		}
		return marshalResult(map[string]any{
			"start_date": start.String(),
			"end_date":   end.String(),
			"total":      total.String(),
		})

	case toolFetchBetween:
		start, end, derr := parseRange(call.Arguments)
		if derr != nil {
			return toolError(derr), nil
		}
		expenses, err := s.expenses.ListBetween(ctx, userID, start, end)
		if err != nil {
			return s.toolOutcome(err)
		}
		return marshalResult(map[string]any{"expenses": toExpenseJSON(expenses)})

	case toolHighestExpenseDay:
		top, err := s.expenses.HighestSpendingDay(ctx, userID)
		if err != nil {
			return s.toolOutcome(err)
		}
		if top == nil {
			return marshalResult(map[string]any{"found": false})
		}
		return marshalResult(map[string]any{
			"found": true,
			"date":  top.Date.String(),
			"total": top.Total.String(),
		})

	case toolEditExpense:
		var args editArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return toolError(err), nil
		}
		patch := core.ExpensePatch{
			Category:    args.Category,
			Description: args.Description,
		}
		if args.Amount != "" {
			cents, err := parseAmount(args.Amount)
			if err != nil {
				return toolError(fmt.Errorf("amount %q: %w", args.Amount.String(), err)), nil
			}
			patch.Amount = &core.Money{Cents: cents}
		}
		changed, err := s.expenses.EditExpense(ctx, userID, args.ExpenseID, patch)
		if err != nil {
			return s.toolOutcome(err)
		}
		return marshalResult(map[string]any{"expense_id": args.ExpenseID, "changed": changed})

	case toolDeleteExpense:
		var args deleteArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return toolError(err), nil
		}
		criteria := core.DeleteCriteria{ID: args.ExpenseID}
		if args.Date != nil {
			date, err := core.ParseDate(*args.Date)
			if err != nil {
				return toolError(fmt.Errorf("date %q: %w", *args.Date, err)), nil
			}
			criteria.Date = &date
		}
		deleted, err := s.expenses.DeleteExpenses(ctx, userID, criteria)
		if err != nil {
			return s.toolOutcome(err)
		}
		return marshalResult(map[string]any{"deleted": deleted})
	}

	return toolError(fmt.Errorf("unknown tool %q", call.Name)), nil
}

// toolOutcome separates model-visible validation failures from fatal storage
// failures.
func (s *Service) toolOutcome(err error) (string, error) {
	if isValidationErr(err) {
		return toolError(err), nil
	}
	return "", err
}

func isValidationErr(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidDate,
		core.ErrInvalidAmount,
		core.ErrInvalidRole,
		core.ErrEmptyCategory,
		core.ErrNoEditFields,
		core.ErrMissingDeleteCriteria,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func decodeArgs(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}

// parseAmount accepts the amount however the model sent it (JSON number or
// numeric string) and converts it to cents.
func parseAmount(n json.Number) (int64, error) {
	return core.ParseDecimalToCents(n.String())
}

func parseRange(raw string) (core.Date, core.Date, error) {
	var args betweenArgs
	if err := decodeArgs(raw, &args); err != nil {
		return core.Date{}, core.Date{}, err
	}
	start, err := core.ParseDate(args.StartDate)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("start_date %q: %w", args.StartDate, err)
	}
	end, err := core.ParseDate(args.EndDate)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("end_date %q: %w", args.EndDate, err)
	}
	return start, end, nil
}

func marshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(b), nil
}

func toolError(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}
