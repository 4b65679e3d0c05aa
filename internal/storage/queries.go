package storage

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Expense is a raw expenses row; Date is stored text.
type Expense struct {
	ID               int64
	Date             string
	Kind             string
	Category         string
	Description      sql.NullString
	Amount           decimal.Decimal
	RecurrenceMonths int64
}

type ExtraIncome struct {
	ID          int64
	Month       int64
	Year        int64
	Description string
	Amount      decimal.Decimal
}

type Category struct {
	ID   int64
	Name string
	Icon string
}

type Salaries struct {
	PrimaryAmount   decimal.Decimal
	SecondaryAmount decimal.Decimal
}

const createExpense = `INSERT INTO expenses (date, kind, category, description, amount, recurrence_months)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, date, kind, category, description, amount, recurrence_months`

type CreateExpenseParams struct {
	Date             string
	Kind             string
	Category         string
	Description      sql.NullString
	Amount           decimal.Decimal
	RecurrenceMonths int64
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.Date,
		arg.Kind,
		arg.Category,
		arg.Description,
		arg.Amount,
		arg.RecurrenceMonths,
	)
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.Kind,
		&i.Category,
		&i.Description,
		&i.Amount,
		&i.RecurrenceMonths,
	)
	return i, err
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getExpense = `SELECT id, date, kind, category, description, amount, recurrence_months
FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id)
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.Kind,
		&i.Category,
		&i.Description,
		&i.Amount,
		&i.RecurrenceMonths,
	)
	return i, err
}

const listExpenses = `SELECT id, date, kind, category, description, amount, recurrence_months
FROM expenses ORDER BY id`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(
			&i.ID,
			&i.Date,
			&i.Kind,
			&i.Category,
			&i.Description,
			&i.Amount,
			&i.RecurrenceMonths,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getSalaries = `SELECT primary_amount, secondary_amount FROM salaries WHERE id = 1`

func (q *Queries) GetSalaries(ctx context.Context) (Salaries, error) {
	row := q.db.QueryRowContext(ctx, getSalaries)
	var i Salaries
	err := row.Scan(&i.PrimaryAmount, &i.SecondaryAmount)
	return i, err
}

const updateSalaries = `UPDATE salaries SET primary_amount = ?, secondary_amount = ? WHERE id = 1`

func (q *Queries) UpdateSalaries(ctx context.Context, arg Salaries) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSalaries, arg.PrimaryAmount, arg.SecondaryAmount)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const upsertExtraIncome = `INSERT INTO extra_incomes (month, year, description, amount)
VALUES (?, ?, ?, ?)
ON CONFLICT (month, year, description) DO UPDATE SET amount = excluded.amount
RETURNING id, month, year, description, amount`

type UpsertExtraIncomeParams struct {
	Month       int64
	Year        int64
	Description string
	Amount      decimal.Decimal
}

func (q *Queries) UpsertExtraIncome(ctx context.Context, arg UpsertExtraIncomeParams) (ExtraIncome, error) {
	row := q.db.QueryRowContext(ctx, upsertExtraIncome,
		arg.Month,
		arg.Year,
		arg.Description,
		arg.Amount,
	)
	var i ExtraIncome
	err := row.Scan(
		&i.ID,
		&i.Month,
		&i.Year,
		&i.Description,
		&i.Amount,
	)
	return i, err
}

const listExtraIncomesByPeriod = `SELECT id, month, year, description, amount
FROM extra_incomes WHERE month = ? AND year = ? ORDER BY id`

type ListExtraIncomesByPeriodParams struct {
	Month int64
	Year  int64
}

func (q *Queries) ListExtraIncomesByPeriod(ctx context.Context, arg ListExtraIncomesByPeriodParams) ([]ExtraIncome, error) {
	rows, err := q.db.QueryContext(ctx, listExtraIncomesByPeriod, arg.Month, arg.Year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExtraIncome
	for rows.Next() {
		var i ExtraIncome
		if err := rows.Scan(
			&i.ID,
			&i.Month,
			&i.Year,
			&i.Description,
			&i.Amount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCategory = `INSERT INTO categories (name, icon) VALUES (?, ?)
ON CONFLICT (name) DO NOTHING`

type CreateCategoryParams struct {
	Name string
	Icon string
}

// CreateCategory returns 0 rows affected when the name already exists.
func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createCategory, arg.Name, arg.Icon)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE name = ?`

func (q *Queries) DeleteCategory(ctx context.Context, name string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCategories = `SELECT id, name, icon FROM categories ORDER BY id`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.Icon); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
