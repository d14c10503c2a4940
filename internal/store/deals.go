package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"dealflow/pkg/models"
)

type DealQuery struct {
	Q      string // keyword search in company name
	Round  string
	Sector string
	From   string // inclusive YYYY-MM-DD
	To     string // inclusive YYYY-MM-DD
	Limit  int
	Offset int
}

// Page sizes for ListDeals. A limit outside (0, MaxDealLimit] falls back to
// DefaultDealLimit.
const (
	DefaultDealLimit = 20
	MaxDealLimit     = 100
)

// Page returns the limit and offset ListDeals actually applies.
func (q DealQuery) Page() (limit, offset int) {
	limit, offset = q.Limit, q.Offset
	if limit <= 0 || limit > MaxDealLimit {
		limit = DefaultDealLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

const dealColumns = `id, company_name, date, year, amount, round_type, investors, lead_investors, primary_tag, headquarters, ecosystem_name`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(sc rowScanner) (models.Deal, error) {
	var (
		d            models.Deal
		date         sql.NullString
		year         sql.NullInt64
		amount       sql.NullFloat64
		roundType    sql.NullString
		investors    sql.NullString
		leads        sql.NullString
		primaryTag   sql.NullString
		headquarters sql.NullString
		ecosystem    sql.NullString
	)
	if err := sc.Scan(
		&d.ID, &d.CompanyName, &date, &year, &amount, &roundType,
		&investors, &leads, &primaryTag, &headquarters, &ecosystem,
	); err != nil {
		return d, err
	}

	d.Date = date.String
	if year.Valid {
		d.Year = int(year.Int64)
	}
	if amount.Valid {
		v := amount.Float64
		d.Amount = &v
	}
	d.RoundType = roundType.String
	d.Investors = unmarshalList(investors)
	d.LeadInvestors = unmarshalList(leads)
	d.PrimaryTag = primaryTag.String
	d.Headquarters = headquarters.String
	d.EcosystemName = ecosystem.String
	return d, nil
}

// GetDeal returns nil when no deal has the id.
func (s *Store) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = ?`, id)
	d, err := scanDeal(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getDeal: %w", err)
	}
	return &d, nil
}

func (s *Store) CountDeals(ctx context.Context, q DealQuery) (int, error) {
	sqlStr, args := buildDealSQL(q, true)
	var total int
	if err := s.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (s *Store) ListDeals(ctx context.Context, q DealQuery) ([]models.Deal, error) {
	sqlStr, args := buildDealSQL(q, false)
	return s.queryDeals(ctx, sqlStr, args...)
}

// AllDeals returns every stored deal ordered by date.
func (s *Store) AllDeals(ctx context.Context) ([]models.Deal, error) {
	return s.queryDeals(ctx, `SELECT `+dealColumns+` FROM deals ORDER BY date ASC, id ASC`)
}

// DealsForCompany returns the company's deals, newest first.
func (s *Store) DealsForCompany(ctx context.Context, name string) ([]models.Deal, error) {
	return s.queryDeals(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE LOWER(TRIM(company_name)) = ? ORDER BY date DESC, id ASC`,
		strings.ToLower(strings.TrimSpace(name)),
	)
}

func (s *Store) queryDeals(ctx context.Context, sqlStr string, args ...any) ([]models.Deal, error) {
	rows, err := s.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("deals query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Deal, 0)
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("deals scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// buildDealSQL builds either COUNT(*) or the paged SELECT.
func buildDealSQL(q DealQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + dealColumns + ` FROM deals`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM deals`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "LOWER(company_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}
	if r := strings.TrimSpace(q.Round); r != "" {
		where = append(where, "LOWER(round_type) = ?")
		args = append(args, strings.ToLower(r))
	}
	if sec := strings.TrimSpace(q.Sector); sec != "" {
		where = append(where, "LOWER(primary_tag) = ?")
		args = append(args, strings.ToLower(sec))
	}
	if from := strings.TrimSpace(q.From); from != "" {
		where = append(where, "date >= ?")
		args = append(args, from)
	}
	if to := strings.TrimSpace(q.To); to != "" {
		where = append(where, "date <= ?")
		args = append(args, to)
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY date DESC, id ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit, offset := q.Page()
		args = append(args, limit, offset)
	}

	return sqlStr, args
}
