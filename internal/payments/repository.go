package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-payments/internal/platform/db"
)

// Repository is the record store gateway.
type Repository interface {
	InsertOne(ctx context.Context, p Payment) (string, error)
	InsertMany(ctx context.Context, records []Payment) ([]string, error)
	FindMany(ctx context.Context, filter Filter, skip, limit int) ([]Payment, int, error)
	FindOne(ctx context.Context, id string) (Payment, error)
	UpdateOne(ctx context.Context, id string, fields map[string]any) (int64, error)
	DeleteOne(ctx context.Context, id string) (int64, error)
}

const paymentsTable = "payments"

// columns lists the stored columns in scan order.
var columns = []string{
	"id",
	FieldFirstName,
	FieldLastName,
	FieldStatus,
	FieldAddedDateUTC,
	FieldDueDate,
	FieldAddressLine1,
	FieldAddressLine2,
	FieldCity,
	FieldCountry,
	FieldProvinceOrState,
	FieldPostalCode,
	FieldPhoneNumber,
	FieldEmail,
	FieldCurrency,
	FieldDueAmount,
	FieldDiscountPercent,
	FieldTaxPercent,
	FieldTotalDue,
	FieldEvidenceFile,
}

// updatable is the set of columns UpdateOne may touch.
var updatable = func() map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns[1:] {
		set[c] = true
	}
	return set
}()

var selectColumns = strings.Join(columns, ", ")

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) InsertOne(ctx context.Context, p Payment) (string, error) {
	p.ID = uuid.NewString()
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	query := `INSERT INTO ` + paymentsTable + ` (` + selectColumns + `) VALUES (` + strings.Join(placeholders, ", ") + `)`
	if _, err := r.pool.Exec(ctx, query, rowValues(p)...); err != nil {
		return "", fmt.Errorf("payments: insert: %w", err)
	}
	return p.ID, nil
}

func (r *repository) InsertMany(ctx context.Context, records []Payment) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]string, len(records))
	rows := make([][]any, len(records))
	for i, p := range records {
		p.ID = uuid.NewString()
		ids[i] = p.ID
		rows[i] = rowValues(p)
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{paymentsTable}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}
		if int(copied) != len(rows) {
			return fmt.Errorf("copied %d of %d rows", copied, len(rows))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("payments: insert many: %w", err)
	}
	return ids, nil
}

func (r *repository) FindMany(ctx context.Context, filter Filter, skip, limit int) ([]Payment, int, error) {
	where, args := buildWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+paymentsTable+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("payments: count: %w", err)
	}

	query := `SELECT ` + selectColumns + ` FROM ` + paymentsTable + where +
		` ORDER BY ` + FieldAddedDateUTC + ` ASC, id ASC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if skip > 0 {
		args = append(args, skip)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("payments: list: %w", err)
	}
	defer rows.Close()

	records := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("payments: scan: %w", err)
		}
		records = append(records, p)
	}
	return records, total, rows.Err()
}

func (r *repository) FindOne(ctx context.Context, id string) (Payment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Payment{}, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM `+paymentsTable+` WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, fmt.Errorf("payments: get: %w", err)
	}
	return p, nil
}

func (r *repository) UpdateOne(ctx context.Context, id string, fields map[string]any) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}
	set, args, err := buildSet(fields)
	if err != nil {
		return 0, err
	}
	if set == "" {
		var matched int64
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+paymentsTable+` WHERE id = $1`, id).Scan(&matched); err != nil {
			return 0, fmt.Errorf("payments: update: %w", err)
		}
		return matched, nil
	}
	args = append(args, id)
	query := `UPDATE ` + paymentsTable + ` SET ` + set + ` WHERE id = $` + strconv.Itoa(len(args))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("payments: update: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) DeleteOne(ctx context.Context, id string) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+paymentsTable+` WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("payments: delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// buildWhere renders the list filter. The search term is matched literally.
func buildWhere(filter Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, FieldStatus+` = $`+strconv.Itoa(len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		clauses = append(clauses, FieldFirstName+` ILIKE $`+strconv.Itoa(len(args))+` ESCAPE '\'`)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildSet renders an UPDATE SET list in a stable column order.
func buildSet(fields map[string]any) (string, []any, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if !updatable[name] {
			return "", nil, fmt.Errorf("payments: column %q cannot be updated", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		parts[i] = name + ` = $` + strconv.Itoa(i+1)
		args[i] = storeValue(name, fields[name])
	}
	return strings.Join(parts, ", "), args, nil
}

// storeValue maps empty evidence references to NULL.
func storeValue(name string, value any) any {
	if name == FieldEvidenceFile {
		if s, ok := value.(string); ok && s == "" {
			return nil
		}
	}
	return value
}

func rowValues(p Payment) []any {
	return []any{
		p.ID,
		p.FirstName,
		p.LastName,
		string(p.Status),
		p.AddedDateUTC,
		p.DueDate,
		p.AddressLine1,
		p.AddressLine2,
		p.City,
		p.Country,
		p.ProvinceOrState,
		p.PostalCode,
		p.PhoneNumber,
		p.Email,
		p.Currency,
		p.DueAmount,
		p.DiscountPercent,
		p.TaxPercent,
		p.TotalDue,
		storeValue(FieldEvidenceFile, p.EvidenceFile),
	}
}

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p        Payment
		status   string
		due      *time.Time
		evidence *string
	)
	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&status,
		&p.AddedDateUTC,
		&due,
		&p.AddressLine1,
		&p.AddressLine2,
		&p.City,
		&p.Country,
		&p.ProvinceOrState,
		&p.PostalCode,
		&p.PhoneNumber,
		&p.Email,
		&p.Currency,
		&p.DueAmount,
		&p.DiscountPercent,
		&p.TaxPercent,
		&p.TotalDue,
		&evidence,
	)
	if err != nil {
		return Payment{}, err
	}
	p.Status = Status(status)
	p.AddedDateUTC = p.AddedDateUTC.UTC()
	if due != nil {
		p.DueDate = due.UTC()
	}
	if evidence != nil {
		p.EvidenceFile = *evidence
	}
	return p, nil
}
