package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"amlchecker/internal/core/audit"
)

const selectColumns = `
	id::text, organization_id, user_id, user_email, search_query, has_hit, hits_count,
	entity_name, entity_score, entity_birth_date, entity_gender, entity_countries,
	entity_datasets, entity_description, hit_details, is_sanctioned, is_pep, created_at`

// Repository implements audit.Repository on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a PostgreSQL audit repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// Create inserts one record.
func (r *Repository) Create(ctx context.Context, record audit.Record) error {
	query := `
		INSERT INTO audit_logs (
			id, organization_id, user_id, user_email, search_query, has_hit, hits_count,
			entity_name, entity_score, entity_birth_date, entity_gender, entity_countries,
			entity_datasets, entity_description, hit_details, is_sanctioned, is_pep, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	var hitDetails any
	if len(record.HitDetails) > 0 {
		hitDetails = []byte(record.HitDetails)
	}

	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.OrganizationID,
		record.UserID,
		record.UserEmail,
		record.SearchQuery,
		record.HasHit,
		record.HitsCount,
		record.EntityName,
		record.EntityScore,
		record.EntityBirthDate,
		record.EntityGender,
		record.EntityCountries,
		record.EntityDatasets,
		record.EntityDescription,
		hitDetails,
		record.IsSanctioned,
		record.IsPep,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	r.log.Debug("audit record inserted", "audit_id", record.ID, "organization_id", record.OrganizationID)
	return nil
}

// Query returns one page of matching records, newest first, and the total
// match count.
func (r *Repository) Query(ctx context.Context, scope audit.Scope, filter audit.Filter, page audit.Page) ([]audit.Record, int, error) {
	if err := scope.Validate(); err != nil {
		return nil, 0, err
	}
	where, args := buildWhere(scope.Apply(filter))

	var total int
	countQuery := "SELECT COUNT(*) FROM audit_logs" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	if total == 0 || page.Offset() >= total {
		return []audit.Record{}, total, nil
	}

	argIdx := len(args) + 1
	listQuery := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		selectColumns, where, argIdx, argIdx+1)
	args = append(args, page.Size, page.Offset())

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit records: %w", err)
	}
	records, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Get returns the record with id when the scope may read it.
func (r *Repository) Get(ctx context.Context, scope audit.Scope, id string) (*audit.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, audit.ErrNotFound
	}

	query := "SELECT " + selectColumns + " FROM audit_logs WHERE id = $1"
	args := []any{id}
	if !scope.IsSuperAdmin() {
		query += " AND organization_id = $2"
		args = append(args, scope.OrganizationID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get audit record: %w", err)
	}
	records, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, audit.ErrNotFound
	}
	return &records[0], nil
}

func (r *Repository) CountByOrg(ctx context.Context, orgID string) (int, error) {
	return r.count(ctx, orgID, "")
}

func (r *Repository) CountSanctioned(ctx context.Context, orgID string) (int, error) {
	return r.count(ctx, orgID, "is_sanctioned")
}

func (r *Repository) CountPep(ctx context.Context, orgID string) (int, error) {
	return r.count(ctx, orgID, "is_pep")
}

// Recent returns the newest records of orgID, or of every organization when
// orgID is empty.
func (r *Repository) Recent(ctx context.Context, orgID string, limit int) ([]audit.Record, error) {
	query := "SELECT " + selectColumns + " FROM audit_logs"
	var args []any
	if orgID != "" {
		query += " WHERE organization_id = $1"
		args = append(args, orgID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent audit records: %w", err)
	}
	return collect(rows)
}

// count counts records of orgID (all when empty) where flagColumn is true.
// flagColumn is one of the fixed boolean column names, never caller input.
func (r *Repository) count(ctx context.Context, orgID, flagColumn string) (int, error) {
	var conditions []string
	var args []any
	if orgID != "" {
		args = append(args, orgID)
		conditions = append(conditions, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if flagColumn != "" {
		conditions = append(conditions, flagColumn)
	}

	query := "SELECT COUNT(*) FROM audit_logs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return n, nil
}

// buildWhere renders filter as a WHERE clause with positional arguments.
func buildWhere(f audit.Filter) (string, []any) {
	var conditions []string
	var args []any
	add := func(expr string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if f.OrganizationID != nil {
		add("organization_id = $%d", *f.OrganizationID)
	}
	if f.Search != nil && strings.TrimSpace(*f.Search) != "" {
		add(`search_query ILIKE '%%' || $%d || '%%' ESCAPE '\'`, escapeLike(strings.TrimSpace(*f.Search)))
	}
	if f.HasHit != nil {
		add("has_hit = $%d", *f.HasHit)
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at <= $%d", *f.EndDate)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func collect(rows pgx.Rows) ([]audit.Record, error) {
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []audit.Record{}, nil
		}
		return nil, fmt.Errorf("scan audit records: %w", err)
	}
	if records == nil {
		records = []audit.Record{}
	}
	return records, nil
}

func scanRecord(row pgx.CollectableRow) (audit.Record, error) {
	var rec audit.Record
	var hitDetails []byte
	err := row.Scan(
		&rec.ID,
		&rec.OrganizationID,
		&rec.UserID,
		&rec.UserEmail,
		&rec.SearchQuery,
		&rec.HasHit,
		&rec.HitsCount,
		&rec.EntityName,
		&rec.EntityScore,
		&rec.EntityBirthDate,
		&rec.EntityGender,
		&rec.EntityCountries,
		&rec.EntityDatasets,
		&rec.EntityDescription,
		&hitDetails,
		&rec.IsSanctioned,
		&rec.IsPep,
		&rec.CreatedAt,
	)
	if len(hitDetails) > 0 {
		rec.HitDetails = hitDetails
	}
	return rec, err
}
