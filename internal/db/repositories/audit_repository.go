// audit_repository.go implements AuditRepository, providing database queries for
// writing and retrieving hash-chained audit log entries. Entries are ordered by a
// serial sequence column so the chain can be verified in insert order.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs
type AuditFilters struct {
	Actor        *string
	Action       *string
	ResourceType *string
	ResourceID   *string
	StartDate    *time.Time
	EndDate      *time.Time
}

const auditColumns = `id, seq, actor, action, resource_type, resource_id, details, ip_address,
		prev_hash, entry_hash, created_at`

// CreateAuditLog creates a new audit log entry. PrevHash and EntryHash must
// already be set by the audit chain writer.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	log.ID = uuid.New().String()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	var detailsJSON []byte
	var err error
	if log.Details != nil {
		detailsJSON, err = json.Marshal(log.Details)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO audit_logs (id, actor, action, resource_type, resource_id, details, ip_address, prev_hash, entry_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`

	return r.db.QueryRowContext(ctx, query,
		log.ID,
		log.Actor,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		detailsJSON,
		log.IPAddress,
		log.PrevHash,
		log.EntryHash,
		log.CreatedAt,
	).Scan(&log.Seq)
}

// ListAuditLogs retrieves audit logs with optional filters, newest first
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	countQuery := `SELECT COUNT(*) FROM audit_logs WHERE 1=1`
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.Actor != nil {
		countQuery += fmt.Sprintf(` AND actor = $%d`, paramIndex)
		query += fmt.Sprintf(` AND actor = $%d`, paramIndex)
		args = append(args, *filters.Actor)
		paramIndex++
	}

	if filters.Action != nil {
		countQuery += fmt.Sprintf(` AND action = $%d`, paramIndex)
		query += fmt.Sprintf(` AND action = $%d`, paramIndex)
		args = append(args, *filters.Action)
		paramIndex++
	}

	if filters.ResourceType != nil {
		countQuery += fmt.Sprintf(` AND resource_type = $%d`, paramIndex)
		query += fmt.Sprintf(` AND resource_type = $%d`, paramIndex)
		args = append(args, *filters.ResourceType)
		paramIndex++
	}

	if filters.ResourceID != nil {
		countQuery += fmt.Sprintf(` AND resource_id = $%d`, paramIndex)
		query += fmt.Sprintf(` AND resource_id = $%d`, paramIndex)
		args = append(args, *filters.ResourceID)
		paramIndex++
	}

	if filters.StartDate != nil {
		countQuery += fmt.Sprintf(` AND created_at >= $%d`, paramIndex)
		query += fmt.Sprintf(` AND created_at >= $%d`, paramIndex)
		args = append(args, *filters.StartDate)
		paramIndex++
	}

	if filters.EndDate != nil {
		countQuery += fmt.Sprintf(` AND created_at <= $%d`, paramIndex)
		query += fmt.Sprintf(` AND created_at <= $%d`, paramIndex)
		args = append(args, *filters.EndDate)
		paramIndex++
	}

	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY seq DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs, err := scanAuditRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// LatestAuditHash returns the entry hash of the most recently inserted entry,
// or "" when the trail is empty. The audit chain writer seeds itself from this
// on startup.
func (r *AuditRepository) LatestAuditHash(ctx context.Context) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT entry_hash FROM audit_logs ORDER BY seq DESC LIMIT 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// ListAuditChain retrieves entries in insert order starting after fromSeq, for
// chain verification. Pass fromSeq 0 to start from the genesis entry.
func (r *AuditRepository) ListAuditChain(ctx context.Context, fromSeq int64, limit int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE seq > $1 ORDER BY seq LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, fromSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

func scanAuditRows(rows *sql.Rows) ([]*models.AuditLog, error) {
	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log := &models.AuditLog{}
		var detailsJSON []byte

		err := rows.Scan(
			&log.ID,
			&log.Seq,
			&log.Actor,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&detailsJSON,
			&log.IPAddress,
			&log.PrevHash,
			&log.EntryHash,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if detailsJSON != nil {
			if err := json.Unmarshal(detailsJSON, &log.Details); err != nil {
				return nil, err
			}
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}
