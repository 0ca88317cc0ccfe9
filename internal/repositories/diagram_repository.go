package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dbmlviewer/internal/models"
)

// DiagramRepository stores diagrams. Every query is scoped to the owner.
type DiagramRepository struct {
	pool *pgxpool.Pool
}

func NewDiagramRepository(pool *pgxpool.Pool) *DiagramRepository {
	return &DiagramRepository{pool: pool}
}

const diagramColumns = `id, owner_id, name, description, dbml, canvas_state, created_at, updated_at`

func (r *DiagramRepository) Create(ctx context.Context, d *models.Diagram) error {
	d.Prepare()

	query := `
		INSERT INTO diagrams (id, owner_id, name, description, dbml, canvas_state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	return r.pool.QueryRow(ctx, query,
		d.ID,
		d.OwnerID,
		d.Name,
		d.Description,
		d.DBML,
		jsonParam(d.CanvasState),
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *DiagramRepository) GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Diagram, error) {
	query := `SELECT ` + diagramColumns + ` FROM diagrams WHERE id = $1 AND owner_id = $2`

	d, err := scanDiagram(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// ListByOwner returns one page ordered by updated_at descending, plus the
// owner's total count.
func (r *DiagramRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Diagram, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM diagrams WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + diagramColumns + `
		FROM diagrams WHERE owner_id = $1
		ORDER BY updated_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	diagrams := []models.Diagram{}
	for rows.Next() {
		d, err := scanDiagram(rows)
		if err != nil {
			return nil, 0, err
		}
		diagrams = append(diagrams, *d)
	}

	return diagrams, total, rows.Err()
}

// Update writes the mutable fields. It reports false when no row matched.
func (r *DiagramRepository) Update(ctx context.Context, d *models.Diagram) (bool, error) {
	query := `
		UPDATE diagrams
		SET name = $3, description = $4, dbml = $5, canvas_state = $6
		WHERE id = $1 AND owner_id = $2
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		d.ID,
		d.OwnerID,
		d.Name,
		d.Description,
		d.DBML,
		jsonParam(d.CanvasState),
	).Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *DiagramRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM diagrams WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanDiagram(row pgx.Row) (*models.Diagram, error) {
	var d models.Diagram
	var canvas []byte
	err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Name,
		&d.Description,
		&d.DBML,
		&canvas,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(canvas) > 0 {
		d.CanvasState = canvas
	}
	return &d, nil
}

// jsonParam sends an empty document as SQL NULL.
func jsonParam(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
