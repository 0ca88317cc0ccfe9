package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/export"
	"dbmlviewer/internal/models"
)

const (
	MaxNameLength        = 255
	MaxDescriptionLength = 1000
	MaxDBMLBytes         = 1 << 20
	MaxCanvasBytes       = 1 << 20

	DefaultPerPage = 20
	MaxPerPage     = 100
)

// DiagramRepository is the storage DiagramService needs.
type DiagramRepository interface {
	Create(ctx context.Context, d *models.Diagram) error
	GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Diagram, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Diagram, int, error)
	Update(ctx context.Context, d *models.Diagram) (bool, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
}

type CreateDiagramRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	DBML        string          `json:"dbml"`
	CanvasState json.RawMessage `json:"canvasState"`
}

// UpdateDiagramRequest changes only the fields that are set.
type UpdateDiagramRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	DBML        *string         `json:"dbml"`
	CanvasState json.RawMessage `json:"canvasState"`
}

type DiagramService struct {
	repo    DiagramRepository
	schemas *SchemaService

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func NewDiagramService(repo DiagramRepository, schemas *SchemaService) *DiagramService {
	return &DiagramService{
		repo:     repo,
		schemas:  schemas,
		inflight: make(map[uuid.UUID]struct{}),
	}
}

func (s *DiagramService) Create(ctx context.Context, ownerID string, req CreateDiagramRequest) (*models.Diagram, error) {
	owner, err := parseID(ownerID)
	if err != nil {
		return nil, err
	}

	d := &models.Diagram{
		OwnerID:     owner,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		DBML:        req.DBML,
	}
	if err := validateName(d.Name); err != nil {
		return nil, err
	}
	if err := validateText(d.Description, d.DBML); err != nil {
		return nil, err
	}
	if d.CanvasState, err = validateCanvas(req.CanvasState); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create diagram: %w", err)
	}
	return d, nil
}

func (s *DiagramService) Get(ctx context.Context, ownerID, id string) (*models.Diagram, error) {
	owner, err := parseID(ownerID)
	if err != nil {
		return nil, err
	}
	did, err := parseID(id)
	if err != nil {
		return nil, ErrDiagramNotFound
	}

	d, err := s.repo.GetByIDAndOwner(ctx, did, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}
	if d == nil {
		return nil, ErrDiagramNotFound
	}
	return d, nil
}

// List returns one page of the owner's diagrams, most recently updated
// first. page starts at 1; out of range values are clamped.
func (s *DiagramService) List(ctx context.Context, ownerID string, page, perPage int) (*models.DiagramPage, error) {
	owner, err := parseID(ownerID)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}

	items, total, err := s.repo.ListByOwner(ctx, owner, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagrams: %w", err)
	}
	return &models.DiagramPage{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
		Items:      items,
	}, nil
}

// Update applies a partial update. A second update of the same diagram
// while one is running fails with ErrSaveInProgress.
func (s *DiagramService) Update(ctx context.Context, ownerID, id string, req UpdateDiagramRequest) (*models.Diagram, error) {
	owner, err := parseID(ownerID)
	if err != nil {
		return nil, err
	}
	did, err := parseID(id)
	if err != nil {
		return nil, ErrDiagramNotFound
	}

	release, ok := s.acquire(did)
	if !ok {
		return nil, ErrSaveInProgress
	}
	defer release()

	d, err := s.repo.GetByIDAndOwner(ctx, did, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}
	if d == nil {
		return nil, ErrDiagramNotFound
	}

	if req.Name != nil {
		d.Name = strings.TrimSpace(*req.Name)
		if err := validateName(d.Name); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		d.Description = req.Description
	}
	if req.DBML != nil {
		d.DBML = *req.DBML
	}
	if err := validateText(d.Description, d.DBML); err != nil {
		return nil, err
	}
	if req.CanvasState != nil {
		if d.CanvasState, err = validateCanvas(req.CanvasState); err != nil {
			return nil, err
		}
	}

	found, err := s.repo.Update(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("failed to update diagram: %w", err)
	}
	if !found {
		return nil, ErrDiagramNotFound
	}
	return d, nil
}

func (s *DiagramService) Delete(ctx context.Context, ownerID, id string) error {
	owner, err := parseID(ownerID)
	if err != nil {
		return err
	}
	did, err := parseID(id)
	if err != nil {
		return ErrDiagramNotFound
	}

	found, err := s.repo.Delete(ctx, did, owner)
	if err != nil {
		return fmt.Errorf("failed to delete diagram: %w", err)
	}
	if !found {
		return ErrDiagramNotFound
	}
	return nil
}

// Export renders a saved diagram using its stored node positions.
func (s *DiagramService) Export(ctx context.Context, ownerID, id string, opts ExportOptions) (*export.Artifact, error) {
	d, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	canvas, err := diagram.ParseCanvasState(d.CanvasState)
	if err != nil {
		// A corrupt stored canvas only loses the saved positions.
		canvas = nil
	}
	return s.schemas.Export(d.DBML, canvas, opts)
}

func (s *DiagramService) acquire(id uuid.UUID) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return nil, false
	}
	s.inflight[id] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}, true
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

func validateName(name string) error {
	if name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func validateText(description *string, dbml string) error {
	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if len(dbml) > MaxDBMLBytes {
		return ErrDBMLTooLarge
	}
	return nil
}

// validateCanvas returns the canvas state to store, nil for an absent or
// null document.
func validateCanvas(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) > MaxCanvasBytes {
		return nil, ErrCanvasTooLarge
	}
	cs, err := diagram.ParseCanvasState(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCanvas, err)
	}
	if cs == nil {
		return nil, nil
	}
	return json.Marshal(cs)
}
