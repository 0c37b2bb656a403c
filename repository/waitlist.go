package repository

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ServiceModel is the Bun model for a waitlist service owned by an organizer.
type ServiceModel struct {
	bun.BaseModel `bun:"table:services,alias:svc"`

	ID        string    `bun:"id,pk"`
	OwnerID   string    `bun:"owner_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Slug      string    `bun:"slug,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ParticipantModel is the Bun model for a waitlist signup.
type ParticipantModel struct {
	bun.BaseModel `bun:"table:participants,alias:prt"`

	ID        string    `bun:"id,pk"`
	ServiceID string    `bun:"service_id,notnull"`
	Email     string    `bun:"email,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// WaitlistRepository stores services and participants. It implements
// auth.OwnedDataStore for account deletion.
type WaitlistRepository struct {
	db bun.IDB
}

// NewWaitlistRepository creates a new repository.
func NewWaitlistRepository(db bun.IDB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// CreateService inserts a service for owner.
func (r *WaitlistRepository) CreateService(ctx context.Context, ownerID, name, slug string) (*ServiceModel, error) {
	model := &ServiceModel{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(name),
		Slug:      strings.TrimSpace(slug),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create service")
	}
	return model, nil
}

// AddParticipant records a waitlist join.
func (r *WaitlistRepository) AddParticipant(ctx context.Context, serviceID, email string) (*ParticipantModel, error) {
	model := &ParticipantModel{
		ID:        uuid.NewString(),
		ServiceID: serviceID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to add participant")
	}
	return model, nil
}

// CountParticipants returns the number of participants of a service.
func (r *WaitlistRepository) CountParticipants(ctx context.Context, serviceID string) (int, error) {
	count, err := r.db.NewSelect().
		Model((*ParticipantModel)(nil)).
		Where("service_id = ?", serviceID).
		Count(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to count participants")
	}
	return count, nil
}

// ListServicesByOwner returns the ids of the services owned by ownerID.
func (r *WaitlistRepository) ListServicesByOwner(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*ServiceModel)(nil)).
		Column("id").
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteServicesByOwner removes every service of ownerID.
func (r *WaitlistRepository) DeleteServicesByOwner(ctx context.Context, ownerID string) (int, error) {
	res, err := r.db.NewDelete().
		Model((*ServiceModel)(nil)).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// DeleteParticipantsByServiceIDs removes the participants of the services.
func (r *WaitlistRepository) DeleteParticipantsByServiceIDs(ctx context.Context, serviceIDs []string) (int, error) {
	if len(serviceIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.NewDelete().
		Model((*ParticipantModel)(nil)).
		Where("service_id IN (?)", bun.In(serviceIDs)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
