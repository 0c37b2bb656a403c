package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// CredentialStore persists organizer identity records. It is the only
// component that touches organizer storage.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (*Organizer, error)
	FindByEmail(ctx context.Context, email string) (*Organizer, error)
	FindByProviderIdentity(ctx context.Context, provider Provider, providerID string) (*Organizer, error)
	Insert(ctx context.Context, org *Organizer) (*Organizer, error)
	AddProvider(ctx context.Context, organizerID string, provider Provider, providerID string) (*Organizer, error)
	RemoveProvider(ctx context.Context, organizerID string, provider Provider) (*Organizer, error)
	Delete(ctx context.Context, id string) error
}

type organizers struct {
	repository.Repository[*Organizer]
	db     *bun.DB
	logger Logger
}

var _ CredentialStore = (*organizers)(nil)

// OrganizersOption configures the organizer store
type OrganizersOption func(*organizers)

// WithOrganizersLogger sets the store logger
func WithOrganizersLogger(logger Logger) OrganizersOption {
	return func(o *organizers) {
		o.logger = normalizeLogger(logger)
	}
}

// NewOrganizersRepository returns a bun backed CredentialStore.
func NewOrganizersRepository(db *bun.DB, opts ...OrganizersOption) CredentialStore {
	repo := repository.NewRepository[*Organizer](db, repository.ModelHandlers[*Organizer]{
		NewRecord: func() *Organizer { return &Organizer{} },
		GetID: func(o *Organizer) uuid.UUID {
			if o == nil {
				return uuid.Nil
			}
			return o.ID
		},
		SetID: func(o *Organizer, id uuid.UUID) {
			if o != nil {
				o.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	store := &organizers{
		Repository: repo,
		db:         db,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (o *organizers) FindByID(ctx context.Context, id string) (*Organizer, error) {
	return o.findByIDTx(ctx, o.db, id)
}

func (o *organizers) findByIDTx(ctx context.Context, tx bun.IDB, id string) (*Organizer, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrAccountNotFound
	}
	return o.findOneTx(ctx, tx, "?TableAlias.id = ?", uid)
}

func (o *organizers) FindByEmail(ctx context.Context, email string) (*Organizer, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrAccountNotFound
	}
	return o.findOneTx(ctx, o.db, "?TableAlias.email = ?", email)
}

func (o *organizers) FindByProviderIdentity(ctx context.Context, provider Provider, providerID string) (*Organizer, error) {
	if provider == "" || providerID == "" {
		return nil, ErrAccountNotFound
	}

	link := &OrganizerProvider{}
	err := o.db.NewSelect().
		Model(link).
		Where("?TableAlias.provider = ?", provider).
		Where("?TableAlias.provider_id = ?", providerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError(err, "failed to find provider identity")
	}

	return o.findOneTx(ctx, o.db, "?TableAlias.id = ?", link.OrganizerID)
}

func (o *organizers) findOneTx(ctx context.Context, tx bun.IDB, where string, args ...any) (*Organizer, error) {
	record := &Organizer{}
	err := tx.NewSelect().
		Model(record).
		Relation("SocialProviders", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Where(where, args...).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError(err, "failed to load organizer")
	}
	return record, nil
}

// Insert creates the organizer and its provider rows in one transaction.
func (o *organizers) Insert(ctx context.Context, org *Organizer) (*Organizer, error) {
	if org == nil {
		return nil, errors.New("organizer must not be nil", errors.CategoryBadInput)
	}
	prepareOrganizerDefaults(org)
	if !org.HasCredentials() {
		return nil, ErrLastAuthMethod
	}

	err := o.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := o.Repository.CreateTx(ctx, tx, org); err != nil {
			return err
		}
		if len(org.SocialProviders) == 0 {
			return nil
		}
		for _, p := range org.SocialProviders {
			prepareProviderDefaults(org, p)
		}
		_, err := tx.NewInsert().Model(&org.SocialProviders).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, o.mapWriteError(err, "failed to insert organizer")
	}

	return org, nil
}

// AddProvider inserts a single provider row for the organizer. Rows for
// other providers are never touched.
func (o *organizers) AddProvider(ctx context.Context, organizerID string, provider Provider, providerID string) (*Organizer, error) {
	uid, err := uuid.Parse(strings.TrimSpace(organizerID))
	if err != nil {
		return nil, ErrAccountNotFound
	}

	var updated *Organizer
	err = o.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := o.lockOrganizer(ctx, tx, uid); err != nil {
			return err
		}

		linked, err := tx.NewSelect().
			Model((*OrganizerProvider)(nil)).
			Where("organizer_id = ?", uid).
			Where("provider = ?", provider).
			Exists(ctx)
		if err != nil {
			return err
		}
		if linked {
			return ErrProviderAlreadyLinked
		}

		row := &OrganizerProvider{
			ID:          uuid.New(),
			OrganizerID: uid,
			Provider:    provider,
			ProviderID:  providerID,
			CreatedAt:   time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}

		updated, err = o.findOneTx(ctx, tx, "?TableAlias.id = ?", uid)
		return err
	})
	if err != nil {
		return nil, o.mapWriteError(err, "failed to link provider")
	}
	return updated, nil
}

// RemoveProvider deletes the organizer's row for provider. The organizer
// row stays locked until commit and the remaining credentials are counted
// again before the delete is kept.
func (o *organizers) RemoveProvider(ctx context.Context, organizerID string, provider Provider) (*Organizer, error) {
	uid, err := uuid.Parse(strings.TrimSpace(organizerID))
	if err != nil {
		return nil, ErrAccountNotFound
	}

	var updated *Organizer
	err = o.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := o.lockOrganizer(ctx, tx, uid); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*OrganizerProvider)(nil)).
			Where("organizer_id = ?", uid).
			Where("provider = ?", provider).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrProviderNotLinked
		}

		updated, err = o.findOneTx(ctx, tx, "?TableAlias.id = ?", uid)
		if err != nil {
			return err
		}
		if !updated.HasCredentials() {
			o.logger.Warn("unlink rejected, no credentials would remain", "organizer_id", uid.String(), "provider", provider)
			return ErrLastAuthMethod
		}
		return nil
	})
	if err != nil {
		return nil, o.mapWriteError(err, "failed to unlink provider")
	}
	return updated, nil
}

// lockOrganizer takes a row lock on the organizer for the rest of tx.
// SQLite has no row locks; its single writer serializes the transactions.
func (o *organizers) lockOrganizer(ctx context.Context, tx bun.Tx, id uuid.UUID) error {
	q := tx.NewSelect().
		Model((*Organizer)(nil)).
		Column("id").
		Where("id = ?", id)
	if tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}

	var locked uuid.UUID
	if err := q.Scan(ctx, &locked); err != nil {
		if isRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

// Delete removes the organizer and its provider rows.
func (o *organizers) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return ErrAccountNotFound
	}

	err = o.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*OrganizerProvider)(nil)).
			Where("organizer_id = ?", uid).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*Organizer)(nil)).
			Where("id = ?", uid).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
	if err != nil {
		return o.mapWriteError(err, "failed to delete organizer")
	}
	return nil
}

// mapWriteError turns uniqueness violations into domain errors and leaves
// domain errors untouched.
func (o *organizers) mapWriteError(err error, msg string) error {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) && domainErr.Category != errors.CategoryInternal && !isUniqueViolation(err) {
		return err
	}

	if isUniqueViolation(err) {
		text := strings.ToLower(err.Error())
		switch {
		case strings.Contains(text, "organizers.email"),
			strings.Contains(text, "uq_organizers_email"):
			return ErrEmailAlreadyRegistered
		case strings.Contains(text, "organizer_providers.organizer_id"),
			strings.Contains(text, "uq_organizer_providers_owner"):
			return ErrProviderAlreadyLinked
		default:
			return ErrProviderLinkedElsewhere
		}
	}

	if repository.IsRecordNotFound(err) {
		return ErrAccountNotFound
	}

	o.logger.Error("organizer store failure", "error", err)
	return internalError(err, msg)
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func prepareOrganizerDefaults(org *Organizer) {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	org.Email = NormalizeEmail(org.Email)
	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	org.UpdatedAt = now
}

func prepareProviderDefaults(org *Organizer, p *OrganizerProvider) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.OrganizerID = org.ID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
}
