package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// AccountManager deletes organizers together with the data they own.
type AccountManager struct {
	store        CredentialStore
	owned        OwnedDataStore
	logger       Logger
	activitySink ActivitySink
}

// NewAccountManager returns an AccountManager
func NewAccountManager(store CredentialStore, owned OwnedDataStore) *AccountManager {
	return &AccountManager{
		store:        store,
		owned:        owned,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (m *AccountManager) WithLogger(logger Logger) *AccountManager {
	m.logger = normalizeLogger(logger)
	return m
}

// WithActivitySink configures an ActivitySink for emitting deletion events.
func (m *AccountManager) WithActivitySink(sink ActivitySink) *AccountManager {
	m.activitySink = normalizeActivitySink(sink)
	return m
}

// DeleteAccount removes the organizer's participants, services and the
// organizer itself, in that order. The steps are not atomic across stores;
// a failure part way leaves earlier deletions in place.
func (m *AccountManager) DeleteAccount(ctx context.Context, organizerID string) (*DeletionReport, error) {
	org, err := m.store.FindByID(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	id := org.ID.String()

	serviceIDs, err := m.owned.ListServicesByOwner(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list owned services")
	}

	report := &DeletionReport{}
	if len(serviceIDs) > 0 {
		report.DeletedParticipants, err = m.owned.DeleteParticipantsByServiceIDs(ctx, serviceIDs)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to delete participants")
		}
	}

	report.DeletedServices, err = m.owned.DeleteServicesByOwner(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to delete services")
	}

	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Error("account delete left owned data removed", "organizer_id", id, "error", err)
		return nil, err
	}

	m.logger.Info("account deleted",
		"organizer_id", id,
		"services", report.DeletedServices,
		"participants", report.DeletedParticipants,
	)

	EmitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType:   ActivityEventAccountDeleted,
		Actor:       OrganizerActor(id),
		OrganizerID: id,
		Metadata: map[string]any{
			"deleted_services":     report.DeletedServices,
			"deleted_participants": report.DeletedParticipants,
		},
	})

	return report, nil
}
