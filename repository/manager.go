package repository

import (
	"errors"
	"log"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/uptrace/bun"
)

// Manager bundles the organizer repositories with the waitlist store.
type Manager struct {
	auth.RepositoryManager
	waitlist *WaitlistRepository
}

// NewRepositoryManager creates the repositories over db.
func NewRepositoryManager(db *bun.DB, opts ...auth.OrganizersOption) *Manager {
	return &Manager{
		RepositoryManager: auth.NewRepositoryManager(db, opts...),
		waitlist:          NewWaitlistRepository(db),
	}
}

func (m *Manager) Validate() error {
	if err := m.RepositoryManager.Validate(); err != nil {
		return err
	}
	if m.waitlist == nil {
		return errors.New("repository waitlist should be initialized")
	}
	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// Waitlist returns the service and participant store
func (m *Manager) Waitlist() *WaitlistRepository {
	return m.waitlist
}

// OwnedData returns the store used to cascade account deletion
func (m *Manager) OwnedData() auth.OwnedDataStore {
	return m.waitlist
}
