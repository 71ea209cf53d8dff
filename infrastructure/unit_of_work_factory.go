package infrastructure

import (
	"time"

	"treasury/application"
	"treasury/database"
	"treasury/domain/interfaces"
	"treasury/repository"
)

// UnitOfWorkFactory creates units of work that pair a database transaction with
// a transactional event publisher
type UnitOfWorkFactory struct {
	repoFactory interface {
		Create() application.UnitOfWork
	}
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory creates a new UnitOfWorkFactory
func NewUnitOfWorkFactory(db *database.DB, lockTimeout time.Duration, eventPublisher interfaces.EventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		repoFactory:    repository.NewUnitOfWorkFactory(db, lockTimeout),
		eventPublisher: eventPublisher,
	}
}

// Create creates a new UnitOfWork with its own pending event queue
func (f *UnitOfWorkFactory) Create() application.UnitOfWork {
	return &unitOfWork{
		inner:                  f.repoFactory.Create(),
		transactionalPublisher: NewNATSTransactionalPublisher(f.eventPublisher),
	}
}
