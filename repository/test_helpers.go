package repository

import (
	"time"

	"treasury/application"
	"treasury/database"
	"treasury/domain/interfaces"
)

// NewTestUnitOfWorkFactory creates a unit of work factory for tests
func NewTestUnitOfWorkFactory(db *database.DB, lockTimeout time.Duration) *unitOfWorkFactory {
	return NewUnitOfWorkFactory(db, lockTimeout)
}

// CreateTestUnitOfWork creates a unit of work for testing with the provided event publisher
func CreateTestUnitOfWork(db *database.DB, eventPublisher interfaces.EventPublisher) application.UnitOfWork {
	return NewTestUnitOfWorkFactory(db, 2*time.Second).CreateWithPublisher(eventPublisher)
}
