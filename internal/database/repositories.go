package database

import (
	"github.com/jmoiron/sqlx"

	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
	"github.com/vigil-ops/vigil-backend-go/internal/database/sqlite"
)

// Repositories holds all repository instances.
type Repositories struct {
	Failure  repositories.FailureRepository
	Alert    repositories.AlertRepository
	Incident repositories.IncidentRepository
	Rule     repositories.RuleRepository
	Health   repositories.HealthRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Failure:  sqlite.NewFailureRepository(db),
		Alert:    sqlite.NewAlertRepository(db),
		Incident: sqlite.NewIncidentRepository(db),
		Rule:     sqlite.NewRuleRepository(db),
		Health:   sqlite.NewHealthRepository(db),
	}
}
