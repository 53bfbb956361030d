package setup

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pandeypooja21/code-sync/internal/domain"
)

// MigrateDB runs schema migrations using the provided GORM DB instance.
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	if err := db.AutoMigrate(&domain.WorkspaceRecord{}); err != nil {
		return fmt.Errorf("failed to migrate workspace records: %w", err)
	}
	return nil
}
