package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/repository"
)

// GormWorkspaceRepository is the GORM implementation of WorkspaceRepository.
type GormWorkspaceRepository struct {
	db *gorm.DB
}

// NewGormWorkspaceRepository creates a GormWorkspaceRepository instance.
func NewGormWorkspaceRepository(db *gorm.DB) *GormWorkspaceRepository {
	if db == nil {
		panic("database connection cannot be nil for GormWorkspaceRepository")
	}
	return &GormWorkspaceRepository{db: db}
}

// FindByID loads one workspace record by id.
func (r *GormWorkspaceRepository) FindByID(ctx context.Context, id string) (*domain.WorkspaceRecord, error) {
	var record domain.WorkspaceRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("gorm: find workspace by id %s: %w", id, err)
	}
	return &record, nil
}

// Save upserts a workspace record. The write-behind flush calls this
// repeatedly for the same id, so conflicts update in place.
func (r *GormWorkspaceRepository) Save(ctx context.Context, record *domain.WorkspaceRecord) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner_id", "name", "state", "updated_at"}),
		}).
		Create(record).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save workspace %s: %w", record.ID, err)
	}
	return nil
}

// Delete removes a workspace record. Absent records are not an error.
func (r *GormWorkspaceRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Delete(&domain.WorkspaceRecord{}, "id = ?", id).Error
	if err != nil {
		return fmt.Errorf("gorm: delete workspace %s: %w", id, err)
	}
	return nil
}
