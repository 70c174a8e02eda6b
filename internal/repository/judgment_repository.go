package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"judgment-rag/internal/model"
)

const titleSearchLimit = 50

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// JudgmentRepository persists judgments in MySQL through gorm.
type JudgmentRepository struct {
	db *gorm.DB
}

func NewJudgmentRepository(db *gorm.DB) *JudgmentRepository {
	return &JudgmentRepository{db: db}
}

// Save assigns a fresh identifier and inserts the record.
func (r *JudgmentRepository) Save(ctx context.Context, record *model.JudgmentRecord) error {
	record.ID = uuid.NewString()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create judgment failed: %w", err)
	}
	return nil
}

func (r *JudgmentRepository) FindByID(ctx context.Context, id string) (*model.JudgmentRecord, error) {
	var record model.JudgmentRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get judgment failed: %w", err)
	}
	return &record, nil
}

// SearchByTitle returns judgments whose title contains fragment, ignoring case.
func (r *JudgmentRepository) SearchByTitle(ctx context.Context, fragment string) ([]model.JudgmentRecord, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(fragment)) + "%"
	var list []model.JudgmentRecord
	err := r.db.WithContext(ctx).
		Where("LOWER(title) LIKE ?", pattern).
		Order("created_at DESC").
		Limit(titleSearchLimit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("search judgments by title failed: %w", err)
	}
	return list, nil
}
