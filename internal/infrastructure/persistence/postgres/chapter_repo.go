// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"z-novel-copilot/internal/domain/entity"
	apperrors "z-novel-copilot/pkg/errors"
)

// ChapterRepository 章节仓储实现
type ChapterRepository struct {
	client *Client
}

// NewChapterRepository 创建章节仓储
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

// Create 创建章节
func (r *ChapterRepository) Create(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(chapter).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapter: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取章节
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByID")
	defer span.End()

	var chapter entity.Chapter
	if err := getDB(ctx, r.client.db).First(&chapter, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

// UpdateSummary 更新章节剧情复盘
func (r *ChapterRepository) UpdateSummary(ctx context.Context, id, summary string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.UpdateSummary")
	defer span.End()

	result := getDB(ctx, r.client.db).Model(&entity.Chapter{}).Where("id = ?", id).Updates(map[string]interface{}{
		"summary": summary,
		"version": gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update chapter summary: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrChapterNotFound
	}
	return nil
}

// GetByBookAndSeq 根据作品和序号获取章节
func (r *ChapterRepository) GetByBookAndSeq(ctx context.Context, bookID string, seqNum int) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByBookAndSeq")
	defer span.End()

	var chapter entity.Chapter
	err := getDB(ctx, r.client.db).
		Where("book_id = ? AND seq_num = ?", bookID, seqNum).
		First(&chapter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter by book and seq: %w", err)
	}
	return &chapter, nil
}
