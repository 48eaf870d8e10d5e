// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-copilot/internal/domain/entity"
)

// ChapterRepository 章节仓储接口
type ChapterRepository interface {
	// Create 创建章节
	Create(ctx context.Context, chapter *entity.Chapter) error

	// GetByID 根据 ID 获取章节，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Chapter, error)

	// UpdateSummary 更新章节剧情复盘
	UpdateSummary(ctx context.Context, id, summary string) error

	// GetByBookAndSeq 根据作品和序号获取章节
	GetByBookAndSeq(ctx context.Context, bookID string, seqNum int) (*entity.Chapter, error)
}
