package entity

import (
	"time"
)

// ChapterStatus 章节状态
type ChapterStatus string

const (
	ChapterStatusDraft     ChapterStatus = "draft"
	ChapterStatusPlanned   ChapterStatus = "planned"
	ChapterStatusCompleted ChapterStatus = "completed"
)

// Chapter 章节实体
type Chapter struct {
	ID          string        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BookID      string        `json:"book_id" gorm:"type:varchar(64);index;not null"`
	SeqNum      int           `json:"seq_num" gorm:"not null"`
	Title       string        `json:"title,omitempty" gorm:"type:varchar(255)"`
	Outline     string        `json:"outline,omitempty" gorm:"type:text"`
	ContentText string        `json:"content_text,omitempty" gorm:"type:text"`
	Summary     string        `json:"summary,omitempty" gorm:"type:text"`
	WordCount   int           `json:"word_count" gorm:"default:0"`
	Status      ChapterStatus `json:"status" gorm:"type:varchar(50);default:'draft'"`
	Version     int           `json:"version" gorm:"default:1"`
	CreatedAt   time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// NewChapter 创建新章节
func NewChapter(bookID string, seqNum int) *Chapter {
	now := time.Now()
	return &Chapter{
		BookID:    bookID,
		SeqNum:    seqNum,
		Status:    ChapterStatusDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NextFromOutline 以大纲创建下一章
func (c *Chapter) NextFromOutline(outline string) *Chapter {
	next := NewChapter(c.BookID, c.SeqNum+1)
	next.Outline = outline
	next.Status = ChapterStatusPlanned
	return next
}

// SetContent 设置章节内容
func (c *Chapter) SetContent(content string) {
	c.ContentText = content
	c.WordCount = len([]rune(content))
	c.UpdatedAt = time.Now()
}

// SetSummary 设置章节剧情复盘
func (c *Chapter) SetSummary(summary string) {
	c.Summary = summary
	c.Version++
	c.UpdatedAt = time.Now()
}
