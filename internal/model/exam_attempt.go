package model

import "time"

// ExamAttempt 一次考试作答记录，由考试子系统创建，评分管道只读取关联
type ExamAttempt struct {
	UUIDBase
	UserID      uint       `gorm:"index;type:bigint unsigned" json:"userId"`
	ExamTitle   string     `gorm:"size:255" json:"examTitle"`
	Status      string     `gorm:"size:20;default:'in_progress'" json:"status"` // in_progress / submitted
	StartedAt   time.Time  `json:"startedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}
