package model

import "time"

type AnswerType string

const (
	AnswerTypeOption AnswerType = "option"
	AnswerTypeText   AnswerType = "text"
	AnswerTypeAudio  AnswerType = "audio"
	AnswerTypeJSON   AnswerType = "json"
)

// 答案在评分管道中的状态流转：
// answered -> queued -> transcribed -> scoring -> scored | needs_review（音频）
// answered -> scoring -> scored | needs_review（文本）
const (
	AnswerStatusAnswered    = "answered"
	AnswerStatusQueued      = "queued"
	AnswerStatusTranscribed = "transcribed"
	AnswerStatusScoring     = "scoring"
	AnswerStatusScored      = "scored"
	AnswerStatusNeedsReview = "needs_review"
)

const (
	GradedByAuto   = "auto"
	GradedByAI     = "ai"
	GradedByManual = "manual"
)

// TranscriptionFailedText 转写重试耗尽后写入 transcribed_text 的占位文本
const TranscriptionFailedText = "[Transcription failed]"

// swagger:model Answer
type Answer struct {
	UUIDBase
	AttemptID       string     `gorm:"index;type:varchar(36)" json:"attemptId"`
	QuestionID      string     `gorm:"index;type:varchar(36)" json:"questionId"`
	AnswerType      AnswerType `gorm:"type:enum('option','text','audio','json');default:'text'" json:"answerType"`
	TextAnswer      string     `gorm:"type:text" json:"textAnswer"`
	AudioURL        string     `gorm:"size:500" json:"audioUrl"`
	AudioObject     string     `gorm:"size:500" json:"-"` // 存储层对象名，转写时用它换取本地路径
	TranscribedText string     `gorm:"type:text" json:"transcribedText"`
	Score           *float64   `json:"score"`
	MaxScore        float64    `gorm:"default:0" json:"maxScore"`
	AIFeedback      string     `gorm:"type:text" json:"aiFeedback"`
	AIGradedAt      *time.Time `json:"aiGradedAt,omitempty"`
	NeedsReview     bool       `gorm:"default:false;index" json:"needsReview"`
	GradedBy        string     `gorm:"size:20" json:"gradedBy"` // auto / ai / manual，空表示未评分
	Status          string     `gorm:"size:20;default:'answered';index" json:"status"`
}

func (Answer) TableName() string {
	return "answers"
}
