package model

// AnswerFeedback 单条评分细则的 AI 反馈记录，每次评分运行按细则 1:1 写入
// Suggestions/Strengths/Weaknesses 存 JSON 数组
type AnswerFeedback struct {
	BaseModel
	AnswerID    string  `gorm:"index;type:varchar(36)" json:"answerId"`
	CriterionID uint    `gorm:"index;type:bigint unsigned" json:"criterionId"`
	Name        string  `gorm:"size:100" json:"name"`
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"maxScore"`
	Weight      float64 `json:"weight"`
	Comment     string  `gorm:"type:text" json:"comment"`
	Suggestions string  `gorm:"type:json" json:"suggestions"`
	Strengths   string  `gorm:"type:json" json:"strengths"`
	Weaknesses  string  `gorm:"type:json" json:"weaknesses"`
}

func (AnswerFeedback) TableName() string {
	return "answer_feedbacks"
}
