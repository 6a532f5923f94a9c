package model

// ScoringCriterion 评分细则：某题型下的一个加权评分维度（如语法准确性）
// weight ∈ (0,1]，同一题型下的权重之和不要求为 1
type ScoringCriterion struct {
	BaseModel
	AptisTypeID    uint    `gorm:"index;type:bigint unsigned" json:"aptisTypeId"`
	QuestionTypeID uint    `gorm:"index;type:bigint unsigned" json:"questionTypeId"`
	Name           string  `gorm:"size:100;not null" json:"name"`
	Weight         float64 `gorm:"not null" json:"weight"` // 加权系数，(0,1]
	MaxScore       float64 `gorm:"not null" json:"maxScore"`
	RubricPrompt   string  `gorm:"type:text" json:"rubricPrompt"`
	Enabled        bool    `gorm:"default:true" json:"enabled"`
}

func (ScoringCriterion) TableName() string {
	return "scoring_criteria"
}
