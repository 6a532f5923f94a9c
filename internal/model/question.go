package model

// AptisType 表示 Aptis 考试的技能类别（listening/reading/writing/speaking 等）
type AptisType struct {
	BaseModel
	Code        string `gorm:"size:50;unique;not null" json:"code"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Enabled     bool   `gorm:"default:true" json:"enabled"`
}

func (AptisType) TableName() string {
	return "aptis_types"
}

// QuestionType 表示某技能下的题型（如 speaking part 2、writing email 等）
type QuestionType struct {
	BaseModel
	AptisTypeID uint   `gorm:"index;type:bigint unsigned" json:"aptisTypeId"`
	Code        string `gorm:"size:50;not null" json:"code"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Enabled     bool   `gorm:"default:true" json:"enabled"`
}

func (QuestionType) TableName() string {
	return "question_types"
}

// Question 题库中的单题，sample answer 和 key points 用于 AI 评分时的上下文
type Question struct {
	UUIDBase
	AptisTypeID    uint    `gorm:"index;type:bigint unsigned" json:"aptisTypeId"`
	QuestionTypeID uint    `gorm:"index;type:bigint unsigned" json:"questionTypeId"`
	Title          string  `gorm:"size:255;not null" json:"title"`
	Content        string  `gorm:"type:text" json:"content"`
	SampleAnswer   string  `gorm:"type:text" json:"sampleAnswer"`
	KeyPoints      string  `gorm:"type:text" json:"keyPoints"`
	MaxScore       float64 `gorm:"default:0" json:"maxScore"`
	MediaURL       string  `gorm:"size:500" json:"mediaUrl"`
	IsPublished    bool    `gorm:"default:false" json:"isPublished"`
	CreatorID      uint    `gorm:"index;type:bigint unsigned" json:"creatorId"`
}

func (Question) TableName() string {
	return "questions"
}
