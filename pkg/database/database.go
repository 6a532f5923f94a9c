package database

import (
	"aptis_exam_backend/internal/config"
	"aptis_exam_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.User{},
		&model.AptisType{},
		&model.QuestionType{},
		&model.Question{},
		&model.ExamAttempt{},
		&model.Answer{},
		&model.ScoringCriterion{},
		&model.AnswerFeedback{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// 默认技能类别（空表时初始化）
	var atCount int64
	db.Model(&model.AptisType{}).Count(&atCount)
	if atCount == 0 {
		defaultTypes := []model.AptisType{
			{Code: "listening", Name: "Listening", Description: "听力理解", Enabled: true},
			{Code: "reading", Name: "Reading", Description: "阅读理解", Enabled: true},
			{Code: "writing", Name: "Writing", Description: "书面表达", Enabled: true},
			{Code: "speaking", Name: "Speaking", Description: "口语表达", Enabled: true},
			{Code: "grammar", Name: "Grammar & Vocabulary", Description: "语法与词汇", Enabled: true},
		}
		for _, t := range defaultTypes {
			db.Create(&t)
		}
	}

	return db, nil
}
