package util

import "errors"

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrEmailRegistered   = errors.New("该邮箱已被注册")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrAnswerNotFound    = errors.New("answer not found")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrCriterionNotFound = errors.New("scoring criterion not found")

	// ErrMissingCriteria 题型未配置任何评分细则，评分运行在调用 AI 之前立即失败
	ErrMissingCriteria = errors.New("no scoring criteria configured for question type")

	// ErrMissingAnswerText 写作评分要求文本已存在
	ErrMissingAnswerText = errors.New("answer has no text to score")

	// ErrMissingTranscription 口语答案既无转写文本也无音频，无法评分
	ErrMissingTranscription = errors.New("answer has no transcription and no audio")

	ErrAlreadyGraded = errors.New("answer already graded")
)
