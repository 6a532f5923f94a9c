package service

import (
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/util"
	"aptis_exam_backend/pkg/logger"
	"aptis_exam_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SpeechToText 语音转写引擎契约，由 SpeechService 实现
type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// GradingAnswerStore 评分编排需要的答案持久化操作
type GradingAnswerStore interface {
	FindByID(id string) (*model.Answer, error)
	UpdateStatus(answerID, status string) error
	UpdateTranscription(answerID, text string) error
	MarkNeedsReview(answerID, transcribedText string) error
	CommitScoringResult(answer *model.Answer, feedbacks []model.AnswerFeedback) error
}

// CriterionStore 评分细则读取
type CriterionStore interface {
	ListForQuestionType(aptisTypeID, questionTypeID uint) ([]model.ScoringCriterion, error)
}

// QuestionStore 题目上下文读取
type QuestionStore interface {
	FindByID(id string) (*model.Question, error)
}

// AudioResolver 把存储中的音频对象解析成本地可读路径
type AudioResolver interface {
	ResolveLocalPath(ctx context.Context, filename string) (string, bool, error)
}

// ScoringResult 一次完整多细则评分运行的聚合结果
type ScoringResult struct {
	TotalScore      float64           `json:"totalScore"`
	TotalMaxScore   float64           `json:"totalMaxScore"`
	CriteriaScores  []CriterionResult `json:"criteriaScores"`
	OverallFeedback string            `json:"overallFeedback"`
}

// GradingService 驱动一条答案的全部评分细则并聚合加权结果，全有或全无：
// 任何一条细则评分失败都放弃整次运行，不落任何部分结果
type GradingService struct {
	answers   GradingAnswerStore
	questions QuestionStore
	criteria  CriterionStore
	scorer    *CriterionScorer
	speech    SpeechToText
	audio     AudioResolver
	language  string
}

func NewGradingService(
	answers GradingAnswerStore,
	questions QuestionStore,
	criteria CriterionStore,
	scorer *CriterionScorer,
	speech SpeechToText,
	audio AudioResolver,
) *GradingService {
	return &GradingService{
		answers:   answers,
		questions: questions,
		criteria:  criteria,
		scorer:    scorer,
		speech:    speech,
		audio:     audio,
		language:  "en",
	}
}

// ScoreWriting 为文本答案执行一次评分运行，要求文本已存在
func (s *GradingService) ScoreWriting(ctx context.Context, answerID string) (*ScoringResult, error) {
	answer, err := s.answers.FindByID(answerID)
	if err != nil {
		return nil, util.ErrAnswerNotFound
	}

	if strings.TrimSpace(answer.TextAnswer) == "" {
		return nil, util.ErrMissingAnswerText
	}

	return s.runScoring(ctx, answer, answer.TextAnswer, "writing")
}

// ScoreSpeaking 为口语答案执行一次评分运行
// 转写文本缺失但音频存在时先同步转写，之后与写作评分走同一条路
func (s *GradingService) ScoreSpeaking(ctx context.Context, answerID string) (*ScoringResult, error) {
	answer, err := s.answers.FindByID(answerID)
	if err != nil {
		return nil, util.ErrAnswerNotFound
	}

	text := answer.TranscribedText
	// 占位文本视同缺失，避免把失败标记喂给评分引擎
	if text == model.TranscriptionFailedText {
		text = ""
	}

	if strings.TrimSpace(text) == "" {
		if answer.AudioObject == "" {
			return nil, util.ErrMissingTranscription
		}

		text, err = s.transcribeNow(ctx, answer)
		if err != nil {
			return nil, err
		}
	}

	return s.runScoring(ctx, answer, text, "speaking")
}

func (s *GradingService) transcribeNow(ctx context.Context, answer *model.Answer) (string, error) {
	localPath, temp, err := s.audio.ResolveLocalPath(ctx, answer.AudioObject)
	if err != nil {
		return "", fmt.Errorf("resolve audio failed: %w", err)
	}
	if temp {
		defer removeTemp(localPath)
	}

	text, err := s.speech.Transcribe(ctx, localPath, s.language)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	if err := s.answers.UpdateTranscription(answer.ID, text); err != nil {
		return "", err
	}
	answer.TranscribedText = text

	return text, nil
}

// runScoring 顺序执行全部细则并原子提交；空细则列表在任何引擎调用前即失败
func (s *GradingService) runScoring(ctx context.Context, answer *model.Answer, answerText, skill string) (*ScoringResult, error) {
	start := time.Now()

	question, err := s.questions.FindByID(answer.QuestionID)
	if err != nil {
		return nil, util.ErrQuestionNotFound
	}

	criteria, err := s.criteria.ListForQuestionType(question.AptisTypeID, question.QuestionTypeID)
	if err != nil {
		return nil, err
	}
	if len(criteria) == 0 {
		return nil, util.ErrMissingCriteria
	}

	if err := s.answers.UpdateStatus(answer.ID, model.AnswerStatusScoring); err != nil {
		return nil, err
	}

	qctx := QuestionContext{
		Title:        question.Title,
		Content:      question.Content,
		SampleAnswer: question.SampleAnswer,
		KeyPoints:    question.KeyPoints,
	}

	// 细则按顺序评分：限制对共享评分引擎的并发压力，首个失败即干净中止
	var results []CriterionResult
	totalScore := 0.0
	totalMaxScore := 0.0

	for _, criterion := range criteria {
		result, err := s.scorer.Score(ctx, answerText, qctx, criterion)
		if err != nil {
			s.failRun(answer.ID, skill, err)
			return nil, fmt.Errorf("scoring run aborted: %w", err)
		}

		results = append(results, *result)
		totalScore += result.Score * result.Weight
		totalMaxScore += result.MaxScore * result.Weight
	}

	scoringResult := &ScoringResult{
		TotalScore:      util.Round2(totalScore),
		TotalMaxScore:   util.Round2(totalMaxScore),
		CriteriaScores:  results,
		OverallFeedback: buildOverallFeedback(results),
	}

	if err := s.commit(answer, scoringResult); err != nil {
		s.failRun(answer.ID, skill, err)
		return nil, err
	}

	monitoring.ScoringRuns.WithLabelValues(skill, "scored").Inc()
	monitoring.ScoringDuration.Observe(time.Since(start).Seconds())

	logger.Log.Info("scoring run completed",
		zap.String("answerId", answer.ID),
		zap.String("skill", skill),
		zap.Int("criteria", len(results)),
		zap.Float64("totalScore", scoringResult.TotalScore),
		zap.Float64("totalMaxScore", scoringResult.TotalMaxScore))

	return scoringResult, nil
}

// failRun 评分运行失败：转人工复核，分数保持为空
func (s *GradingService) failRun(answerID, skill string, cause error) {
	monitoring.ScoringRuns.WithLabelValues(skill, "failed").Inc()
	logger.Log.Error("scoring run failed, flagged for review",
		zap.String("answerId", answerID),
		zap.Error(cause))

	if err := s.answers.MarkNeedsReview(answerID, ""); err != nil {
		logger.Log.Error("failed to flag answer for review",
			zap.String("answerId", answerID),
			zap.Error(err))
	}
}

func (s *GradingService) commit(answer *model.Answer, result *ScoringResult) error {
	feedbacks := make([]model.AnswerFeedback, 0, len(result.CriteriaScores))
	for _, r := range result.CriteriaScores {
		feedbacks = append(feedbacks, model.AnswerFeedback{
			AnswerID:    answer.ID,
			CriterionID: r.CriterionID,
			Name:        r.Name,
			Score:       r.Score,
			MaxScore:    r.MaxScore,
			Weight:      r.Weight,
			Comment:     r.Comment,
			Suggestions: marshalList(r.Suggestions),
			Strengths:   marshalList(r.Strengths),
			Weaknesses:  marshalList(r.Weaknesses),
		})
	}

	now := time.Now()
	score := result.TotalScore
	answer.Score = &score
	answer.MaxScore = result.TotalMaxScore
	answer.AIFeedback = result.OverallFeedback
	answer.AIGradedAt = &now
	answer.GradedBy = model.GradedByAI
	answer.NeedsReview = false
	answer.Status = model.AnswerStatusScored

	return s.answers.CommitScoringResult(answer, feedbacks)
}

func buildOverallFeedback(results []CriterionResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%.2f/%.2f): %s", r.Name, r.Score, r.MaxScore, r.Comment)
	}
	return b.String()
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil {
		logger.Log.Warn("failed to remove temp audio", zap.String("path", path), zap.Error(err))
	}
}

func marshalList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}
