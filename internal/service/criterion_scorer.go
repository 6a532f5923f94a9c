package service

import (
	"aptis_exam_backend/internal/config"
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/util"
	"aptis_exam_backend/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ScoringOracle 文本评分引擎契约，由 AIService 实现
type ScoringOracle interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// QuestionContext 评分时可用的题目上下文，sample answer 和 key points 可能为空
type QuestionContext struct {
	Title        string
	Content      string
	SampleAnswer string
	KeyPoints    string
}

// CriterionResult 单条评分细则的评分结果，score 已被钳制到 [0, maxScore]
type CriterionResult struct {
	CriterionID uint     `json:"criterionId"`
	Name        string   `json:"name"`
	Score       float64  `json:"score"`
	MaxScore    float64  `json:"maxScore"`
	Weight      float64  `json:"weight"`
	Comment     string   `json:"comment"`
	Suggestions []string `json:"suggestions"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
}

// CriterionScorer 按单条评分细则调用评分引擎，带重试和响应校验
type CriterionScorer struct {
	oracle     ScoringOracle
	maxRetries int
	retryDelay time.Duration
}

func NewCriterionScorer(oracle ScoringOracle, cfg config.AIConfig) *CriterionScorer {
	return &CriterionScorer{
		oracle:     oracle,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

const scorerSystemPrompt = "You are a strict but fair Aptis English examiner. " +
	"You grade one rubric criterion at a time and always answer with a single JSON object, no markdown, no extra text."

// oracleReply 评分引擎的结构化回复
type oracleReply struct {
	Score       *float64 `json:"score"`
	Comment     string   `json:"comment"`
	Suggestions []string `json:"suggestions"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
}

// Score 为一条评分细则产出一个经过校验、范围钳制的分数
// 调用失败（含畸形回复）在重试耗尽后作为硬错误向上传播，绝不静默给默认分
func (s *CriterionScorer) Score(ctx context.Context, answerText string, qctx QuestionContext, criterion model.ScoringCriterion) (*CriterionResult, error) {
	if strings.TrimSpace(answerText) == "" {
		return nil, util.ErrMissingAnswerText
	}

	prompt := s.buildPrompt(answerText, qctx, criterion)

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		raw, err := s.oracle.Complete(ctx, scorerSystemPrompt, prompt)
		if err != nil {
			lastErr = err
			logger.Log.Warn("oracle call failed",
				zap.String("criterion", criterion.Name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		reply, err := parseOracleReply(raw)
		if err != nil {
			// 畸形回复等同于调用失败，计入重试
			lastErr = err
			logger.Log.Warn("oracle reply malformed",
				zap.String("criterion", criterion.Name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		score := *reply.Score
		if score < 0 || score > criterion.MaxScore {
			// 评分引擎很容易误解评分量表，越界分数钳制后继续，只记警告
			clamped := util.Clamp(score, 0, criterion.MaxScore)
			logger.Log.Warn("oracle score out of bounds, clamped",
				zap.String("criterion", criterion.Name),
				zap.Float64("raw", score),
				zap.Float64("clamped", clamped),
				zap.Float64("maxScore", criterion.MaxScore))
			score = clamped
		}

		return &CriterionResult{
			CriterionID: criterion.ID,
			Name:        criterion.Name,
			Score:       score,
			MaxScore:    criterion.MaxScore,
			Weight:      criterion.Weight,
			Comment:     reply.Comment,
			Suggestions: reply.Suggestions,
			Strengths:   reply.Strengths,
			Weaknesses:  reply.Weaknesses,
		}, nil
	}

	return nil, fmt.Errorf("criterion %q scoring failed after %d attempts: %w", criterion.Name, s.maxRetries+1, lastErr)
}

func (s *CriterionScorer) buildPrompt(answerText string, qctx QuestionContext, criterion model.ScoringCriterion) string {
	var b strings.Builder

	b.WriteString("Grade the student answer below on ONE criterion.\n\n")
	fmt.Fprintf(&b, "Criterion: %s\n", criterion.Name)
	fmt.Fprintf(&b, "Maximum score: %g (the \"score\" you return MUST be between 0 and %g)\n", criterion.MaxScore, criterion.MaxScore)
	if criterion.RubricPrompt != "" {
		fmt.Fprintf(&b, "Rubric instructions: %s\n", criterion.RubricPrompt)
	}

	if qctx.Title != "" || qctx.Content != "" {
		b.WriteString("\nQuestion:\n")
		if qctx.Title != "" {
			fmt.Fprintf(&b, "%s\n", qctx.Title)
		}
		if qctx.Content != "" {
			fmt.Fprintf(&b, "%s\n", qctx.Content)
		}
	}
	if qctx.SampleAnswer != "" {
		fmt.Fprintf(&b, "\nSample answer for reference:\n%s\n", qctx.SampleAnswer)
	}
	if qctx.KeyPoints != "" {
		fmt.Fprintf(&b, "\nKey points the answer should cover:\n%s\n", qctx.KeyPoints)
	}

	fmt.Fprintf(&b, "\nStudent answer:\n%s\n", answerText)

	b.WriteString("\nReturn exactly this JSON shape:\n" +
		`{"score": <number>, "comment": "<short justification>", "suggestions": ["..."], "strengths": ["..."], "weaknesses": ["..."]}`)

	return b.String()
}

// parseOracleReply 解析评分引擎回复，容忍 markdown 代码围栏
func parseOracleReply(raw string) (*oracleReply, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// 回复里偶尔混入前后缀文字，截取最外层大括号
	if start := strings.Index(cleaned, "{"); start > 0 {
		cleaned = cleaned[start:]
	}
	if end := strings.LastIndex(cleaned, "}"); end >= 0 && end < len(cleaned)-1 {
		cleaned = cleaned[:end+1]
	}

	var reply oracleReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, fmt.Errorf("invalid JSON from oracle: %w", err)
	}
	if reply.Score == nil {
		return nil, fmt.Errorf("oracle reply missing score field")
	}

	return &reply, nil
}
