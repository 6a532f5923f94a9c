package service

import (
	"aptis_exam_backend/internal/config"
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/util"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeOracle 按脚本逐次返回回复或错误
type fakeOracle struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
}

func (f *fakeOracle) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	if len(f.replies) > 0 {
		return f.replies[len(f.replies)-1], nil
	}
	return "", errors.New("no scripted reply")
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func scorerConfig() config.AIConfig {
	return config.AIConfig{MaxRetries: 2, RetryDelay: time.Millisecond}
}

func testCriterion() model.ScoringCriterion {
	c := model.ScoringCriterion{
		Name:         "Grammar",
		Weight:       2,
		MaxScore:     5,
		RubricPrompt: "Assess grammatical range and accuracy.",
		Enabled:      true,
	}
	c.ID = 7
	return c
}

func TestScoreParsesReply(t *testing.T) {
	oracle := &fakeOracle{replies: []string{
		`{"score": 4, "comment": "good control", "suggestions": ["vary tenses"], "strengths": ["clear"], "weaknesses": ["articles"]}`,
	}}
	scorer := NewCriterionScorer(oracle, scorerConfig())

	result, err := scorer.Score(context.Background(), "My answer text", QuestionContext{Title: "Describe your city"}, testCriterion())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}

	if result.Score != 4 {
		t.Errorf("score = %v, want 4", result.Score)
	}
	if result.CriterionID != 7 {
		t.Errorf("criterionId = %d, want 7", result.CriterionID)
	}
	if result.MaxScore != 5 || result.Weight != 2 {
		t.Errorf("maxScore/weight = %v/%v, want 5/2", result.MaxScore, result.Weight)
	}
	if result.Comment != "good control" {
		t.Errorf("comment = %q", result.Comment)
	}
	if oracle.callCount() != 1 {
		t.Errorf("oracle calls = %d, want 1", oracle.callCount())
	}
}

func TestScoreToleratesCodeFences(t *testing.T) {
	oracle := &fakeOracle{replies: []string{
		"```json\n{\"score\": 3, \"comment\": \"ok\"}\n```",
	}}
	scorer := NewCriterionScorer(oracle, scorerConfig())

	result, err := scorer.Score(context.Background(), "answer", QuestionContext{}, testCriterion())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if result.Score != 3 {
		t.Errorf("score = %v, want 3", result.Score)
	}
}

func TestScoreClampsOutOfBounds(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  float64
	}{
		{"above max", `{"score": 12, "comment": "x"}`, 5},
		{"negative", `{"score": -3, "comment": "x"}`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			oracle := &fakeOracle{replies: []string{tc.reply}}
			scorer := NewCriterionScorer(oracle, scorerConfig())

			result, err := scorer.Score(context.Background(), "answer", QuestionContext{}, testCriterion())
			if err != nil {
				t.Fatalf("Score returned error: %v", err)
			}
			if result.Score != tc.want {
				t.Errorf("score = %v, want %v", result.Score, tc.want)
			}
		})
	}
}

func TestScoreRetriesMalformedReply(t *testing.T) {
	oracle := &fakeOracle{replies: []string{
		"I think this answer deserves a good grade!",
		`{"score": 2, "comment": "weak"}`,
	}}
	scorer := NewCriterionScorer(oracle, scorerConfig())

	result, err := scorer.Score(context.Background(), "answer", QuestionContext{}, testCriterion())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if result.Score != 2 {
		t.Errorf("score = %v, want 2", result.Score)
	}
	if oracle.callCount() != 2 {
		t.Errorf("oracle calls = %d, want 2", oracle.callCount())
	}
}

func TestScoreMissingScoreFieldCountsAsFailure(t *testing.T) {
	oracle := &fakeOracle{replies: []string{
		`{"comment": "forgot the score"}`,
		`{"score": 1, "comment": "ok"}`,
	}}
	scorer := NewCriterionScorer(oracle, scorerConfig())

	result, err := scorer.Score(context.Background(), "answer", QuestionContext{}, testCriterion())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if result.Score != 1 {
		t.Errorf("score = %v, want 1", result.Score)
	}
}

func TestScoreFailsAfterRetriesExhausted(t *testing.T) {
	boom := errors.New("oracle down")
	oracle := &fakeOracle{errs: []error{boom, boom, boom}}
	scorer := NewCriterionScorer(oracle, scorerConfig())

	_, err := scorer.Score(context.Background(), "answer", QuestionContext{}, testCriterion())
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error does not wrap cause: %v", err)
	}
	if oracle.callCount() != 3 {
		t.Errorf("oracle calls = %d, want 3 (1 + 2 retries)", oracle.callCount())
	}
}

func TestScoreRejectsEmptyAnswer(t *testing.T) {
	oracle := &fakeOracle{}
	scorer := NewCriterionScorer(oracle, scorerConfig())

	_, err := scorer.Score(context.Background(), "   ", QuestionContext{}, testCriterion())
	if !errors.Is(err, util.ErrMissingAnswerText) {
		t.Fatalf("err = %v, want ErrMissingAnswerText", err)
	}
	if oracle.callCount() != 0 {
		t.Errorf("oracle calls = %d, want 0", oracle.callCount())
	}
}
