package service

import (
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/util"
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeAnswerStore struct {
	mu             sync.Mutex
	answers        map[string]*model.Answer
	statusUpdates  []string
	reviewFlags    map[string]string
	transcriptions map[string]string
	committed      *model.Answer
	commitFeedback []model.AnswerFeedback
	commitErr      error
}

func newFakeAnswerStore(answers ...*model.Answer) *fakeAnswerStore {
	s := &fakeAnswerStore{
		answers:        map[string]*model.Answer{},
		reviewFlags:    map[string]string{},
		transcriptions: map[string]string{},
	}
	for _, a := range answers {
		s.answers[a.ID] = a
	}
	return s
}

func (s *fakeAnswerStore) FindByID(id string) (*model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return a, nil
}

func (s *fakeAnswerStore) UpdateStatus(answerID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates = append(s.statusUpdates, status)
	if a, ok := s.answers[answerID]; ok {
		a.Status = status
	}
	return nil
}

func (s *fakeAnswerStore) UpdateTranscription(answerID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcriptions[answerID] = text
	if a, ok := s.answers[answerID]; ok {
		a.TranscribedText = text
		a.Status = model.AnswerStatusTranscribed
	}
	return nil
}

func (s *fakeAnswerStore) MarkNeedsReview(answerID, transcribedText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewFlags[answerID] = transcribedText
	if a, ok := s.answers[answerID]; ok {
		a.NeedsReview = true
		a.Status = model.AnswerStatusNeedsReview
	}
	return nil
}

func (s *fakeAnswerStore) CommitScoringResult(answer *model.Answer, feedbacks []model.AnswerFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = answer
	s.commitFeedback = feedbacks
	return nil
}

type fakeCriterionStore struct {
	criteria []model.ScoringCriterion
}

func (s *fakeCriterionStore) ListForQuestionType(aptisTypeID, questionTypeID uint) ([]model.ScoringCriterion, error) {
	return s.criteria, nil
}

type fakeQuestionStore struct {
	questions map[string]*model.Question
}

func (s *fakeQuestionStore) FindByID(id string) (*model.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return q, nil
}

type fakeSpeech struct {
	mu    sync.Mutex
	text  string
	errs  []error
	calls int
}

func (s *fakeSpeech) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return s.text, nil
}

func (s *fakeSpeech) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeResolver struct{ path string }

func (r *fakeResolver) ResolveLocalPath(ctx context.Context, filename string) (string, bool, error) {
	return r.path, false, nil
}

func gradingCriteria() []model.ScoringCriterion {
	grammar := model.ScoringCriterion{Name: "Grammar", Weight: 0.5, MaxScore: 5}
	grammar.ID = 1
	vocab := model.ScoringCriterion{Name: "Vocabulary", Weight: 0.25, MaxScore: 5}
	vocab.ID = 2
	return []model.ScoringCriterion{grammar, vocab}
}

func testQuestion() *model.Question {
	q := &model.Question{
		AptisTypeID:    1,
		QuestionTypeID: 2,
		Title:          "Write an email to a friend",
		MaxScore:       10,
	}
	q.ID = "q-1"
	return q
}

func textAnswer(id, text string) *model.Answer {
	a := &model.Answer{
		QuestionID: "q-1",
		AnswerType: model.AnswerTypeText,
		TextAnswer: text,
		Status:     model.AnswerStatusAnswered,
	}
	a.ID = id
	return a
}

func audioAnswer(id, transcribed, audioObject string) *model.Answer {
	a := &model.Answer{
		QuestionID:      "q-1",
		AnswerType:      model.AnswerTypeAudio,
		TranscribedText: transcribed,
		AudioObject:     audioObject,
		Status:          model.AnswerStatusAnswered,
	}
	a.ID = id
	return a
}

func newGradingService(answers *fakeAnswerStore, oracle ScoringOracle, criteria []model.ScoringCriterion, speech SpeechToText) *GradingService {
	scorer := NewCriterionScorer(oracle, scorerConfig())
	return NewGradingService(
		answers,
		&fakeQuestionStore{questions: map[string]*model.Question{"q-1": testQuestion()}},
		&fakeCriterionStore{criteria: criteria},
		scorer,
		speech,
		&fakeResolver{path: "/tmp/audio.wav"},
	)
}

func TestScoreWritingWeightedTotal(t *testing.T) {
	answers := newFakeAnswerStore(textAnswer("a-1", "Dear John, ..."))
	oracle := &fakeOracle{replies: []string{
		`{"score": 4, "comment": "solid grammar"}`,
		`{"score": 3, "comment": "adequate range"}`,
	}}
	svc := newGradingService(answers, oracle, gradingCriteria(), &fakeSpeech{})

	result, err := svc.ScoreWriting(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("ScoreWriting returned error: %v", err)
	}

	// 4*0.5 + 3*0.25 = 2.75 out of 5*0.5 + 5*0.25 = 3.75
	if result.TotalScore != 2.75 {
		t.Errorf("totalScore = %v, want 2.75", result.TotalScore)
	}
	if result.TotalMaxScore != 3.75 {
		t.Errorf("totalMaxScore = %v, want 3.75", result.TotalMaxScore)
	}
	if len(result.CriteriaScores) != 2 {
		t.Fatalf("criteriaScores = %d, want 2", len(result.CriteriaScores))
	}
	if result.OverallFeedback == "" {
		t.Error("overallFeedback is empty")
	}

	committed := answers.committed
	if committed == nil {
		t.Fatal("scoring result was not committed")
	}
	if committed.Score == nil || *committed.Score != 2.75 {
		t.Errorf("committed score = %v, want 2.75", committed.Score)
	}
	if committed.Status != model.AnswerStatusScored {
		t.Errorf("status = %q, want scored", committed.Status)
	}
	if committed.GradedBy != model.GradedByAI {
		t.Errorf("gradedBy = %q, want ai", committed.GradedBy)
	}
	if committed.NeedsReview {
		t.Error("needsReview should be false after a successful run")
	}
	if len(answers.commitFeedback) != 2 {
		t.Errorf("feedback rows = %d, want 2", len(answers.commitFeedback))
	}
}

func TestScoreWritingNoCriteriaFailsBeforeOracle(t *testing.T) {
	answers := newFakeAnswerStore(textAnswer("a-1", "some text"))
	oracle := &fakeOracle{}
	svc := newGradingService(answers, oracle, nil, &fakeSpeech{})

	_, err := svc.ScoreWriting(context.Background(), "a-1")
	if !errors.Is(err, util.ErrMissingCriteria) {
		t.Fatalf("err = %v, want ErrMissingCriteria", err)
	}
	if oracle.callCount() != 0 {
		t.Errorf("oracle calls = %d, want 0", oracle.callCount())
	}
	if len(answers.statusUpdates) != 0 {
		t.Errorf("status updates = %v, want none", answers.statusUpdates)
	}
	if answers.committed != nil {
		t.Error("nothing should be committed")
	}
}

func TestScoreWritingMissingText(t *testing.T) {
	answers := newFakeAnswerStore(textAnswer("a-1", "   "))
	svc := newGradingService(answers, &fakeOracle{}, gradingCriteria(), &fakeSpeech{})

	_, err := svc.ScoreWriting(context.Background(), "a-1")
	if !errors.Is(err, util.ErrMissingAnswerText) {
		t.Fatalf("err = %v, want ErrMissingAnswerText", err)
	}
}

func TestScoringAbortsAllOrNothing(t *testing.T) {
	answers := newFakeAnswerStore(textAnswer("a-1", "some text"))
	// 第一条细则成功，第二条细则的全部尝试都失败
	boom := errors.New("oracle down")
	oracle := &fakeOracle{
		replies: []string{`{"score": 4, "comment": "fine"}`},
		errs:    []error{nil, boom, boom, boom},
	}
	svc := newGradingService(answers, oracle, gradingCriteria(), &fakeSpeech{})

	_, err := svc.ScoreWriting(context.Background(), "a-1")
	if err == nil {
		t.Fatal("expected scoring run to abort")
	}

	if answers.committed != nil {
		t.Error("partial results must not be committed")
	}
	if len(answers.commitFeedback) != 0 {
		t.Errorf("feedback rows = %d, want 0", len(answers.commitFeedback))
	}
	if _, flagged := answers.reviewFlags["a-1"]; !flagged {
		t.Error("answer should be flagged for review")
	}
	a := answers.answers["a-1"]
	if a.Score != nil {
		t.Errorf("score = %v, want nil after aborted run", *a.Score)
	}
}

func TestScoringCommitFailureFlagsReview(t *testing.T) {
	answers := newFakeAnswerStore(textAnswer("a-1", "some text"))
	answers.commitErr = errors.New("tx rolled back")
	oracle := &fakeOracle{replies: []string{
		`{"score": 4, "comment": "fine"}`,
		`{"score": 3, "comment": "fine"}`,
	}}
	svc := newGradingService(answers, oracle, gradingCriteria(), &fakeSpeech{})

	_, err := svc.ScoreWriting(context.Background(), "a-1")
	if err == nil {
		t.Fatal("expected commit failure to surface")
	}

	// 事务回滚后不留半成品：没有落任何结果，答案转人工复核
	if answers.committed != nil {
		t.Error("nothing should be committed after a failed transaction")
	}
	if len(answers.commitFeedback) != 0 {
		t.Errorf("feedback rows = %d, want 0", len(answers.commitFeedback))
	}
	if _, flagged := answers.reviewFlags["a-1"]; !flagged {
		t.Error("answer should be flagged for review")
	}
}

func TestScoreSpeakingUsesExistingTranscription(t *testing.T) {
	answers := newFakeAnswerStore(audioAnswer("a-1", "hello my name is Ana", "answers/a.wav"))
	oracle := &fakeOracle{replies: []string{
		`{"score": 4, "comment": "good"}`,
		`{"score": 4, "comment": "good"}`,
	}}
	speech := &fakeSpeech{text: "should not be used"}
	svc := newGradingService(answers, oracle, gradingCriteria(), speech)

	if _, err := svc.ScoreSpeaking(context.Background(), "a-1"); err != nil {
		t.Fatalf("ScoreSpeaking returned error: %v", err)
	}
	if speech.callCount() != 0 {
		t.Errorf("speech calls = %d, want 0", speech.callCount())
	}
}

func TestScoreSpeakingTranscribesWhenMissing(t *testing.T) {
	answers := newFakeAnswerStore(audioAnswer("a-1", "", "answers/a.wav"))
	oracle := &fakeOracle{replies: []string{
		`{"score": 3, "comment": "ok"}`,
		`{"score": 3, "comment": "ok"}`,
	}}
	speech := &fakeSpeech{text: "transcribed speech"}
	svc := newGradingService(answers, oracle, gradingCriteria(), speech)

	if _, err := svc.ScoreSpeaking(context.Background(), "a-1"); err != nil {
		t.Fatalf("ScoreSpeaking returned error: %v", err)
	}
	if speech.callCount() != 1 {
		t.Errorf("speech calls = %d, want 1", speech.callCount())
	}
	if answers.transcriptions["a-1"] != "transcribed speech" {
		t.Errorf("transcription = %q, want persisted text", answers.transcriptions["a-1"])
	}
}

func TestScoreSpeakingSentinelTreatedAsMissing(t *testing.T) {
	// 占位文本 + 无音频对象：无法评分
	answers := newFakeAnswerStore(audioAnswer("a-1", model.TranscriptionFailedText, ""))
	svc := newGradingService(answers, &fakeOracle{}, gradingCriteria(), &fakeSpeech{})

	_, err := svc.ScoreSpeaking(context.Background(), "a-1")
	if !errors.Is(err, util.ErrMissingTranscription) {
		t.Fatalf("err = %v, want ErrMissingTranscription", err)
	}
}

func TestScoreWritingUnknownAnswer(t *testing.T) {
	svc := newGradingService(newFakeAnswerStore(), &fakeOracle{}, gradingCriteria(), &fakeSpeech{})

	_, err := svc.ScoreWriting(context.Background(), "missing")
	if !errors.Is(err, util.ErrAnswerNotFound) {
		t.Fatalf("err = %v, want ErrAnswerNotFound", err)
	}
}
