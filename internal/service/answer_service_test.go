package service

import (
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/util"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type lifecycleStore struct {
	mu      sync.Mutex
	answers map[string]*model.Answer
	pending []model.Answer
	grades  map[string]float64
}

func newLifecycleStore(answers ...*model.Answer) *lifecycleStore {
	s := &lifecycleStore{
		answers: map[string]*model.Answer{},
		grades:  map[string]float64{},
	}
	for _, a := range answers {
		s.answers[a.ID] = a
	}
	return s
}

func (s *lifecycleStore) Create(answer *model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if answer.ID == "" {
		answer.ID = model.GenerateUUID()
	}
	s.answers[answer.ID] = answer
	return nil
}

func (s *lifecycleStore) FindByID(id string) (*model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return a, nil
}

func (s *lifecycleStore) ListByAttempt(attemptID string) ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Answer
	for _, a := range s.answers {
		if a.AttemptID == attemptID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *lifecycleStore) ListPendingAIGrading(limit int) ([]model.Answer, error) {
	if limit < len(s.pending) {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *lifecycleStore) SetManualGrade(answerID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grades[answerID] = score
	return nil
}

type feedbackReaderStub struct{}

func (feedbackReaderStub) ListByAnswer(answerID string) ([]model.AnswerFeedback, error) {
	return []model.AnswerFeedback{}, nil
}

// fakeScorer 按答案 ID 决定成败，记录调用
type fakeScorer struct {
	mu       sync.Mutex
	failIDs  map[string]bool
	writing  []string
	speaking []string
	called   chan string
}

func newFakeScorer() *fakeScorer {
	return &fakeScorer{
		failIDs: map[string]bool{},
		called:  make(chan string, 16),
	}
}

func (f *fakeScorer) ScoreWriting(ctx context.Context, answerID string) (*ScoringResult, error) {
	f.mu.Lock()
	f.writing = append(f.writing, answerID)
	fail := f.failIDs[answerID]
	f.mu.Unlock()
	f.called <- answerID
	if fail {
		return nil, errors.New("scoring failed")
	}
	return &ScoringResult{TotalScore: 5, TotalMaxScore: 10}, nil
}

func (f *fakeScorer) ScoreSpeaking(ctx context.Context, answerID string) (*ScoringResult, error) {
	f.mu.Lock()
	f.speaking = append(f.speaking, answerID)
	fail := f.failIDs[answerID]
	f.mu.Unlock()
	f.called <- answerID
	if fail {
		return nil, errors.New("scoring failed")
	}
	return &ScoringResult{TotalScore: 5, TotalMaxScore: 10}, nil
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	jobs  []string
	owned []string
}

func (f *fakeEnqueuer) Enqueue(answerID, audioPath, language string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, answerID)
	return "job-" + answerID
}

func (f *fakeEnqueuer) EnqueueOwned(answerID, audioPath, language string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, answerID)
	f.owned = append(f.owned, answerID)
	return "job-" + answerID
}

type fakeAudioStorage struct{}

func (fakeAudioStorage) UploadFile(ctx context.Context, filename, localPath, contentType string) (string, error) {
	return "/uploads/" + filename, nil
}

func (fakeAudioStorage) ResolveLocalPath(ctx context.Context, filename string) (string, bool, error) {
	return "/tmp/" + filename, false, nil
}

func newAnswerService(store *lifecycleStore, scorer *fakeScorer, queue *fakeEnqueuer) *AnswerService {
	return NewAnswerService(store, feedbackReaderStub{}, scorer, queue, fakeAudioStorage{})
}

func pendingText(id, text string) model.Answer {
	a := model.Answer{AnswerType: model.AnswerTypeText, TextAnswer: text}
	a.ID = id
	return a
}

func pendingAudio(id, transcribed string) model.Answer {
	a := model.Answer{AnswerType: model.AnswerTypeAudio, TranscribedText: transcribed}
	a.ID = id
	return a
}

func TestRegradeTallies(t *testing.T) {
	store := newLifecycleStore()
	store.pending = []model.Answer{
		pendingText("t-ok", "an essay"),
		pendingText("t-fail", "another essay"),
		pendingAudio("s-ok", "spoken words"),
		pendingAudio("s-empty", ""),
		pendingAudio("s-sentinel", model.TranscriptionFailedText),
	}
	scorer := newFakeScorer()
	scorer.failIDs["t-fail"] = true
	svc := newAnswerService(store, scorer, &fakeEnqueuer{})

	summary, err := svc.RegradeUngraded(context.Background(), 100)
	if err != nil {
		t.Fatalf("RegradeUngraded returned error: %v", err)
	}

	if summary.Scored != 2 {
		t.Errorf("scored = %d, want 2", summary.Scored)
	}
	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if summary.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", summary.Skipped)
	}

	scorer.mu.Lock()
	defer scorer.mu.Unlock()
	if len(scorer.writing) != 2 {
		t.Errorf("writing runs = %v, want 2", scorer.writing)
	}
	if len(scorer.speaking) != 1 || scorer.speaking[0] != "s-ok" {
		t.Errorf("speaking runs = %v, want [s-ok]", scorer.speaking)
	}
}

func TestRegradeHonorsLimit(t *testing.T) {
	store := newLifecycleStore()
	store.pending = []model.Answer{
		pendingText("t-1", "a"),
		pendingText("t-2", "b"),
		pendingText("t-3", "c"),
	}
	svc := newAnswerService(store, newFakeScorer(), &fakeEnqueuer{})

	summary, err := svc.RegradeUngraded(context.Background(), 2)
	if err != nil {
		t.Fatalf("RegradeUngraded returned error: %v", err)
	}
	if summary.Scored != 2 {
		t.Errorf("scored = %d, want 2", summary.Scored)
	}
}

func TestSubmitTextAnswerTriggersScoring(t *testing.T) {
	store := newLifecycleStore()
	scorer := newFakeScorer()
	svc := newAnswerService(store, scorer, &fakeEnqueuer{})

	answer, err := svc.SubmitTextAnswer("att-1", "q-1", "my essay")
	if err != nil {
		t.Fatalf("SubmitTextAnswer returned error: %v", err)
	}
	if answer.Status != model.AnswerStatusAnswered {
		t.Errorf("status = %q, want answered", answer.Status)
	}

	select {
	case id := <-scorer.called:
		if id != answer.ID {
			t.Errorf("scored answer %q, want %q", id, answer.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("automatic scoring was not triggered")
	}
}

func TestSubmitAudioAnswerEnqueuesTranscription(t *testing.T) {
	store := newLifecycleStore()
	queue := &fakeEnqueuer{}
	svc := newAnswerService(store, newFakeScorer(), queue)

	answer, jobID, err := svc.SubmitAudioAnswer(context.Background(), "att-1", "q-1", "/tmp/up.mp3", "recording.mp3", "en")
	if err != nil {
		t.Fatalf("SubmitAudioAnswer returned error: %v", err)
	}
	if jobID == "" {
		t.Error("job id is empty")
	}
	if answer.AudioObject == "" {
		t.Error("audio object key not recorded")
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.jobs) != 1 || queue.jobs[0] != answer.ID {
		t.Errorf("enqueued jobs = %v, want [%s]", queue.jobs, answer.ID)
	}
	// 上传留下的临时文件归队列清理
	if len(queue.owned) != 1 || queue.owned[0] != answer.ID {
		t.Errorf("owned jobs = %v, want [%s]", queue.owned, answer.ID)
	}
}

func TestHandleTranscriptionCompleteScoresOnce(t *testing.T) {
	transcribed := pendingAudio("a-1", "spoken words")
	store := newLifecycleStore(&transcribed)
	scorer := newFakeScorer()
	svc := newAnswerService(store, scorer, &fakeEnqueuer{})

	svc.HandleTranscriptionComplete("a-1")

	scorer.mu.Lock()
	defer scorer.mu.Unlock()
	if len(scorer.speaking) != 1 {
		t.Errorf("speaking runs = %v, want exactly one", scorer.speaking)
	}
}

func TestHandleTranscriptionCompleteSkipsGradedAnswer(t *testing.T) {
	graded := pendingAudio("a-1", "spoken words")
	score := 7.5
	graded.Score = &score
	store := newLifecycleStore(&graded)
	scorer := newFakeScorer()
	svc := newAnswerService(store, scorer, &fakeEnqueuer{})

	svc.HandleTranscriptionComplete("a-1")

	scorer.mu.Lock()
	defer scorer.mu.Unlock()
	if len(scorer.speaking) != 0 {
		t.Errorf("speaking runs = %v, want none for an already graded answer", scorer.speaking)
	}
}

func TestEnqueueTranscriptionRejectsTextAnswer(t *testing.T) {
	text := pendingText("a-1", "essay")
	store := newLifecycleStore(&text)
	svc := newAnswerService(store, newFakeScorer(), &fakeEnqueuer{})

	_, err := svc.EnqueueTranscription(context.Background(), "a-1", "en")
	if !errors.Is(err, util.ErrMissingTranscription) {
		t.Fatalf("err = %v, want ErrMissingTranscription", err)
	}
}

func TestManualGradeUnknownAnswer(t *testing.T) {
	svc := newAnswerService(newLifecycleStore(), newFakeScorer(), &fakeEnqueuer{})

	if err := svc.ManualGrade("missing", 5); !errors.Is(err, util.ErrAnswerNotFound) {
		t.Fatalf("err = %v, want ErrAnswerNotFound", err)
	}
}
