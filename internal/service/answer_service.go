package service

import (
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/util"
	"aptis_exam_backend/pkg/logger"
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnswerScorer 评分编排入口，由 GradingService 实现
type AnswerScorer interface {
	ScoreWriting(ctx context.Context, answerID string) (*ScoringResult, error)
	ScoreSpeaking(ctx context.Context, answerID string) (*ScoringResult, error)
}

// TranscriptionEnqueuer 转写任务入队，由 TranscriptionQueueService 实现
// EnqueueOwned 会把音频文件的所有权交给队列，任务终态时由队列删除
type TranscriptionEnqueuer interface {
	Enqueue(answerID, audioPath, language string) string
	EnqueueOwned(answerID, audioPath, language string) string
}

// AnswerLifecycleStore 生命周期协调需要的答案持久化操作
type AnswerLifecycleStore interface {
	Create(answer *model.Answer) error
	FindByID(id string) (*model.Answer, error)
	ListByAttempt(attemptID string) ([]model.Answer, error)
	ListPendingAIGrading(limit int) ([]model.Answer, error)
	SetManualGrade(answerID string, score float64) error
}

// FeedbackReader 按答案读取逐项评分反馈
type FeedbackReader interface {
	ListByAnswer(answerID string) ([]model.AnswerFeedback, error)
}

// AudioStorage 音频落盘与本地路径解析
type AudioStorage interface {
	UploadFile(ctx context.Context, filename string, localPath string, contentType string) (string, error)
	ResolveLocalPath(ctx context.Context, filename string) (string, bool, error)
}

// RegradeSummary 批量补评的汇总计数
type RegradeSummary struct {
	Scored  int `json:"scored"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// AnswerService 把答案在管道各阶段之间推进：
// 提交 -> 转写队列 -> 评分 -> 得分或人工复核
type AnswerService struct {
	answers   AnswerLifecycleStore
	feedbacks FeedbackReader
	scorer    AnswerScorer
	queue     TranscriptionEnqueuer
	storage   AudioStorage
}

func NewAnswerService(answers AnswerLifecycleStore, feedbacks FeedbackReader, scorer AnswerScorer, queue TranscriptionEnqueuer, storage AudioStorage) *AnswerService {
	return &AnswerService{
		answers:   answers,
		feedbacks: feedbacks,
		scorer:    scorer,
		queue:     queue,
		storage:   storage,
	}
}

// SubmitTextAnswer 提交文本答案并异步触发一次自动评分
// 学生提交总是先被接受，评分结果随后到达，失败只会转人工复核
func (s *AnswerService) SubmitTextAnswer(attemptID, questionID, text string) (*model.Answer, error) {
	answer := &model.Answer{
		AttemptID:  attemptID,
		QuestionID: questionID,
		AnswerType: model.AnswerTypeText,
		TextAnswer: text,
		Status:     model.AnswerStatusAnswered,
	}

	if err := s.answers.Create(answer); err != nil {
		return nil, err
	}

	go s.autoScore(answer.ID, model.AnswerTypeText)

	return answer, nil
}

// SubmitAudioAnswer 提交音频答案：上传到存储并进入转写队列
func (s *AnswerService) SubmitAudioAnswer(ctx context.Context, attemptID, questionID, localTmpPath, origFilename, language string) (*model.Answer, string, error) {
	ext := strings.ToLower(filepath.Ext(origFilename))
	object := "answers/" + uuid.New().String() + ext

	url, err := s.storage.UploadFile(ctx, object, localTmpPath, util.MimeAudio+strings.TrimPrefix(ext, "."))
	if err != nil {
		return nil, "", err
	}

	answer := &model.Answer{
		AttemptID:   attemptID,
		QuestionID:  questionID,
		AnswerType:  model.AnswerTypeAudio,
		AudioURL:    url,
		AudioObject: object,
		Status:      model.AnswerStatusAnswered,
	}

	if err := s.answers.Create(answer); err != nil {
		return nil, "", err
	}

	// 入队用刚保存的本地临时文件，避免再从远端存储回拉一次；
	// 文件所有权交给队列，任务终态时删除
	jobID := s.queue.EnqueueOwned(answer.ID, localTmpPath, language)

	return answer, jobID, nil
}

// EnqueueTranscription 管理端手动把某条音频答案重新送入转写队列
func (s *AnswerService) EnqueueTranscription(ctx context.Context, answerID, language string) (string, error) {
	answer, err := s.answers.FindByID(answerID)
	if err != nil {
		return "", util.ErrAnswerNotFound
	}
	if answer.AnswerType != model.AnswerTypeAudio || answer.AudioObject == "" {
		return "", util.ErrMissingTranscription
	}

	localPath, temp, err := s.storage.ResolveLocalPath(ctx, answer.AudioObject)
	if err != nil {
		return "", err
	}

	// 远端存储回拉的临时文件由队列负责清理
	if temp {
		return s.queue.EnqueueOwned(answer.ID, localPath, language), nil
	}
	return s.queue.Enqueue(answer.ID, localPath, language), nil
}

// HandleTranscriptionComplete 转写成功后的续接入口，注册为队列的完成回调
// 每次转写完成至多触发一次自动评分；已有评分结果的答案不会被重复评
func (s *AnswerService) HandleTranscriptionComplete(answerID string) {
	answer, err := s.answers.FindByID(answerID)
	if err != nil {
		logger.Log.Error("transcribed answer not found", zap.String("answerId", answerID), zap.Error(err))
		return
	}

	if answer.Score != nil || answer.AIGradedAt != nil {
		logger.Log.Info("answer already graded, skipping auto scoring", zap.String("answerId", answerID))
		return
	}

	s.autoScore(answerID, model.AnswerTypeAudio)
}

// autoScore 单次自动评分；失败仅记录日志，答案已由评分服务转人工复核
func (s *AnswerService) autoScore(answerID string, answerType model.AnswerType) {
	ctx := context.Background()

	var err error
	if answerType == model.AnswerTypeAudio {
		_, err = s.scorer.ScoreSpeaking(ctx, answerID)
	} else {
		_, err = s.scorer.ScoreWriting(ctx, answerID)
	}

	if err != nil {
		logger.Log.Warn("automatic scoring failed",
			zap.String("answerId", answerID),
			zap.Error(err))
	}
}

// RegradeUngraded 批量补评：遍历所有 score 为空且从未被 AI 评过的答案
// 只跳过仍然没有转写文本的口语答案，其余逐条重跑评分
func (s *AnswerService) RegradeUngraded(ctx context.Context, limit int) (*RegradeSummary, error) {
	answers, err := s.answers.ListPendingAIGrading(limit)
	if err != nil {
		return nil, err
	}

	summary := &RegradeSummary{}
	for _, answer := range answers {
		switch answer.AnswerType {
		case model.AnswerTypeText:
			if _, err := s.scorer.ScoreWriting(ctx, answer.ID); err != nil {
				summary.Failed++
			} else {
				summary.Scored++
			}
		case model.AnswerTypeAudio:
			text := answer.TranscribedText
			if text == model.TranscriptionFailedText {
				text = ""
			}
			if strings.TrimSpace(text) == "" {
				summary.Skipped++
				continue
			}
			if _, err := s.scorer.ScoreSpeaking(ctx, answer.ID); err != nil {
				summary.Failed++
			} else {
				summary.Scored++
			}
		}
	}

	logger.Log.Info("bulk regrade finished",
		zap.Int("scored", summary.Scored),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	return summary, nil
}

// AnswerDetail 答案与逐项反馈的组合视图
type AnswerDetail struct {
	Answer   *model.Answer          `json:"answer"`
	Feedback []model.AnswerFeedback `json:"feedback"`
}

func (s *AnswerService) GetAnswerDetail(answerID string) (*AnswerDetail, error) {
	answer, err := s.answers.FindByID(answerID)
	if err != nil {
		return nil, util.ErrAnswerNotFound
	}

	feedback, err := s.feedbacks.ListByAnswer(answerID)
	if err != nil {
		return nil, err
	}

	return &AnswerDetail{Answer: answer, Feedback: feedback}, nil
}

func (s *AnswerService) ListByAttempt(attemptID string) ([]model.Answer, error) {
	return s.answers.ListByAttempt(attemptID)
}

// ManualGrade 人工复核写分
func (s *AnswerService) ManualGrade(answerID string, score float64) error {
	if _, err := s.answers.FindByID(answerID); err != nil {
		return util.ErrAnswerNotFound
	}
	return s.answers.SetManualGrade(answerID, score)
}
