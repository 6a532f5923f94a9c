package service

import (
	"aptis_exam_backend/internal/config"
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/pkg/logger"
	"aptis_exam_backend/pkg/monitoring"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueueAnswerStore 转写队列需要的答案持久化操作
type QueueAnswerStore interface {
	UpdateTranscription(answerID, text string) error
	MarkNeedsReview(answerID, transcribedText string) error
	UpdateStatus(answerID, status string) error
}

// TranscriptionJob 进程内存活的转写任务，完成或永久失败后即销毁，从不落库
type TranscriptionJob struct {
	ID        string    `json:"id"`
	AnswerID  string    `json:"answerId"`
	AudioPath string    `json:"audioPath"`
	Language  string    `json:"language"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`

	// 队列是否接管了音频文件，接管的在任务终态时删除
	ownsAudio bool
}

// discardAudio 释放队列接管的音频文件，非接管任务为空操作
func (j *TranscriptionJob) discardAudio() {
	if j.ownsAudio {
		removeTemp(j.AudioPath)
	}
}

// QueueStatus 队列只读快照
type QueueStatus struct {
	Length       int                `json:"length"`
	IsProcessing bool               `json:"isProcessing"`
	Jobs         []TranscriptionJob `json:"jobs"`
}

// TranscriptionQueueService 内存 FIFO 转写队列，单消费者循环
// 启动时构造一次并注入到所有调用方；不跨进程重启持久化，崩溃会丢掉在途任务
type TranscriptionQueueService struct {
	mu           sync.Mutex
	jobs         []*TranscriptionJob
	isProcessing bool
	gen          int // ClearQueue 递增，旧 worker 据此退出

	speech      SpeechToText
	answers     QueueAnswerStore
	maxAttempts int
	retryDelay  time.Duration

	// 转写成功后的续接回调（触发评分），由 app 装配阶段注入
	// 在独立 goroutine 里调用，队列循环不等待它，评分失败不会回滚转写成功
	onTranscribed func(answerID string)
}

func NewTranscriptionQueueService(speech SpeechToText, answers QueueAnswerStore, cfg config.GradingConfig) *TranscriptionQueueService {
	return &TranscriptionQueueService{
		speech:      speech,
		answers:     answers,
		maxAttempts: cfg.MaxTranscriptionAttempts,
		retryDelay:  cfg.RetryDelay,
	}
}

// SetCompletionHandler 注入转写完成后的续接回调，必须在第一次 Enqueue 之前调用
func (s *TranscriptionQueueService) SetCompletionHandler(handler func(answerID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTranscribed = handler
}

// UpdateConfig 配置热更新入口，只影响后续任务
func (s *TranscriptionQueueService) UpdateConfig(cfg config.GradingConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.MaxTranscriptionAttempts > 0 {
		s.maxAttempts = cfg.MaxTranscriptionAttempts
	}
	if cfg.RetryDelay > 0 {
		s.retryDelay = cfg.RetryDelay
	}
}

// Enqueue 追加一个转写任务并在消费者空闲时启动它，从不阻塞调用方
func (s *TranscriptionQueueService) Enqueue(answerID, audioPath, language string) string {
	return s.enqueue(answerID, audioPath, language, false)
}

// EnqueueOwned 与 Enqueue 相同，但队列接管 audioPath 指向的临时文件，
// 任务完成、重试耗尽或被清除时删除它
func (s *TranscriptionQueueService) EnqueueOwned(answerID, audioPath, language string) string {
	return s.enqueue(answerID, audioPath, language, true)
}

func (s *TranscriptionQueueService) enqueue(answerID, audioPath, language string, ownsAudio bool) string {
	job := &TranscriptionJob{
		ID:        uuid.New().String(),
		AnswerID:  answerID,
		AudioPath: audioPath,
		Language:  language,
		CreatedAt: time.Now(),
		ownsAudio: ownsAudio,
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	monitoring.TranscriptionQueueLength.Set(float64(len(s.jobs)))
	startWorker := !s.isProcessing
	if startWorker {
		s.isProcessing = true
	}
	gen := s.gen
	s.mu.Unlock()

	if err := s.answers.UpdateStatus(answerID, model.AnswerStatusQueued); err != nil {
		logger.Log.Warn("failed to mark answer queued", zap.String("answerId", answerID), zap.Error(err))
	}

	logger.Log.Info("transcription job enqueued",
		zap.String("jobId", job.ID),
		zap.String("answerId", answerID))

	if startWorker {
		go s.processLoop(gen)
	}

	return job.ID
}

// GetQueueStatus 只读自省，无副作用
func (s *TranscriptionQueueService) GetQueueStatus() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]TranscriptionJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, *j)
	}

	return QueueStatus{
		Length:       len(s.jobs),
		IsProcessing: s.isProcessing,
		Jobs:         jobs,
	}
}

// ClearQueue 丢弃全部待处理任务并复位处理标志，仅供管理端重置使用
func (s *TranscriptionQueueService) ClearQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := len(s.jobs)
	for _, j := range s.jobs {
		j.discardAudio()
	}
	s.jobs = nil
	s.isProcessing = false
	s.gen++
	monitoring.TranscriptionQueueLength.Set(0)

	logger.Log.Warn("transcription queue cleared", zap.Int("dropped", dropped))
	return dropped
}

// processLoop 单活跃实例的消费者循环，逐个处理队头任务
func (s *TranscriptionQueueService) processLoop(gen int) {
	for {
		s.mu.Lock()
		if s.gen != gen {
			// 队列被管理端重置，本实例退出
			s.mu.Unlock()
			return
		}
		if len(s.jobs) == 0 {
			s.isProcessing = false
			s.mu.Unlock()
			return
		}
		job := s.jobs[0]
		s.mu.Unlock()

		retry := s.processJob(job, gen)
		if retry {
			// 固定退避后再看新队头；worker 原地睡眠，期间没有任何任务推进
			time.Sleep(s.currentRetryDelay())
		}
	}
}

// processJob 处理一个任务，返回是否需要退避后重试
func (s *TranscriptionQueueService) processJob(job *TranscriptionJob, gen int) bool {
	text, err := s.speech.Transcribe(context.Background(), job.AudioPath, job.Language)
	if err == nil {
		if !s.removeJob(job.ID, gen) {
			// 任务在转写期间被清除，结果作废，音频文件已由 ClearQueue 释放
			return false
		}
		job.discardAudio()

		if perr := s.answers.UpdateTranscription(job.AnswerID, text); perr != nil {
			logger.Log.Error("failed to persist transcription",
				zap.String("answerId", job.AnswerID),
				zap.Error(perr))
		}

		monitoring.TranscriptionJobs.WithLabelValues("completed").Inc()
		logger.Log.Info("transcription job completed",
			zap.String("jobId", job.ID),
			zap.String("answerId", job.AnswerID),
			zap.Int("attempts", job.Attempts))

		// 续接评分：不等待，评分的失败不影响队列继续
		s.mu.Lock()
		handler := s.onTranscribed
		s.mu.Unlock()
		if handler != nil {
			go handler(job.AnswerID)
		}
		return false
	}

	// 不做失败分类：IO/解码/超时一视同仁，全部计入重试预算
	// 状态快照在锁下拷贝任务，计数也必须在锁下改
	s.mu.Lock()
	job.Attempts++
	attempts := job.Attempts
	maxAttempts := s.maxAttempts
	s.mu.Unlock()

	logger.Log.Warn("transcription attempt failed",
		zap.String("jobId", job.ID),
		zap.String("answerId", job.AnswerID),
		zap.Int("attempts", attempts),
		zap.Int("maxAttempts", maxAttempts),
		zap.Error(err))

	if attempts >= maxAttempts {
		if !s.removeJob(job.ID, gen) {
			return false
		}
		job.discardAudio()

		// 终态：写入占位文本并转人工复核，不再自动重试
		if perr := s.answers.MarkNeedsReview(job.AnswerID, model.TranscriptionFailedText); perr != nil {
			logger.Log.Error("failed to flag answer for review",
				zap.String("answerId", job.AnswerID),
				zap.Error(perr))
		}

		monitoring.TranscriptionJobs.WithLabelValues("exhausted").Inc()
		logger.Log.Error("transcription retries exhausted, answer flagged for review",
			zap.String("jobId", job.ID),
			zap.String("answerId", job.AnswerID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return false
	}

	// 移到队尾：后入队的任务可以越过正在重试的任务
	s.requeueJob(job.ID, gen)
	return true
}

// removeJob 从队列移除任务，任务已不在队列（被清除）时返回 false
func (s *TranscriptionQueueService) removeJob(jobID string, gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return false
	}
	for i, j := range s.jobs {
		if j.ID == jobID {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			monitoring.TranscriptionQueueLength.Set(float64(len(s.jobs)))
			return true
		}
	}
	return false
}

func (s *TranscriptionQueueService) requeueJob(jobID string, gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return
	}
	for i, j := range s.jobs {
		if j.ID == jobID {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			s.jobs = append(s.jobs, j)
			return
		}
	}
}

func (s *TranscriptionQueueService) currentRetryDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryDelay
}
