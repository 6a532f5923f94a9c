package service

import (
	"aptis_exam_backend/internal/config"
	"aptis_exam_backend/internal/util"
	"aptis_exam_backend/pkg/logger"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// SpeechService 调用 whisper 协议兼容的语音转写引擎
// 上传前先经 ffmpeg 统一转成 16kHz 单声道 wav
type SpeechService struct {
	config config.SpeechConfig
	client *http.Client
}

func NewSpeechService(cfg config.SpeechConfig) *SpeechService {
	return &SpeechService{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe 将本地音频文件转写为文本，任何 IO/解码/超时问题都返回通用错误
func (s *SpeechService) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	wavPath, err := util.ConvertToWav16k(audioPath)
	if err != nil {
		return "", fmt.Errorf("audio preprocess failed: %w", err)
	}
	defer os.Remove(wavPath)

	file, err := os.Open(wavPath)
	if err != nil {
		return "", fmt.Errorf("open audio failed: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}

	writer.WriteField("model", s.config.Model)
	if language != "" {
		writer.WriteField("language", language)
	}
	writer.WriteField("response_format", "json")

	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result transcriptionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("speech API malformed response: %w", err)
	}

	if result.Text == "" {
		return "", fmt.Errorf("speech API returned empty transcription")
	}

	logger.Log.Debug("transcription completed",
		zap.String("audioPath", audioPath),
		zap.Int("textLen", len(result.Text)))

	return result.Text, nil
}
