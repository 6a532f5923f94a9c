package service

import (
	"aptis_exam_backend/internal/config"
	"context"
	"io"
	"path/filepath"
	"testing"
)

// remoteStubProvider 模拟只存远端对象的提供方
type remoteStubProvider struct {
	fetchDir string
	fetched  []string
}

func (p *remoteStubProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	return "/" + filename, nil
}

func (p *remoteStubProvider) UploadFile(ctx context.Context, filename string, localPath string, contentType string) (string, error) {
	return "/" + filename, nil
}

func (p *remoteStubProvider) Delete(ctx context.Context, filename string) error { return nil }

func (p *remoteStubProvider) GetURL(filename string) string { return "/" + filename }

func (p *remoteStubProvider) LocalPath(filename string) string { return "" }

func (p *remoteStubProvider) FetchToLocal(ctx context.Context, filename string) (string, error) {
	p.fetched = append(p.fetched, filename)
	return filepath.Join(p.fetchDir, filepath.Base(filename)), nil
}

func TestResolveLocalPathLocalProvider(t *testing.T) {
	dir := t.TempDir()
	svc := &StorageService{Provider: &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: dir}}}

	path, temp, err := svc.ResolveLocalPath(context.Background(), "answers/a.wav")
	if err != nil {
		t.Fatalf("ResolveLocalPath returned error: %v", err)
	}
	if temp {
		t.Error("local storage path must not be flagged temporary")
	}
	if path != filepath.Join(dir, "answers/a.wav") {
		t.Errorf("path = %q", path)
	}
}

func TestResolveLocalPathFetchesRemoteObject(t *testing.T) {
	provider := &remoteStubProvider{fetchDir: t.TempDir()}
	svc := &StorageService{Provider: provider}

	path, temp, err := svc.ResolveLocalPath(context.Background(), "answers/a.wav")
	if err != nil {
		t.Fatalf("ResolveLocalPath returned error: %v", err)
	}
	if !temp {
		t.Error("remote fetch must be flagged temporary so the caller cleans it up")
	}
	if len(provider.fetched) != 1 || provider.fetched[0] != "answers/a.wav" {
		t.Errorf("fetched = %v", provider.fetched)
	}
	if filepath.Base(path) != "a.wav" {
		t.Errorf("path = %q", path)
	}
}
