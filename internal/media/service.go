// Package media stores uploaded files (query images, application CVs) on
// local disk and serves them under /uploads.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/almahub/backend/internal/models"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrUnauthorized = errors.New("unauthorized to delete this file")
	ErrInvalidType  = errors.New("file type not allowed")
)

var allowedExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".pdf": true, ".doc": true, ".docx": true,
}

type Service struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*fileRecord // fileID -> file info
}

type fileRecord struct {
	ID       string
	Filename string
	Path     string
	UserID   string
}

func NewService(uploadDir string) *Service {
	os.MkdirAll(uploadDir, 0755)

	return &Service{
		uploadDir: uploadDir,
		files:     make(map[string]*fileRecord),
	}
}

func (s *Service) Upload(userID string, filename string, file io.Reader) (*models.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExts[ext] {
		return nil, ErrInvalidType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fileID := uuid.New().String()
	newFilename := fileID + ext
	filePath := filepath.Join(s.uploadDir, newFilename)

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(filePath) // Clean up on error
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	record := &fileRecord{
		ID:       fileID,
		Filename: newFilename,
		Path:     filePath,
		UserID:   userID,
	}
	s.files[fileID] = record

	return &models.UploadResponse{
		ID:       fileID,
		URL:      "/uploads/" + newFilename,
		Filename: newFilename,
	}, nil
}

func (s *Service) Delete(userID, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.files[fileID]
	if !exists {
		return ErrFileNotFound
	}

	// Only allow the owner to delete
	if record.UserID != userID {
		return ErrUnauthorized
	}

	if err := os.Remove(record.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	delete(s.files, fileID)
	return nil
}
