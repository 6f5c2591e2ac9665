package supabase

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

// StorageClient wraps two Supabase buckets: one for uploaded artwork, one
// for rendered output.
type StorageClient struct {
	client        *storage.Client
	artworkBucket string
	outputBucket  string
	baseURL       string
}

func NewStorageClient(supabaseURL, serviceRoleKey, artworkBucket, outputBucket string) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:        client,
		artworkBucket: artworkBucket,
		outputBucket:  outputBucket,
		baseURL:       baseURL,
	}, nil
}

// UploadArtwork stores one slot file under prints/{print_id}/{slot}/{filename}.
func (s *StorageClient) UploadArtwork(printID uuid.UUID, slotType, filename string, data []byte, contentType string) (string, string, error) {
	storagePath := fmt.Sprintf("prints/%s/%s/%s", printID.String(), slotType, filename)

	upsert := true
	_, err := s.client.UploadFile(s.artworkBucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload artwork: %w", err)
	}

	return storagePath, s.publicURL(s.artworkBucket, storagePath), nil
}

// UploadOutput stores a rendered sheet or archive and returns its public URL.
func (s *StorageClient) UploadOutput(path string, data []byte, contentType string) (string, error) {
	upsert := true
	_, err := s.client.UploadFile(s.outputBucket, path, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload output: %w", err)
	}

	return s.publicURL(s.outputBucket, path), nil
}

func (s *StorageClient) DownloadOutput(path string) ([]byte, error) {
	data, err := s.client.DownloadFile(s.outputBucket, path)
	if err != nil {
		return nil, fmt.Errorf("failed to download output: %w", err)
	}

	return data, nil
}

// DeletePrintFiles removes every artwork file uploaded for a print.
func (s *StorageClient) DeletePrintFiles(printID uuid.UUID) error {
	prefix := fmt.Sprintf("prints/%s/", printID.String())

	files, err := s.client.ListFiles(s.artworkBucket, prefix, storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return fmt.Errorf("failed to list artwork files: %w", err)
	}

	if len(files) > 0 {
		paths := make([]string, len(files))
		for i, file := range files {
			paths[i] = file.Name
		}
		if _, err := s.client.RemoveFile(s.artworkBucket, paths); err != nil {
			return fmt.Errorf("failed to delete artwork files: %w", err)
		}
	}

	return nil
}

func (s *StorageClient) publicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, bucket, path)
}
