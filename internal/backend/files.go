package backend

import (
	"context"
	"net/http"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/models"
)

// PresignUpload asks for a presigned write target for a new file.
func (c *Client) PresignUpload(ctx context.Context, projectID, fileName, fileType string) (*models.PresignedUpload, error) {
	in := struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}{fileName, fileType}
	var out models.PresignedUpload
	if err := c.do(ctx, "presign_upload", http.MethodPost,
		projectPath("/project/%s/files/presign", projectID), nil, in, &out); err != nil {
		return nil, err
	}
	if out.UploadURL == "" || out.Key == "" {
		return nil, apperr.New(apperr.KindRemote, "presign_upload", "presign response missing uploadUrl or key")
	}
	return &out, nil
}

// SaveFileMetadata records a file whose bytes are already stored.
func (c *Client) SaveFileMetadata(ctx context.Context, projectID string, meta models.FileMetadata) error {
	meta.Path = nonNil(meta.Path)
	return c.do(ctx, "save_file_metadata", http.MethodPost,
		projectPath("/project/%s/files/metadata", projectID), nil, meta, nil)
}

// DeleteFile deletes a stored file and its metadata.
func (c *Client) DeleteFile(ctx context.Context, projectID, key string, path []string) error {
	in := struct {
		Key  string   `json:"key"`
		Path []string `json:"path"`
	}{key, nonNil(path)}
	return c.do(ctx, "delete_file", http.MethodDelete,
		projectPath("/project/%s/files", projectID), nil, in, nil)
}

type folderRequest struct {
	Path       []string `json:"path"`
	FolderName string   `json:"folderName"`
}

// CreateFolder creates a folder under path and returns the server's record of it.
func (c *Client) CreateFolder(ctx context.Context, projectID string, path []string, name string) (*models.Directory, error) {
	var out struct {
		Folder *models.Directory `json:"folder"`
	}
	if err := c.do(ctx, "create_folder", http.MethodPost,
		projectPath("/project/%s/files/folder", projectID), nil,
		folderRequest{nonNil(path), name}, &out); err != nil {
		return nil, err
	}
	return out.Folder, nil
}

// DeleteFolder deletes a folder and everything below it.
func (c *Client) DeleteFolder(ctx context.Context, projectID string, path []string, name string) error {
	return c.do(ctx, "delete_folder", http.MethodDelete,
		projectPath("/project/%s/files/folder", projectID), nil,
		folderRequest{nonNil(path), name}, nil)
}

// PresignDownload asks for a presigned read URL for a stored file.
func (c *Client) PresignDownload(ctx context.Context, projectID, key string) (string, error) {
	if key == "" {
		return "", apperr.New(apperr.KindValidation, "presign_download", "Missing file key")
	}
	in := struct {
		Key string `json:"key"`
	}{key}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, "presign_download", http.MethodPost,
		projectPath("/project/%s/files/presign-get", projectID), nil, in, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
