package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// UploadedFile is the block editor's image upload result.
type UploadedFile struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
	Type string `json:"type,omitempty"`
}

type uploadResponse struct {
	Success int          `json:"success"`
	Message string       `json:"message,omitempty"`
	File    UploadedFile `json:"file"`
}

// UploadImage posts an image to the upload route at endpoint as multipart
// field "file".
func (c *Client) UploadImage(ctx context.Context, endpoint, name, contentType string, r io.Reader) (UploadedFile, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadedFile{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadedFile{}, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("build upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	token, err := c.AccessToken(ctx)
	if err != nil {
		return UploadedFile{}, err
	}
	var out uploadResponse
	if err := c.exchange(req, token, &out); err != nil {
		return UploadedFile{}, err
	}
	if out.Success != 1 {
		return UploadedFile{}, &Error{Status: http.StatusBadRequest, Code: "UPLOAD_FAILED", Message: out.Message}
	}
	return out.File, nil
}
