package ago

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// Attachments lists the attachments on a feature.
func (l *FeatureLayer) Attachments(ctx context.Context, oid int64) ([]Attachment, error) {
	var result struct {
		AttachmentInfos []Attachment `json:"attachmentInfos"`
	}
	endpoint := fmt.Sprintf("%s/%d/attachments", l.url, oid)
	if err := l.client.get(ctx, endpoint, nil, &result); err != nil {
		return nil, fmt.Errorf("list attachments for object %d: %w", oid, err)
	}
	return result.AttachmentInfos, nil
}

// DownloadAttachment downloads an attachment into dir, preserving its stored
// name, and returns the local file path.
func (l *FeatureLayer) DownloadAttachment(ctx context.Context, oid int64, att Attachment, dir string) (string, error) {
	token, err := l.client.ensureToken(ctx)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%d/attachments/%d?token=%s", l.url, oid, att.ID, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := l.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download attachment %d: %w", att.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download attachment %d: unexpected status %s", att.ID, resp.Status)
	}

	path := filepath.Join(dir, att.Name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write attachment file: %w", err)
	}
	return path, nil
}

// AddAttachment uploads a local file as a new attachment on the feature.
func (l *FeatureLayer) AddAttachment(ctx context.Context, oid int64, filePath string) error {
	endpoint := fmt.Sprintf("%s/%d/addAttachment", l.url, oid)
	return l.uploadAttachment(ctx, endpoint, filePath, nil)
}

// UpdateAttachment replaces an existing attachment's content and name with
// the given local file.
func (l *FeatureLayer) UpdateAttachment(ctx context.Context, oid, attachmentID int64, filePath string) error {
	endpoint := fmt.Sprintf("%s/%d/updateAttachment", l.url, oid)
	extra := url.Values{"attachmentId": {strconv.FormatInt(attachmentID, 10)}}
	return l.uploadAttachment(ctx, endpoint, filePath, extra)
}

// DeleteAttachment removes an attachment from the feature.
func (l *FeatureLayer) DeleteAttachment(ctx context.Context, oid, attachmentID int64) error {
	endpoint := fmt.Sprintf("%s/%d/deleteAttachments", l.url, oid)
	params := url.Values{"attachmentIds": {strconv.FormatInt(attachmentID, 10)}}

	var result struct {
		DeleteAttachmentResults []struct {
			Success bool `json:"success"`
		} `json:"deleteAttachmentResults"`
	}
	if err := l.client.post(ctx, endpoint, params, &result); err != nil {
		return fmt.Errorf("delete attachment %d: %w", attachmentID, err)
	}
	for _, res := range result.DeleteAttachmentResults {
		if !res.Success {
			return fmt.Errorf("delete attachment %d: service reported failure", attachmentID)
		}
	}
	return nil
}

// uploadAttachment posts a multipart attachment request. Multipart bodies
// bypass the form-encoded request helper.
func (l *FeatureLayer) uploadAttachment(ctx context.Context, endpoint, filePath string, extra url.Values) error {
	token, err := l.client.ensureToken(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open attachment file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("attachment", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy attachment content: %w", err)
	}
	_ = writer.WriteField("f", "json")
	_ = writer.WriteField("token", token)
	for key, values := range extra {
		for _, v := range values {
			_ = writer.WriteField(key, v)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := l.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload attachment: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read upload response: %w", err)
	}
	if bytes.Contains(data, []byte(`"error"`)) {
		return fmt.Errorf("upload attachment: %s", string(data))
	}
	return nil
}
