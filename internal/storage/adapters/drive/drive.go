// Package drive is a REST client for a Google-Drive-style storage API:
// OAuth token refresh, folder get-or-create, multipart upload, and a public
// read permission on the uploaded file.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	storagedomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/storage/domain"
)

const folderMimeType = "application/vnd.google-apps.folder"

type Client struct {
	baseURL      string
	uploadURL    string
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func New(baseURL, uploadURL, tokenURL, clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		uploadURL:    strings.TrimRight(uploadURL, "/"),
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*storagedomain.Token, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token refresh returned status %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("token refresh decode: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("token refresh returned empty access token")
	}
	return &storagedomain.Token{
		AccessToken: parsed.AccessToken,
		Expiry:      time.Now().UTC().Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}, nil
}

func (c *Client) EnsureFolder(ctx context.Context, accessToken, parentID, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}

	listURL := fmt.Sprintf("%s/files?q=%s&fields=files(id)&pageSize=1", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return "", fmt.Errorf("build folder query: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("folder query: %w", err)
	}
	var listed struct {
		Files []struct {
			ID string `json:"id"`
		} `json:"files"`
	}
	err = decodeOK(resp, &listed)
	if err != nil {
		return "", fmt.Errorf("folder query: %w", err)
	}
	if len(listed.Files) > 0 {
		return listed.Files[0].ID, nil
	}

	meta := map[string]any{"name": name, "mimeType": folderMimeType}
	if parentID != "" {
		meta["parents"] = []string{parentID}
	}
	payload, _ := json.Marshal(meta)
	createReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build folder create: %w", err)
	}
	createReq.Header.Set("Authorization", "Bearer "+accessToken)
	createReq.Header.Set("Content-Type", "application/json")

	createResp, err := c.httpClient.Do(createReq)
	if err != nil {
		return "", fmt.Errorf("folder create: %w", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := decodeOK(createResp, &created); err != nil {
		return "", fmt.Errorf("folder create: %w", err)
	}
	return created.ID, nil
}

func (c *Client) UploadFromURL(ctx context.Context, accessToken, folderID, fileName, sourceURL string) (*storagedomain.PersistResult, error) {
	srcReq, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build source fetch: %w", err)
	}
	srcResp, err := c.httpClient.Do(srcReq)
	if err != nil {
		return nil, fmt.Errorf("source fetch: %w", err)
	}
	defer srcResp.Body.Close()
	if srcResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source fetch returned status %d", srcResp.StatusCode)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("upload metadata part: %w", err)
	}
	meta := map[string]any{"name": fileName}
	if folderID != "" {
		meta["parents"] = []string{folderID}
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, fmt.Errorf("upload metadata encode: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	contentType := srcResp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	mediaHeader.Set("Content-Type", contentType)
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return nil, fmt.Errorf("upload media part: %w", err)
	}
	if _, err := io.Copy(mediaPart, srcResp.Body); err != nil {
		return nil, fmt.Errorf("upload media copy: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("upload finalize: %w", err)
	}

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL+"/files?uploadType=multipart", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	uploadReq.Header.Set("Authorization", "Bearer "+accessToken)
	uploadReq.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	uploadResp, err := c.httpClient.Do(uploadReq)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	var uploaded struct {
		ID string `json:"id"`
	}
	if err := decodeOK(uploadResp, &uploaded); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	if err := c.shareReadable(ctx, accessToken, uploaded.ID); err != nil {
		return nil, err
	}

	return &storagedomain.PersistResult{
		URL:    fmt.Sprintf("%s/files/%s?alt=media", c.baseURL, uploaded.ID),
		FileID: uploaded.ID,
	}, nil
}

func (c *Client) shareReadable(ctx context.Context, accessToken, fileID string) error {
	payload, _ := json.Marshal(map[string]string{"role": "reader", "type": "anyone"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/files/%s/permissions", c.baseURL, fileID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build permission request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("permission set: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("permission set returned status %d", resp.StatusCode)
	}
	return nil
}

func decodeOK(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

var _ storagedomain.Uploader = (*Client)(nil)
