package vertesia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
)

// wireObject tolerates the vendor's loose timestamp encoding.
type wireObject struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Properties map[string]any      `json:"properties"`
	Content    model.ObjectContent `json:"content"`
	CreatedAt  string              `json:"created_at"`
}

func (w wireObject) toModel() model.ContentObject {
	o := model.ContentObject{
		ID:         w.ID,
		Name:       w.Name,
		Properties: w.Properties,
		Content:    w.Content,
	}
	if ts, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
		o.CreatedAt = ts
	}
	return o
}

func (c *Client) ListObjects(ctx context.Context, limit int) ([]model.ContentObject, error) {
	if limit <= 0 {
		limit = 1000
	}
	var raw []wireObject
	path := "/objects?limit=" + strconv.Itoa(limit) + "&offset=0"
	if err := c.do(ctx, "list_objects", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]model.ContentObject, 0, len(raw))
	for _, w := range raw {
		out = append(out, w.toModel())
	}
	return out, nil
}

func (c *Client) GetObject(ctx context.Context, id string) (model.ContentObject, error) {
	var w wireObject
	if err := c.do(ctx, "get_object", http.MethodGet, "/objects/"+url.PathEscape(id), nil, &w); err != nil {
		return model.ContentObject{}, err
	}
	return w.toModel(), nil
}

func (c *Client) CreateObject(ctx context.Context, obj adapter.NewObject) (model.ContentObject, error) {
	props := map[string]any{"generated_at": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range obj.Properties {
		props[k] = v
	}
	ctype := obj.Type
	if ctype == "" {
		ctype = "text/markdown"
	}
	desc := obj.Description
	if desc == "" {
		desc = "Research document: " + obj.Name
	}
	cname := obj.ContentName
	if cname == "" {
		cname = obj.Name
	}
	body := map[string]any{
		"name":        obj.Name,
		"description": desc,
		"content": map[string]any{
			"source": obj.Text,
			"type":   ctype,
			"name":   cname,
		},
		"properties": props,
	}
	var w wireObject
	if err := c.do(ctx, "create_object", http.MethodPost, "/objects", body, &w); err != nil {
		return model.ContentObject{}, err
	}
	return w.toModel(), nil
}

func (c *Client) DeleteObject(ctx context.Context, id string) error {
	return c.do(ctx, "delete_object", http.MethodDelete, "/objects/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DownloadURL(ctx context.Context, file string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	body := map[string]string{"file": file, "format": "original"}
	if err := c.do(ctx, "download_url", http.MethodPost, "/objects/download-url", body, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("download url: empty response")
	}
	return out.URL, nil
}

// FetchText downloads a signed URL without vendor credentials.
func (c *Client) FetchText(ctx context.Context, u string) (string, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Endpoint: "download"}
	}
	b, err := io.ReadAll(resp.Body)
	c.log.Trace().Dur("duration", time.Since(start)).Int("bytes", len(b)).Msg("downloaded")
	return string(b), err
}

func (c *Client) UploadFile(ctx context.Context, name, mimeType string, data []byte) (string, error) {
	var slot struct {
		URL string `json:"url"`
		ID  string `json:"id"`
	}
	body := map[string]string{"name": name, "mime_type": mimeType}
	if err := c.do(ctx, "upload_url", http.MethodPost, "/objects/upload-url", body, &slot); err != nil {
		return "", err
	}
	if slot.URL == "" || slot.ID == "" {
		return "", errors.New("upload url: incomplete response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, slot.URL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mimeType)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Endpoint: "upload"}
	}
	return slot.ID, nil
}

func (c *Client) SearchCollections(ctx context.Context) ([]model.Collection, error) {
	body := map[string]any{"dynamic": false, "status": "active", "limit": 100}
	var raw []model.Collection
	if err := c.do(ctx, "search_collections", http.MethodPost, "/collections/search", body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) CollectionMembers(ctx context.Context, collectionID string) ([]string, error) {
	var raw []struct {
		ID string `json:"id"`
	}
	path := "/collections/" + url.PathEscape(collectionID) + "/members?limit=1000"
	if err := c.do(ctx, "collection_members", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(raw))
	for _, m := range raw {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *Client) CreateCollection(ctx context.Context, name, description string) (model.Collection, error) {
	body := map[string]any{"name": name, "dynamic": false, "description": description}
	var out model.Collection
	if err := c.do(ctx, "create_collection", http.MethodPost, "/collections", body, &out); err != nil {
		return model.Collection{}, err
	}
	return out, nil
}

func (c *Client) DeleteCollection(ctx context.Context, collectionID string) error {
	return c.do(ctx, "delete_collection", http.MethodDelete, "/collections/"+url.PathEscape(collectionID), nil, nil)
}

func (c *Client) UpdateMembers(ctx context.Context, collectionID string, action adapter.MemberAction, docIDs []string) error {
	body := struct {
		Action  adapter.MemberAction `json:"action"`
		Members []string             `json:"members"`
	}{action, docIDs}
	return c.do(ctx, "update_members", http.MethodPost, "/collections/"+url.PathEscape(collectionID)+"/members", body, nil)
}

