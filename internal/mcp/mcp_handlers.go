package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/iocache"
	"github.com/huangsam/shellcache/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// maxBodyPreview caps the body text returned by match_entry.
const maxBodyPreview = 4096

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
}

// entryView is the match_entry payload.
type entryView struct {
	Partition   string      `json:"partition"`
	Key         string      `json:"key"`
	URL         string      `json:"url"`
	Status      int         `json:"status"`
	Type        string      `json:"type"`
	Header      http.Header `json:"header"`
	BodyBytes   int         `json:"body_bytes"`
	StoredAt    time.Time   `json:"stored_at"`
	BodyPreview string      `json:"body_preview,omitempty"`
}

func (h *toolHandler) store() (contract.CacheStore, error) {
	if h.mgr == nil {
		return nil, fmt.Errorf("cache store is not initialized")
	}
	store := h.mgr.GetStore()
	if store == nil {
		return nil, fmt.Errorf("cache store is not initialized")
	}
	return store, nil
}

func (h *toolHandler) status(ctx context.Context) (schema.CacheStatus, error) {
	store, err := h.store()
	if err != nil {
		return schema.CacheStatus{}, err
	}
	status, err := store.GetStatus(ctx)
	if err != nil {
		return schema.CacheStatus{}, err
	}
	status.Classify(h.baseCfg.AppName)
	return status, nil
}

func (h *toolHandler) handleCacheStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := h.status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}
	jsonData, _ := json.MarshalIndent(status, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListPartitions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := h.status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing partitions failed: %v", err)), nil
	}

	kind := schema.PartitionKind(request.GetString("kind", ""))
	parts := []schema.PartitionStatus{}
	for _, p := range status.Partitions {
		if kind == "" || p.Kind == kind {
			parts = append(parts, p)
		}
	}
	jsonData, _ := json.MarshalIndent(parts, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleMatchEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	if !strings.HasPrefix(path, "/") {
		return mcp.NewToolResultError("path must be site-relative and start with '/'"), nil
	}
	req, err := schema.NewRequest(request.GetString("method", http.MethodGet), path, h.baseCfg.OriginHost)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid path: %v", err)), nil
	}

	store, err := h.store()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		partition = request.GetString("partition", "")
		resp      *schema.CachedResponse
	)
	if partition != "" {
		resp, err = store.Match(ctx, partition, req.Key())
	} else {
		partition, resp, err = iocache.MatchAny(ctx, store, req.Key())
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("match failed: %v", err)), nil
	}
	if resp == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no stored response for %s", req.Key())), nil
	}

	view := entryView{
		Partition: partition,
		Key:       resp.Key,
		URL:       resp.URL,
		Status:    resp.Status,
		Type:      string(resp.Type),
		Header:    resp.Header,
		BodyBytes: len(resp.Body),
		StoredAt:  resp.StoredAt,
	}
	if request.GetBool("include_body", false) {
		view.BodyPreview = bodyPreview(resp)
	}
	jsonData, _ := json.MarshalIndent(view, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !request.GetBool("confirm", false) {
		return mcp.NewToolResultError("refusing to clear the cache without confirm=true"), nil
	}
	store, err := h.store()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deleted, err := iocache.DeleteAll(ctx, store)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clear failed after %d partitions: %v", deleted, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %d partitions.", deleted)), nil
}

// bodyPreview returns the leading text of a textual body, or "" for binary content.
func bodyPreview(resp *schema.CachedResponse) string {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	textual := strings.HasPrefix(mediaType, "text/") ||
		strings.HasSuffix(mediaType, "json") ||
		strings.HasSuffix(mediaType, "xml") ||
		mediaType == "application/javascript"
	if !textual || !utf8.Valid(resp.Body) {
		return ""
	}
	body := resp.Body
	if len(body) > maxBodyPreview {
		body = body[:maxBodyPreview]
		for !utf8.Valid(body) {
			body = body[:len(body)-1]
		}
	}
	return string(body)
}
