package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/ai"
	"parley/internal/config"
	"parley/internal/pkg/storage/local"
	"parley/internal/repository/memory"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()

	dir := t.TempDir()
	st, err := local.NewLocalStorage(dir, "http://localhost:8080/uploads")
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Chat: config.ChatConfig{
			DefaultModel:       "gpt-3.5-turbo",
			DefaultTemperature: 0.7,
			ShareBaseURL:       "http://localhost:3000/share",
		},
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenExpiry: time.Hour},
		Storage: config.StorageConfig{
			Type:  "local",
			Local: &config.LocalConfig{BasePath: dir, BaseURL: "http://localhost:8080/uploads"},
		},
		Upload: config.UploadConfig{AllowedExtensions: []string{"txt", "png"}, MaxSize: 1024},
	}

	srv := NewWithDeps(cfg, Deps{
		Store:   memory.New(),
		Storage: st,
		Gateway: ai.NewDemoGateway(),
	})
	t.Cleanup(func() {
		srv.broadcaster.Close()
		_ = srv.store.Close(context.Background())
	})
	return srv.Engine()
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func register(t *testing.T, r http.Handler, username string) string {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func createConversation(t *testing.T, r http.Handler, token string) string {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/conversations", token, map[string]any{"title": "Trip"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.ID
}

func TestHealth(t *testing.T) {
	r := newTestServer(t)

	w, _ := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthFlow(t *testing.T) {
	r := newTestServer(t)
	token := register(t, r, "alice")

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 40901, env.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "alice")
	assert.NotContains(t, string(env.Data), "secret123")
}

func TestChatFlow(t *testing.T) {
	r := newTestServer(t)
	token := register(t, r, "alice")
	convID := createConversation(t, r, token)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/chat/message", token, map[string]any{
		"conversationId": convID,
		"content":        "hello",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var posted struct {
		Success     bool `json:"success"`
		UserMessage struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"userMessage"`
		AIMessage struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"aiMessage"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &posted))
	assert.Equal(t, 2, strings.Count(string(env.Data), `"attachments":[]`), string(env.Data))
	assert.True(t, posted.Success)
	assert.Equal(t, "user", posted.UserMessage.Role)
	assert.Equal(t, "assistant", posted.AIMessage.Role)
	assert.NotEmpty(t, posted.AIMessage.Content)

	// 空内容被拒绝且不写入
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/chat/message", token, map[string]any{
		"conversationId": convID,
		"content":        "   ",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/chat/messages/"+convID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var messages []struct {
		Role string `json:"role"`
		Seq  int64  `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, 2, strings.Count(string(env.Data), `"attachments":[]`), string(env.Data))
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Less(t, messages[0].Seq, messages[1].Seq)

	w, _ = doJSON(t, r, http.MethodPut, "/api/v1/chat/message/"+posted.UserMessage.ID, token, map[string]string{"content": "hello again"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/chat/message/"+posted.UserMessage.ID+"/rate", token, map[string]int{"rating": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 其他用户看不到该会话
	other := register(t, r, "bob")
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+convID, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/chat/message", other, map[string]any{
		"conversationId": convID,
		"content":        "hi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/conversations/"+convID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/chat/messages/"+convID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveAndShare(t *testing.T) {
	r := newTestServer(t)
	token := register(t, r, "alice")
	convID := createConversation(t, r, token)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/conversations/"+convID+"/archive", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, env := doJSON(t, r, http.MethodGet, "/api/v1/conversations", token, nil)
	assert.NotContains(t, string(env.Data), convID)
	_, env = doJSON(t, r, http.MethodGet, "/api/v1/conversations/archived/list", token, nil)
	assert.Contains(t, string(env.Data), convID)

	w, env = doJSON(t, r, http.MethodPost, "/api/v1/conversations/"+convID+"/share", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var share struct {
		ShareURL   string `json:"shareUrl"`
		ShareToken string `json:"shareToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &share))
	assert.Equal(t, "http://localhost:3000/share/"+share.ShareToken, share.ShareURL)

	_, env = doJSON(t, r, http.MethodPost, "/api/v1/conversations/"+convID+"/share", token, nil)
	assert.Contains(t, string(env.Data), share.ShareToken)

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/conversations/public/"+share.ShareToken, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/conversations/"+convID+"/unshare", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/conversations/public/"+share.ShareToken, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportImport(t *testing.T) {
	r := newTestServer(t)
	token := register(t, r, "alice")
	convID := createConversation(t, r, token)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/chat/message", token, map[string]any{
		"conversationId": convID,
		"content":        "hello",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+convID+"/export/json", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "conversation-"+convID+".json")
	exported := w.Body.Bytes()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/import", bytes.NewReader(exported))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+convID+"/export/markdown", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# Trip")
	assert.Contains(t, w.Body.String(), "### User")
}

func TestFileFlow(t *testing.T) {
	r := newTestServer(t)
	token := register(t, r, "alice")

	upload := func(name string, content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := upload("notes.txt", []byte("some notes"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var uploaded struct {
		ID   string `json:"id"`
		Size int64  `json:"size"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &uploaded))
	assert.Equal(t, int64(10), uploaded.Size)

	w = upload("evil.exe", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload("big.txt", bytes.Repeat([]byte("a"), 2048))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/files/download/"+uploaded.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "some notes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "notes.txt")

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/files/"+uploaded.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/files/download/"+uploaded.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
