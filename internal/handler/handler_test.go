package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"inboxchat/internal/app/db"
	"inboxchat/internal/app/dispatch"
	"inboxchat/internal/app/hub"
	"inboxchat/internal/configs"
	"inboxchat/internal/pkg/auth/jwt"
	"inboxchat/internal/pkg/errs"
)

const testSecret = "test-secret"

// envelope mirrors resp.JSONResponse with the payload left raw.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fakeStorage struct {
	keys []string
}

func (f *fakeStorage) PresignUpload(_ context.Context, key, _ string, _ int64, _ time.Duration) (string, error) {
	f.keys = append(f.keys, key)
	return "https://bucket.example/upload/" + key, nil
}

func (f *fakeStorage) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://bucket.example/download/" + key, nil
}

// newTestServer serves the full router over an in-memory database and a hub that never beats.
func newTestServer(t *testing.T) (*httptest.Server, *AppDeps) {
	t.Helper()

	store, err := db.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(store.Close)

	h := hub.NewHub(time.Hour)

	deps := &AppDeps{
		Config: &configs.AppConfig{
			Environment:       configs.EnvDevelopment,
			JWTSecret:         testSecret,
			HeartbeatInterval: time.Hour,
			MessageRate:       1000,
			MessageBurst:      1000,
			StreamRate:        1000,
			StreamBurst:       1000,
		},
		Hub:        h,
		Store:      store,
		Dispatcher: dispatch.NewDispatcher(store, h),
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(Router(ctx, deps))

	t.Cleanup(srv.Close)
	t.Cleanup(cancel)
	// Runs first: ends any stream still open so srv.Close does not block.
	t.Cleanup(h.Shutdown)

	return srv, deps
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token, contentType string, body io.Reader) (int, envelope) {
	t.Helper()

	r, err := http.NewRequest(method, srv.URL+path, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}

	res, err := srv.Client().Do(r)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: undecodable response: %v", method, path, err)
	}

	return res.StatusCode, env
}

func postJSON(t *testing.T, srv *httptest.Server, path, token string, body any) (int, envelope) {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}

	return doRequest(t, srv, http.MethodPost, path, token, "application/json", bytes.NewReader(raw))
}

func postText(t *testing.T, srv *httptest.Server, path, token, text string) (int, envelope) {
	t.Helper()
	return doRequest(t, srv, http.MethodPost, path, token, "text/plain", strings.NewReader(text))
}

// signIn creates the user when needed and returns its token.
func signIn(t *testing.T, srv *httptest.Server, userID, username string) string {
	t.Helper()

	status, env := postJSON(t, srv, "/api/auth", "", AuthInput{UserID: userID, Username: username})
	if status != http.StatusOK {
		t.Fatalf("sign-in of %s failed: %d %+v", userID, status, env)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("no token in %s", env.Data)
	}

	return data.Token
}

func wantCode(t *testing.T, status int, env envelope, code int) {
	t.Helper()

	want := errs.NewError(code)
	if status != want.Status || env.Code != code {
		t.Errorf("got %d/%d (%s), want %d/%d", status, env.Code, env.Message, want.Status, code)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	status, env := doRequest(t, srv, http.MethodGet, "/health", "", "", nil)
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("got %d %+v", status, env)
	}
	if !strings.Contains(string(env.Data), `"status":"ok"`) {
		t.Errorf("data = %s", env.Data)
	}
}

func TestAuth(t *testing.T) {
	srv, deps := newTestServer(t)

	t.Run("creates an unknown user with a username", func(t *testing.T) {
		status, env := postJSON(t, srv, "/api/auth", "", AuthInput{UserID: "alice", Username: " Alice "})
		if status != http.StatusOK {
			t.Fatalf("got %d %+v", status, env)
		}

		var data struct {
			Token string `json:"token"`
			User  struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"user"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("bad data: %v", err)
		}
		if data.User.ID != "alice" || data.User.Username != "Alice" {
			t.Errorf("user = %+v", data.User)
		}

		payload, err := jwt.ParseToken(data.Token, testSecret)
		if err != nil || payload.ID != "alice" {
			t.Errorf("token not valid for alice: %v", err)
		}
	})

	t.Run("signs in an existing user by ID", func(t *testing.T) {
		status, env := postJSON(t, srv, "/api/auth", "", AuthInput{UserID: "alice"})
		if status != http.StatusOK {
			t.Fatalf("got %d %+v", status, env)
		}

		u, err := deps.Store.FindUserByID(context.Background(), "alice")
		if err != nil || u.Username != "Alice" {
			t.Errorf("stored user = %+v, %v", u, err)
		}
	})

	t.Run("unknown user without username", func(t *testing.T) {
		status, env := postJSON(t, srv, "/api/auth", "", AuthInput{UserID: "nobody"})
		wantCode(t, status, env, errs.ErrUserNotFound)
	})

	t.Run("invalid user ID", func(t *testing.T) {
		status, env := postJSON(t, srv, "/api/auth", "", AuthInput{UserID: "not_valid", Username: "x"})
		wantCode(t, status, env, errs.ErrInvalidParams)
	})

	t.Run("logout requires identity", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodPost, "/api/auth/logout", "", "", nil)
		wantCode(t, status, env, errs.ErrUnauthorized)
	})
}

func TestLogoutWithoutStreamMarksOffline(t *testing.T) {
	srv, deps := newTestServer(t)
	token := signIn(t, srv, "alice", "Alice")

	if _, err := deps.Store.UpdateUserStatus(context.Background(), "alice", "online"); err != nil {
		t.Fatalf("failed to seed status: %v", err)
	}

	status, env := doRequest(t, srv, http.MethodPost, "/api/auth/logout", token, "", nil)
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("got %d %+v", status, env)
	}

	u, _ := deps.Store.FindUserByID(context.Background(), "alice")
	if u.Status != "offline" {
		t.Errorf("status = %s, want offline", u.Status)
	}
}

func TestFriends(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signIn(t, srv, "bob", "Bob")
	signIn(t, srv, "alice", "Alice")
	signIn(t, srv, "carol", "Carol")

	status, env := doRequest(t, srv, http.MethodGet, "/api/friends", token, "", nil)
	if status != http.StatusOK {
		t.Fatalf("got %d %+v", status, env)
	}

	var data struct {
		Friends []Friend `json:"friends"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("bad data: %v", err)
	}

	inboxes := map[string]string{}
	for _, f := range data.Friends {
		inboxes[f.ID] = f.Inbox
	}

	if len(inboxes) != 2 || inboxes["alice"] != "d_alice_bob" || inboxes["carol"] != "d_bob_carol" {
		t.Errorf("friends = %+v", data.Friends)
	}
}

func TestChats(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := signIn(t, srv, "alice", "Alice")

	t.Run("requires identity", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodGet, "/api/chats?inbox=d_alice_bob", "", "", nil)
		wantCode(t, status, env, errs.ErrUnauthorized)
	})

	t.Run("rejects a foreign inbox", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodGet, "/api/chats?inbox=d_bob_carol", alice, "", nil)
		wantCode(t, status, env, errs.ErrNotInboxParticipant)

		status, env = postText(t, srv, "/api/chats?inbox=d_bob_carol", alice, "hi")
		wantCode(t, status, env, errs.ErrNotInboxParticipant)
	})

	t.Run("rejects a malformed inbox on read", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodGet, "/api/chats?inbox=general", alice, "", nil)
		wantCode(t, status, env, errs.ErrMalformedInboxID)
	})

	t.Run("keeps a message posted to a malformed inbox", func(t *testing.T) {
		status, env := postText(t, srv, "/api/chats?inbox=general", alice, "hello")
		if status != http.StatusOK || env.Code != 0 {
			t.Errorf("got %d %+v", status, env)
		}
	})

	t.Run("validates the text", func(t *testing.T) {
		status, env := postText(t, srv, "/api/chats?inbox=d_alice_bob", alice, "   ")
		wantCode(t, status, env, errs.ErrEmptyMessage)

		status, env = postText(t, srv, "/api/chats?inbox=d_alice_bob", alice, strings.Repeat("x", db.MaxMessageLength+1))
		wantCode(t, status, env, errs.ErrMessageContentTooLong)
	})

	t.Run("filters by marker", func(t *testing.T) {
		status, env := postText(t, srv, "/api/chats?inbox=d_alice_bob", alice, "first")
		if status != http.StatusOK {
			t.Fatalf("post failed: %d %+v", status, env)
		}

		var posted db.Message
		if err := json.Unmarshal(env.Data, &posted); err != nil {
			t.Fatalf("bad data: %v", err)
		}
		if posted.FromUser != "alice" || posted.Text != "first" || posted.Marker == 0 {
			t.Fatalf("posted = %+v", posted)
		}

		list := func(query string) []db.Message {
			t.Helper()

			status, env := doRequest(t, srv, http.MethodGet, "/api/chats?inbox=d_alice_bob"+query, alice, "", nil)
			if status != http.StatusOK {
				t.Fatalf("list failed: %d %+v", status, env)
			}

			var data struct {
				Messages []db.Message `json:"messages"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatalf("bad data: %v", err)
			}
			return data.Messages
		}

		if got := list(""); len(got) != 1 || got[0].ID != posted.ID {
			t.Errorf("all messages = %+v", got)
		}
		if got := list("&marker=" + strconv.FormatInt(posted.Marker-1, 10)); len(got) != 1 {
			t.Errorf("messages after marker-1 = %+v", got)
		}
		if got := list("&marker=" + strconv.FormatInt(posted.Marker, 10)); len(got) != 0 {
			t.Errorf("messages after own marker = %+v", got)
		}

		status, env = doRequest(t, srv, http.MethodGet, "/api/chats?inbox=d_alice_bob&marker=soon", alice, "", nil)
		wantCode(t, status, env, errs.ErrInvalidParams)
	})
}

func TestFilesStorageDisabled(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := signIn(t, srv, "alice", "Alice")

	status, env := postJSON(t, srv, "/api/files/presign-upload", alice, PresignUploadInput{
		Inbox: "d_alice_bob", FileName: "cat.png", MimeType: "image/png", FileSize: 100,
	})
	wantCode(t, status, env, errs.ErrStorageDisabled)

	status, env = doRequest(t, srv, http.MethodGet, "/api/files/presign-download?k=d_alice_bob/x.png", alice, "", nil)
	wantCode(t, status, env, errs.ErrStorageDisabled)
}

func TestFiles(t *testing.T) {
	srv, deps := newTestServer(t)
	storage := &fakeStorage{}
	deps.StorageService = storage

	alice := signIn(t, srv, "alice", "Alice")
	carol := signIn(t, srv, "carol", "Carol")

	upload := PresignUploadInput{Inbox: "d_alice_bob", FileName: "Cat.PNG", MimeType: "image/png", FileSize: 1024}

	t.Run("upload", func(t *testing.T) {
		status, env := postJSON(t, srv, "/api/files/presign-upload", alice, upload)
		if status != http.StatusOK {
			t.Fatalf("got %d %+v", status, env)
		}

		var data struct {
			URL      string `json:"presignedUrl"`
			FileKey  string `json:"fileKey"`
			FileName string `json:"fileName"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("bad data: %v", err)
		}
		if !strings.HasPrefix(data.FileKey, "d_alice_bob/") || !strings.HasSuffix(data.FileKey, ".png") {
			t.Errorf("key = %q", data.FileKey)
		}
		if data.URL != "https://bucket.example/upload/"+data.FileKey || data.FileName != "Cat.PNG" {
			t.Errorf("data = %+v", data)
		}
	})

	t.Run("upload rejections", func(t *testing.T) {
		status, env := postJSON(t, srv, "/api/files/presign-upload", carol, upload)
		wantCode(t, status, env, errs.ErrNotInboxParticipant)

		bad := upload
		bad.Inbox = "general"
		status, env = postJSON(t, srv, "/api/files/presign-upload", alice, bad)
		wantCode(t, status, env, errs.ErrMalformedInboxID)

		bad = upload
		bad.FileSize = 10 << 20
		status, env = postJSON(t, srv, "/api/files/presign-upload", alice, bad)
		wantCode(t, status, env, errs.ErrFileSizeTooLarge)

		bad = upload
		bad.MimeType = "application/pdf"
		status, env = postJSON(t, srv, "/api/files/presign-upload", alice, bad)
		wantCode(t, status, env, errs.ErrFileTypeInvalid)
	})

	t.Run("download redirects participants", func(t *testing.T) {
		client := *srv.Client()
		client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

		r, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/files/presign-download?k=d_alice_bob/abc.png", nil)
		r.Header.Set("Authorization", "Bearer "+alice)

		res, err := client.Do(r)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		res.Body.Close()

		if res.StatusCode != http.StatusFound || res.Header.Get("Location") != "https://bucket.example/download/d_alice_bob/abc.png" {
			t.Errorf("got %d %q", res.StatusCode, res.Header.Get("Location"))
		}
	})

	t.Run("download rejections", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodGet, "/api/files/presign-download?k=d_alice_bob/abc.png", carol, "", nil)
		wantCode(t, status, env, errs.ErrNotInboxParticipant)

		status, env = doRequest(t, srv, http.MethodGet, "/api/files/presign-download?k=abc.png", alice, "", nil)
		wantCode(t, status, env, errs.ErrMalformedInboxID)

		status, env = doRequest(t, srv, http.MethodGet, "/api/files/presign-download", alice, "", nil)
		wantCode(t, status, env, errs.ErrInvalidParams)
	})
}
