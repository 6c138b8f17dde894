package converter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stageFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to stage test file: %v", err)
	}
	return path
}

func TestClient_Convert(t *testing.T) {
	rendered := []byte("%PDF-1.7 rendered output")
	staged := []byte("PK\x03\x04 fake docx")

	t.Run("Successful Conversion", func(t *testing.T) {
		var gotPath, gotSecret string
		var gotUpload []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotSecret = r.URL.Query().Get("Secret")
			file, _, err := r.FormFile("File")
			if err != nil {
				t.Errorf("missing File form field: %v", err)
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			gotUpload, _ = io.ReadAll(file)

			resp := fmt.Sprintf(`{"Files":[{"FileName":"out.pdf","FileSize":%d,"FileData":%q}]}`,
				len(rendered), base64.StdEncoding.EncodeToString(rendered))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(resp))
		}))
		defer server.Close()

		client := NewClient(server.URL, "s3cret", server.Client(), testLogger())
		got, err := client.Convert(context.Background(), stageFile(t, "notes.docx", staged), "pdf")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !bytes.Equal(got, rendered) {
			t.Errorf("rendered bytes mismatch: got %q", got)
		}
		if gotPath != "/convert/docx/to/pdf" {
			t.Errorf("unexpected request path %q", gotPath)
		}
		if gotSecret != "s3cret" {
			t.Errorf("unexpected secret %q", gotSecret)
		}
		if !bytes.Equal(gotUpload, staged) {
			t.Error("uploaded bytes do not match staged file")
		}
	})

	t.Run("Structured Remote Error Is Preferred", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(RemoteError{Code: 4013, Message: "Unable to download file."})
		}))
		defer server.Close()

		client := NewClient(server.URL, "s3cret", server.Client(), testLogger())
		_, err := client.Convert(context.Background(), stageFile(t, "notes.docx", staged), "pdf")
		var remoteErr *RemoteError
		if !errors.As(err, &remoteErr) {
			t.Fatalf("expected a RemoteError, got %v", err)
		}
		if remoteErr.Message != "Unable to download file." {
			t.Errorf("unexpected message %q", remoteErr.Message)
		}
	})

	t.Run("Unstructured Failure Gets Generic Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
		}))
		defer server.Close()

		client := NewClient(server.URL, "s3cret", server.Client(), testLogger())
		_, err := client.Convert(context.Background(), stageFile(t, "notes.docx", staged), "pdf")
		if err == nil {
			t.Fatal("expected an error")
		}
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) {
			t.Errorf("expected a generic error, got structured %v", remoteErr)
		}
	})

	t.Run("Missing Staged File", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:0", "s3cret", nil, testLogger())
		if _, err := client.Convert(context.Background(), filepath.Join(t.TempDir(), "absent.docx"), "pdf"); err == nil {
			t.Fatal("expected an error for a missing staged file")
		}
	})
}
