package satrain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFetchIndex(t *testing.T) {
	t.Run("parses the index document", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/"+indexPath {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(`[
				{"sensor":"gmi","split":"training","subset":"xs","geometry":"gridded","format":"spatial","source":"target","path":"gmi/training/xs/gridded/spatial/target_a.nc","size":12}
			]`))
		}))
		defer srv.Close()

		c := newServerClient(srv.URL+"/", http.DefaultClient, nil)
		entries, err := c.fetchIndex(context.Background())
		if err != nil {
			t.Fatalf("fetchIndex() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("len(entries) = %d, want 1", len(entries))
		}
		if entries[0].Path != "gmi/training/xs/gridded/spatial/target_a.nc" || entries[0].Size != 12 {
			t.Errorf("entry = %+v", entries[0])
		}
	})

	t.Run("server error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := newServerClient(srv.URL, http.DefaultClient, nil)
		if _, err := c.fetchIndex(context.Background()); !errors.Is(err, ErrServer) {
			t.Errorf("error = %v, want ErrServer", err)
		}
	})

	t.Run("malformed index", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not":"an array"`))
		}))
		defer srv.Close()

		c := newServerClient(srv.URL, http.DefaultClient, nil)
		if _, err := c.fetchIndex(context.Background()); !errors.Is(err, ErrServer) {
			t.Errorf("error = %v, want ErrServer", err)
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		c := newServerClient(srv.URL, http.DefaultClient, nil)
		if _, err := c.fetchIndex(context.Background()); !errors.Is(err, ErrNetwork) {
			t.Errorf("error = %v, want ErrNetwork", err)
		}
	})
}

func TestFetchFile(t *testing.T) {
	content := []byte("netcdf bytes")

	newFileServer := func(t *testing.T) *httptest.Server {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/data/target_a.nc" {
				w.Write(content)
				return
			}
			http.NotFound(w, r)
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("writes the file and reports progress", func(t *testing.T) {
		srv := newFileServer(t)
		c := newServerClient(srv.URL, http.DefaultClient, nil)

		dest := filepath.Join(t.TempDir(), "target_a.nc.part")
		var progressed int64
		n, err := c.fetchFile(context.Background(), "data/target_a.nc", dest, func(delta int64) {
			progressed += delta
		})
		if err != nil {
			t.Fatalf("fetchFile() error = %v", err)
		}
		if n != int64(len(content)) {
			t.Errorf("n = %d, want %d", n, len(content))
		}
		if progressed != int64(len(content)) {
			t.Errorf("progress total = %d, want %d", progressed, len(content))
		}
		got, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("content = %q, want %q", got, content)
		}
	})

	t.Run("missing remote file removes the destination", func(t *testing.T) {
		srv := newFileServer(t)
		c := newServerClient(srv.URL, http.DefaultClient, nil)

		dest := filepath.Join(t.TempDir(), "missing.nc.part")
		_, err := c.fetchFile(context.Background(), "data/missing.nc", dest, nil)
		if !errors.Is(err, ErrNetwork) {
			t.Fatalf("error = %v, want ErrNetwork", err)
		}
		if _, err := os.Stat(dest); !os.IsNotExist(err) {
			t.Error("destination file left behind after failed fetch")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := newFileServer(t)
		c := newServerClient(srv.URL, http.DefaultClient, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		dest := filepath.Join(t.TempDir(), "target_a.nc.part")
		if _, err := c.fetchFile(ctx, "data/target_a.nc", dest, nil); err == nil {
			t.Error("fetchFile() error = nil after cancellation")
		}
	})
}
