package assetcache

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lucasew/assetcache/internal/remote"
)

func newTestClient(t *testing.T, baseURL string, maxSize int64) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		Project:      "proj",
		Bucket:       "bkt",
		CacheDir:     t.TempDir(),
		MaxCacheSize: maxSize,
		Timeout:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type fileState struct {
	size    int64
	modTime time.Time
	content string
}

func snapshot(t *testing.T, dir string) map[string]fileState {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]fileState, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := os.ReadFile(filepath.Join(dir, e.Name()))
		out[e.Name()] = fileState{size: info.Size(), modTime: info.ModTime(), content: string(b)}
	}
	return out
}

func dirSize(t *testing.T, dir string) int64 {
	t.Helper()
	var total int64
	for _, s := range snapshot(t, dir) {
		total += s.size
	}
	return total
}

func setAge(t *testing.T, c *Client, key string, at time.Time) {
	t.Helper()
	if err := os.Chtimes(c.store.Path(c.Fingerprint(key)), at, at); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}
}

func TestLoad(t *testing.T) {
	fake, ts := newFakeRemote(t)
	fake.put("images/cat", []byte("meow"))
	c := newTestClient(t, ts.URL, 1024)
	ctx := context.Background()

	t.Run("Miss Then Hit", func(t *testing.T) {
		first, err := c.Load(ctx, "images/cat")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if filepath.Base(first) != c.Fingerprint("images/cat")+".webp" {
			t.Errorf("unexpected slot name %s", first)
		}
		b, _ := os.ReadFile(first)
		if string(b) != "meow" {
			t.Errorf("expected meow, got %q", b)
		}

		old := time.Unix(1_000, 0)
		setAge(t, c, "images/cat", old)

		second, err := c.Load(ctx, "images/cat")
		if err != nil {
			t.Fatalf("second Load failed: %v", err)
		}
		if second != first {
			t.Errorf("expected same path, got %s and %s", first, second)
		}
		if got := fake.downloads.Load(); got != 1 {
			t.Errorf("expected a single download, got %d", got)
		}
		if fake.lastRequest().ETags["images/cat"] != c.Fingerprint("images/cat") {
			t.Errorf("expected known fingerprint to be sent, got %+v", fake.lastRequest().ETags)
		}
		info, _ := os.Stat(second)
		if !info.ModTime().After(old) {
			t.Error("cache hit should refresh the slot access time")
		}
	})

	t.Run("Remote Update", func(t *testing.T) {
		fake.put("images/cat", []byte("purr"))
		path, err := c.Load(ctx, "images/cat")
		if err != nil {
			t.Fatal(err)
		}
		b, _ := os.ReadFile(path)
		if string(b) != "purr" {
			t.Errorf("expected refreshed content, got %q", b)
		}
	})

	t.Run("Asset Error", func(t *testing.T) {
		_, err := c.Load(ctx, "missing")
		var assetErr *AssetError
		if !errors.As(err, &assetErr) {
			t.Fatalf("expected AssetError, got %v", err)
		}
		if assetErr.Key != "missing" || assetErr.Status != http.StatusNotFound {
			t.Errorf("unexpected asset error %+v", assetErr)
		}
		if errors.Is(err, ErrRemoteUnavailable) {
			t.Error("per-key failure must not look like a call failure")
		}
	})

	t.Run("Cached", func(t *testing.T) {
		if _, err := c.Cached(ctx, "images/cat"); err != nil {
			t.Errorf("expected cached slot, got %v", err)
		}
		if _, err := c.Cached(ctx, "never-loaded"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLoadMany(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		c := newTestClient(t, ts.URL, 1024)

		res, err := c.LoadMany(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Assets) != 0 || len(res.Paths()) != 0 {
			t.Errorf("expected empty result, got %+v", res)
		}
		if fake.batches.Load() != 0 {
			t.Error("empty load must not hit the network")
		}
	})

	t.Run("Partial Failure", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		fake.put("k1", []byte("one"))
		fake.put("k2", []byte("two"))
		fake.put("k3", []byte("three"))
		fake.failKeys["k2"] = http.StatusInternalServerError
		c := newTestClient(t, ts.URL, 1024)

		res, err := c.LoadMany(ctx, []string{"k1", "k2", "k3"})
		if err != nil {
			t.Fatalf("batch must not fail as a whole: %v", err)
		}
		paths := res.Paths()
		if len(paths) != 2 {
			t.Fatalf("expected 2 paths, got %v", paths)
		}
		if paths[0] != c.store.Path(c.Fingerprint("k1")) || paths[1] != c.store.Path(c.Fingerprint("k3")) {
			t.Errorf("expected k1 then k3, got %v", paths)
		}
		errs := res.Errors()
		if len(errs) != 1 || errs[0].Key != "k2" || errs[0].Status != http.StatusInternalServerError {
			t.Errorf("expected one k2 error, got %+v", errs)
		}
		if res.Assets[1].Status != StatusError || res.Assets[1].Path != "" {
			t.Errorf("failed key should have no path, got %+v", res.Assets[1])
		}
		if fake.batches.Load() != 1 {
			t.Errorf("expected exactly one batch request, got %d", fake.batches.Load())
		}
	})

	t.Run("Reordered Response", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		fake.reverse = true
		keys := []string{"a", "b", "c", "d"}
		for _, k := range keys {
			fake.put(k, []byte("content-"+k))
		}
		c := newTestClient(t, ts.URL, 1024)

		res, err := c.LoadMany(ctx, keys)
		if err != nil {
			t.Fatal(err)
		}
		for i, k := range keys {
			a := res.Assets[i]
			if a.Key != k {
				t.Errorf("position %d: expected %s, got %s", i, k, a.Key)
			}
			b, _ := os.ReadFile(a.Path)
			if string(b) != "content-"+k {
				t.Errorf("position %d: wrong content %q", i, b)
			}
		}
	})

	t.Run("Duplicate Keys", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		fake.put("old", []byte("1234"))
		fake.put("dup", []byte("123456"))
		c := newTestClient(t, ts.URL, 10)

		if _, err := c.Load(ctx, "old"); err != nil {
			t.Fatal(err)
		}
		setAge(t, c, "old", time.Unix(1_000, 0))

		res, err := c.LoadMany(ctx, []string{"dup", "other", "dup"})
		if err != nil {
			t.Fatal(err)
		}
		if len(fake.lastRequest().Keys) != 2 {
			t.Errorf("expected deduplicated request, got %v", fake.lastRequest().Keys)
		}
		if res.Assets[0].Path == "" || res.Assets[0].Path != res.Assets[2].Path {
			t.Errorf("duplicates must resolve to the same path: %+v", res.Assets)
		}
		if fake.downloads.Load() != 2 {
			t.Errorf("expected one download of dup, got %d downloads", fake.downloads.Load())
		}
		// 4 + 6 bytes fit exactly; counting dup twice would evict old.
		if _, err := c.Cached(ctx, "old"); err != nil {
			t.Errorf("old slot should survive a single accounting of dup: %v", err)
		}
		if got := dirSize(t, c.CacheDir()); got != 10 {
			t.Errorf("expected 10 bytes on disk, got %d", got)
		}
	})

	t.Run("Hits Are Touched Before Fresh Writes", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		fake.put("a", []byte("aaaa"))
		fake.put("c", []byte("cccc"))
		fake.put("b", []byte("bbbbb"))
		c := newTestClient(t, ts.URL, 10)

		if _, err := c.LoadMany(ctx, []string{"a", "c"}); err != nil {
			t.Fatal(err)
		}
		setAge(t, c, "a", time.Unix(1_000, 0))
		setAge(t, c, "c", time.Unix(2_000, 0))

		// b is fresh and listed first; a is current but the oldest slot.
		res, err := c.LoadMany(ctx, []string{"b", "a"})
		if err != nil {
			t.Fatal(err)
		}
		for _, a := range res.Assets {
			if a.Err != nil {
				t.Errorf("%s failed: %v", a.Key, a.Err)
			}
		}
		if res.Assets[0].Status != StatusMiss || res.Assets[1].Status != StatusHit {
			t.Errorf("expected miss then hit, got %s and %s", res.Assets[0].Status, res.Assets[1].Status)
		}
		if _, err := c.Cached(ctx, "c"); !errors.Is(err, ErrNotFound) {
			t.Error("c should be the victim once a is confirmed")
		}
		if _, err := c.Cached(ctx, "a"); err != nil {
			t.Errorf("a should survive: %v", err)
		}
		if got := dirSize(t, c.CacheDir()); got != 9 {
			t.Errorf("expected 9 bytes on disk, got %d", got)
		}
	})

	t.Run("Slot Evicted During Revalidation", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		fake.put("a", []byte("aaaa"))
		fake.put("b", []byte("bbbb"))
		c := newTestClient(t, ts.URL, 1024)

		if _, err := c.LoadMany(ctx, []string{"a", "b"}); err != nil {
			t.Fatal(err)
		}
		// Another caller evicts a after this call decided it was known.
		fake.onRevalidate = func(req remote.RevalidateRequest) {
			if req.ETags["a"] != "" {
				_ = os.Remove(c.store.Path(c.Fingerprint("a")))
			}
		}

		res, err := c.LoadMany(ctx, []string{"a", "b"})
		if err != nil {
			t.Fatal(err)
		}
		a, b := res.Assets[0], res.Assets[1]
		if a.Err != nil || a.Status != StatusMiss {
			t.Fatalf("expected a to be fetched again, got %+v", a)
		}
		if got, _ := os.ReadFile(a.Path); string(got) != "aaaa" {
			t.Errorf("unexpected content %q", got)
		}
		if b.Err != nil || b.Status != StatusHit {
			t.Errorf("expected b hit, got %+v", b)
		}
		if fake.batches.Load() != 3 {
			t.Errorf("expected one follow-up request, got %d batches", fake.batches.Load())
		}
		if req := fake.lastRequest(); len(req.Keys) != 1 || req.Keys[0] != "a" || len(req.ETags) != 0 {
			t.Errorf("follow-up should request a unconditionally, got %+v", req)
		}
	})

	t.Run("Follow-up Request Fails", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		fake.put("a", []byte("aaaa"))
		c := newTestClient(t, ts.URL, 1024)

		if _, err := c.Load(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		fake.onRevalidate = func(req remote.RevalidateRequest) {
			_ = os.Remove(c.store.Path(c.Fingerprint("a")))
			if len(req.ETags) == 0 {
				fake.status = http.StatusServiceUnavailable
			}
		}

		res, err := c.LoadMany(ctx, []string{"a"})
		if err != nil {
			t.Fatalf("first request succeeded, the call must not fail: %v", err)
		}
		var assetErr *AssetError
		if !errors.As(res.Assets[0].Err, &assetErr) || !errors.Is(assetErr, ErrRemoteUnavailable) {
			t.Errorf("expected AssetError wrapping ErrRemoteUnavailable, got %v", res.Assets[0].Err)
		}
	})

	t.Run("Unexpected 304 Without Slot", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"assets":[{"key":"ghost","status":304}]}`))
		}))
		defer ts.Close()
		c := newTestClient(t, ts.URL, 1024)

		res, err := c.LoadMany(ctx, []string{"ghost", "absent"})
		if err != nil {
			t.Fatal(err)
		}
		for _, a := range res.Assets {
			if a.Err == nil {
				t.Errorf("expected %s to fail, got %+v", a.Key, a)
			}
		}
		if !errors.Is(res.Assets[0].Err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for ghost, got %v", res.Assets[0].Err)
		}
		if !errors.Is(res.Assets[1].Err, errNoOutcome) {
			t.Errorf("expected missing outcome for absent, got %v", res.Assets[1].Err)
		}
	})

	t.Run("Bad Payload", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"assets":[{"key":"bad","status":200,"content":"***"}]}`))
		}))
		defer ts.Close()
		c := newTestClient(t, ts.URL, 1024)

		res, err := c.LoadMany(ctx, []string{"bad"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Assets[0].Err == nil {
			t.Error("expected decode failure")
		}
		if len(snapshot(t, c.CacheDir())) != 0 {
			t.Error("nothing should be written for an undecodable payload")
		}
	})
}

func TestLoadMany_CallFailures(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"Forbidden", http.StatusForbidden, ErrAccessDenied},
		{"Unauthorized", http.StatusUnauthorized, ErrAccessDenied},
		{"Server Error", http.StatusInternalServerError, ErrRemoteUnavailable},
		{"Bad Gateway", http.StatusBadGateway, ErrRemoteUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake, ts := newFakeRemote(t)
			fake.put("a", []byte("aaaa"))
			fake.put("b", []byte("bbbb"))
			c := newTestClient(t, ts.URL, 1024)

			if _, err := c.Load(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			setAge(t, c, "a", time.Unix(1_000, 0))
			before := snapshot(t, c.CacheDir())

			fake.status = tc.status
			res, err := c.LoadMany(ctx, []string{"a", "b"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if res != nil {
				t.Errorf("expected no result, got %+v", res)
			}
			var statusErr *HTTPStatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tc.status {
				t.Errorf("expected wrapped status %d, got %v", tc.status, err)
			}

			after := snapshot(t, c.CacheDir())
			if len(after) != len(before) {
				t.Fatalf("cache dir changed: %v -> %v", before, after)
			}
			for name, st := range before {
				if after[name] != st {
					t.Errorf("%s modified: %+v -> %+v", name, st, after[name])
				}
			}
		})
	}

	t.Run("Transport Failure", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		c := newTestClient(t, url, 1024)
		_, err := c.Load(ctx, "a")
		if !errors.Is(err, ErrRemoteUnavailable) {
			t.Errorf("expected ErrRemoteUnavailable, got %v", err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		block := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-block:
			case <-r.Context().Done():
			}
		}))
		defer ts.Close()
		defer close(block)

		c, err := New(Config{BaseURL: ts.URL, CacheDir: t.TempDir(), Timeout: 20 * time.Millisecond})
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.Load(ctx, "slow")
		if !errors.Is(err, ErrRemoteUnavailable) {
			t.Errorf("expected ErrRemoteUnavailable on timeout, got %v", err)
		}
		if len(snapshot(t, c.CacheDir())) != 0 {
			t.Error("timeout must not write anything")
		}
	})
}

func TestLoadMany_Quota(t *testing.T) {
	ctx := context.Background()

	t.Run("Evicts Least Recently Used", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		fake.put("old", bytes.Repeat([]byte("o"), 4))
		fake.put("new", bytes.Repeat([]byte("n"), 4))
		fake.put("incoming", bytes.Repeat([]byte("i"), 5))
		c := newTestClient(t, ts.URL, 10)

		if _, err := c.LoadMany(ctx, []string{"old", "new"}); err != nil {
			t.Fatal(err)
		}
		setAge(t, c, "old", time.Unix(1_000, 0))
		setAge(t, c, "new", time.Unix(2_000, 0))

		res, err := c.LoadMany(ctx, []string{"incoming"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Assets[0].OverCapacity {
			t.Error("5 bytes fit in 10, not over capacity")
		}

		if _, err := c.Cached(ctx, "old"); !errors.Is(err, ErrNotFound) {
			t.Error("oldest slot should have been evicted")
		}
		if _, err := c.Cached(ctx, "new"); err != nil {
			t.Error("newest slot should survive")
		}
		if got := dirSize(t, c.CacheDir()); got != 9 {
			t.Errorf("expected 9 bytes on disk, got %d", got)
		}
	})

	t.Run("Hit Protects Slot", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		for _, k := range []string{"a", "b", "c"} {
			fake.put(k, bytes.Repeat([]byte(k), 3))
		}
		fake.put("d", []byte("ddd"))
		c := newTestClient(t, ts.URL, 9)

		if _, err := c.LoadMany(ctx, []string{"a", "b", "c"}); err != nil {
			t.Fatal(err)
		}
		setAge(t, c, "a", time.Unix(1_000, 0))
		setAge(t, c, "b", time.Unix(2_000, 0))
		setAge(t, c, "c", time.Unix(3_000, 0))

		// Revalidating a makes it the most recently used.
		if _, err := c.Load(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Load(ctx, "d"); err != nil {
			t.Fatal(err)
		}

		if _, err := c.Cached(ctx, "b"); !errors.Is(err, ErrNotFound) {
			t.Error("b should be the victim")
		}
		for _, k := range []string{"a", "c", "d"} {
			if _, err := c.Cached(ctx, k); err != nil {
				t.Errorf("%s should survive: %v", k, err)
			}
		}
	})

	t.Run("Over Capacity", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		fake.put("small", []byte("ss"))
		fake.put("huge", bytes.Repeat([]byte("h"), 20))
		c := newTestClient(t, ts.URL, 10)

		if _, err := c.Load(ctx, "small"); err != nil {
			t.Fatal(err)
		}
		res, err := c.LoadMany(ctx, []string{"huge"})
		if err != nil {
			t.Fatalf("oversized payload must not fail the call: %v", err)
		}
		a := res.Assets[0]
		if a.Err != nil || !a.OverCapacity {
			t.Errorf("expected written over-capacity asset, got %+v", a)
		}
		files := snapshot(t, c.CacheDir())
		if len(files) != 1 || files[filepath.Base(a.Path)].size != 20 {
			t.Errorf("expected only the oversized slot, got %+v", files)
		}
	})

	t.Run("Concurrent Loads Stay Within Budget", func(t *testing.T) {
		fake, ts := newFakeRemote(t)
		const n = 16
		for i := range n {
			fake.put(string(rune('a'+i)), []byte("1234"))
		}
		c := newTestClient(t, ts.URL, 10)
		// A second client on the same directory shares the lock.
		c2, err := New(Config{BaseURL: ts.URL, CacheDir: c.CacheDir(), MaxCacheSize: 10})
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			client := c
			if i%2 == 1 {
				client = c2
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := client.Load(ctx, string(rune('a'+i))); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("load failed: %v", err)
		}

		if got := dirSize(t, c.CacheDir()); got > 10 {
			t.Errorf("budget exceeded: %d bytes on disk", got)
		}
	})
}

func TestLoad_WithIndex(t *testing.T) {
	fake, ts := newFakeRemote(t)
	fake.put("x", []byte("xxxx"))
	fake.put("y", []byte("yyyy"))
	fake.put("z", []byte("zzzz"))

	c, err := New(Config{
		BaseURL:      ts.URL,
		CacheDir:     t.TempDir(),
		IndexPath:    filepath.Join(t.TempDir(), "index.sqlite"),
		MaxCacheSize: 8,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Load(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := c.Load(ctx, "y"); err != nil {
		t.Fatal(err)
	}
	// File mtimes say y is older; the index, which wins, says x is.
	setAge(t, c, "y", time.Unix(1_000, 0))

	if _, err := c.Load(ctx, "z"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Cached(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Error("x should be evicted according to the index")
	}
	if _, err := c.Cached(ctx, "y"); err != nil {
		t.Errorf("y should survive: %v", err)
	}

	// No index file inside the slot directory.
	for name := range snapshot(t, c.CacheDir()) {
		if !strings.HasSuffix(name, ".webp") {
			t.Errorf("unexpected file in cache dir: %s", name)
		}
	}
}

func TestPruneAndUsage(t *testing.T) {
	fake, ts := newFakeRemote(t)
	for _, k := range []string{"p", "q", "r"} {
		fake.put(k, []byte("12345"))
	}
	dir := t.TempDir()
	big, err := New(Config{BaseURL: ts.URL, CacheDir: dir, MaxCacheSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := big.LoadMany(ctx, []string{"p", "q", "r"}); err != nil {
		t.Fatal(err)
	}

	small, err := New(Config{BaseURL: ts.URL, CacheDir: dir, MaxCacheSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	report, err := small.Prune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Evicted != 1 {
		t.Errorf("expected 1 eviction, got %+v", report)
	}
	count, total, err := small.Usage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || total != 10 {
		t.Errorf("expected 2 slots / 10 bytes, got %d / %d", count, total)
	}
}

func TestConfigValidate(t *testing.T) {
	good := Config{BaseURL: "http://example.invalid", CacheDir: "/tmp/x"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := []Config{
		{CacheDir: "/tmp/x"},
		{BaseURL: "http://example.invalid"},
		{BaseURL: "http://example.invalid", CacheDir: "/tmp/x", MaxCacheSize: -1},
		{BaseURL: "http://example.invalid", CacheDir: "/tmp/x", Algo: "crc32"},
		{BaseURL: "http://example.invalid", CacheDir: "/tmp/x", Parallelism: -2},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}

	dir := t.TempDir()
	_, err := New(Config{BaseURL: "http://example.invalid", CacheDir: dir, IndexPath: filepath.Join(dir, "idx.sqlite")})
	if err == nil {
		t.Error("index inside the cache dir must be rejected")
	}

	for _, name := range []string{"..idx.sqlite", filepath.Join("sub", "idx.sqlite")} {
		if err := checkIndexPath(dir, filepath.Join(dir, name)); err == nil {
			t.Errorf("%s is inside the cache dir and must be rejected", name)
		}
	}
	if err := checkIndexPath(dir, filepath.Join(filepath.Dir(dir), "idx.sqlite")); err != nil {
		t.Errorf("sibling index path should be accepted: %v", err)
	}

	_, err = New(Config{BaseURL: "http://example.invalid", CacheDir: dir, EvictionStrategy: "fifo"})
	if err == nil {
		t.Error("unknown strategy must be rejected")
	}
}
