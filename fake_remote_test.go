package assetcache

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lucasew/assetcache/internal/remote"
)

// fakeRemote is an in-memory asset store speaking the remote HTTP protocol.
// A key is answered 304 when the client sends the expected etag and has
// already received the current revision.
type fakeRemote struct {
	t *testing.T

	mu       sync.Mutex
	assets   map[string][]byte
	served   map[string]bool
	failKeys map[string]int
	status   int
	reverse  bool

	batches   atomic.Int32
	downloads atomic.Int32
	lastReq   remote.RevalidateRequest
	// onRevalidate runs with the fake locked, after the request is decoded
	// and before it is answered.
	onRevalidate func(req remote.RevalidateRequest)

	uploadDelay time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeRemote(t *testing.T) (*fakeRemote, *httptest.Server) {
	f := &fakeRemote{
		t:        t,
		assets:   map[string][]byte{},
		served:   map[string]bool{},
		failKeys: map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /get_multifiles", f.revalidate)
	mux.HandleFunc("POST /post_file", f.upload)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return f, ts
}

func etagOf(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (f *fakeRemote) put(key string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[key] = content
	f.served[key] = false
}

func (f *fakeRemote) lastRequest() remote.RevalidateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func (f *fakeRemote) revalidate(w http.ResponseWriter, r *http.Request) {
	f.batches.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	var in remote.RevalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		f.t.Errorf("bad revalidate body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.lastReq = in
	if f.onRevalidate != nil {
		f.onRevalidate(in)
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
	}

	var out remote.RevalidateResponse
	for _, key := range in.Keys {
		if status, ok := f.failKeys[key]; ok {
			out.Assets = append(out.Assets, remote.Asset{Key: key, Status: status, Error: "restore failed"})
			continue
		}
		content, ok := f.assets[key]
		if !ok {
			out.Assets = append(out.Assets, remote.Asset{Key: key, Status: http.StatusNotFound})
			continue
		}
		if in.ETags[key] == etagOf(key) && f.served[key] {
			out.Assets = append(out.Assets, remote.Asset{Key: key, Status: http.StatusNotModified})
			continue
		}
		f.served[key] = true
		f.downloads.Add(1)
		out.Assets = append(out.Assets, remote.Asset{
			Key:     key,
			Status:  http.StatusOK,
			Content: base64.StdEncoding.EncodeToString(content),
			ETag:    etagOf(key),
		})
	}
	if f.reverse {
		slices.Reverse(out.Assets)
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (f *fakeRemote) upload(w http.ResponseWriter, r *http.Request) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.uploadDelay > 0 {
		time.Sleep(f.uploadDelay)
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)

	if hdr.Filename == "reject.txt" {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	f.put(hdr.Filename, content)
	_ = json.NewEncoder(w).Encode(map[string]any{"key": hdr.Filename, "size": len(content)})
}
