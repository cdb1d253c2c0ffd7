package backend

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSplunk struct {
	logins   atomic.Int32
	searches []string
	mu       sync.Mutex
	results  int
}

func (f *fakeSplunk) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/services/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		_ = r.ParseForm()
		if r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"sessionKey":"abc"}`))
	})
	mux.HandleFunc("/services/search/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Splunk abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		search := r.PostForm.Get("search")
		f.mu.Lock()
		f.searches = append(f.searches, search)
		f.mu.Unlock()
		if search == "search broken" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"messages":[{"type":"FATAL","text":"Unknown search command 'broken'."}]}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"1234.5"}`))
	})
	mux.HandleFunc("/services/search/jobs/1234.5/results", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.results++
		n := f.results
		f.mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	mux.HandleFunc("/services/search/jobs/gone/results", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return mux
}

func newTestClient(t *testing.T, server *httptest.Server, password string) *SplunkClient {
	host, port, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return NewSplunkClient(Config{
		Scheme:   "http",
		Host:     host,
		Port:     p,
		Username: "admin",
		Password: password,
	}, nil)
}

func TestSplunkClient_CreateSearch(t *testing.T) {
	fake := &fakeSplunk{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server, "secret")
	ctx := context.Background()

	t.Run("Prefixes search", func(t *testing.T) {
		sid, err := client.CreateSearch(ctx, "index=main (id=1) | delete")
		require.NoError(t, err)
		assert.Equal(t, "1234.5", sid)
		assert.Equal(t, "search index=main (id=1) | delete", fake.searches[0])
	})

	t.Run("Keeps existing prefix", func(t *testing.T) {
		_, err := client.CreateSearch(ctx, "search model=community")
		require.NoError(t, err)
		assert.Equal(t, "search model=community", fake.searches[1])
	})

	t.Run("Fatal message", func(t *testing.T) {
		_, err := client.CreateSearch(ctx, "broken")
		var fatal *FatalQueryError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, "Unknown search command 'broken'.", fatal.Message)
	})

	assert.Equal(t, int32(1), fake.logins.Load(), "session key is reused")
}

func TestSplunkClient_LoginOnce(t *testing.T) {
	fake := &fakeSplunk{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server, "secret")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.connect(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, fake.logins.Load(), int32(5))
	assert.GreaterOrEqual(t, fake.logins.Load(), int32(1))

	before := fake.logins.Load()
	_, err := client.connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, fake.logins.Load())
}

func TestSplunkClient_AuthenticationError(t *testing.T) {
	fake := &fakeSplunk{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server, "wrong")
	_, err := client.CreateSearch(context.Background(), "x")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestSplunkClient_ConfiguredSessionKey(t *testing.T) {
	fake := &fakeSplunk{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server, "wrong")
	client.cfg.SessionKey = "abc"
	client.sessionKey = "abc"

	_, err := client.CreateSearch(context.Background(), "x")
	require.NoError(t, err)
	assert.Zero(t, fake.logins.Load())
}

func TestSplunkClient_PollStatus(t *testing.T) {
	fake := &fakeSplunk{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server, "secret")
	ctx := context.Background()

	status, err := client.PollStatus(ctx, "1234.5")
	require.NoError(t, err)
	assert.False(t, status.Ready)
	assert.Equal(t, http.StatusNoContent, status.Code)

	_, err = client.PollStatus(ctx, "gone")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}
