package queue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPProbe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	probe := HTTPProbe(srv.URL, time.Second)
	ctx := context.Background()

	assert.True(t, probe(ctx))

	status.Store(http.StatusNotFound)
	assert.True(t, probe(ctx), "a 4xx still proves the network path")

	status.Store(http.StatusBadGateway)
	assert.False(t, probe(ctx))

	srv.Close()
	assert.False(t, probe(ctx))
}
