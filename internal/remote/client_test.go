package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reex/reexd/internal/logx"
	"github.com/reex/reexd/internal/models"
)

func TestFetchTasks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"list":[{"id":7,"commandName":"ping","arguments":{"host":"localhost"},"callback":"http://example.com/cb"}]}`)
	}))
	defer server.Close()

	c := NewClient(logx.Discard())
	tasks := c.FetchTasks(context.Background(), server.URL)

	require.Len(t, tasks, 1)
	assert.Equal(t, 7, tasks[0].ID)
	assert.Equal(t, "ping", tasks[0].CommandName)
	assert.Equal(t, map[string]string{"host": "localhost"}, tasks[0].Arguments)
	assert.Equal(t, "http://example.com/cb", tasks[0].Callback)
}

func TestFetchTasksEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"list":[]}`)
	}))
	defer server.Close()

	c := NewClient(logx.Discard())
	assert.Empty(t, c.FetchTasks(context.Background(), server.URL))
}

func TestFetchTasksNon2xxYieldsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(logx.Discard())
	assert.Nil(t, c.FetchTasks(context.Background(), server.URL))
}

func TestFetchTasksMalformedJSONYieldsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"list": not json`)
	}))
	defer server.Close()

	c := NewClient(logx.Discard())
	assert.Nil(t, c.FetchTasks(context.Background(), server.URL))
}

func TestFetchTasksNetworkErrorYieldsNil(t *testing.T) {
	c := NewClient(logx.Discard())
	assert.Nil(t, c.FetchTasks(context.Background(), "http://127.0.0.1:1/tasks"))
}

func TestPostCallback(t *testing.T) {
	received := make(chan map[string]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
	}))
	defer server.Close()

	c := NewClient(logx.Discard())
	c.PostCallback(context.Background(), server.URL, "all good")

	body := <-received
	assert.Equal(t, "all good", body["output"])
}

func TestUploadRecord(t *testing.T) {
	received := make(chan map[string]interface{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
	}))
	defer server.Close()

	rec := models.NewRemoteExecutionRecord("ping", "ping -c 1 localhost", "ok", 0, 7)

	c := NewClient(logx.Discard())
	c.UploadRecord(context.Background(), server.URL, rec)

	body := <-received
	assert.Equal(t, "7", body["id"])
	assert.Equal(t, "ok", body["output"])
	assert.Equal(t, float64(0), body["exitCode"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestUploadRecordLocalRunHasEmptyID(t *testing.T) {
	received := make(chan map[string]interface{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
	}))
	defer server.Close()

	rec := models.NewExecutionRecord("ls", "ls", "files", 0)

	c := NewClient(logx.Discard())
	c.UploadRecord(context.Background(), server.URL, rec)

	body := <-received
	assert.Equal(t, "", body["id"])
}
