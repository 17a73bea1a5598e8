package coze

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "test-token", "wf123", 5*time.Second)
	return server, client
}

func TestRunWorkflowSubmitsAsync(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/workflow/run", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "wf123", payload["workflow_id"])
		assert.Equal(t, true, payload["is_async"])

		fmt.Fprint(w, `{"code":0,"msg":"","execute_id":"exec_001","debug_url":"http://debug"}`)
	})

	executeID, err := client.RunWorkflow(context.Background(), map[string]interface{}{"content": "文案"})
	assert.NoError(t, err)
	assert.Equal(t, "exec_001", executeID)
}

func TestRunWorkflowAPIError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":4013,"msg":"token invalid"}`)
	})

	_, err := client.RunWorkflow(context.Background(), nil)
	assert.Error(t, err)

	apiErr, ok := err.(*APIError)
	assert.True(t, ok)
	assert.Equal(t, "4013", apiErr.Code)
}

func TestQueryRunHistorySucceeded(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/workflows/wf123/run_histories/exec_001", r.URL.Path)
		fmt.Fprint(w, `{"code":0,"data":[{"execute_status":"Success","output":"{\"audioUrl\":\"http://a.mp3\"}"}]}`)
	})

	result, err := client.QueryRunHistory(context.Background(), "exec_001")
	assert.NoError(t, err)
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, `{"audioUrl":"http://a.mp3"}`, result.Output)
}

func TestQueryRunHistorySuccessWithoutOutput(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":[{"execute_status":"Success","output":""}]}`)
	})

	// 成功但没有输出按失败处理，下游无法合成
	result, err := client.QueryRunHistory(context.Background(), "exec_001")
	assert.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestQueryRunHistoryFailed(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":[{"execute_status":"Failed","error_code":"720701001","error_message":"access plugin timeout"}]}`)
	})

	result, err := client.QueryRunHistory(context.Background(), "exec_001")
	assert.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "720701001", result.ErrorCode)
	assert.Equal(t, "access plugin timeout", result.ErrorMessage)
}

func TestQueryRunHistoryPending(t *testing.T) {
	// 执行中
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":[{"execute_status":"Running"}]}`)
	})
	result, err := client.QueryRunHistory(context.Background(), "exec_001")
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)

	// 尚无执行记录
	_, client = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":[]}`)
	})
	result, err = client.QueryRunHistory(context.Background(), "exec_001")
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)
}
