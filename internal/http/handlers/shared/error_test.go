package shared

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fanzfinance/internal/http/response"
	"github.com/fanzfinance/internal/service"

	"github.com/gin-gonic/gin"
)

func TestStatusForCode(t *testing.T) {
	cases := map[service.ErrorCode]int{
		"":                                 response.CodeOK,
		service.CodeInvalidRequest:         response.CodeBadRequest,
		service.CodeTransactionNotFound:    response.CodeNotFound,
		service.CodeIdempotencyKeyReused:   response.CodeConflict,
		service.CodeInvalidStateTransition: response.CodeConflict,
		service.CodeInsufficientFunds:      response.CodeUnprocessable,
		service.CodeRefundNotSupported:     response.CodeUnprocessable,
		service.CodeNoGatewayAvailable:     response.CodeServiceUnavailable,
		service.CodeGatewayTimeout:         response.CodeGatewayTimeout,
		service.CodeUnbalancedPosting:      response.CodeInternal,
	}
	for code, want := range cases {
		if got := StatusForCode(code); got != want {
			t.Fatalf("%s: want %d got %d", code, want, got)
		}
	}
}

func TestRespondServiceErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "req-1")
	RespondServiceError(c, fmt.Errorf("load: %w", fmt.Errorf("dial tcp: refused")))

	var resp struct {
		StatusCode int               `json:"status_code"`
		Msg        string            `json:"msg"`
		Data       map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.StatusCode != response.CodeInternal || resp.Msg != string(service.CodeInternalError) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Data["request_id"] != "req-1" {
		t.Fatalf("expected request id in data, got %+v", resp.Data)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondServiceError(c, fmt.Errorf("get txn_1: %w", service.ErrTransactionNotFound))
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.StatusCode != response.CodeNotFound || resp.Data["error_code"] != string(service.CodeTransactionNotFound) {
		t.Fatalf("unexpected not found response: %+v", resp)
	}
}
