package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fanzfinance/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentAuthorize 网关授权任务
	TaskPaymentAuthorize = constants.TaskPaymentAuthorize
	// TaskPaymentAuthTimeout 授权超时检查任务
	TaskPaymentAuthTimeout = constants.TaskPaymentAuthTimeout
	// TaskSettlementRelease 结算释放任务
	TaskSettlementRelease = constants.TaskSettlementRelease
	// TaskPayoutDisburse 提现打款任务
	TaskPayoutDisburse = constants.TaskPayoutDisburse
)

// TransactionPayload 按交易编号处理的任务载荷
type TransactionPayload struct {
	TransactionNo string `json:"transaction_no"`
}

// NewTransactionTask 创建按交易编号处理的任务
func NewTransactionTask(taskType string, payload TransactionPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.TransactionNo) == "" {
		return nil, fmt.Errorf("task %s: transaction_no is required", taskType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

// ParseTransactionPayload 解析任务载荷
func ParseTransactionPayload(task *asynq.Task) (TransactionPayload, error) {
	var payload TransactionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	if strings.TrimSpace(payload.TransactionNo) == "" {
		return payload, fmt.Errorf("task %s: transaction_no is required", task.Type())
	}
	return payload, nil
}

// taskID 同一交易同类任务只入队一次
func taskID(taskType, transactionNo string) string {
	return taskType + ":" + transactionNo
}
