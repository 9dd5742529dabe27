package service

import (
	"github.com/fanzfinance/internal/constants"
)

// transitionAllowed 交易状态机，completed 只允许进入 disputed
func transitionAllowed(from, to string) bool {
	switch from {
	case constants.TransactionStatusPending:
		return to == constants.TransactionStatusProcessing || to == constants.TransactionStatusCancelled
	case constants.TransactionStatusProcessing:
		return to == constants.TransactionStatusCompleted ||
			to == constants.TransactionStatusFailed ||
			to == constants.TransactionStatusCancelled
	case constants.TransactionStatusCompleted:
		return to == constants.TransactionStatusDisputed
	default:
		return false
	}
}
