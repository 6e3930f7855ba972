package jobs

import (
	"errors"
	"strings"
)

// Status 表示收藏职位所处的投递阶段。
type Status string

const (
	StatusSaved       Status = "saved"
	StatusApplied     Status = "applied"
	StatusInterviewed Status = "interviewed"
	StatusRejected    Status = "rejected"
	StatusOffered     Status = "offered"
)

// ErrInvalidStatus 表示未知的投递阶段。
var ErrInvalidStatus = errors.New("jobs: invalid status")

// ParseStatus 解析状态名，不区分大小写。
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusSaved, StatusApplied, StatusInterviewed, StatusRejected, StatusOffered:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}
