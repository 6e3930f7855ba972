package api

import (
	"errors"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected 表示上传内容被 clamd 判定为恶意文件。
var ErrInfected = errors.New("malicious file detected")

// VirusScanner 在文件写入对象存储前扫描内容。
type VirusScanner interface {
	Scan(r io.Reader) error
}

// ClamdScanner 通过 clamd INSTREAM 扫描。
type ClamdScanner struct {
	addr string
}

// NewClamdScanner 返回扫描器，addr 形如 tcp://clamav:3310。
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

func (s *ClamdScanner) Scan(r io.Reader) error {
	client := clamd.NewClamd(s.addr)

	abort := make(chan bool)
	defer close(abort)

	results, err := client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	// 读完整个结果通道，避免 go-clamd 的发送协程阻塞。
	var scanErr error
	for res := range results {
		if scanErr != nil {
			continue
		}
		switch res.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			scanErr = fmt.Errorf("%w: %s", ErrInfected, res.Description)
		default:
			scanErr = fmt.Errorf("clamd %s: %s", res.Status, res.Description)
		}
	}
	return scanErr
}
