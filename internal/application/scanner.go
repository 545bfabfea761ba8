package application

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected 表示附件未通过病毒扫描。
var ErrInfected = errors.New("attachment failed virus scan")

// Scanner 扫描附件内容。发现病毒时返回包装了 ErrInfected 的错误。
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ClamdScanner 通过 clamd 的 INSTREAM 接口扫描。
type ClamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner 构造 ClamdScanner，addr 形如 tcp://clamav:3310。
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{client: clamd.NewClamd(addr)}
}

// Scan implements Scanner.
func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := s.client.ScanStream(r, abortChan)
	if err != nil {
		return fmt.Errorf("clamd scan: %w", err)
	}
	for result := range scanChan {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			return fmt.Errorf("%w: %s", ErrInfected, result.Description)
		default:
			return fmt.Errorf("clamd scan: %s %s", result.Status, result.Description)
		}
	}
	return nil
}
