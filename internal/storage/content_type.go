package storage

import (
	"bytes"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLimit 与 mimetype 默认读取上限一致。
const sniffLimit = 3072

// DetectContentType 读取 reader 开头若干字节判断 MIME 类型，
// 返回的 reader 仍包含完整内容。
func DetectContentType(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLimit)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, err
	}
	head = head[:n]
	mtype := mimetype.Detect(head)
	return mtype.String(), io.MultiReader(bytes.NewReader(head), r), nil
}
