package tnc

import (
	"encoding/binary"
	"errors"
)

// Request File Measurement 属性值格式 (PTS IF-M 绑定 §3.19.1):
// Flags(1) + Reserved(1) + Request ID(2) + Delimiter(4) + 文件全路径(变长)
// 多字节字段为大端序，路径不带长度前缀，占满剩余字节。
const (
	reqFileMeasMinSize = 8

	// DirectoryContentsFlag 置位时请求测量目录内容而非单个文件
	DirectoryContentsFlag = 1 << 7
)

type ReqFileMeas struct {
	Directory bool
	RequestID uint16
	Delimiter uint32 // 复合证据分隔符的 UTF-8 编码
	Pathname  string
}

func (a *ReqFileMeas) Encode() []byte {
	buf := make([]byte, reqFileMeasMinSize+len(a.Pathname))
	if a.Directory {
		buf[0] |= DirectoryContentsFlag
	}
	// buf[1] 保留字节置零
	binary.BigEndian.PutUint16(buf[2:4], a.RequestID)
	binary.BigEndian.PutUint32(buf[4:8], a.Delimiter)
	copy(buf[reqFileMeasMinSize:], a.Pathname)
	return buf
}

func ParseReqFileMeas(data []byte) (*ReqFileMeas, error) {
	if len(data) < reqFileMeasMinSize {
		return nil, errors.New("request file measurement too short")
	}
	return &ReqFileMeas{
		Directory: data[0]&DirectoryContentsFlag != 0,
		RequestID: binary.BigEndian.Uint16(data[2:4]),
		Delimiter: binary.BigEndian.Uint32(data[4:8]),
		Pathname:  string(data[reqFileMeasMinSize:]),
	}, nil
}
