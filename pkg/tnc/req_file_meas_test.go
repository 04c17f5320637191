package tnc

import (
	"bytes"
	"testing"
)

// TestReqFileMeasEncode 按 §3.19.1 布局编码，大端序
func TestReqFileMeasEncode(t *testing.T) {
	a := &ReqFileMeas{
		RequestID: 0x0102,
		Delimiter: '/',
		Pathname:  "/bin/sh",
	}
	got := a.Encode()
	want := []byte{
		0x00, 0x00, 0x01, 0x02,
		0x00, 0x00, 0x00, 0x2f,
		'/', 'b', 'i', 'n', '/', 's', 'h',
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("编码不符:\ngot  %x\nwant %x", got, want)
	}
}

// TestReqFileMeasDirectoryFlag 目录标志占 Flags 最高位
func TestReqFileMeasDirectoryFlag(t *testing.T) {
	a := &ReqFileMeas{Directory: true, RequestID: 7, Delimiter: ':', Pathname: "/etc"}
	buf := a.Encode()
	if buf[0] != 0x80 {
		t.Fatalf("Flags 错误: %#02x", buf[0])
	}

	parsed, err := ParseReqFileMeas(buf)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if !parsed.Directory || parsed.RequestID != 7 || parsed.Delimiter != ':' || parsed.Pathname != "/etc" {
		t.Fatalf("解析结果不符: %+v", parsed)
	}
}

func TestReqFileMeasRoundTrip(t *testing.T) {
	cases := []ReqFileMeas{
		{RequestID: 1, Delimiter: '/', Pathname: "/usr/bin/ssh"},
		{Directory: true, RequestID: 0xffff, Delimiter: 0, Pathname: "/lib"},
		{RequestID: 0, Delimiter: 0x2f, Pathname: ""},
	}
	for i, c := range cases {
		parsed, err := ParseReqFileMeas(c.Encode())
		if err != nil {
			t.Fatalf("用例 %d 解析失败: %v", i, err)
		}
		if *parsed != c {
			t.Fatalf("用例 %d 往返不一致: got %+v, want %+v", i, *parsed, c)
		}
	}
}

// TestReqFileMeasTooShort 值不足 8 字节拒绝，恰好 8 字节是空路径
func TestReqFileMeasTooShort(t *testing.T) {
	for _, n := range []int{0, 1, 7} {
		if _, err := ParseReqFileMeas(make([]byte, n)); err == nil {
			t.Fatalf("%d 字节不应解析成功", n)
		}
	}
	a, err := ParseReqFileMeas(make([]byte, 8))
	if err != nil {
		t.Fatalf("8 字节空路径应合法: %v", err)
	}
	if a.Pathname != "" {
		t.Fatalf("路径应为空: %q", a.Pathname)
	}
}
