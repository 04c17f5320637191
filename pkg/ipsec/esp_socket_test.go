package ipsec

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

// TestGetSPISeqno 测试 ESP 包头字段提取
func TestGetSPISeqno(t *testing.T) {
	packet := make([]byte, 16)
	binary.BigEndian.PutUint32(packet[0:4], 0xdeadbeef)
	binary.BigEndian.PutUint32(packet[4:8], 42)

	spi, err := GetSPI(packet)
	if err != nil || spi != 0xdeadbeef {
		t.Errorf("SPI 错误: got 0x%x, err %v", spi, err)
	}
	seq, err := GetSequenceNumber(packet)
	if err != nil || seq != 42 {
		t.Errorf("序列号错误: got %d, err %v", seq, err)
	}

	if _, err := GetSPI(packet[:3]); err == nil {
		t.Error("过短的包应报错")
	}
	if _, err := GetSequenceNumber(packet[:7]); err == nil {
		t.Error("过短的包应报错")
	}
}

// TestUDPSocketFiltering 测试 UDP 封装对 keepalive 和 IKE 标记的过滤
func TestUDPSocketFiltering(t *testing.T) {
	recv, err := NewESPSocketUDP("127.0.0.1:0", "127.0.0.1:9")
	if err != nil {
		t.Fatalf("创建接收端失败: %v", err)
	}
	defer recv.Close()

	sender, err := NewESPSocketUDP("127.0.0.1:0", recv.LocalAddr().String())
	if err != nil {
		t.Fatalf("创建发送端失败: %v", err)
	}
	defer sender.Close()

	// keepalive、非 ESP 标记、短包都应被吞掉
	if err := sender.SendKeepalive(); err != nil {
		t.Fatalf("发送 keepalive 失败: %v", err)
	}
	if err := sender.Send(make([]byte, 4)); err != nil {
		t.Fatalf("发送标记包失败: %v", err)
	}
	if err := sender.Send([]byte{0, 0, 0, 1, 0}); err != nil {
		t.Fatalf("发送短包失败: %v", err)
	}

	esp := make([]byte, 24)
	binary.BigEndian.PutUint32(esp[0:4], 0x1234)
	binary.BigEndian.PutUint32(esp[4:8], 1)
	if err := sender.Send(esp); err != nil {
		t.Fatalf("发送 ESP 包失败: %v", err)
	}

	recv.SetReadDeadline(time.Now().Add(3 * time.Second))
	got, err := recv.Receive()
	if err != nil {
		t.Fatalf("接收失败: %v", err)
	}
	if !bytes.Equal(got, esp) {
		t.Errorf("收到的包不匹配: got %x, want %x", got, esp)
	}
}
