package ipsec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Transport ESP 包的收发通道
// 原始套接字 (IP 协议 50) 和 UDP 封装 (RFC 3948) 都实现它。
type Transport interface {
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

// ESPSocket ESP 原始套接字，直接用 IP 协议 50 收发
type ESPSocket struct {
	localAddr  net.IP
	remoteAddr net.IP
	rawFd      int
	timeout    time.Duration
}

// NewESPSocket 创建 ESP 原始套接字并连接到对端
func NewESPSocket(localIP, remoteIP string) (*ESPSocket, error) {
	local := net.ParseIP(localIP)
	remote := net.ParseIP(remoteIP)
	if local == nil || remote == nil {
		return nil, errors.New("无效的 IP 地址")
	}
	if local.To4() == nil || remote.To4() == nil {
		return nil, errors.New("原始套接字目前只支持 IPv4")
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_ESP)
	if err != nil {
		return nil, fmt.Errorf("创建原始套接字失败: %v", err)
	}

	addr := unix.SockaddrInet4{}
	copy(addr.Addr[:], local.To4())
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("绑定 %s 失败: %v", localIP, err)
	}

	// 连接到对端，之后可以直接 Write/Read
	remoteSock := unix.SockaddrInet4{}
	copy(remoteSock.Addr[:], remote.To4())
	if err := unix.Connect(fd, &remoteSock); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("连接 %s 失败: %v", remoteIP, err)
	}

	return &ESPSocket{
		localAddr:  local,
		remoteAddr: remote,
		rawFd:      fd,
		timeout:    5 * time.Second,
	}, nil
}

// Send 发送 ESP 包，内核负责加 IP 头
func (s *ESPSocket) Send(data []byte) error {
	_, err := unix.Write(s.rawFd, data)
	return err
}

// Receive 接收一个 ESP 包
// IPv4 原始套接字收到的数据带 IP 头，按 IHL 剥掉后返回 ESP 部分。
func (s *ESPSocket) Receive() ([]byte, error) {
	tv := unix.NsecToTimeval(s.timeout.Nanoseconds())
	unix.SetsockoptTimeval(s.rawFd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)

	buf := make([]byte, 2048)
	n, err := unix.Read(s.rawFd, buf)
	if err != nil {
		return nil, err
	}

	packet := buf[:n]
	if len(packet) > 0 && packet[0]>>4 == 4 {
		ihl := int(packet[0]&0x0f) * 4
		if ihl < 20 || len(packet) < ihl {
			return nil, errors.New("IP 头损坏")
		}
		packet = packet[ihl:]
	}

	if len(packet) < espHeaderLen {
		return nil, errors.New("ESP 包太短")
	}
	return packet, nil
}

// SetTimeout 设置接收超时
func (s *ESPSocket) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// Close 关闭套接字
func (s *ESPSocket) Close() error {
	return unix.Close(s.rawFd)
}

// GetSPI 从 ESP 包中提取 SPI
func GetSPI(espPacket []byte) (uint32, error) {
	if len(espPacket) < 4 {
		return 0, errors.New("ESP 包太短")
	}
	return binary.BigEndian.Uint32(espPacket[0:4]), nil
}

// GetSequenceNumber 从 ESP 包中提取序列号
func GetSequenceNumber(espPacket []byte) (uint32, error) {
	if len(espPacket) < espHeaderLen {
		return 0, errors.New("ESP 包太短")
	}
	return binary.BigEndian.Uint32(espPacket[4:8]), nil
}

// ESPSocketUDP UDP 封装的 ESP 套接字 (RFC 3948, 端口 4500)
// ESP 包直接跟在 UDP 头后，首 4 字节是非零 SPI；
// 同端口的 IKE 流量以 4 字节全零标记开头，借此区分。
type ESPSocketUDP struct {
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr

	events    chan NetEvent
	closed    chan struct{}
	closeOnce sync.Once

	// 最近一次上报过漂移的对端端口，避免重复上报
	driftPort int
}

// NewESPSocketUDP 创建 UDP 封装的 ESP 套接字
func NewESPSocketUDP(localAddr, remoteAddr string) (*ESPSocketUDP, error) {
	local, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, err
	}
	remote, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, err
	}
	return &ESPSocketUDP{
		conn:       conn,
		remoteAddr: remote,
		events:     make(chan NetEvent, 10),
		closed:     make(chan struct{}),
	}, nil
}

// Send 发送 UDP 封装的 ESP 包
func (s *ESPSocketUDP) Send(data []byte) error {
	_, err := s.conn.WriteToUDP(data, s.remoteAddr)
	return err
}

// Receive 接收下一个 ESP 包
// NAT-keepalive (单字节 0xff) 和带非 ESP 标记的 IKE 包在这里吞掉；
// 对端源端口发生漂移时向事件通道上报 (RFC 3948 第 3.1 节)。
func (s *ESPSocketUDP) Receive() ([]byte, error) {
	buf := make([]byte, 2048)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return nil, err
		}
		if from != nil && from.Port != s.remoteAddr.Port && from.Port != s.driftPort {
			s.driftPort = from.Port
			s.emit(NetEvent{
				Type:    EventNATPortChanged,
				OldPort: s.remoteAddr.Port,
				NewPort: from.Port,
			})
		}
		if n == 1 && buf[0] == 0xff {
			continue
		}
		if n >= 4 && binary.BigEndian.Uint32(buf[0:4]) == 0 {
			continue
		}
		if n < espHeaderLen {
			continue
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		return packet, nil
	}
}

// SendKeepalive 发送 NAT-keepalive，维持 NAT 映射 (RFC 3948 第 4 节)
func (s *ESPSocketUDP) SendKeepalive() error {
	_, err := s.conn.WriteToUDP([]byte{0xff}, s.remoteAddr)
	return err
}

// SetReadDeadline 设置接收截止时间
func (s *ESPSocketUDP) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// LocalAddr 本地监听地址
func (s *ESPSocketUDP) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close 关闭套接字并结束错误队列监听
func (s *ESPSocketUDP) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return s.conn.Close()
}
