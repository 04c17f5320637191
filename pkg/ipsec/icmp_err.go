package ipsec

import (
	"fmt"
	"net"
	"syscall"
	"unsafe"

	"github.com/iniwex5/esp-go/pkg/logger"
	"golang.org/x/sys/unix"
)

// NetEvent 从套接字错误队列或收包路径上报的网络事件
type NetEvent struct {
	Type    NetEventType
	PMTU    uint32 // EventPathMTU 时为新的路径 MTU
	Reason  string
	OldPort int // EventNATPortChanged 漂移前的对端端口
	NewPort int // 漂移后的对端端口
}

type NetEventType int

const (
	EventPathMTU        NetEventType = iota // 收到了 ICMP Frag Needed / Packet Too Big
	EventNetworkDown                        // 收到了 Host / Net Unreachable
	EventNATPortChanged                     // NAT-T 对端源端口漂移 (RFC 3948)
)

// Events 网络事件通道
// PMTU 和不可达事件来自 StartErrorListener，端口漂移来自收包路径。
func (s *ESPSocketUDP) Events() <-chan NetEvent {
	return s.events
}

// emit 非阻塞上报，无人消费时丢弃
func (s *ESPSocketUDP) emit(ev NetEvent) {
	select {
	case s.events <- ev:
	default:
	}
}

// ParseSockExtError 解析 OOB 数据里的 sock_extended_err
func ParseSockExtError(oob []byte) (*unix.SockExtendedErr, error) {
	msgs, err := syscall.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if (m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_RECVERR) ||
			(m.Header.Level == unix.IPPROTO_IPV6 && m.Header.Type == unix.IPV6_RECVERR) {
			if len(m.Data) >= int(unsafe.Sizeof(unix.SockExtendedErr{})) {
				see := (*unix.SockExtendedErr)(unsafe.Pointer(&m.Data[0]))
				return see, nil
			}
		}
	}
	return nil, fmt.Errorf("no sock_extended_err found")
}

// StartErrorListener 开启 IP_RECVERR 并监听本套接字的错误队列
// ESP 包比内层包大，路径 MTU 收缩时必须及时调小 TUN 的 MTU，
// 否则封装后的包会被路径上的路由器静默丢弃。
func (s *ESPSocketUDP) StartErrorListener() {
	rawConn, err := s.conn.SyscallConn()
	if err != nil {
		logger.Warn("获取 SyscallConn 失败，错误队列监听未启动", logger.Err(err))
		return
	}

	// 开启 RECVERR 让内核把 ICMP 错误丢进 ErrorQueue
	isIPv6 := false
	if la, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		isIPv6 = la.IP.To4() == nil && !la.IP.IsUnspecified()
	}
	err = rawConn.Control(func(fd uintptr) {
		if isIPv6 {
			_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_RECVERR, 1)
		} else {
			_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_RECVERR, 1)
		}
	})
	if err != nil {
		logger.Warn("设置 IP_RECVERR 失败", logger.Err(err))
		return
	}

	go func() {
		for {
			select {
			case <-s.closed:
				return
			default:
			}

			// 挂起直到 socket 可读或者有 error queue event
			err := rawConn.Read(func(fd uintptr) bool {
				buf := make([]byte, 1024)
				oob := make([]byte, 1024)

				for {
					_, oobn, _, _, recvErr := syscall.Recvmsg(int(fd), buf, oob, syscall.MSG_ERRQUEUE|syscall.MSG_DONTWAIT)
					if recvErr != nil {
						// 队列为空，退出闭包等待下一次可读事件
						return true
					}

					if oobn > 0 {
						see, _ := ParseSockExtError(oob[:oobn])
						if see != nil && (see.Origin == unix.SO_EE_ORIGIN_ICMP || see.Origin == unix.SO_EE_ORIGIN_ICMP6) {
							// EMSGSIZE = Fragmentation Needed，需要调低 MTU
							// EHOSTUNREACH / ENETUNREACH = 链路可能断开
							if see.Errno == uint32(unix.EMSGSIZE) {
								if see.Info > 500 && see.Info < 1500 { // 过滤非法小包
									s.emit(NetEvent{Type: EventPathMTU, PMTU: see.Info})
								}
							} else if see.Errno == uint32(unix.EHOSTUNREACH) || see.Errno == uint32(unix.ENETUNREACH) {
								s.emit(NetEvent{
									Type:   EventNetworkDown,
									Reason: fmt.Sprintf("ICMP dest unreachable: %d", see.Errno),
								})
							}
						}
					}
				}
			})
			if err != nil {
				// 套接字已关闭
				return
			}
		}
	}()
}
