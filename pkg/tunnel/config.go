package tunnel

import (
	"time"

	"github.com/iniwex5/esp-go/pkg/crypto"
)

// SAParams 单方向 SA 的标识和密钥材料
type SAParams struct {
	SPI      uint32
	EncrKey  []byte
	IntegKey []byte
}

type Config struct {
	LocalAddr  string // 本地 UDP 绑定地址 (host:port)，空串表示任意地址随机端口
	RemoteAddr string // 对端地址 (host:port)

	// 两个方向共用算法，密钥各自独立（IKE 按方向派生）
	EncrAlg  crypto.EncrAlg
	IntegAlg crypto.IntegAlg
	Outbound SAParams
	Inbound  SAParams

	WindowSize uint32 // 入站抗重放窗口，0 表示默认 128

	TUNName  string // TUN 设备名 (默认自动分配)
	TUNMTU   int    // TUN MTU，0 表示使用默认值（当前默认 1400）
	TUNAddr  string // TUN 内层 IPv4 地址 (CIDR)，可选
	TUNAddr6 string // TUN 内层 IPv6 地址 (CIDR)，可选

	NATKeepaliveInterval time.Duration // NAT-T 保活间隔，0 表示禁用

	TransportFactory func(local string, remote string) (Transport, error)
	TUNFactory       func(name string) (TUN, error)
	NetTools         NetTools
}
