package ipsec

import (
	"errors"

	"github.com/iniwex5/esp-go/pkg/crypto"
)

// SecurityAssociation 单方向 ESP SA
// SPI 标识这条 SA，Context 持有它的全部加密状态。
// 一对双向隧道由两条 SA 组成，各自独立的密钥、序列号和窗口。
type SecurityAssociation struct {
	SPI     uint32
	Context *ESPContext
}

// SAConfig 安装一条 SA 需要的全部参数
type SAConfig struct {
	// SPI 不能为零，RFC 4303 保留零值，
	// UDP 封装也依赖非零 SPI 和 IKE 流量区分。
	SPI        uint32
	Direction  Direction
	EncrAlg    crypto.EncrAlg
	EncrKey    []byte
	IntegAlg   crypto.IntegAlg
	IntegKey   []byte
	WindowSize uint32
}

// NewSecurityAssociation 按密钥协商结果构造 SA 及其加密上下文
func NewSecurityAssociation(p *crypto.Provider, cfg SAConfig) (*SecurityAssociation, error) {
	if cfg.SPI == 0 {
		return nil, errors.New("SPI must not be zero")
	}
	ctx, err := NewContext(p, ContextConfig{
		Direction:  cfg.Direction,
		EncrAlg:    cfg.EncrAlg,
		EncrKey:    cfg.EncrKey,
		IntegAlg:   cfg.IntegAlg,
		IntegKey:   cfg.IntegKey,
		WindowSize: cfg.WindowSize,
	})
	if err != nil {
		return nil, err
	}
	return &SecurityAssociation{SPI: cfg.SPI, Context: ctx}, nil
}

// Destroy 销毁 SA 的加密上下文
func (sa *SecurityAssociation) Destroy() {
	sa.Context.Destroy()
}
