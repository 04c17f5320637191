package ipsec

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/iniwex5/esp-go/pkg/crypto"
)

// DefaultWindowSize 默认抗重放窗口位数 (RFC 4303 §3.4.3 要求至少 32)
const DefaultWindowSize = 128

// Direction SA 的流量方向，每个 ESPContext 只服务一个方向
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "in"
	}
	return "out"
}

var (
	// ErrWrongDirection 在错误方向的上下文上调用了方向专属操作
	ErrWrongDirection = errors.New("wrong direction")
	// ErrSequenceExhausted 出站序列号到达 2^32-1，SA 必须重建而不是回绕
	ErrSequenceExhausted = errors.New("sequence number space exhausted")
)

// ContextConfig ESPContext 的构造参数
type ContextConfig struct {
	Direction Direction
	EncrAlg   crypto.EncrAlg
	EncrKey   []byte
	IntegAlg  crypto.IntegAlg
	IntegKey  []byte
	// WindowSize 入站抗重放窗口位数，必须是 8 的倍数，0 取 DefaultWindowSize
	WindowSize uint32
}

// ESPContext 单方向 ESP SA 的加密状态
// 持有已设键的加解密与完整性引擎、序列号计数器和入站抗重放窗口。
//
// 出站 NextSeqno 可以并发调用；入站的 VerifySeqno 与
// SetAuthenticatedSeqno 必须由同一接收 goroutine 串行调用，
// 两者合起来是一次"先验序列号、过完整性后落账"的事务。
type ESPContext struct {
	direction Direction
	crypter   crypto.Crypter
	signer    crypto.Signer

	// lastSeqno 出站为已用的最大序列号，入站为已验证的最大序列号
	lastSeqno uint32

	// 入站抗重放窗口: 环形位图 + 指向 lastSeqno 所在位的游标。
	// 窗口滑动只移动游标并清除滑入的位，不搬移位图本身。
	windowSize uint32
	window     []byte
	seqnoIndex uint32
}

// NewContext 构造并设键一个单方向 ESP 上下文
// 任一引擎创建或设键失败时，已创建的引擎会被销毁。
func NewContext(p *crypto.Provider, cfg ContextConfig) (*ESPContext, error) {
	windowSize := cfg.WindowSize
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}
	if windowSize%8 != 0 {
		return nil, errors.New("replay window size must be a multiple of 8")
	}

	crypter, err := p.CreateCrypter(cfg.EncrAlg, cfg.EncrKey)
	if err != nil {
		return nil, err
	}
	signer, err := p.CreateSigner(cfg.IntegAlg, cfg.IntegKey)
	if err != nil {
		crypter.Destroy()
		return nil, err
	}

	ctx := &ESPContext{
		direction:  cfg.Direction,
		crypter:    crypter,
		signer:     signer,
		windowSize: windowSize,
	}
	if cfg.Direction == Inbound {
		ctx.window = make([]byte, (windowSize+7)/8)
	}
	return ctx, nil
}

// NextSeqno 取下一个出站序列号
// 序列号从 1 开始，到达 2^32-1 后返回 ErrSequenceExhausted，绝不回绕。
func (c *ESPContext) NextSeqno() (uint32, error) {
	if c.direction != Outbound {
		return 0, ErrWrongDirection
	}
	for {
		last := atomic.LoadUint32(&c.lastSeqno)
		if last == math.MaxUint32 {
			return 0, ErrSequenceExhausted
		}
		if atomic.CompareAndSwapUint32(&c.lastSeqno, last, last+1) {
			return last + 1, nil
		}
	}
}

// VerifySeqno 判断入站序列号是否值得做完整性验证
// 只读不改，通过与否都不影响窗口状态；非入站上下文恒为 false。
func (c *ESPContext) VerifySeqno(seqno uint32) bool {
	if c.direction != Inbound {
		return false
	}
	last := atomic.LoadUint32(&c.lastSeqno)
	switch {
	case seqno > last:
		// 比最高已验证序列号新，接受
		return true
	case seqno > 0 && c.windowSize > last-seqno:
		// 落在窗口内，看是否已收过
		return c.checkWindow(last, seqno)
	default:
		// 窗口左侧或为零，拒绝
		return false
	}
}

// SetAuthenticatedSeqno 在完整性验证通过后把序列号落入窗口
// 只能用已通过 VerifySeqno 的序列号调用；非入站上下文为空操作。
func (c *ESPContext) SetAuthenticatedSeqno(seqno uint32) {
	if c.direction != Inbound {
		return
	}
	last := atomic.LoadUint32(&c.lastSeqno)
	if seqno > last {
		// 右移窗口到新的最高已验证序列号，滑入的位要清零
		shift := seqno - last
		if shift > c.windowSize {
			shift = c.windowSize
		}
		for i := uint32(0); i < shift; i++ {
			c.seqnoIndex = (c.seqnoIndex + 1) % c.windowSize
			c.clearBit(c.seqnoIndex)
		}
		c.setBit(c.seqnoIndex)
		atomic.StoreUint32(&c.lastSeqno, seqno)
	} else {
		c.setBit(c.bitIndex(last, seqno))
	}
}

// checkWindow 序列号在窗口内且尚未收过时为 true
func (c *ESPContext) checkWindow(last, seqno uint32) bool {
	return !c.testBit(c.bitIndex(last, seqno))
}

// bitIndex 窗口内序列号对应的环形位图下标，要求 last-seqno < windowSize
func (c *ESPContext) bitIndex(last, seqno uint32) uint32 {
	offset := last - seqno
	return (c.seqnoIndex + c.windowSize - offset) % c.windowSize
}

func (c *ESPContext) testBit(i uint32) bool {
	return c.window[i/8]&(1<<(i%8)) != 0
}

func (c *ESPContext) setBit(i uint32) {
	c.window[i/8] |= 1 << (i % 8)
}

func (c *ESPContext) clearBit(i uint32) {
	c.window[i/8] &^= 1 << (i % 8)
}

// Crypter 返回绑定的加密引擎
func (c *ESPContext) Crypter() crypto.Crypter { return c.crypter }

// Signer 返回绑定的完整性引擎
func (c *ESPContext) Signer() crypto.Signer { return c.signer }

// LastSeqno 当前序列号水位，出站为已用最大值，入站为已验证最大值
func (c *ESPContext) LastSeqno() uint32 { return atomic.LoadUint32(&c.lastSeqno) }

// Direction 上下文的方向
func (c *ESPContext) Direction() Direction { return c.direction }

// WindowSize 抗重放窗口位数
func (c *ESPContext) WindowSize() uint32 { return c.windowSize }

// Destroy 销毁两个引擎并释放窗口
func (c *ESPContext) Destroy() {
	if c.crypter != nil {
		c.crypter.Destroy()
	}
	if c.signer != nil {
		c.signer.Destroy()
	}
	c.window = nil
}
