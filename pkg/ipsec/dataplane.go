package ipsec

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/iniwex5/esp-go/pkg/logger"
)

// DataPlane ESP 数据平面
// 两个 goroutine 分别负责 TUN->网络 的封装和 网络->TUN 的解封装。
// 每个方向只有一个 worker，入站窗口的"预检-落账"因此天然串行。
type DataPlane struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	transport Transport
	tunDevice io.ReadWriter

	// 入站按 SPI 分流，rekey 时新旧 SA 并存；出站只有当前一条
	inbound  *SADatabase
	outbound *SecurityAssociation

	stats DataPlaneStats
	mu    sync.RWMutex
}

// DataPlaneStats 数据平面统计
type DataPlaneStats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	EncryptErrors   uint64
	DecryptErrors   uint64
	ReplayDrops     uint64
	AuthFailures    uint64
	UnknownSPI      uint64
}

// NewDataPlane 创建数据平面
func NewDataPlane(ctx context.Context, tun io.ReadWriter, transport Transport, inbound *SADatabase) *DataPlane {
	dpCtx, cancel := context.WithCancel(ctx)
	return &DataPlane{
		ctx:       dpCtx,
		cancel:    cancel,
		transport: transport,
		tunDevice: tun,
		inbound:   inbound,
	}
}

// SetOutboundSA 切换出站 SA，返回被替换的旧 SA 由调用方销毁
func (dp *DataPlane) SetOutboundSA(sa *SecurityAssociation) *SecurityAssociation {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	old := dp.outbound
	dp.outbound = sa
	return old
}

// Start 启动数据平面处理
func (dp *DataPlane) Start() {
	dp.wg.Add(2)
	go dp.encryptLoop()
	go dp.decryptLoop()
}

// Stop 停止数据平面
func (dp *DataPlane) Stop() {
	dp.cancel()
	dp.wg.Wait()
}

// encryptLoop 封装循环: TUN -> ESP -> 网络
func (dp *DataPlane) encryptLoop() {
	defer dp.wg.Done()

	buf := make([]byte, 2000) // MTU + overhead

	for {
		select {
		case <-dp.ctx.Done():
			return
		default:
		}

		n, err := dp.tunDevice.Read(buf)
		if err != nil {
			if dp.ctx.Err() != nil {
				return
			}
			logger.Debug("TUN 读取错误", logger.Err(err))
			continue
		}

		dp.mu.RLock()
		sa := dp.outbound
		dp.mu.RUnlock()

		if sa == nil {
			continue
		}

		espPacket, err := Encapsulate(buf[:n], sa)
		if err != nil {
			dp.mu.Lock()
			dp.stats.EncryptErrors++
			dp.mu.Unlock()
			if errors.Is(err, ErrSequenceExhausted) {
				// 计数器不回绕，这条 SA 只能由控制面换新
				logger.Warn("出站序列号耗尽，等待 SA 重建")
			} else {
				logger.Debug("ESP 封装错误", logger.Err(err))
			}
			continue
		}

		if err := dp.transport.Send(espPacket); err != nil {
			logger.Debug("ESP 发送错误", logger.Err(err))
			continue
		}

		dp.mu.Lock()
		dp.stats.PacketsSent++
		dp.stats.BytesSent += uint64(len(espPacket))
		dp.mu.Unlock()
	}
}

// decryptLoop 解封装循环: 网络 -> ESP -> TUN
func (dp *DataPlane) decryptLoop() {
	defer dp.wg.Done()

	for {
		select {
		case <-dp.ctx.Done():
			return
		default:
		}

		espPacket, err := dp.transport.Receive()
		if err != nil {
			if dp.ctx.Err() != nil {
				return
			}
			logger.Debug("ESP 接收错误", logger.Err(err))
			continue
		}

		spi, err := GetSPI(espPacket)
		if err != nil {
			continue
		}
		sa := dp.inbound.Lookup(spi)
		if sa == nil {
			dp.mu.Lock()
			dp.stats.UnknownSPI++
			dp.mu.Unlock()
			logger.Debug("未知 SPI", logger.Uint32("spi", spi))
			continue
		}

		plaintext, err := Decapsulate(espPacket, sa)
		if err != nil {
			dp.mu.Lock()
			switch {
			case errors.Is(err, ErrReplayRejected):
				dp.stats.ReplayDrops++
			case errors.Is(err, ErrIntegrityFailed):
				dp.stats.AuthFailures++
			default:
				dp.stats.DecryptErrors++
			}
			dp.mu.Unlock()
			logger.Debug("ESP 解封装错误", logger.Err(err), logger.Uint32("spi", spi))
			continue
		}

		if _, err := dp.tunDevice.Write(plaintext); err != nil {
			logger.Debug("TUN 写入错误", logger.Err(err))
			continue
		}

		dp.mu.Lock()
		dp.stats.PacketsReceived++
		dp.stats.BytesReceived += uint64(len(plaintext))
		dp.mu.Unlock()
	}
}

// GetStats 获取统计信息
func (dp *DataPlane) GetStats() DataPlaneStats {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return dp.stats
}
