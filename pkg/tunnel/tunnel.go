package tunnel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iniwex5/esp-go/pkg/crypto"
	"github.com/iniwex5/esp-go/pkg/driver"
	"github.com/iniwex5/esp-go/pkg/ipsec"
	"github.com/iniwex5/esp-go/pkg/logger"
	"go.uber.org/multierr"
)

const (
	defaultMTU  = 1400
	minInnerMTU = 576
)

// Tunnel 一条双向 ESP 隧道的装配与生命周期
// 把两条 SA、UDP 封装传输、TUN 设备和数据平面循环装配起来。
// 密钥材料由上层（IKE 或静态配置）提供，这里不做协商。
type Tunnel struct {
	cfg *Config

	mu      sync.Mutex
	started bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	transport Transport
	tun       TUN

	inbound  *ipsec.SADatabase
	outbound *ipsec.SecurityAssociation
	dp       *ipsec.DataPlane
}

func New(cfg *Config) *Tunnel {
	return &Tunnel{cfg: cfg}
}

// Start 装配并启动隧道
// 顺序：SA -> 传输 -> TUN -> 设备配置 -> 数据平面 -> 保活/事件监听。
// 任何一步失败都会回退已完成的部分。资源回收只走 Stop，
// 取消 ctx 仅终止循环，不关闭设备。
func (t *Tunnel) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("隧道已启动")
	}
	if t.cfg.RemoteAddr == "" && t.cfg.TransportFactory == nil {
		return errors.New("缺少对端地址")
	}

	provider := crypto.DefaultProvider()

	outSA, err := ipsec.NewSecurityAssociation(provider, ipsec.SAConfig{
		SPI:       t.cfg.Outbound.SPI,
		Direction: ipsec.Outbound,
		EncrAlg:   t.cfg.EncrAlg,
		EncrKey:   t.cfg.Outbound.EncrKey,
		IntegAlg:  t.cfg.IntegAlg,
		IntegKey:  t.cfg.Outbound.IntegKey,
	})
	if err != nil {
		return fmt.Errorf("创建出站 SA 失败: %v", err)
	}

	inSA, err := ipsec.NewSecurityAssociation(provider, ipsec.SAConfig{
		SPI:        t.cfg.Inbound.SPI,
		Direction:  ipsec.Inbound,
		EncrAlg:    t.cfg.EncrAlg,
		EncrKey:    t.cfg.Inbound.EncrKey,
		IntegAlg:   t.cfg.IntegAlg,
		IntegKey:   t.cfg.Inbound.IntegKey,
		WindowSize: t.cfg.WindowSize,
	})
	if err != nil {
		outSA.Destroy()
		return fmt.Errorf("创建入站 SA 失败: %v", err)
	}

	inbound := ipsec.NewSADatabase()
	if err := inbound.Install(inSA); err != nil {
		inSA.Destroy()
		outSA.Destroy()
		return err
	}

	var tr Transport
	if t.cfg.TransportFactory != nil {
		tr, err = t.cfg.TransportFactory(t.cfg.LocalAddr, t.cfg.RemoteAddr)
	} else {
		tr, err = ipsec.NewESPSocketUDP(t.cfg.LocalAddr, t.cfg.RemoteAddr)
	}
	if err != nil {
		inbound.Flush()
		outSA.Destroy()
		return fmt.Errorf("创建传输通道失败: %v", err)
	}

	var tun TUN
	if t.cfg.TUNFactory != nil {
		tun, err = t.cfg.TUNFactory(t.cfg.TUNName)
	} else {
		tun, err = driver.NewTUNDevice(t.cfg.TUNName)
	}
	if err != nil {
		tr.Close()
		inbound.Flush()
		outSA.Destroy()
		return fmt.Errorf("创建 TUN 设备失败: %v", err)
	}

	nt := t.cfg.NetTools
	if nt == nil {
		nt = driver.NewNetTools()
	}

	if err := t.configureDevice(nt, tun.DeviceName()); err != nil {
		tun.Close()
		tr.Close()
		inbound.Flush()
		outSA.Destroy()
		return err
	}

	tctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.transport = tr
	t.tun = tun
	t.inbound = inbound
	t.outbound = outSA
	t.dp = ipsec.NewDataPlane(tctx, tun, tr, inbound)
	t.dp.SetOutboundSA(outSA)
	t.dp.Start()

	t.startKeepalive(tctx, tr)
	t.watchNetEvents(tctx, tr, nt, tun.DeviceName())

	t.started = true
	logger.Info("隧道已启动",
		logger.String("tun", tun.DeviceName()),
		logger.String("encr", t.cfg.EncrAlg.String()),
		logger.String("integ", t.cfg.IntegAlg.String()),
		logger.Uint32("spiOut", outSA.SPI),
		logger.Uint32("spiIn", inSA.SPI))
	return nil
}

// configureDevice 配置并拉起 TUN 设备
// 注入的是具体 NetTools 时走事务，半途失败整体回滚。
func (t *Tunnel) configureDevice(nt NetTools, iface string) error {
	mtu := t.cfg.TUNMTU
	if mtu == 0 {
		mtu = defaultMTU
	}
	if t.cfg.TUNAddr6 != "" && mtu < 1280 {
		mtu = 1280
	}

	if concrete, ok := nt.(*driver.NetTools); ok {
		tx := concrete.Begin()
		if err := t.applyDeviceConfig(tx, iface, mtu); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Warn("设备配置回滚失败", logger.String("iface", iface), logger.Err(rbErr))
			}
			return err
		}
		tx.Commit()
		return nil
	}
	return t.applyDeviceConfig(nt, iface, mtu)
}

func (t *Tunnel) applyDeviceConfig(ops NetTools, iface string, mtu int) error {
	if t.cfg.TUNAddr != "" {
		if err := ops.AddAddress(iface, t.cfg.TUNAddr); err != nil {
			return err
		}
	}
	if t.cfg.TUNAddr6 != "" {
		if err := ops.AddAddress6(iface, t.cfg.TUNAddr6); err != nil {
			return err
		}
	}
	if err := ops.SetMTU(iface, mtu); err != nil {
		logger.Warn("设置 TUN MTU 失败，将继续", logger.String("iface", iface), logger.Int("mtu", mtu), logger.Err(err))
	}
	return ops.SetLinkUp(iface)
}

// startKeepalive 周期发送 NAT-T 保活 (RFC 3948 §3.3)
func (t *Tunnel) startKeepalive(ctx context.Context, tr Transport) {
	interval := t.cfg.NATKeepaliveInterval
	if interval <= 0 {
		return
	}
	sender, ok := tr.(interface{ SendKeepalive() error })
	if !ok {
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sender.SendKeepalive(); err != nil {
					logger.Debug("NAT keepalive 发送失败", logger.Err(err))
				}
			}
		}
	}()
}

// watchNetEvents 消费传输通道上报的网络事件
// 路径 MTU 变化折算成内层 MTU 写回 TUN 设备。
// 端口漂移只记录，改发端口要等上层协商确认 (RFC 3948 §3.1)。
func (t *Tunnel) watchNetEvents(ctx context.Context, tr Transport, nt NetTools, iface string) {
	if el, ok := tr.(interface{ StartErrorListener() }); ok {
		el.StartErrorListener()
	}
	src, ok := tr.(interface{ Events() <-chan ipsec.NetEvent })
	if !ok {
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		events := src.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				t.handleNetEvent(ev, nt, iface)
			}
		}
	}()
}

func (t *Tunnel) handleNetEvent(ev ipsec.NetEvent, nt NetTools, iface string) {
	switch ev.Type {
	case ipsec.EventPathMTU:
		inner := int(ev.PMTU) - t.espOverhead()
		if inner < minInnerMTU {
			inner = minInnerMTU
		}
		if err := nt.SetMTU(iface, inner); err != nil {
			logger.Warn("按路径 MTU 调整失败", logger.String("iface", iface), logger.Int("mtu", inner), logger.Err(err))
			return
		}
		logger.Info("按路径 MTU 调整 TUN", logger.String("iface", iface), logger.Uint32("pmtu", ev.PMTU), logger.Int("mtu", inner))
	case ipsec.EventNetworkDown:
		logger.Warn("对端路径不可达", logger.String("reason", ev.Reason))
	case ipsec.EventNATPortChanged:
		logger.Warn("NAT 映射端口漂移，等待上层确认", logger.Int("oldPort", ev.OldPort), logger.Int("newPort", ev.NewPort))
	}
}

// espOverhead 单个包的最大封装开销
// 外层 IPv4(20) + UDP(8) + ESP 头(8) + IV + 最大填充(块长+1) + ICV
func (t *Tunnel) espOverhead() int {
	c := t.outbound.Context.Crypter()
	s := t.outbound.Context.Signer()
	return 20 + 8 + 8 + c.IVSize() + c.BlockSize() + 1 + s.MACSize()
}

// Stop 停止隧道并释放所有资源
// 先关闭传输和 TUN 让阻塞中的收发调用返回，再停数据平面，
// 最后销毁 SA。所有关闭错误聚合返回。重复调用返回 nil。
func (t *Tunnel) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return nil
	}
	t.started = false

	t.cancel()

	var err error
	if t.transport != nil {
		err = multierr.Append(err, t.transport.Close())
		t.transport = nil
	}
	if t.tun != nil {
		err = multierr.Append(err, t.tun.Close())
		t.tun = nil
	}
	if t.dp != nil {
		t.dp.Stop()
		t.dp = nil
	}
	t.wg.Wait()

	if t.outbound != nil {
		t.outbound.Destroy()
		t.outbound = nil
	}
	if t.inbound != nil {
		t.inbound.Flush()
		t.inbound = nil
	}

	logger.Info("隧道已停止")
	return err
}

// Stats 数据平面统计快照
func (t *Tunnel) Stats() ipsec.DataPlaneStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dp == nil {
		return ipsec.DataPlaneStats{}
	}
	return t.dp.GetStats()
}

// DeviceName 返回 TUN 设备名，未启动时为空串
func (t *Tunnel) DeviceName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tun == nil {
		return ""
	}
	return t.tun.DeviceName()
}
