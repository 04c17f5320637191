package ipsec

import (
	"fmt"
	"sync"

	"github.com/iniwex5/esp-go/pkg/logger"
)

// SADatabase 按 SPI 索引的 SA 数据库
// 入站解封装路径用它做 SPI 分流，rekey 期间新旧入站 SA 并存，
// 旧 SA 在对端切换完成后由控制面移除。
type SADatabase struct {
	mu  sync.RWMutex
	sas map[uint32]*SecurityAssociation
}

func NewSADatabase() *SADatabase {
	return &SADatabase{sas: make(map[uint32]*SecurityAssociation)}
}

// Install 登记一条 SA，SPI 冲突时报错
func (d *SADatabase) Install(sa *SecurityAssociation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sas[sa.SPI]; ok {
		return fmt.Errorf("SPI 0x%08x already installed", sa.SPI)
	}
	d.sas[sa.SPI] = sa

	logger.Info("SA 已安装",
		logger.String("spi", fmt.Sprintf("0x%08x", sa.SPI)),
		logger.String("dir", sa.Context.Direction().String()),
		logger.Uint32("window", sa.Context.WindowSize()))
	return nil
}

// Lookup 按 SPI 查找 SA，未命中返回 nil
func (d *SADatabase) Lookup(spi uint32) *SecurityAssociation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sas[spi]
}

// Remove 摘除并销毁一条 SA
func (d *SADatabase) Remove(spi uint32) bool {
	d.mu.Lock()
	sa, ok := d.sas[spi]
	if ok {
		delete(d.sas, spi)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	sa.Destroy()
	logger.Info("SA 已移除", logger.String("spi", fmt.Sprintf("0x%08x", spi)))
	return true
}

// Flush 销毁全部 SA
func (d *SADatabase) Flush() {
	d.mu.Lock()
	sas := d.sas
	d.sas = make(map[uint32]*SecurityAssociation)
	d.mu.Unlock()

	for _, sa := range sas {
		sa.Destroy()
	}
	if len(sas) > 0 {
		logger.Info("SA 数据库已清空", logger.Int("count", len(sas)))
	}
}

// Len 当前登记的 SA 数量
func (d *SADatabase) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sas)
}
