package driver

import (
	"fmt"

	"github.com/songgao/water"
)

// TUNDevice 封装 water 库的 TUN 接口
// 使用成熟的第三方库处理 TUN 设备，避免 Go netpoll 兼容性问题
type TUNDevice struct {
	iface *water.Interface
	Name  string
}

// NewTUNDevice 使用 water 库创建 TUN 设备
// 如果同名设备已存在，先尝试删除旧设备
func NewTUNDevice(name string) (*TUNDevice, error) {
	// 预防性清理上次异常退出残留的同名设备，失败忽略
	if name != "" {
		_ = NewNetTools().DeleteLink(name)
	}

	config := water.Config{
		DeviceType: water.TUN,
	}
	config.Name = name

	iface, err := water.New(config)
	if err != nil {
		return nil, fmt.Errorf("创建 TUN 设备失败: %v", err)
	}

	return &TUNDevice{
		iface: iface,
		Name:  iface.Name(),
	}, nil
}

// Read 从 TUN 设备读取一个 IP 包
func (t *TUNDevice) Read(p []byte) (n int, err error) {
	return t.iface.Read(p)
}

// Write 向 TUN 设备写入一个 IP 包
func (t *TUNDevice) Write(p []byte) (n int, err error) {
	return t.iface.Write(p)
}

// Close 关闭 TUN 设备
func (t *TUNDevice) Close() error {
	return t.iface.Close()
}

// DeviceName 返回 TUN 设备名称
func (t *TUNDevice) DeviceName() string {
	return t.Name
}
