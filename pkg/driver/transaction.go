package driver

import "go.uber.org/multierr"

// NetTxn 网络配置事务
// 每步成功后压入对应的撤销操作，失败时 Rollback 逆序回滚，
// 把设备恢复到事务开始前的状态。
type NetTxn struct {
	net   *NetTools
	undos []func() error
}

func (n *NetTools) Begin() *NetTxn {
	return &NetTxn{net: n}
}

// Commit 确认事务，丢弃撤销栈
func (tx *NetTxn) Commit() {
	tx.undos = nil
}

// Rollback 逆序执行撤销栈，聚合所有失败
func (tx *NetTxn) Rollback() error {
	var err error
	for i := len(tx.undos) - 1; i >= 0; i-- {
		err = multierr.Append(err, tx.undos[i]())
	}
	tx.undos = nil
	return err
}

func (tx *NetTxn) SetLinkUp(iface string) error {
	if err := tx.net.SetLinkUp(iface); err != nil {
		return err
	}
	tx.undos = append(tx.undos, func() error {
		return tx.net.SetLinkDown(iface)
	})
	return nil
}

// SetMTU 不记录撤销操作，设备删除时 MTU 随之消失
func (tx *NetTxn) SetMTU(iface string, mtu int) error {
	return tx.net.SetMTU(iface, mtu)
}

func (tx *NetTxn) AddAddress(iface string, cidr string) error {
	if err := tx.net.AddAddress(iface, cidr); err != nil {
		return err
	}
	tx.undos = append(tx.undos, func() error {
		return tx.net.DelAddress(iface, cidr)
	})
	return nil
}

func (tx *NetTxn) AddAddress6(iface string, cidr string) error {
	if err := tx.net.AddAddress6(iface, cidr); err != nil {
		return err
	}
	tx.undos = append(tx.undos, func() error {
		return tx.net.DelAddress6(iface, cidr)
	})
	return nil
}
