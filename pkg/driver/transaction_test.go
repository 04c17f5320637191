package driver

import (
	"errors"
	"testing"

	"go.uber.org/multierr"
)

// TestTxnRollbackOrder 撤销栈逆序执行，后配置的先撤销
func TestTxnRollbackOrder(t *testing.T) {
	tx := &NetTxn{}

	var order []int
	for i := 0; i < 3; i++ {
		tx.undos = append(tx.undos, func() error {
			order = append(order, i)
			return nil
		})
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback 不应失败: %v", err)
	}
	if len(order) != 3 || order[0] != 2 || order[1] != 1 || order[2] != 0 {
		t.Fatalf("撤销顺序错误: %v", order)
	}
	if len(tx.undos) != 0 {
		t.Fatal("Rollback 后撤销栈应清空")
	}
}

// TestTxnRollbackAggregates 部分撤销失败不中断，错误聚合返回
func TestTxnRollbackAggregates(t *testing.T) {
	tx := &NetTxn{}
	ran := 0
	tx.undos = append(tx.undos,
		func() error { ran++; return errors.New("undo a") },
		func() error { ran++; return nil },
		func() error { ran++; return errors.New("undo c") },
	)

	err := tx.Rollback()
	if err == nil {
		t.Fatal("期望聚合错误")
	}
	if ran != 3 {
		t.Fatalf("所有撤销操作都应执行: %d", ran)
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Fatalf("期望聚合 2 个错误, got %d: %v", n, err)
	}
}

// TestTxnCommitDropsUndos Commit 后撤销栈作废
func TestTxnCommitDropsUndos(t *testing.T) {
	tx := &NetTxn{}
	ran := false
	tx.undos = append(tx.undos, func() error { ran = true; return nil })

	tx.Commit()
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Commit 后 Rollback 应为空操作: %v", err)
	}
	if ran {
		t.Fatal("Commit 后不应再执行撤销操作")
	}
}
