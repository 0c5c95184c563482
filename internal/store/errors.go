package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound 表示按主键查找的记录不存在。
var ErrNotFound = errors.New("record not found")

// wrap 为 gorm 错误附加操作名；记录不存在统一映射为 ErrNotFound。
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
