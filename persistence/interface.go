// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/partydeck/cards"
)

// CardStore 卡牌内容库接口。房间状态只存在内存中,数据库只承载卡牌内容。
type CardStore interface {
	// LoadCatalog 读取全部版本与扩展包,组装成目录
	LoadCatalog(ctx context.Context) (*cards.Catalog, error)
	// SeedBuiltin 将内置目录写入空库,已有内容时不动
	SeedBuiltin(ctx context.Context, catalog *cards.Catalog) error
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
