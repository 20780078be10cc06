// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/partydeck/cards"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		gormlogger.Config{
			SlowThreshold: time.Second,       // 慢SQL阈值
			LogLevel:      gormlogger.Silent, // 日志级别
			Colorful:      false,             // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// 定义GORM模型
type PackModel struct {
	ID        string `gorm:"primaryKey;size:100"`
	Name      string `gorm:"not null"`
	Edition   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (PackModel) TableName() string { return "packs" }

type PromptModel struct {
	ID     int    `gorm:"primaryKey"`
	PackID string `gorm:"index;size:100;not null"`
	Text   string `gorm:"not null"`
	Draw   int    `gorm:"not null;default:0"`
	Pick   int    `gorm:"not null;default:1"`
}

func (PromptModel) TableName() string { return "prompts" }

type AnswerModel struct {
	ID     int    `gorm:"primaryKey"`
	PackID string `gorm:"index;size:100;not null"`
	Text   string `gorm:"not null"`
}

func (AnswerModel) TableName() string { return "answers" }

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&PackModel{},
		&PromptModel{},
		&AnswerModel{},
	)
}

// LoadCatalog 读取全部卡包内容
func (g *GormPostgreSQL) LoadCatalog(ctx context.Context) (*cards.Catalog, error) {
	var packRows []PackModel
	if err := g.db.WithContext(ctx).Order("id").Find(&packRows).Error; err != nil {
		return nil, err
	}
	if len(packRows) == 0 {
		return nil, ErrRecordNotFound
	}

	byID := make(map[string]*cards.Pack, len(packRows))
	for i := range packRows {
		byID[packRows[i].ID] = &cards.Pack{ID: packRows[i].ID, Name: packRows[i].Name}
	}

	var promptRows []PromptModel
	if err := g.db.WithContext(ctx).Order("id").Find(&promptRows).Error; err != nil {
		return nil, err
	}
	for _, pr := range promptRows {
		if pack, ok := byID[pr.PackID]; ok {
			pack.Prompts = append(pack.Prompts, cards.Prompt{ID: pr.ID, Text: pr.Text, Draw: pr.Draw, Pick: pr.Pick})
		}
	}

	var answerRows []AnswerModel
	if err := g.db.WithContext(ctx).Order("id").Find(&answerRows).Error; err != nil {
		return nil, err
	}
	for _, a := range answerRows {
		if pack, ok := byID[a.PackID]; ok {
			pack.Answers = append(pack.Answers, cards.Answer{ID: a.ID, Text: a.Text})
		}
	}

	catalog := cards.NewCatalog()
	for _, row := range packRows {
		if row.Edition {
			catalog.AddEdition(byID[row.ID])
		} else {
			catalog.AddPack(byID[row.ID])
		}
	}
	return catalog, nil
}

// SeedBuiltin 空库时写入内置卡组
func (g *GormPostgreSQL) SeedBuiltin(ctx context.Context, catalog *cards.Catalog) error {
	var count int64
	if err := g.db.WithContext(ctx).Model(&PackModel{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := func(pack *cards.Pack, edition bool) error {
			if err := tx.Create(&PackModel{ID: pack.ID, Name: pack.Name, Edition: edition}).Error; err != nil {
				return err
			}
			for _, pr := range pack.Prompts {
				row := PromptModel{ID: pr.ID, PackID: pack.ID, Text: pr.Text, Draw: pr.Draw, Pick: pr.Pick}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			for _, a := range pack.Answers {
				row := AnswerModel{ID: a.ID, PackID: pack.ID, Text: a.Text}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			return nil
		}
		for _, pack := range catalog.EditionPacks() {
			if err := insert(pack, true); err != nil {
				return err
			}
		}
		for _, pack := range catalog.ExpansionPacks() {
			if err := insert(pack, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close 关闭数据库连接
func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindPack 按 id 查单个卡包
func (g *GormPostgreSQL) FindPack(ctx context.Context, id string) (*cards.Pack, error) {
	var row PackModel
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	pack := &cards.Pack{ID: row.ID, Name: row.Name}

	var promptRows []PromptModel
	if err := g.db.WithContext(ctx).Where("pack_id = ?", id).Order("id").Find(&promptRows).Error; err != nil {
		return nil, err
	}
	for _, pr := range promptRows {
		pack.Prompts = append(pack.Prompts, cards.Prompt{ID: pr.ID, Text: pr.Text, Draw: pr.Draw, Pick: pr.Pick})
	}

	var answerRows []AnswerModel
	if err := g.db.WithContext(ctx).Where("pack_id = ?", id).Order("id").Find(&answerRows).Error; err != nil {
		return nil, err
	}
	for _, a := range answerRows {
		pack.Answers = append(pack.Answers, cards.Answer{ID: a.ID, Text: a.Text})
	}
	return pack, nil
}
