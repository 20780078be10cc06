// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/partydeck/cards"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	// 卡包表,edition 标记是否为基础版
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS packs (
            id VARCHAR(100) PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            edition BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 题目卡表
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS prompts (
            id INT PRIMARY KEY,
            pack_id VARCHAR(100) NOT NULL REFERENCES packs(id),
            text TEXT NOT NULL,
            draw INT NOT NULL DEFAULT 0,
            pick INT NOT NULL DEFAULT 1
        )
    `)
	if err != nil {
		return err
	}

	// 答案卡表
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS answers (
            id INT PRIMARY KEY,
            pack_id VARCHAR(100) NOT NULL REFERENCES packs(id),
            text TEXT NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_prompts_pack_id ON prompts(pack_id);
        CREATE INDEX IF NOT EXISTS idx_answers_pack_id ON answers(pack_id);
    `)

	return err
}

// LoadCatalog 读取全部卡包内容
func (p *PostgreSQL) LoadCatalog(ctx context.Context) (*cards.Catalog, error) {
	catalog := cards.NewCatalog()

	rows, err := p.db.QueryContext(ctx, `SELECT id, name, edition FROM packs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type packRow struct {
		pack    *cards.Pack
		edition bool
	}
	byID := make(map[string]*packRow)
	var order []string
	for rows.Next() {
		var id, name string
		var edition bool
		if err := rows.Scan(&id, &name, &edition); err != nil {
			return nil, err
		}
		byID[id] = &packRow{pack: &cards.Pack{ID: id, Name: name}, edition: edition}
		order = append(order, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, ErrRecordNotFound
	}

	promptRows, err := p.db.QueryContext(ctx, `SELECT id, pack_id, text, draw, pick FROM prompts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer promptRows.Close()
	for promptRows.Next() {
		var id, draw, pick int
		var packID, text string
		if err := promptRows.Scan(&id, &packID, &text, &draw, &pick); err != nil {
			return nil, err
		}
		if row, ok := byID[packID]; ok {
			row.pack.Prompts = append(row.pack.Prompts, cards.Prompt{ID: id, Text: text, Draw: draw, Pick: pick})
		}
	}
	if err := promptRows.Err(); err != nil {
		return nil, err
	}

	answerRows, err := p.db.QueryContext(ctx, `SELECT id, pack_id, text FROM answers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer answerRows.Close()
	for answerRows.Next() {
		var id int
		var packID, text string
		if err := answerRows.Scan(&id, &packID, &text); err != nil {
			return nil, err
		}
		if row, ok := byID[packID]; ok {
			row.pack.Answers = append(row.pack.Answers, cards.Answer{ID: id, Text: text})
		}
	}
	if err := answerRows.Err(); err != nil {
		return nil, err
	}

	for _, id := range order {
		row := byID[id]
		if row.edition {
			catalog.AddEdition(row.pack)
		} else {
			catalog.AddPack(row.pack)
		}
	}
	return catalog, nil
}

// SeedBuiltin 空库时写入内置卡组
func (p *PostgreSQL) SeedBuiltin(ctx context.Context, catalog *cards.Catalog) error {
	var count int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packs`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := func(pack *cards.Pack, edition bool) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO packs (id, name, edition) VALUES ($1, $2, $3)`,
			pack.ID, pack.Name, edition); err != nil {
			return err
		}
		for _, pr := range pack.Prompts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO prompts (id, pack_id, text, draw, pick) VALUES ($1, $2, $3, $4, $5)`,
				pr.ID, pack.ID, pr.Text, pr.Draw, pr.Pick); err != nil {
				return err
			}
		}
		for _, a := range pack.Answers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO answers (id, pack_id, text) VALUES ($1, $2, $3)`,
				a.ID, pack.ID, a.Text); err != nil {
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
	return tx.Commit()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
