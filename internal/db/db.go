// 包 db 包含会话审计日志的存储：sqlite 实现与内存实现
package db

import (
	"database/sql"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	_ "github.com/mattn/go-sqlite3"
)

// --- 初始化：建表 --- //

// table Participants
// id TEXT PRIMARY KEY
// sigPub, zkPub TEXT <- 十进制大整数
// state TEXT <- participant.State.String()
func CreateParticipantTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Participants (
			id TEXT PRIMARY KEY NOT NULL,
			sigPub TEXT,
			zkPub TEXT,
			state TEXT,
			registeredAt INTEGER
		);
	`
}

// table Bids, 只追加
// seq 保留接受顺序
func CreateBidTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Bids (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT UNIQUE NOT NULL,
			participant TEXT NOT NULL REFERENCES Participants(id),
			y TEXT NOT NULL,
			h TEXT NOT NULL,
			r TEXT NOT NULL,
			s TEXT NOT NULL,
			timestamp INTEGER
		);
	`
}

// Open 打开/创建 sqlite 数据库并建表，path 可以是 ":memory:"
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1")
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	// :memory: 每个连接各自一份数据库
	db.SetMaxOpenConns(1)

	jww.DEBUG.Println("Database: Initializing Participants")
	if _, err = db.Exec(CreateParticipantTable()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create participant table")
	}

	jww.DEBUG.Println("Database: Initializing Bids")
	if _, err = db.Exec(CreateBidTable()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create bid table")
	}
	return db, nil
}
