package main

import (
	"database/sql"
	"os"
	"path/filepath"

	database "github.com/CamberLoid/sealedbid/internal/db"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	DefaultDatabaseDirPath  string = "/.config/sealedbid/"
	DefaultDatabaseFileName string = "server.db"
)

var (
	homedir, _                = os.UserHomeDir()
	ConfigDatabasePath string = homedir + DefaultDatabaseDirPath + DefaultDatabaseFileName
)

// InitDatabase 打开审计日志；使用默认路径时自动创建目录
func InitDatabase() (db *sql.DB, err error) {
	if ConfigDatabasePath != ":memory:" {
		if _, err = os.Stat(ConfigDatabasePath); os.IsNotExist(err) {
			if ConfigDatabasePath != homedir+DefaultDatabaseDirPath+DefaultDatabaseFileName {
				return nil, errors.Wrapf(err, "database %s", ConfigDatabasePath)
			}
			// 创建这么一个文件夹
			if err = os.MkdirAll(filepath.Dir(ConfigDatabasePath), 0700); err != nil {
				return nil, err
			}
		}
	}

	jww.DEBUG.Printf("Database: %s", ConfigDatabasePath)
	return database.Open(ConfigDatabasePath)
}
