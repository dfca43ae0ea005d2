package clientlib

import (
	"database/sql"
	"math/big"
	"os"
	"path/filepath"

	"github.com/CamberLoid/sealedbid/internal/key"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

const (
	DefaultDatabaseDirPath  string = "/.config/sealedbid/"
	DefaultDatabaseFileName string = "client.db"
)

var (
	homedir, _                = os.UserHomeDir()
	ConfigDatabasePath string = homedir + DefaultDatabaseDirPath + DefaultDatabaseFileName
)

// CreateOwnBidTable 本地保存自己提交过的出价明文
func CreateOwnBidTable() string {
	return `
		CREATE TABLE IF NOT EXISTS OwnBids (
			uuid TEXT PRIMARY KEY NOT NULL,
			session TEXT NOT NULL,
			participant TEXT NOT NULL,
			value TEXT NOT NULL,
			y TEXT NOT NULL
		);
	`
}

// InitDatabase 打开默认位置的数据库，必要时创建目录
func InitDatabase() (db *sql.DB, err error) {
	if err = os.MkdirAll(filepath.Dir(ConfigDatabasePath), 0700); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}
	return OpenDatabase(ConfigDatabasePath)
}

// OpenDatabase 打开/创建本地数据库，path 可以是 ":memory:"
func OpenDatabase(path string) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(CreateOwnBidTable()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create own bid table")
	}
	return db, nil
}

// OwnBid 是本地记录的一次出价
type OwnBid struct {
	UUID       uuid.UUID
	Session    uuid.UUID
	Value      *big.Int
	Ciphertext *big.Int
}

func recordOwnBid(db *sql.DB, participant string, b OwnBid) error {
	_, err := db.Exec(`
		INSERT INTO OwnBids (uuid, session, participant, value, y)
		VALUES (?, ?, ?, ?, ?)
	`, b.UUID.String(), b.Session.String(), participant, b.Value.String(), b.Ciphertext.String())
	return errors.Wrap(err, "record own bid")
}

func listOwnBids(db *sql.DB, participant string) ([]OwnBid, error) {
	rows, err := db.Query(`
		SELECT uuid, session, value, y FROM OwnBids
		WHERE participant = ?
		ORDER BY rowid;
	`, participant)
	if err != nil {
		return nil, errors.Wrap(err, "query own bids")
	}
	defer rows.Close()

	var out []OwnBid
	for rows.Next() {
		var id, session, value, y string
		if err = rows.Scan(&id, &session, &value, &y); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		b := OwnBid{}
		if b.UUID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrap(err, "parse uuid")
		}
		if b.Session, err = uuid.Parse(session); err != nil {
			return nil, errors.Wrap(err, "parse session")
		}
		if b.Value, err = key.UnmarshalBigInt(value, "value"); err != nil {
			return nil, err
		}
		if b.Ciphertext, err = key.UnmarshalBigInt(y, "y"); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, errors.Wrap(rows.Err(), "iterate own bids")
}
