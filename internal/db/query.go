package db

import (
	"database/sql"
	"math/big"
	"sync"

	"github.com/CamberLoid/sealedbid/internal/bid"
	"github.com/CamberLoid/sealedbid/internal/key"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ParticipantRow 是参与方在审计日志里的一行
type ParticipantRow struct {
	ID           string
	SignaturePub *big.Int
	ZKPub        *big.Int
	State        string
	RegisteredAt int64
}

// Store 是会话使用的审计日志
type Store interface {
	PutParticipant(p ParticipantRow) error
	GetParticipant(id string) (*ParticipantRow, error)
	PutBid(b *bid.Bid) error
	GetBids() ([]*bid.Bid, error)
	// Clear 删除全部记录
	Clear() error
}

// ErrNotFound 表示查询的记录不存在
var ErrNotFound = errors.New("record not found")

func bigString(x *big.Int) sql.NullString {
	if x == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: x.String(), Valid: true}
}

func parseBig(s sql.NullString, name string) (*big.Int, error) {
	if !s.Valid {
		return nil, nil
	}
	return key.UnmarshalBigInt(s.String, name)
}

// --- sqlite 部分 --- //

// SQLStore 把审计日志写入 sqlite
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

// PutParticipant 写入/更新参与方
func (s *SQLStore) PutParticipant(p ParticipantRow) error {
	stmt, err := s.DB.Prepare(`
		INSERT INTO Participants
		(id, sigPub, zkPub, state, registeredAt)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			sigPub = excluded.sigPub,
			zkPub = excluded.zkPub,
			state = excluded.state,
			registeredAt = excluded.registeredAt
	`)
	if err != nil {
		return errors.Wrap(err, "prepare statement")
	}
	defer stmt.Close()

	_, err = stmt.Exec(p.ID, bigString(p.SignaturePub), bigString(p.ZKPub), p.State, p.RegisteredAt)
	return errors.Wrapf(err, "put participant %s", p.ID)
}

func (s *SQLStore) GetParticipant(id string) (*ParticipantRow, error) {
	row := s.DB.QueryRow(`
		SELECT id, sigPub, zkPub, state, registeredAt
		FROM Participants
		WHERE id = ?;
	`, id)

	var (
		p        ParticipantRow
		sig, zk  sql.NullString
		state    sql.NullString
		regAt    sql.NullInt64
		parseErr error
	)
	if err := row.Scan(&p.ID, &sig, &zk, &state, &regAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "participant %s", id)
		}
		return nil, errors.Wrap(err, "scan row")
	}
	if p.SignaturePub, parseErr = parseBig(sig, "sigPub"); parseErr != nil {
		return nil, parseErr
	}
	if p.ZKPub, parseErr = parseBig(zk, "zkPub"); parseErr != nil {
		return nil, parseErr
	}
	p.State, p.RegisteredAt = state.String, regAt.Int64
	return &p, nil
}

// PutBid 追加一条已接受的出价，出价方须已写入 Participants
func (s *SQLStore) PutBid(b *bid.Bid) error {
	stmt, err := s.DB.Prepare(`
		INSERT INTO Bids
		(uuid, participant, y, h, r, s, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare statement")
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		b.UUID.String(), b.ParticipantID,
		b.Ciphertext.String(), b.Hash.String(), b.R.String(), b.S.String(),
		b.TimeStamp,
	)
	return errors.Wrapf(err, "put bid %s", b.UUID)
}

// GetBids 按接受顺序返回全部出价
func (s *SQLStore) GetBids() ([]*bid.Bid, error) {
	rows, err := s.DB.Query(`
		SELECT uuid, participant, y, h, r, s, timestamp
		FROM Bids
		ORDER BY seq;
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query bids")
	}
	defer rows.Close()

	var out []*bid.Bid
	for rows.Next() {
		var (
			id         string
			y, h, r, s string
			b          bid.Bid
		)
		if err = rows.Scan(&id, &b.ParticipantID, &y, &h, &r, &s, &b.TimeStamp); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		if b.UUID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrap(err, "parse bid uuid")
		}
		fields := []struct {
			dst  **big.Int
			src  string
			name string
		}{{&b.Ciphertext, y, "y"}, {&b.Hash, h, "h"}, {&b.R, r, "r"}, {&b.S, s, "s"}}
		for _, f := range fields {
			if *f.dst, err = key.UnmarshalBigInt(f.src, f.name); err != nil {
				return nil, err
			}
		}
		out = append(out, &b)
	}
	return out, errors.Wrap(rows.Err(), "iterate bids")
}

// Clear 清空两张表
func (s *SQLStore) Clear() error {
	if _, err := s.DB.Exec(`DELETE FROM Bids;`); err != nil {
		return errors.Wrap(err, "clear bids")
	}
	_, err := s.DB.Exec(`DELETE FROM Participants;`)
	return errors.Wrap(err, "clear participants")
}

// --- 内存部分 --- //

// MapStore 是不落盘的 Store，用于测试和不需要审计的会话
type MapStore struct {
	mu           sync.Mutex
	participants map[string]ParticipantRow
	bids         []*bid.Bid
}

func NewMapStore() *MapStore {
	return &MapStore{participants: make(map[string]ParticipantRow)}
}

func (m *MapStore) PutParticipant(p ParticipantRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[p.ID] = p
	return nil
}

func (m *MapStore) GetParticipant(id string) (*ParticipantRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "participant %s", id)
	}
	return &p, nil
}

func (m *MapStore) PutBid(b *bid.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[b.ParticipantID]; !ok {
		return errors.Wrapf(ErrNotFound, "participant %s", b.ParticipantID)
	}
	m.bids = append(m.bids, b.Clone())
	return nil
}

func (m *MapStore) GetBids() ([]*bid.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*bid.Bid, len(m.bids))
	for i, b := range m.bids {
		out[i] = b.Clone()
	}
	return out, nil
}

func (m *MapStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = make(map[string]ParticipantRow)
	m.bids = nil
	return nil
}
