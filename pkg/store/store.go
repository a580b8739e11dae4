// Package store 用 SQLite 记录每次检测与比对的结果
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zoeyai/packeye/pkg/vision"
)

// Kind 记录类型
type Kind string

const (
	KindDetect   Kind = "detect"
	KindIdentify Kind = "identify"
)

// Frame 一次处理记录
type Frame struct {
	ID        int64
	Source    string
	Kind      Kind
	Width     int
	Height    int
	ElapsedMs float64
	CreatedAt time.Time
}

// DB SQLite 连接，写操作串行
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
	now  func() time.Time
}

// Open 打开数据库并建表
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn, now: time.Now}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
	CREATE TABLE IF NOT EXISTS frames (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		kind TEXT NOT NULL,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		elapsed_ms REAL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		frame_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		x INTEGER DEFAULT 0,
		y INTEGER DEFAULT 0,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		confidence REAL DEFAULT 0,
		FOREIGN KEY (frame_id) REFERENCES frames(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS identifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		frame_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		good_matches INTEGER DEFAULT 0,
		FOREIGN KEY (frame_id) REFERENCES frames(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_detections_frame ON detections(frame_id);
	CREATE INDEX IF NOT EXISTS idx_detections_label ON detections(label);
	CREATE INDEX IF NOT EXISTS idx_identifications_frame ON identifications(frame_id);
	`)
	return err
}

// Close 关闭数据库
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveReport 保存一帧的检测结果，返回记录 ID
func (db *DB) SaveReport(source string, report *vision.Report) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	frameID, err := insertFrame(tx, source, KindDetect, report.Width, report.Height, report.Time, db.now())
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO detections (frame_id, label, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, d := range report.Detections {
		r := d.Rectangle
		if _, err := stmt.Exec(frameID, d.Label, r.X, r.Y, r.Width, r.Height, d.Confidence); err != nil {
			return 0, fmt.Errorf("写入检测结果失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("提交事务失败: %w", err)
	}
	return frameID, nil
}

// SaveIdentify 保存一次比对结果，返回记录 ID
func (db *DB) SaveIdentify(source string, width, height int, results []vision.IdentifyResult) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	frameID, err := insertFrame(tx, source, KindIdentify, width, height, 0, db.now())
	if err != nil {
		return 0, err
	}
	for _, r := range results {
		if _, err := tx.Exec(`INSERT INTO identifications (frame_id, label, good_matches) VALUES (?, ?, ?)`,
			frameID, r.Label, r.GoodMatches); err != nil {
			return 0, fmt.Errorf("写入比对结果失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("提交事务失败: %w", err)
	}
	return frameID, nil
}

func insertFrame(tx *sql.Tx, source string, kind Kind, width, height int, elapsed float64, at time.Time) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO frames (source, kind, width, height, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, source, string(kind), width, height, elapsed, at)
	if err != nil {
		return 0, fmt.Errorf("写入记录失败: %w", err)
	}
	return res.LastInsertId()
}

// GetFrame 按 ID 查询记录
func (db *DB) GetFrame(id int64) (*Frame, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var f Frame
	var kind string
	err := db.conn.QueryRow(`
		SELECT id, source, kind, width, height, elapsed_ms, created_at FROM frames WHERE id = ?
	`, id).Scan(&f.ID, &f.Source, &kind, &f.Width, &f.Height, &f.ElapsedMs, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("查询记录失败: %w", err)
	}
	f.Kind = Kind(kind)
	return &f, nil
}

// Detections 查询一帧的检测结果
func (db *DB) Detections(frameID int64) ([]vision.DetectResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT label, x, y, width, height, confidence FROM detections WHERE frame_id = ? ORDER BY id
	`, frameID)
	if err != nil {
		return nil, fmt.Errorf("查询检测结果失败: %w", err)
	}
	defer rows.Close()

	var out []vision.DetectResult
	for rows.Next() {
		var d vision.DetectResult
		r := &d.Rectangle
		if err := rows.Scan(&d.Label, &r.X, &r.Y, &r.Width, &r.Height, &d.Confidence); err != nil {
			return nil, fmt.Errorf("读取检测结果失败: %w", err)
		}
		d.Result = r.Center()
		out = append(out, d)
	}
	return out, rows.Err()
}

// Identifications 查询一次比对的结果
func (db *DB) Identifications(frameID int64) ([]vision.IdentifyResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT label, good_matches FROM identifications WHERE frame_id = ? ORDER BY id
	`, frameID)
	if err != nil {
		return nil, fmt.Errorf("查询比对结果失败: %w", err)
	}
	defer rows.Close()

	var out []vision.IdentifyResult
	for rows.Next() {
		var r vision.IdentifyResult
		if err := rows.Scan(&r.Label, &r.GoodMatches); err != nil {
			return nil, fmt.Errorf("读取比对结果失败: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LabelCounts 统计 since 之后每个标签被检测到的次数
func (db *DB) LabelCounts(since time.Time) (map[string]int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT d.label, COUNT(*) FROM detections d
		JOIN frames f ON f.id = d.frame_id
		WHERE f.created_at >= ?
		GROUP BY d.label
	`, since)
	if err != nil {
		return nil, fmt.Errorf("统计标签失败: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("读取统计结果失败: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}
