package indexdb

import (
	"database/sql"
	"fmt"
)

type TickRow struct {
	Tick    uint64 `json:"tick"`
	Digest  string `json:"digest"`
	Moves   int    `json:"moves"`
	Blocked int    `json:"blocked"`
	Reveals int    `json:"reveals"`
	Planned int    `json:"planned"`
}

type AuditRow struct {
	Tick    uint64 `json:"tick"`
	Seq     int    `json:"seq"`
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	RobotID int    `json:"robot_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Ref     uint64 `json:"ref,omitempty"`
	Weight  int    `json:"weight,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// TaskRow pairs the PICKUP and DROP audits a single pickup command writes.
type TaskRow struct {
	Tick     uint64 `json:"tick"`
	RobotID  int    `json:"robot_id"`
	Weight   int    `json:"weight"`
	PickupID uint64 `json:"pickup_id"`
	PickupX  int    `json:"pickup_x"`
	PickupY  int    `json:"pickup_y"`
	DropID   uint64 `json:"drop_id"`
	DropX    int    `json:"drop_x"`
	DropY    int    `json:"drop_y"`
}

// OpenReader opens an index for queries without starting a writer.
func OpenReader(path string) (*sql.DB, error) {
	return openDB(path)
}

func RecentTicks(db *sql.DB, limit int) ([]TickRow, error) {
	rows, err := db.Query(`SELECT tick,digest,moves,blocked,reveals,planned FROM ticks ORDER BY tick DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickRow
	for rows.Next() {
		var r TickRow
		var tick int64
		if err := rows.Scan(&tick, &r.Digest, &r.Moves, &r.Blocked, &r.Reveals, &r.Planned); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RobotAudits lists audits for one robot, newest first. action filters when non-empty.
func RobotAudits(db *sql.DB, robotID int, action string, limit int) ([]AuditRow, error) {
	q := `SELECT tick,seq,actor,action,robot_id,x,y,ref,weight,COALESCE(reason,'') FROM audits WHERE robot_id=?`
	args := []any{robotID}
	if action != "" {
		q += ` AND action=?`
		args = append(args, action)
	}
	q += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, clampLimit(limit))
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		var tick, ref int64
		if err := rows.Scan(&tick, &r.Seq, &r.Actor, &r.Action, &r.RobotID, &r.X, &r.Y, &ref, &r.Weight, &r.Reason); err != nil {
			return nil, err
		}
		r.Tick, r.Ref = uint64(tick), uint64(ref)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Tasks joins each PICKUP audit with the DROP audit written right after it.
func Tasks(db *sql.DB, limit int) ([]TaskRow, error) {
	rows, err := db.Query(`
		SELECT p.tick, p.robot_id, p.weight, p.ref, p.x, p.y, d.ref, d.x, d.y
		FROM audits p
		JOIN audits d ON d.tick = p.tick AND d.seq = p.seq + 1 AND d.action = 'DROP'
		WHERE p.action = 'PICKUP'
		ORDER BY p.tick DESC, p.seq DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("tasks: %w", err)
	}
	defer rows.Close()
	var out []TaskRow
	for rows.Next() {
		var r TaskRow
		var tick, pid, did int64
		if err := rows.Scan(&tick, &r.RobotID, &r.Weight, &pid, &r.PickupX, &r.PickupY, &did, &r.DropX, &r.DropY); err != nil {
			return nil, err
		}
		r.Tick, r.PickupID, r.DropID = uint64(tick), uint64(pid), uint64(did)
		out = append(out, r)
	}
	return out, rows.Err()
}

func clampLimit(n int) int {
	if n <= 0 {
		return 20
	}
	if n > 1000 {
		return 1000
	}
	return n
}
