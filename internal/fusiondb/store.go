package fusiondb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cwon789/adaptive-filter/internal/fusion"
)

// Run identifies one estimator session.
type Run struct {
	RunID            string          `json:"run_id"`
	StartedUnixNanos int64           `json:"started_unix_nanos"`
	ConfigJSON       json.RawMessage `json:"config_json,omitempty"`
	Estimates        int64           `json:"estimates"`
}

// EstimateRecord is one persisted estimate row.
type EstimateRecord struct {
	RunID          string       `json:"run_id"`
	StampUnixNanos int64        `json:"stamp_unix_nanos"`
	Stage          fusion.Stage `json:"stage"`
	Pose           [6]float64   `json:"pose"`
	Twist          [6]float64   `json:"twist"`
	PoseCov        [36]float64  `json:"pose_covariance"`
	TwistCov       [36]float64  `json:"twist_covariance"`
}

// DerivedTwistRecord is one persisted derived range twist row.
type DerivedTwistRecord struct {
	RunID          string      `json:"run_id"`
	StampUnixNanos int64       `json:"stamp_unix_nanos"`
	Twist          [6]float64  `json:"twist"`
	Cov            [36]float64 `json:"covariance"`
}

// BeginRun inserts a new run row. If RunID is empty, a UUID is
// generated. If StartedUnixNanos is zero, the current time is used.
func (d *DB) BeginRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedUnixNanos == 0 {
		run.StartedUnixNanos = time.Now().UnixNano()
	}

	var configStr interface{}
	if len(run.ConfigJSON) > 0 {
		configStr = string(run.ConfigJSON)
	}

	return retryOnBusy(func() error {
		_, err := d.Exec(`
			INSERT INTO runs (run_id, started_unix_nanos, config_json)
			VALUES (?, ?, ?)`,
			run.RunID, run.StartedUnixNanos, configStr,
		)
		return err
	})
}

// Runs returns the most recent runs with their estimate counts,
// newest first.
func (d *DB) Runs(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.Query(`
		SELECT r.run_id, r.started_unix_nanos, r.config_json,
		       (SELECT COUNT(*) FROM estimates e WHERE e.run_id = r.run_id)
		FROM runs r
		ORDER BY r.started_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var configStr sql.NullString
		if err := rows.Scan(&r.RunID, &r.StartedUnixNanos, &configStr, &r.Estimates); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if configStr.Valid {
			r.ConfigJSON = json.RawMessage(configStr.String)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// InsertEstimate persists one fused estimate under the given run.
func (d *DB) InsertEstimate(runID string, e fusion.Estimate) error {
	poseCov, err := json.Marshal(e.PoseCov)
	if err != nil {
		return fmt.Errorf("marshal pose covariance: %w", err)
	}
	twistCov, err := json.Marshal(e.TwistCov)
	if err != nil {
		return fmt.Errorf("marshal twist covariance: %w", err)
	}

	return retryOnBusy(func() error {
		_, err := d.Exec(`
			INSERT INTO estimates (
				run_id, stamp_unix_nanos, stage,
				x, y, z, roll, pitch, yaw,
				vx, vy, vz, wx, wy, wz,
				pose_cov_json, twist_cov_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Time.UnixNano(), string(e.Stage),
			e.Pose[0], e.Pose[1], e.Pose[2], e.Pose[3], e.Pose[4], e.Pose[5],
			e.Twist[0], e.Twist[1], e.Twist[2], e.Twist[3], e.Twist[4], e.Twist[5],
			string(poseCov), string(twistCov),
		)
		return err
	})
}

// InsertDerivedTwist persists one derived range twist under the given
// run.
func (d *DB) InsertDerivedTwist(runID string, dt fusion.DerivedTwist) error {
	cov, err := json.Marshal(dt.Cov)
	if err != nil {
		return fmt.Errorf("marshal covariance: %w", err)
	}

	return retryOnBusy(func() error {
		_, err := d.Exec(`
			INSERT INTO derived_twists (
				run_id, stamp_unix_nanos,
				vx, vy, vz, wx, wy, wz,
				cov_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, dt.Time.UnixNano(),
			dt.Twist[0], dt.Twist[1], dt.Twist[2], dt.Twist[3], dt.Twist[4], dt.Twist[5],
			string(cov),
		)
		return err
	})
}

const estimateColumns = `
	run_id, stamp_unix_nanos, stage,
	x, y, z, roll, pitch, yaw,
	vx, vy, vz, wx, wy, wz,
	pose_cov_json, twist_cov_json`

// RecentEstimates returns the newest estimates for a run, newest
// first.
func (d *DB) RecentEstimates(runID string, limit int) ([]*EstimateRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.Query(`
		SELECT `+estimateColumns+`
		FROM estimates
		WHERE run_id = ?
		ORDER BY stamp_unix_nanos DESC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent estimates: %w", err)
	}
	defer rows.Close()
	return collectEstimates(rows)
}

// TrajectorySince returns the estimates for a run stamped at or after
// the given time, oldest first.
func (d *DB) TrajectorySince(runID string, sinceUnixNanos int64) ([]*EstimateRecord, error) {
	rows, err := d.Query(`
		SELECT `+estimateColumns+`
		FROM estimates
		WHERE run_id = ? AND stamp_unix_nanos >= ?
		ORDER BY stamp_unix_nanos ASC`, runID, sinceUnixNanos)
	if err != nil {
		return nil, fmt.Errorf("query trajectory: %w", err)
	}
	defer rows.Close()
	return collectEstimates(rows)
}

// DerivedTwists returns the newest derived twists for a run, newest
// first.
func (d *DB) DerivedTwists(runID string, limit int) ([]*DerivedTwistRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.Query(`
		SELECT run_id, stamp_unix_nanos, vx, vy, vz, wx, wy, wz, cov_json
		FROM derived_twists
		WHERE run_id = ?
		ORDER BY stamp_unix_nanos DESC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query derived twists: %w", err)
	}
	defer rows.Close()

	var records []*DerivedTwistRecord
	for rows.Next() {
		var r DerivedTwistRecord
		var covStr sql.NullString
		if err := rows.Scan(
			&r.RunID, &r.StampUnixNanos,
			&r.Twist[0], &r.Twist[1], &r.Twist[2], &r.Twist[3], &r.Twist[4], &r.Twist[5],
			&covStr,
		); err != nil {
			return nil, fmt.Errorf("scan derived twist row: %w", err)
		}
		if covStr.Valid {
			if err := json.Unmarshal([]byte(covStr.String), &r.Cov); err != nil {
				return nil, fmt.Errorf("unmarshal covariance: %w", err)
			}
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// EstimateCount returns the number of estimates stored for a run.
func (d *DB) EstimateCount(runID string) (int64, error) {
	var count int64
	err := d.QueryRow(`SELECT COUNT(*) FROM estimates WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count estimates: %w", err)
	}
	return count, nil
}

func collectEstimates(rows *sql.Rows) ([]*EstimateRecord, error) {
	var records []*EstimateRecord
	for rows.Next() {
		r, err := scanEstimate(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanEstimate(rows *sql.Rows) (*EstimateRecord, error) {
	var r EstimateRecord
	var stage string
	var poseCovStr, twistCovStr sql.NullString
	if err := rows.Scan(
		&r.RunID, &r.StampUnixNanos, &stage,
		&r.Pose[0], &r.Pose[1], &r.Pose[2], &r.Pose[3], &r.Pose[4], &r.Pose[5],
		&r.Twist[0], &r.Twist[1], &r.Twist[2], &r.Twist[3], &r.Twist[4], &r.Twist[5],
		&poseCovStr, &twistCovStr,
	); err != nil {
		return nil, fmt.Errorf("scan estimate row: %w", err)
	}
	r.Stage = fusion.Stage(stage)
	if poseCovStr.Valid {
		if err := json.Unmarshal([]byte(poseCovStr.String), &r.PoseCov); err != nil {
			return nil, fmt.Errorf("unmarshal pose covariance: %w", err)
		}
	}
	if twistCovStr.Valid {
		if err := json.Unmarshal([]byte(twistCovStr.String), &r.TwistCov); err != nil {
			return nil, fmt.Errorf("unmarshal twist covariance: %w", err)
		}
	}
	return &r, nil
}
