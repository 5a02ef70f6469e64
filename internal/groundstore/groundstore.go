// Package groundstore is the ground segment's archival database.
//
// Schema (BoltDB bucket layout):
//
//	/telemetry
//	    key:   RFC3339Nano downlink-receipt timestamp + "_" + apid + "_" + service/subtype
//	    value: JSON-encoded TelemetryRecord
//
//	/events
//	    key:   RFC3339Nano + "_" + subsystem
//	    value: JSON-encoded EventRecord
//
//	/beacons
//	    key:   RFC3339Nano receipt timestamp + "_" + zero-padded sequence
//	    value: JSON-encoded BeaconRecord
//
//	/commands
//	    key:   RFC3339Nano + "_" + sequence
//	    value: JSON-encoded CommandRecord (the uplink audit ledger)
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model: single-process, single-writer, ACID write
// transactions (bbolt Tx.Commit()), read-only View() transactions.
// This is a ground-segment archive only; the satellite core itself
// never touches a filesystem.
package groundstore

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/fswsupervisor/ground.db"

	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	bucketTelemetry = "telemetry"
	bucketEvents    = "events"
	bucketBeacons   = "beacons"
	bucketCommands  = "commands"
	bucketMeta      = "meta"
)

// TelemetryRecord is one decoded TM packet archived on receipt.
type TelemetryRecord struct {
	ReceivedAt time.Time `json:"received_at"`
	Apid       uint16    `json:"apid"`
	Sequence   uint16    `json:"sequence"`
	Service    uint8     `json:"service"`
	Subtype    uint8     `json:"subtype"`
	CoarseTime uint32    `json:"coarse_time"`
	FineTime   uint16    `json:"fine_time"`
	Data       []byte    `json:"data"`
}

// EventRecord is one decoded service-5 event report.
type EventRecord struct {
	ReceivedAt time.Time `json:"received_at"`
	Subsystem  uint8     `json:"subsystem"`
	Code       uint16    `json:"code"`
	Message    string    `json:"message"`
}

// BeaconRecord is one decoded beacon frame.
type BeaconRecord struct {
	ReceivedAt    time.Time `json:"received_at"`
	Sequence      uint32    `json:"sequence"`
	Mode          uint8     `json:"mode"`
	BatSocPercent uint8     `json:"bat_soc_percent"`
	RssiDbm       int8      `json:"rssi_dbm"`
}

// CommandRecord is one entry of the ground-side telecommand audit
// ledger: every command uplinked, whether or not it was accepted.
type CommandRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Sequence  uint16    `json:"sequence"`
	Service   uint8     `json:"service"`
	Subtype   uint8     `json:"subtype"`
	Accepted  bool      `json:"accepted"`
}

// DB wraps a BoltDB instance with typed accessors for ground-segment
// archival data.
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the BoltDB database at path, initializing all
// required buckets and verifying the schema version.
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &DB{db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketTelemetry, bucketEvents, bucketBeacons, bucketCommands, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	if err := d.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) checkSchemaVersion() error {
	return d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf("schema version mismatch: database has %q, tool requires %q", string(v), SchemaVersion)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error {
	return d.db.Close()
}

func sortableKey(t time.Time, suffix string) []byte {
	return []byte(fmt.Sprintf("%s_%s", t.UTC().Format(time.RFC3339Nano), suffix))
}

// PutTelemetry archives one decoded TM packet.
func (d *DB) PutTelemetry(rec TelemetryRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("PutTelemetry marshal: %w", err)
	}
	key := sortableKey(rec.ReceivedAt, fmt.Sprintf("%d_%d_%d", rec.Apid, rec.Service, rec.Subtype))
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketTelemetry)).Put(key, data)
	})
}

// PutEvent archives one decoded event report.
func (d *DB) PutEvent(rec EventRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("PutEvent marshal: %w", err)
	}
	key := sortableKey(rec.ReceivedAt, fmt.Sprintf("%d", rec.Subsystem))
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketEvents)).Put(key, data)
	})
}

// PutBeacon archives one decoded beacon frame.
func (d *DB) PutBeacon(rec BeaconRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("PutBeacon marshal: %w", err)
	}
	key := sortableKey(rec.ReceivedAt, fmt.Sprintf("%010d", rec.Sequence))
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBeacons)).Put(key, data)
	})
}

// AppendCommand appends an entry to the uplink audit ledger.
func (d *DB) AppendCommand(rec CommandRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("AppendCommand marshal: %w", err)
	}
	key := sortableKey(rec.Timestamp, fmt.Sprintf("%010d", rec.Sequence))
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketCommands)).Put(key, data)
	})
}

// ReadEvents returns every archived event record in chronological order.
// For operational inspection only, not called on any hot path.
func (d *DB) ReadEvents() ([]EventRecord, error) {
	var out []EventRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketEvents)).ForEach(func(_, v []byte) error {
			var rec EventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// ReadCommands returns every archived command ledger entry in
// chronological order.
func (d *DB) ReadCommands() ([]CommandRecord, error) {
	var out []CommandRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketCommands)).ForEach(func(_, v []byte) error {
			var rec CommandRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}
