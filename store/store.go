// Package store keeps scanned channels in an SQLite database so other
// tools can look them up without parsing channel files.
package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"dvbscan/dvbfile"

	_ "github.com/mattn/go-sqlite3"
)

// Channel is one row of the channels table.
type Channel struct {
	ID             int64
	Name           string
	VChannel       string
	ServiceID      uint16
	DeliverySystem string
	Frequency      uint32
	VideoPIDs      string
	AudioPIDs      string
	Config         string
}

type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close() //nolint: errcheck
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
        CREATE TABLE IF NOT EXISTS channels (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT,
            vchannel TEXT,
            service_id INTEGER,
            delivery_system TEXT,
            frequency INTEGER,
            video_pids TEXT,
            audio_pids TEXT,
            config TEXT,   -- the entry in key/value form
            scanned_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(delivery_system, frequency, service_id)
        );
        CREATE INDEX IF NOT EXISTS idx_channels_name ON channels(name);
    `)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// SaveFile stores every entry of f, replacing rows for the same service
// on the same transponder.
func (s *Store) SaveFile(f *dvbfile.File) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, e := range f.Entries {
		freq, _ := e.Retrieve(dvbfile.PropFrequency)
		var cfg strings.Builder
		if err := dvbfile.Encode(&cfg, &dvbfile.File{Entries: []*dvbfile.Entry{e}}); err != nil {
			tx.Rollback() //nolint: errcheck
			return err
		}
		_, err := tx.Exec(`INSERT OR REPLACE INTO channels
            (name, vchannel, service_id, delivery_system, frequency, video_pids, audio_pids, config)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Channel, e.VChannel, e.ServiceID, e.DeliverySystem().String(), freq,
			joinPIDs(e.VideoPIDs), joinPIDs(e.AudioPIDs), cfg.String())
		if err != nil {
			tx.Rollback() //nolint: errcheck
			return fmt.Errorf("storing channel %q: %w", e.Channel, err)
		}
	}
	return tx.Commit()
}

// Channels returns every stored channel ordered by transponder and service.
func (s *Store) Channels() ([]Channel, error) {
	rows, err := s.db.Query(`
        SELECT id, name, vchannel, service_id, delivery_system, frequency, video_pids, audio_pids, config
        FROM channels
        ORDER BY frequency, service_id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint: errcheck

	var out []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.VChannel, &c.ServiceID, &c.DeliverySystem,
			&c.Frequency, &c.VideoPIDs, &c.AudioPIDs, &c.Config); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Entry parses the stored key/value configuration back into an entry.
func (c Channel) Entry() (*dvbfile.Entry, error) {
	f, err := dvbfile.Decode(strings.NewReader(c.Config), "channel "+strconv.FormatInt(c.ID, 10))
	if err != nil {
		return nil, err
	}
	if f.Len() != 1 {
		return nil, fmt.Errorf("channel %d: expected one entry, got %d", c.ID, f.Len())
	}
	return f.Entries[0], nil
}

func joinPIDs(pids []uint16) string {
	s := make([]string, len(pids))
	for i, p := range pids {
		s[i] = strconv.Itoa(int(p))
	}
	return strings.Join(s, " ")
}
