package peers

import (
	"errors"
	"os"

	"github.com/dgraph-io/badger/v3"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/storage"
)

// Store persists the paired subset of the registry. Rows are restored
// with LastSeenMs zeroed and Paired preserved, so a reload reports
// OFFLINE until a peer is heard again this session. JSONStore does not
// store Registered and restores every row as registered; BadgerStore
// restores the stored value.
type Store interface {
	Load() ([]domain.PeerRecord, error)
	Save(rows []domain.PeerRecord) error
}

// jsonRow is the exact external shape of one entry in peers.json.
type jsonRow struct {
	MAC      string         `json:"mac"`
	Role     domain.RoleTag `json:"role"`
	Hostname string         `json:"hostname"`
	ID       uint8          `json:"id"`
	Paired   bool           `json:"paired"`
}

// JSONStore persists peers.json as a flat array of paired rows.
type JSONStore struct {
	Path string
}

// NewJSONStore returns a Store backed by the peers.json file at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{Path: path}
}

// Load reads peers.json, tolerating a missing file (first boot) by
// returning an empty slice rather than an error.
func (s *JSONStore) Load() ([]domain.PeerRecord, error) {
	var jsonRows []jsonRow
	if err := storage.LoadJSON(s.Path, &jsonRows); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	rows := make([]domain.PeerRecord, 0, len(jsonRows))
	for _, jr := range jsonRows {
		mac, err := domain.ParseMAC(jr.MAC)
		if err != nil {
			continue // skip a malformed row rather than fail the whole load
		}
		rows = append(rows, domain.PeerRecord{
			MAC:        mac,
			Role:       jr.Role,
			Hostname:   jr.Hostname,
			DeviceID:   jr.ID,
			LastSeenMs: 0,
			Registered: true,
			Paired:     jr.Paired,
		})
	}
	return rows, nil
}

// Save writes only the paired rows, matching the spec's peers.json shape.
func (s *JSONStore) Save(rows []domain.PeerRecord) error {
	jsonRows := make([]jsonRow, 0, len(rows))
	for _, row := range rows {
		if !row.Paired {
			continue
		}
		jsonRows = append(jsonRows, jsonRow{
			MAC:      row.MAC.String(),
			Role:     row.Role,
			Hostname: row.Hostname,
			ID:       row.DeviceID,
			Paired:   true,
		})
	}
	return storage.SaveJSON(s.Path, jsonRows)
}

// BadgerStore persists peer rows in an embedded Badger KV store keyed by
// MAC, an alternative to the JSON file for deployments that already run
// Badger.
type BadgerStore struct {
	kv *storage.KV
}

// NewBadgerStore scopes a peer store within db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{kv: storage.New("peer", db)}
}

func (s *BadgerStore) Load() ([]domain.PeerRecord, error) {
	items, err := s.kv.List(
		func() interface{} { return &domain.PeerRecord{} },
		func(item interface{}) bool { return item.(*domain.PeerRecord).Paired },
	)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.PeerRecord, 0, len(items))
	for _, item := range items {
		row := *item.(*domain.PeerRecord)
		row.LastSeenMs = 0
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *BadgerStore) Save(rows []domain.PeerRecord) error {
	for _, row := range rows {
		if !row.Paired {
			continue
		}
		if err := s.kv.Put(row.MAC.String(), row); err != nil {
			return err
		}
	}
	return nil
}
