package swap

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ChainSafe/chaindb"

	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
)

var swapInfoPrefix = []byte("swap-")

// Database persists swap Info records. Grounded on
// bingcicle-atomic-swap/protocol/swap/manager.go's Database usage
// contract (PutSwap/GetSwap/GetAllSwaps, chaindb.ErrKeyNotFound); backed
// here directly by github.com/ChainSafe/chaindb's BadgerDB
// implementation, the same checkpoint store the teacher lineage uses.
type Database interface {
	PutSwap(info *Info) error
	GetSwap(id types.ID) (*Info, error)
	GetAllSwaps() ([]*Info, error)
	Close() error
}

type database struct {
	db chaindb.Database
}

var _ Database = (*database)(nil)

// NewDatabase opens (creating if necessary) a BadgerDB-backed swap
// database at dataDir.
func NewDatabase(dataDir string) (Database, error) {
	db, err := chaindb.NewBadgerDB(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open swap database: %w", err)
	}

	return &database{db: db}, nil
}

func (d *database) PutSwap(info *Info) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal swap info: %w", err)
	}

	return d.db.Put(swapKey(info.SwapID), b)
}

func (d *database) GetSwap(id types.ID) (*Info, error) {
	b, err := d.db.Get(swapKey(id))
	if err != nil {
		if errors.Is(err, chaindb.ErrKeyNotFound) {
			return nil, chaindb.ErrKeyNotFound
		}
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal swap info: %w", err)
	}

	return &info, nil
}

func (d *database) GetAllSwaps() ([]*Info, error) {
	iter, err := d.db.NewIterator()
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Release()

	var swaps []*Info
	for iter.First(); iter.Valid(); iter.Next() {
		var info Info
		if err := json.Unmarshal(iter.Value(), &info); err != nil {
			continue
		}
		swaps = append(swaps, &info)
	}

	return swaps, nil
}

func (d *database) Close() error {
	return d.db.Close()
}

func swapKey(id types.ID) []byte {
	return append(append([]byte{}, swapInfoPrefix...), id[:]...)
}
