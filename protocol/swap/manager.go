package swap

import (
	"errors"
	"sync"
	"time"

	"github.com/ChainSafe/chaindb"

	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
)

var errNoSwapWithID = errors.New("unable to find swap with given id")

// Manager tracks current and past swaps, persisting every change via its
// Database so a crash never loses track of an in-flight swap. Adapted
// from bingcicle-atomic-swap/protocol/swap/manager.go, generalized from
// types.Hash keys to types.ID.
type Manager interface {
	AddSwap(info *Info) error
	WriteSwapToDB(info *Info) error
	GetPastIDs() ([]types.ID, error)
	GetPastSwap(types.ID) (*Info, error)
	GetOngoingSwap(types.ID) (Info, error)
	GetOngoingSwaps() ([]*Info, error)
	CompleteOngoingSwap(info *Info) error
	HasOngoingSwap(types.ID) bool
}

// manager implements Manager. Ongoing swaps are fully populated in
// memory; past swaps are only cached in memory once they've completed
// during this run or been recently retrieved.
type manager struct {
	db Database
	sync.RWMutex
	ongoing map[types.ID]*Info
	past    map[types.ID]*Info
}

var _ Manager = (*manager)(nil)

// NewManager returns a new Manager backed by db, loading all ongoing
// swaps into memory on construction so driver loops can resume them
// immediately.
func NewManager(db Database) (Manager, error) {
	ongoing := make(map[types.ID]*Info)

	stored, err := db.GetAllSwaps()
	if err != nil {
		return nil, err
	}

	for _, s := range stored {
		if !s.Status.IsOngoing() {
			continue
		}

		ongoing[s.SwapID] = s
	}

	return &manager{
		db:      db,
		ongoing: ongoing,
		past:    make(map[types.ID]*Info),
	}, nil
}

// AddSwap adds the given swap Info to the Manager.
func (m *manager) AddSwap(info *Info) error {
	m.Lock()
	defer m.Unlock()

	if info.Status.IsOngoing() {
		m.ongoing[info.SwapID] = info
	} else {
		m.past[info.SwapID] = info
	}

	return m.db.PutSwap(info)
}

// WriteSwapToDB persists the current snapshot of a swap without changing
// its tracked status, the call every driver loop step makes after
// advancing to a new state.
func (m *manager) WriteSwapToDB(info *Info) error {
	return m.db.PutSwap(info)
}

// GetPastIDs returns all past (terminal) swap IDs.
func (m *manager) GetPastIDs() ([]types.ID, error) {
	m.RLock()
	defer m.RUnlock()

	ids := make(map[types.ID]struct{})
	for id := range m.past {
		ids[id] = struct{}{}
	}

	stored, err := m.db.GetAllSwaps()
	if err != nil {
		return nil, err
	}

	for _, s := range stored {
		if s.Status.IsOngoing() {
			continue
		}
		ids[s.SwapID] = struct{}{}
	}

	idArr := make([]types.ID, 0, len(ids))
	for id := range ids {
		idArr = append(idArr, id)
	}

	return idArr, nil
}

// GetPastSwap returns a terminal swap's Info given its ID.
func (m *manager) GetPastSwap(id types.ID) (*Info, error) {
	m.RLock()
	s, has := m.past[id]
	m.RUnlock()
	if has {
		return s, nil
	}

	s, err := m.getSwapFromDB(id)
	if err != nil {
		return nil, err
	}

	m.Lock()
	m.past[s.SwapID] = s
	m.Unlock()

	return s, nil
}

// GetOngoingSwap returns the ongoing swap's Info, if there is one.
func (m *manager) GetOngoingSwap(id types.ID) (Info, error) {
	m.RLock()
	defer m.RUnlock()

	s, has := m.ongoing[id]
	if !has {
		return Info{}, errNoSwapWithID
	}

	return *s, nil
}

// GetOngoingSwaps returns all ongoing swaps.
func (m *manager) GetOngoingSwaps() ([]*Info, error) {
	m.RLock()
	defer m.RUnlock()

	swaps := make([]*Info, 0, len(m.ongoing))
	for _, s := range m.ongoing {
		sCopy := new(Info)
		*sCopy = *s
		swaps = append(swaps, sCopy)
	}

	return swaps, nil
}

// CompleteOngoingSwap marks an ongoing swap as having reached a terminal
// status and moves it out of the in-memory ongoing set.
func (m *manager) CompleteOngoingSwap(info *Info) error {
	m.Lock()
	defer m.Unlock()

	if _, has := m.ongoing[info.SwapID]; !has {
		return errNoSwapWithID
	}

	now := time.Now()
	info.EndTime = &now

	m.past[info.SwapID] = info
	delete(m.ongoing, info.SwapID)

	return m.db.PutSwap(info)
}

// HasOngoingSwap returns true if the given ID is an ongoing swap.
func (m *manager) HasOngoingSwap(id types.ID) bool {
	m.RLock()
	defer m.RUnlock()

	_, has := m.ongoing[id]
	return has
}

func (m *manager) getSwapFromDB(id types.ID) (*Info, error) {
	s, err := m.db.GetSwap(id)
	if errors.Is(err, chaindb.ErrKeyNotFound) {
		return nil, errNoSwapWithID
	}
	if err != nil {
		return nil, err
	}

	return s, nil
}
