package counting

// CentroidStore keeps last known horizontal centroid per track identity.
// Implementations may evict entries in EndFrame, crossing semantics must not depend on it.
type CentroidStore interface {
	// Observe stores cx and returns previously stored value.
	// Second value is false on first sighting of track.
	Observe(trackID, cx int) (int, bool)
	// Clear drops all entries
	Clear()
	// Len returns number of stored tracks
	Len() int
	// EndFrame is called once after every processed frame
	EndFrame()
}

type centroidEntry struct {
	cx       int
	lastSeen uint64
}

// MapStore is map-based CentroidStore.
// With maxIdleFrames == 0 entries live until Clear(), even for vanished tracks.
type MapStore struct {
	entries map[int]*centroidEntry
	// Number of frames track could stay unseen before eviction. Zero disables eviction
	maxIdleFrames uint64
	frame         uint64
}

// NewMapStore creates store which never evicts entries
func NewMapStore() *MapStore {
	return NewMapStoreWithEviction(0)
}

// NewMapStoreWithEviction creates store which forgets tracks unseen for maxIdleFrames consecutive frames
func NewMapStoreWithEviction(maxIdleFrames int) *MapStore {
	if maxIdleFrames < 0 {
		maxIdleFrames = 0
	}
	return &MapStore{
		entries:       make(map[int]*centroidEntry),
		maxIdleFrames: uint64(maxIdleFrames),
	}
}

// Observe implements CentroidStore
func (store *MapStore) Observe(trackID, cx int) (int, bool) {
	entry, ok := store.entries[trackID]
	if !ok {
		store.entries[trackID] = &centroidEntry{cx: cx, lastSeen: store.frame}
		return 0, false
	}
	prev := entry.cx
	entry.cx = cx
	entry.lastSeen = store.frame
	return prev, true
}

// Clear implements CentroidStore
func (store *MapStore) Clear() {
	clear(store.entries)
}

// Len implements CentroidStore
func (store *MapStore) Len() int {
	return len(store.entries)
}

// EndFrame implements CentroidStore
func (store *MapStore) EndFrame() {
	if store.maxIdleFrames > 0 {
		for trackID, entry := range store.entries {
			if store.frame-entry.lastSeen >= store.maxIdleFrames {
				delete(store.entries, trackID)
			}
		}
	}
	store.frame++
}
