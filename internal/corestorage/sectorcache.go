package corestorage

import "sync"

// defaultSectorCacheShards shards the decrypted-sector cache to reduce lock
// contention; must be a power of 2.
const defaultSectorCacheShards = 8

// sectorCache is a sharded LRU cache of decrypted 8192-byte logical
// sectors, keyed by sector index. Adapted from the teacher's L2-table
// cache (cache.go): same sharded-map-plus-intrusive-LRU-list shape, ported
// from caching decompressed qcow2 L2 tables by cluster offset to caching
// AES-XTS-decrypted Core Storage sectors by sector index, so repeated or
// overlapping VolumeReader.ReadAt calls skip a re-read-and-redecrypt of a
// sector already paged in.
type sectorCache struct {
	shards    []*sectorCacheShard
	shardMask uint64
}

type sectorCacheShard struct {
	mu      sync.Mutex
	entries map[uint64]*sectorCacheEntry
	head    *sectorCacheEntry
	tail    *sectorCacheEntry
	maxSize int
}

type sectorCacheEntry struct {
	sector uint64
	data   []byte
	prev   *sectorCacheEntry
	next   *sectorCacheEntry
}

// newSectorCache builds a cache holding up to maxSectors decrypted
// sectors, spread across defaultSectorCacheShards shards.
func newSectorCache(maxSectors int) *sectorCache {
	shardCount := defaultSectorCacheShards
	perShard := maxSectors / shardCount
	if perShard < 1 {
		perShard = 1
	}

	shards := make([]*sectorCacheShard, shardCount)
	for i := range shards {
		shards[i] = &sectorCacheShard{
			entries: make(map[uint64]*sectorCacheEntry),
			maxSize: perShard,
		}
	}
	return &sectorCache{shards: shards, shardMask: uint64(shardCount - 1)}
}

func (c *sectorCache) getShard(sector uint64) *sectorCacheShard {
	h := sector ^ (sector >> 16) ^ (sector >> 32)
	return c.shards[h&c.shardMask]
}

// get returns the cached plaintext for sector, or nil on a miss. The
// returned slice is a direct reference; callers must treat it read-only.
func (c *sectorCache) get(sector uint64) []byte {
	return c.getShard(sector).get(sector)
}

// put stores data (copied) as the decrypted plaintext for sector.
func (c *sectorCache) put(sector uint64, data []byte) {
	c.getShard(sector).put(sector, data)
}

func (s *sectorCacheShard) get(sector uint64) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sector]
	if !ok {
		return nil
	}
	s.moveToFront(entry)
	return entry.data
}

func (s *sectorCacheShard) put(sector uint64, data []byte) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[sector]; ok {
		copy(entry.data, data)
		s.moveToFront(entry)
		return false, 0
	}

	entry := &sectorCacheEntry{sector: sector, data: append([]byte(nil), data...)}
	s.addToFront(entry)
	s.entries[sector] = entry

	evicted := 0
	for len(s.entries) > s.maxSize {
		s.evictLRU()
		evicted++
	}
	return true, evicted
}

func (s *sectorCacheShard) moveToFront(entry *sectorCacheEntry) {
	if entry == s.head {
		return
	}
	s.removeEntry(entry)
	s.addToFront(entry)
}

func (s *sectorCacheShard) addToFront(entry *sectorCacheEntry) {
	entry.prev = nil
	entry.next = s.head
	if s.head != nil {
		s.head.prev = entry
	}
	s.head = entry
	if s.tail == nil {
		s.tail = entry
	}
}

func (s *sectorCacheShard) removeEntry(entry *sectorCacheEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		s.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		s.tail = entry.prev
	}
}

func (s *sectorCacheShard) evictLRU() {
	if s.tail == nil {
		return
	}
	entry := s.tail
	s.removeEntry(entry)
	delete(s.entries, entry.sector)
}
