package pebble

import "encoding/binary"

// Key space prefixes. Raw key/value entries and entity records never overlap.
const (
	prefixKeyValue byte = iota
	prefixEntity
)

const (
	entityPrefixLen = 1 + 4
	entityKeyLen    = entityPrefixLen + 8
)

func entityPrefix(typeID uint32) []byte {
	p := make([]byte, entityPrefixLen)
	p[0] = prefixEntity
	binary.BigEndian.PutUint32(p[1:], typeID)
	return p
}

// entityUpperBound is the exclusive upper bound of an entity's key range.
func entityUpperBound(typeID uint32) []byte {
	if typeID == ^uint32(0) {
		return []byte{prefixEntity + 1}
	}
	return entityPrefix(typeID + 1)
}

func entityKey(typeID uint32, id uint64) []byte {
	k := make([]byte, entityKeyLen)
	copy(k, entityPrefix(typeID))
	binary.BigEndian.PutUint64(k[entityPrefixLen:], id)
	return k
}

func entityIDFromKey(key []byte) uint64 {
	if len(key) != entityKeyLen {
		return 0
	}
	return binary.BigEndian.Uint64(key[entityPrefixLen:])
}

func kvKey(key []byte) []byte {
	k := make([]byte, 1+len(key))
	k[0] = prefixKeyValue
	copy(k[1:], key)
	return k
}
