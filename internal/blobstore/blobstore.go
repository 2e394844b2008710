// Package blobstore holds the opaque client blobs the broker serves back
// verbatim: a 24h-expiring generic key-value store, encrypted profile blobs,
// and encrypted chat backups. Nothing here is ever parsed; the broker's only
// job is bounding memory, which the LRUs do by construction.
package blobstore

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Store struct {
	userData *expirable.LRU[string, any]
	profiles *lru.Cache[string, any]
	chats    *lru.Cache[string, any]
}

// New builds the store. size caps each of the three maps; userDataTTL is
// fixed for the process lifetime (the expirable LRU bakes its TTL in at
// construction).
func New(size int, userDataTTL time.Duration) (*Store, error) {
	profiles, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	chats, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &Store{
		userData: expirable.NewLRU[string, any](size, nil, userDataTTL),
		profiles: profiles,
		chats:    chats,
	}, nil
}

// StoreUserData stores a blob under key. Entries expire after the store TTL
// whether or not they are read.
func (s *Store) StoreUserData(key string, blob any) {
	s.userData.Add(key, blob)
}

// GetUserData returns the blob for key, or false if absent or expired.
func (s *Store) GetUserData(key string) (any, bool) {
	return s.userData.Get(key)
}

// SaveProfile stores a peer's opaque profile blob. No TTL; the size cap
// evicts least-recently-used profiles under pressure.
func (s *Store) SaveProfile(peerID string, blob any) {
	s.profiles.Add(peerID, blob)
}

func (s *Store) GetProfile(peerID string) (any, bool) {
	return s.profiles.Get(peerID)
}

// SaveChats stores a peer's encrypted chat backup. The client's local store
// is the source of truth; this is a convenience copy only.
func (s *Store) SaveChats(peerID string, blob any) {
	s.chats.Add(peerID, blob)
}

func (s *Store) GetChats(peerID string) (any, bool) {
	return s.chats.Get(peerID)
}
