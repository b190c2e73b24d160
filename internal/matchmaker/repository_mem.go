package matchmaker

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type memEntry struct {
	ticket  Ticket
	expires time.Time
}

type memRoom struct {
	room    Room
	expires time.Time
}

type memRepo struct {
	mu      sync.Mutex
	pools   map[string]map[string]memEntry // pool -> address -> entry
	players map[string]string              // address -> pool
	rooms   map[string]memRoom
	rnd     *rand.Rand
	now     func() time.Time
}

func NewMemoryRepo() Repo {
	return newMemRepo()
}

func newMemRepo() *memRepo {
	return &memRepo{
		pools:   make(map[string]map[string]memEntry),
		players: make(map[string]string),
		rooms:   make(map[string]memRoom),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

func (m *memRepo) Enqueue(ctx context.Context, t Ticket, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(t.Address)
	if _, ok := m.pools[t.Pool]; !ok {
		m.pools[t.Pool] = make(map[string]memEntry)
	}
	m.pools[t.Pool][t.Address] = memEntry{ticket: t, expires: m.now().Add(ttl)}
	m.players[t.Address] = t.Pool
	return nil
}

func (m *memRepo) PopN(ctx context.Context, pool string, n int) ([]Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.pools[pool]
	now := m.now()
	// 先清掉过期的
	for a, e := range s {
		if now.After(e.expires) {
			delete(s, a)
			delete(m.players, a)
		}
	}
	if len(s) < n {
		return []Ticket{}, nil
	}

	// 随机取 n 个
	tickets := make([]Ticket, 0, len(s))
	for _, e := range s {
		tickets = append(tickets, e.ticket)
	}
	m.rnd.Shuffle(len(tickets), func(i, j int) { tickets[i], tickets[j] = tickets[j], tickets[i] })
	chosen := tickets[:n]

	for _, t := range chosen {
		delete(s, t.Address)
		delete(m.players, t.Address)
	}
	// ✅ 空池删除（与 Redis 行为对齐）
	if len(s) == 0 {
		delete(m.pools, pool)
	}
	return chosen, nil
}

func (m *memRepo) Remove(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(address)
	return nil
}

func (m *memRepo) removeLocked(address string) {
	pool, ok := m.players[address]
	if !ok {
		return
	}
	if s, ok := m.pools[pool]; ok {
		delete(s, address)
		if len(s) == 0 {
			delete(m.pools, pool)
		}
	}
	delete(m.players, address)
}

func (m *memRepo) Count(ctx context.Context, pool string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pools[pool])), nil
}

func (m *memRepo) SaveRoom(ctx context.Context, room *Room, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = memRoom{room: *room, expires: m.now().Add(ttl)}
	return nil
}

func (m *memRepo) GetRoom(ctx context.Context, id string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok || m.now().After(r.expires) {
		delete(m.rooms, id)
		return nil, ErrRoomNotFound
	}
	room := r.room
	return &room, nil
}
