package repository

import (
	"context"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

// MemoryStore keeps everything in process. Atomic units run one at a time under a single mutex.
type MemoryStore struct {
	mu sync.Mutex

	games     map[string]*entity.Game
	members   map[string]*entity.Member
	usernames map[string]string
	revoked   map[string]time.Time

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:     make(map[string]*entity.Game),
		members:   make(map[string]*entity.Member),
		usernames: make(map[string]string),
		revoked:   make(map[string]time.Time),
		now:       time.Now,
	}
}

func (that *MemoryStore) Atomic(ctx context.Context, _ string, fn TxFunc) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	tx := &memoryTx{store: that}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for _, game := range tx.games {
		that.games[game.ID] = game.Clone()
	}

	for _, member := range tx.members {
		that.members[member.ID] = member.Clone()
	}

	return nil
}

func (that *MemoryStore) CreateGame(_ context.Context, game *entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.games[game.ID] = game.Clone()

	return nil
}

func (that *MemoryStore) GetGame(_ context.Context, id string) (*entity.Game, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.getGame(id)
}

func (that *MemoryStore) getGame(id string) (*entity.Game, error) {
	game, ok := that.games[id]
	if !ok {
		return nil, apperror.ErrGameNotFound
	}

	return game.Clone(), nil
}

func (that *MemoryStore) ListOpenGames(_ context.Context) ([]*entity.Game, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	games := make([]*entity.Game, 0)
	for _, game := range that.games {
		if isOpenListing(game) {
			games = append(games, game.Clone())
		}
	}

	sortNewestFirst(games)

	return games, nil
}

func (that *MemoryStore) ListMemberGames(_ context.Context, memberID string, limit, offset int) ([]*entity.Game, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	games := make([]*entity.Game, 0)
	for _, game := range that.games {
		if game.CreatorID == memberID || game.OpponentID == memberID {
			games = append(games, game.Clone())
		}
	}

	sortNewestFirst(games)

	return page(games, limit, offset), nil
}

func (that *MemoryStore) CreateMember(_ context.Context, member *entity.Member) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	username := normalizeUsername(member.Username)
	if _, taken := that.usernames[username]; taken {
		return apperror.ErrUsernameTaken
	}

	that.usernames[username] = member.ID
	that.members[member.ID] = member.Clone()

	return nil
}

func (that *MemoryStore) GetMember(_ context.Context, id string) (*entity.Member, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.getMember(id)
}

func (that *MemoryStore) getMember(id string) (*entity.Member, error) {
	member, ok := that.members[id]
	if !ok {
		return nil, apperror.ErrMemberNotFound
	}

	return member.Clone(), nil
}

func (that *MemoryStore) GetMemberByUsername(_ context.Context, username string) (*entity.Member, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	id, ok := that.usernames[normalizeUsername(username)]
	if !ok {
		return nil, apperror.ErrMemberNotFound
	}

	return that.getMember(id)
}

func (that *MemoryStore) UpdateMember(_ context.Context, id string, fn MemberUpdate) (*entity.Member, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	member, err := that.getMember(id)
	if err != nil {
		return nil, err
	}

	if err = fn(member); err != nil {
		return nil, err
	}

	that.members[id] = member.Clone()

	return member, nil
}

func (that *MemoryStore) ListMembers(_ context.Context, limit int) ([]*entity.Member, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	members := make([]*entity.Member, 0, len(that.members))
	for _, member := range that.members {
		members = append(members, member.Clone())
	}

	sortLeaderboard(members)

	return page(members, limit, 0), nil
}

func (that *MemoryStore) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	now := that.now()

	for id, until := range that.revoked {
		if !until.After(now) {
			delete(that.revoked, id)
		}
	}

	if expiresAt.After(now) {
		that.revoked[tokenID] = expiresAt
	}

	return nil
}

func (that *MemoryStore) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	until, ok := that.revoked[tokenID]

	return ok && until.After(that.now()), nil
}

func (that *MemoryStore) Close() error {
	return nil
}

// memoryTx reads through to the store and buffers writes until the unit commits.
type memoryTx struct {
	store *MemoryStore

	games   []*entity.Game
	members []*entity.Member
}

func (that *memoryTx) GetGame(_ context.Context, id string) (*entity.Game, error) {
	for i := len(that.games) - 1; i >= 0; i-- {
		if that.games[i].ID == id {
			return that.games[i].Clone(), nil
		}
	}

	return that.store.getGame(id)
}

func (that *memoryTx) GetMembers(_ context.Context, ids ...string) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0, len(ids))

	for _, id := range ids {
		member, err := that.getMember(id)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, nil
}

func (that *memoryTx) getMember(id string) (*entity.Member, error) {
	for i := len(that.members) - 1; i >= 0; i-- {
		if that.members[i].ID == id {
			return that.members[i].Clone(), nil
		}
	}

	return that.store.getMember(id)
}

func (that *memoryTx) SaveGame(_ context.Context, game *entity.Game) error {
	that.games = append(that.games, game.Clone())
	return nil
}

func (that *memoryTx) SaveMembers(_ context.Context, members ...*entity.Member) error {
	for _, member := range members {
		that.members = append(that.members, member.Clone())
	}
	return nil
}
