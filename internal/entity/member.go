package entity

import "time"

const DefaultRating = 1200

// Stats is the per-member game bookkeeping. It is only ever written together with the rating.
type Stats struct {
	GamesPlayed int `json:"games_played"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
	Draws       int `json:"draws"`
}

// Consistent reports whether games played matches the sum of outcomes.
func (that Stats) Consistent() bool {
	return that.GamesPlayed == that.Wins+that.Losses+that.Draws
}

type Member struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
	Rating       int    `json:"rating"`
	Stats

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewMember(id, username, displayName, passwordHash string, rating int, now time.Time) *Member {
	return &Member{
		ID:           id,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Rating:       rating,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (that *Member) Clone() *Member {
	clone := *that
	return &clone
}
