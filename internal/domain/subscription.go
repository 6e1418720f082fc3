package domain

import "time"

// Subscription is one user's interest in one show. LastEpisodeID is the id of
// the most recent episode already notified; zero means never notified.
type Subscription struct {
	UserID        int64  `db:"user_id"`
	ShowID        int64  `db:"show_id"`
	ShowName      string `db:"show_name"`
	LastEpisodeID int64  `db:"last_episode_id"`
}

type User struct {
	ID        int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	JoinedAt  time.Time `db:"joined_at"`
}

// Stats is the admin view of the store.
type Stats struct {
	Users         int `db:"users"`
	Subscriptions int `db:"subscriptions"`
	Shows         int `db:"shows"`
}
