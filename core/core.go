package core

import "context"

// PrimarySource fetches the latest token listings from the primary feed.
// Implementations cache aggressively and never return an error together with
// an empty result: on total upstream failure they degrade to the last good
// payload or a fixed placeholder set.
type PrimarySource interface {
	Latest(ctx context.Context, forceRefresh bool) ([]Token, error)
}

// SignalSource fetches social-signal tokens filtered by a minimum follower
// count. On failure it returns the last cached payload for that threshold, or
// an empty list.
type SignalSource interface {
	Tokens(ctx context.Context, minFollowers int, forceRefresh bool) ([]Token, error)
}

// Notifier delivers match batches and session errors to a chat. Fire and
// forget: delivery failures are logged by the implementation, never retried.
type Notifier interface {
	NotifyMatches(chatID int64, matches []Match)
	NotifyError(chatID int64, err error)
}

// UserStorage persists per-user state. Load returns (nil, nil) when the user
// has no stored state; callers apply defaults.
type UserStorage interface {
	SaveUserState(userID int64, state *UserState) error
	LoadUserState(userID int64) (*UserState, error)
	Close() error
}
