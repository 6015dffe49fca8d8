package errors

import "errors"

// Sentinel errors shared across services. Handlers match these with
// errors.Is and map them to HTTP statuses.
var (
	// Auth & users
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password too short")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserBanned         = errors.New("user is banned")
	ErrInvalidUserStatus  = errors.New("invalid user status")

	// Admin
	ErrAdminNotFound        = errors.New("admin not found")
	ErrInvalidAdminPassword = errors.New("invalid admin password")
	ErrAdminDisabled        = errors.New("admin account disabled")

	// Runs
	ErrRunNotFound       = errors.New("run not found")
	ErrRunAccessDenied   = errors.New("run access denied")
	ErrRunFinished       = errors.New("run already finished")
	ErrInvalidPhase      = errors.New("action not allowed in current phase")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidDeckChoice = errors.New("invalid deck choice")

	// In-run actions
	ErrNoSelection         = errors.New("no cards selected")
	ErrSelectionTooLarge   = errors.New("too many cards selected")
	ErrInvalidCardIndex    = errors.New("invalid card index")
	ErrNoPlaysRemaining    = errors.New("no plays remaining")
	ErrNoDiscardsRemaining = errors.New("no discards remaining")

	// Shop & jokers
	ErrJokerNotFound     = errors.New("joker not found")
	ErrJokerNotOffered   = errors.New("joker not offered in shop")
	ErrJokerSlotsFull    = errors.New("joker slots full")
	ErrJokerAlreadyOwned = errors.New("joker already owned")
	ErrInsufficientCoins = errors.New("insufficient coins")

	// Persistence
	ErrNoSavedRun      = errors.New("no saved run")
	ErrCorruptSavedRun = errors.New("saved run failed integrity check")
)
