package twostep

import "errors"

var (
	// ErrInvalidCredentials is returned by Step A when no user matches the
	// submitted email and secret. The same value covers unknown email and
	// wrong secret so callers cannot tell which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidChallenge is returned by Step B when no unconsumed login
	// record matches the submission, including replays of a consumed code.
	ErrInvalidChallenge = errors.New("invalid challenge code")
	// ErrUserNotFound is the sentinel a UserStore returns for an absent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserStoreUnavailable reports a user store backend failure.
	ErrUserStoreUnavailable = errors.New("user store backend unavailable")
	// ErrLoginRecordNotFound is the sentinel a LoginStore returns when no
	// pending record matches.
	ErrLoginRecordNotFound = errors.New("login record not found")
	// ErrLoginRecordConsumed reports a consume attempt on an already
	// consumed record. Exactly one consumer wins; the rest see this.
	ErrLoginRecordConsumed = errors.New("login record already consumed")
	// ErrLoginStoreUnavailable reports a login store backend failure. A
	// failed consume is surfaced with this error rather than swallowed.
	ErrLoginStoreUnavailable = errors.New("login store backend unavailable")
	// ErrChallengeUnavailable reports a failure to draw a challenge code
	// from the random source.
	ErrChallengeUnavailable = errors.New("challenge generation unavailable")
	// ErrTokenInvalid is returned when a token fails signature verification
	// or is malformed.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRegistrationInvalid reports a registration request missing
	// required fields.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrEngineNotReady reports use of an Engine that was not built with
	// its required collaborators.
	ErrEngineNotReady = errors.New("engine not initialized")
)
