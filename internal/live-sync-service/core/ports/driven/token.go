package driven

// ITokenStore is the persisted client-side storage the auth token is read from.
type ITokenStore interface {
	Load() (string, error)
	Save(token string) error
}
