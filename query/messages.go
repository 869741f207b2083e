package query

const (
	TypeRetrieveToken = "ghapp.query.token.retrieve"
	TypeTokenState    = "ghapp.query.token.state"
)

type RetrieveTokenMessage struct{}

func (RetrieveTokenMessage) Type() string { return TypeRetrieveToken }

func (RetrieveTokenMessage) Validate() error { return nil }

type TokenStateMessage struct{}

func (TokenStateMessage) Type() string { return TypeTokenState }

func (TokenStateMessage) Validate() error { return nil }
