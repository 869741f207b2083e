package query

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Querier[RetrieveTokenMessage, string]   = (*RetrieveTokenQuery)(nil)
	_ gocmd.Querier[TokenStateMessage, TokenStatus] = (*TokenStateQuery)(nil)
)
