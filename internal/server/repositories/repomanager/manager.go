package repomanager

import (
	"github.com/hipnode/hipnode/internal/dbx"
	"github.com/hipnode/hipnode/internal/server/repositories/challenges"
	"github.com/hipnode/hipnode/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a DBTX, so services can
// run the same repository code on a plain connection or inside a transaction.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Challenges(db dbx.DBTX) challenges.Repository
}
