package activitypub

import (
	"database/sql"

	"github.com/samanthaghraves/mastodon/db"
	"github.com/samanthaghraves/mastodon/domain"
)

// DBDomainPolicy answers moderation questions from the domain_blocks table.
type DBDomainPolicy struct {
	db *db.DB
}

// NewDBDomainPolicy creates the production domain policy backed by the
// singleton database.
func NewDBDomainPolicy() *DBDomainPolicy {
	return &DBDomainPolicy{db: db.GetDB()}
}

func (p *DBDomainPolicy) IsBlocked(blockedDomain string) (bool, error) {
	err, block := p.db.ReadDomainBlock(blockedDomain)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return block.Severity == domain.DomainBlockSuspend, nil
}

func (p *DBDomainPolicy) RejectsMedia(blockedDomain string) (bool, error) {
	err, block := p.db.ReadDomainBlock(blockedDomain)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// A suspended domain never gets its media fetched either
	return block.Severity == domain.DomainBlockSuspend || block.RejectMedia, nil
}

// Ensure DBDomainPolicy implements DomainPolicy interface
var _ DomainPolicy = (*DBDomainPolicy)(nil)
