package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/gcs-commerce/orderhub/internal/entity"
)

// SearchCriteria is the sparse filter set for order scans. Nil fields are
// skipped; the rest are AND-ed together with the date range applied first.
type SearchCriteria struct {
	Number        *string
	Status        *entity.Status
	Username      *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Empty reports whether no criterion is set.
func (c SearchCriteria) Empty() bool {
	return c.Number == nil && c.Status == nil && c.Username == nil &&
		c.CreatedAfter == nil && c.CreatedBefore == nil
}

// String renders the set criteria for log and error messages.
func (c SearchCriteria) String() string {
	parts := make([]string, 0, 5)
	if c.Number != nil {
		parts = append(parts, fmt.Sprintf("number=%s", *c.Number))
	}
	if c.Status != nil {
		parts = append(parts, fmt.Sprintf("status=%s", *c.Status))
	}
	if c.Username != nil {
		parts = append(parts, fmt.Sprintf("username=%s", *c.Username))
	}
	if c.CreatedAfter != nil {
		parts = append(parts, fmt.Sprintf("createdAfter=%s", c.CreatedAfter.Format(time.RFC3339)))
	}
	if c.CreatedBefore != nil {
		parts = append(parts, fmt.Sprintf("createdBefore=%s", c.CreatedBefore.Format(time.RFC3339)))
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Pageable selects a 0-based page. Size 0 is the no-limit sentinel: the
// composed query is returned without LIMIT/OFFSET.
type Pageable struct {
	Number int
	Size   int
}

// Compose applies the criteria and pagination onto a base select query:
// the optional creation-date bounds first, then every remaining non-nil
// criterion as an equality predicate.
func Compose(q *bun.SelectQuery, c SearchCriteria, page Pageable) *bun.SelectQuery {
	if c.CreatedAfter != nil {
		q = q.Where("o.created >= ?", *c.CreatedAfter)
	}
	if c.CreatedBefore != nil {
		q = q.Where("o.created <= ?", *c.CreatedBefore)
	}
	if c.Number != nil {
		q = q.Where("o.number = ?", *c.Number)
	}
	if c.Status != nil {
		q = q.Where("o.status = ?", *c.Status)
	}
	if c.Username != nil {
		q = q.Where("o.username = ?", *c.Username)
	}

	if page.Size == 0 {
		return q
	}
	return q.Limit(page.Size).Offset(page.Number * page.Size)
}
