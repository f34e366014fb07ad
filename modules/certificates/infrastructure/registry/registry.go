// Package registry looks members up in the organization's member registry.
// It is read-only and only used to backfill a requestor's phone.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"

	"github.com/vecinal/certdesk/modules/certificates/domain/value_objects/nationalid"
)

// normalizedColumn mirrors nationalid.Normalize on the SQL side.
const normalizedColumn = `upper(regexp_replace(national_id, '[.\-[:space:]]', '', 'g'))`

type member struct {
	FullName string `db:"full_name"`
	Phone    string `db:"phone"`
}

type Registry struct {
	db    *sqlx.DB
	query string
}

// Open connects to the registry database with the postgres driver.
func Open(dsn, table string) (*Registry, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open member registry")
	}
	return New(db, table), nil
}

func New(db *sqlx.DB, table string) *Registry {
	if table == "" {
		table = "members"
	}
	query := fmt.Sprintf(
		`SELECT full_name, phone FROM %s WHERE %s = $1 AND phone <> '' ORDER BY id DESC LIMIT 1`,
		pq.QuoteIdentifier(table), normalizedColumn,
	)
	return &Registry{db: db, query: query}
}

// PhoneByNationalID returns the phone of the member whose national ID
// normalizes to the same value as nid.
func (r *Registry) PhoneByNationalID(ctx context.Context, nid string) (string, bool, error) {
	key := nationalid.Normalize(nid)
	if key == "" {
		return "", false, nil
	}
	var m member
	if err := r.db.GetContext(ctx, &m, r.query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, pkgerrors.Wrap(err, "failed to look up member phone")
	}
	return m.Phone, m.Phone != "", nil
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Registry) Close() error {
	return r.db.Close()
}
