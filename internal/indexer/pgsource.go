package indexer

/*
PostgresSource backs CachedPageSource against a real database, the shape
GET_CACHED_PAGE took in the original implementation. It claims one row
per Next call with a row-locking UPDATE so concurrent IndexerWorkers
never hand out the same cached page twice, mirroring the claim-then-mark
discipline the frontier's claim protocol uses against the working
collection.
*/

import (
	"context"
	"errors"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads compressed page bodies out of a cached_pages
// table: (path_id text primary key, url text, body bytea, claimed bool).
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

const claimOneQuery = `
UPDATE cached_pages
SET claimed = true
WHERE path_id = (
	SELECT path_id FROM cached_pages
	WHERE claimed = false
	ORDER BY path_id
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING path_id, url, body
`

// Next claims and returns one unclaimed cached page, or ok=false if the
// table currently has none available.
func (s *PostgresSource) Next(ctx context.Context) (CachedPage, bool, error) {
	row := s.pool.QueryRow(ctx, claimOneQuery)

	var pathID, rawURL string
	var body []byte
	if err := row.Scan(&pathID, &rawURL, &body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CachedPage{}, false, nil
		}
		return CachedPage{}, false, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return CachedPage{}, false, err
	}

	return CachedPage{PathID: pathID, URL: *u, Deflate: body}, true, nil
}

var _ CachedPageSource = (*PostgresSource)(nil)
