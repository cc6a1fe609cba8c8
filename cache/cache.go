// Package cache provides the TTL-backed lookup tables shared by the
// discovery pipeline: DNS checks, HTTP HEAD probes, content validation
// verdicts and search responses.
//
// All operations are best-effort. A cache failure never propagates to the
// caller: reads report a miss, writes are dropped, and the pipeline proceeds
// as if the cache were empty.
package cache

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // sqlite driver
)

// Namespace TTLs. Search results age out quickly; resolution and validation
// results are stable for about a week.
const (
	DNSTTL        = 7 * 24 * time.Hour
	DomainTTL     = 7 * 24 * time.Hour
	ValidationTTL = 7 * 24 * time.Hour
	SearchTTL     = 24 * time.Hour
)

// Store persists cache entries in a SQLite database. It is safe for
// concurrent use; writes are serialized on a single connection.
type Store struct {
	db     *sql.DB
	mux    sync.Mutex
	logger *zerolog.Logger

	// now is overridable in tests to exercise TTL expiry.
	now func() time.Time
}

// New opens (or creates) the cache database at the given path and ensures all
// namespace tables exist.
func New(path string, logger *zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// A single dedicated connection suffices for cache traffic and avoids
	// SQLITE_BUSY on concurrent upserts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS dns_cache (
			domain TEXT PRIMARY KEY,
			domain_exists INTEGER NOT NULL,
			checked_at REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS domain_cache (
			domain TEXT PRIMARY KEY,
			status_code INTEGER NOT NULL,
			final_url TEXT NOT NULL,
			checked_at REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS validation_cache (
			url TEXT PRIMARY KEY,
			is_hotel INTEGER NOT NULL,
			confidence REAL NOT NULL,
			indicators TEXT NOT NULL,
			checked_at REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS search_cache (
			query_hash TEXT PRIMARY KEY,
			results TEXT NOT NULL,
			searched_at REAL NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Store) fresh(checkedAt float64, ttl time.Duration) bool {
	return s.now().Sub(time.Unix(0, int64(checkedAt*float64(time.Second)))) < ttl
}

func (s *Store) stamp() float64 {
	return float64(s.now().UnixNano()) / float64(time.Second)
}

func (s *Store) debug(op string, err error) {
	if s.logger != nil {
		s.logger.Debug().Err(err).Str("op", op).Msg("cache operation failed")
	}
}

// GetDNS returns the cached resolution result for a domain. The second return
// value is false on a miss, an expired entry or a storage error.
func (s *Store) GetDNS(domain string) (exists, ok bool) {
	var (
		val       int
		checkedAt float64
	)

	err := s.db.QueryRow(
		"SELECT domain_exists, checked_at FROM dns_cache WHERE domain = ?",
		strings.ToLower(domain),
	).Scan(&val, &checkedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			s.debug("dns get", err)
		}

		return false, false
	}

	if !s.fresh(checkedAt, DNSTTL) {
		return false, false
	}

	return val == 1, true
}

// SetDNS records whether a domain resolves.
func (s *Store) SetDNS(domain string, exists bool) {
	s.mux.Lock()
	defer s.mux.Unlock()

	val := 0
	if exists {
		val = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO dns_cache(domain, domain_exists, checked_at) VALUES(?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET domain_exists=excluded.domain_exists, checked_at=excluded.checked_at`,
		strings.ToLower(domain), val, s.stamp(),
	)
	if err != nil {
		s.debug("dns set", err)
	}
}

// GetDomain returns the cached HEAD probe result for a URL.
func (s *Store) GetDomain(domain string) (statusCode int, finalURL string, ok bool) {
	var checkedAt float64

	err := s.db.QueryRow(
		"SELECT status_code, final_url, checked_at FROM domain_cache WHERE domain = ?",
		strings.ToLower(domain),
	).Scan(&statusCode, &finalURL, &checkedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			s.debug("domain get", err)
		}

		return 0, "", false
	}

	if !s.fresh(checkedAt, DomainTTL) {
		return 0, "", false
	}

	return statusCode, finalURL, true
}

// SetDomain records a HEAD probe outcome.
func (s *Store) SetDomain(domain string, statusCode int, finalURL string) {
	s.mux.Lock()
	defer s.mux.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO domain_cache(domain, status_code, final_url, checked_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET status_code=excluded.status_code, final_url=excluded.final_url, checked_at=excluded.checked_at`,
		strings.ToLower(domain), statusCode, finalURL, s.stamp(),
	)
	if err != nil {
		s.debug("domain set", err)
	}
}

// GetValidation returns a cached content-validation verdict for a URL.
func (s *Store) GetValidation(url string) (isHotel bool, confidence float64, indicators []string, ok bool) {
	var (
		val       int
		raw       string
		checkedAt float64
	)

	err := s.db.QueryRow(
		"SELECT is_hotel, confidence, indicators, checked_at FROM validation_cache WHERE url = ?",
		strings.ToLower(url),
	).Scan(&val, &confidence, &raw, &checkedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			s.debug("validation get", err)
		}

		return false, 0, nil, false
	}

	if !s.fresh(checkedAt, ValidationTTL) {
		return false, 0, nil, false
	}

	if err := json.Unmarshal([]byte(raw), &indicators); err != nil {
		s.debug("validation decode", err)
		return false, 0, nil, false
	}

	return val == 1, confidence, indicators, true
}

// SetValidation records a validation verdict. Callers must not store verdicts
// produced by transient fetch errors; those would poison a week of lookups.
func (s *Store) SetValidation(url string, isHotel bool, confidence float64, indicators []string) {
	s.mux.Lock()
	defer s.mux.Unlock()

	raw, err := json.Marshal(indicators)
	if err != nil {
		s.debug("validation encode", err)
		return
	}

	val := 0
	if isHotel {
		val = 1
	}

	_, err = s.db.Exec(
		`INSERT INTO validation_cache(url, is_hotel, confidence, indicators, checked_at) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET is_hotel=excluded.is_hotel, confidence=excluded.confidence, indicators=excluded.indicators, checked_at=excluded.checked_at`,
		strings.ToLower(url), val, confidence, string(raw), s.stamp(),
	)
	if err != nil {
		s.debug("validation set", err)
	}
}

// QueryHash returns the cache key for a search query.
func QueryHash(query string) string {
	sum := md5.Sum([]byte(strings.ToLower(query)))
	return hex.EncodeToString(sum[:])
}

// GetSearch returns the cached raw payload for a search query.
func (s *Store) GetSearch(query string) (payload []byte, ok bool) {
	var (
		raw        string
		searchedAt float64
	)

	err := s.db.QueryRow(
		"SELECT results, searched_at FROM search_cache WHERE query_hash = ?",
		QueryHash(query),
	).Scan(&raw, &searchedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			s.debug("search get", err)
		}

		return nil, false
	}

	if !s.fresh(searchedAt, SearchTTL) {
		return nil, false
	}

	return []byte(raw), true
}

// SetSearch records a search payload keyed by the query hash.
func (s *Store) SetSearch(query string, payload []byte) {
	s.mux.Lock()
	defer s.mux.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO search_cache(query_hash, results, searched_at) VALUES(?, ?, ?)
		 ON CONFLICT(query_hash) DO UPDATE SET results=excluded.results, searched_at=excluded.searched_at`,
		QueryHash(query), string(payload), s.stamp(),
	)
	if err != nil {
		s.debug("search set", err)
	}
}

// Sweep deletes entries older than each namespace's TTL and returns the total
// number of rows removed.
func (s *Store) Sweep() (int64, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	nowSecs := s.stamp()

	var removed int64

	for _, t := range []struct {
		query string
		ttl   time.Duration
	}{
		{"DELETE FROM dns_cache WHERE checked_at < ?", DNSTTL},
		{"DELETE FROM domain_cache WHERE checked_at < ?", DomainTTL},
		{"DELETE FROM validation_cache WHERE checked_at < ?", ValidationTTL},
		{"DELETE FROM search_cache WHERE searched_at < ?", SearchTTL},
	} {
		res, err := s.db.Exec(t.query, nowSecs-t.ttl.Seconds())
		if err != nil {
			return removed, err
		}

		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
	}

	return removed, nil
}
