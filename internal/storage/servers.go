package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/omp-launcher/internal/models"
	"github.com/woozymasta/omp-launcher/internal/query"
)

const serverColumns = `host, port, country_code, hostname, gamemode, language,
	players, max_players, password, ping, count, first_seen, last_seen`

// UpsertServer records a server sighting. Existing rows keep their first_seen,
// bump count and only replace text fields with non-empty values. A negative
// ping keeps the stored one.
func (r *Repository) UpsertServer(ctx context.Context, s models.ServerRecord) error {
	stmt := `
	INSERT INTO servers (` + serverColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(host, port) DO UPDATE SET
		count = count + 1,
		last_seen = excluded.last_seen,
		players = excluded.players,
		max_players = excluded.max_players,
		password = excluded.password,
		ping = CASE WHEN ? THEN servers.ping ELSE excluded.ping END,

		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE servers.country_code END,
		hostname     = CASE WHEN excluded.hostname != '' THEN excluded.hostname ELSE servers.hostname END,
		gamemode     = CASE WHEN excluded.hostname != '' THEN excluded.gamemode ELSE servers.gamemode END,
		language     = CASE WHEN excluded.hostname != '' THEN excluded.language ELSE servers.language END;
	`

	keepPing := s.Ping < 0
	ping := s.Ping
	if keepPing {
		ping = int(query.PingTimeout)
	}

	_, err := r.db.ExecContext(ctx, stmt,
		s.Host, s.Port, s.CountryCode, s.Hostname, s.Gamemode, s.Language,
		s.Players, s.MaxPlayers, s.Password, ping,
		s.LastSeen.UTC(), s.LastSeen.UTC(),
		keepPing,
	)

	return err
}

// GetServers returns the history, most recently seen first.
func (r *Repository) GetServers(ctx context.Context) ([]models.ServerRecord, error) {
	return r.queryServers(ctx, `SELECT `+serverColumns+` FROM servers ORDER BY last_seen DESC`)
}

// GetStaleServers returns servers not seen since before.
func (r *Repository) GetStaleServers(ctx context.Context, before time.Time) ([]models.ServerRecord, error) {
	return r.queryServers(ctx, `SELECT `+serverColumns+` FROM servers WHERE last_seen < ? ORDER BY last_seen`, before.UTC())
}

// GetServer returns one server, or nil when it is unknown.
func (r *Repository) GetServer(ctx context.Context, host string, port int) (*models.ServerRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+serverColumns+` FROM servers WHERE host = ? AND port = ?`, host, port)

	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// DeleteServer removes one server from the history.
func (r *Repository) DeleteServer(ctx context.Context, host string, port int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE host = ? AND port = ?`, host, port)
	return err
}

// DeleteStaleServers removes servers not seen since before.
func (r *Repository) DeleteStaleServers(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE last_seen < ?`, before.UTC())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r *Repository) queryServers(ctx context.Context, stmt string, args ...any) ([]models.ServerRecord, error) {
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.ServerRecord
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (models.ServerRecord, error) {
	var s models.ServerRecord
	err := row.Scan(
		&s.Host, &s.Port, &s.CountryCode, &s.Hostname, &s.Gamemode, &s.Language,
		&s.Players, &s.MaxPlayers, &s.Password, &s.Ping, &s.Count, &s.FirstSeen, &s.LastSeen,
	)

	return s, err
}
