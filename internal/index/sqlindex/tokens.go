package sqlindex

import (
	"context"
	"database/sql"

	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/index"
)

func (s *Store) CreateToken(ctx context.Context, t index.Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (token, comment, read_kind, read_perms, write_kind, write_perms, delete_kind, delete_perms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Token, t.Comment, t.ReadKind, t.ReadPerms, t.WriteKind, t.WritePerms, t.DeleteKind, t.DeletePerms)
	if err != nil {
		return xerrors.Errorf("creating token: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, token string) (index.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, comment, read_kind, read_perms, write_kind, write_perms, delete_kind, delete_perms
		FROM tokens WHERE token = ?`, token)
	t, err := scanToken(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return index.Token{}, index.ErrNotFound
		}
		return index.Token{}, xerrors.Errorf("getting token: %w", err)
	}
	return t, nil
}

func (s *Store) ListTokens(ctx context.Context) ([]index.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, comment, read_kind, read_perms, write_kind, write_perms, delete_kind, delete_perms FROM tokens`)
	if err != nil {
		return nil, xerrors.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var out []index.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, xerrors.Errorf("scanning token: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, token)
	if err != nil {
		return xerrors.Errorf("deleting token: %w", err)
	}
	return nil
}

func scanToken(s rowScanner) (index.Token, error) {
	var t index.Token
	if err := s.Scan(&t.Token, &t.Comment, &t.ReadKind, &t.ReadPerms, &t.WriteKind, &t.WritePerms, &t.DeleteKind, &t.DeletePerms); err != nil {
		return index.Token{}, err
	}
	return t, nil
}
