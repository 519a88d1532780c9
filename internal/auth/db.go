package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"boxoffice/internal/errs"
	"boxoffice/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateUser(ctx context.Context, user models.User) error {
	_, err := d.Bun.NewInsert().Model(&user).Exec(ctx)
	return err
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	err := d.Bun.NewSelect().Model(user).Where("email = ?", email).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, errs.ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	err := d.Bun.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

func (d *DB) ConfirmUser(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("confirmed = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
