package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/issueimport/internal/domain"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository wires a user repository backed by pgxpool.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, login, name, anonymous FROM users WHERE id = $1`, id))
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (domain.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, login, name, anonymous FROM users WHERE login = $1`, login))
}

func (r *userRepository) Anonymous(ctx context.Context) (domain.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, login, name, anonymous FROM users WHERE anonymous = TRUE ORDER BY id LIMIT 1`))
}

func (r *userRepository) scanOne(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Login, &user.Name, &user.Anonymous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository wires a project repository backed by pgxpool.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

func (r *projectRepository) GetByID(ctx context.Context, id int64) (domain.Project, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, name, identifier FROM projects WHERE id = $1`, id))
}

func (r *projectRepository) GetByName(ctx context.Context, name string) (domain.Project, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, name, identifier FROM projects WHERE name = $1`, name))
}

func (r *projectRepository) scanOne(row pgx.Row) (domain.Project, error) {
	var project domain.Project
	err := row.Scan(&project.ID, &project.Name, &project.Identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Project{}, ErrNotFound
		}
		return domain.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

type versionRepository struct {
	pool *pgxpool.Pool
}

// NewVersionRepository wires a version repository backed by pgxpool.
func NewVersionRepository(pool *pgxpool.Pool) VersionRepository {
	return &versionRepository{pool: pool}
}

func (r *versionRepository) FindByName(ctx context.Context, projectID int64, name string) (domain.Version, error) {
	var version domain.Version
	err := r.pool.QueryRow(ctx,
		`SELECT id, project_id, name, shared
		 FROM versions
		 WHERE name = $1 AND (project_id = $2 OR shared = TRUE)
		 ORDER BY (project_id = $2) DESC, id
		 LIMIT 1`, name, projectID).
		Scan(&version.ID, &version.ProjectID, &version.Name, &version.Shared)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Version{}, ErrNotFound
		}
		return domain.Version{}, fmt.Errorf("failed to find version: %w", err)
	}
	return version, nil
}

func (r *versionRepository) Create(ctx context.Context, version domain.Version) (domain.Version, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO versions (project_id, name, shared) VALUES ($1, $2, $3) RETURNING id`,
		version.ProjectID, version.Name, version.Shared).Scan(&version.ID)
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to create version: %w", err)
	}
	return version, nil
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository wires a category repository backed by pgxpool.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) FindByName(ctx context.Context, projectID int64, name string) (domain.Category, error) {
	var category domain.Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, project_id, name FROM categories WHERE project_id = $1 AND name = $2`,
		projectID, name).
		Scan(&category.ID, &category.ProjectID, &category.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Category{}, ErrNotFound
		}
		return domain.Category{}, fmt.Errorf("failed to find category: %w", err)
	}
	return category, nil
}

func (r *categoryRepository) Create(ctx context.Context, category domain.Category) (domain.Category, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (project_id, name) VALUES ($1, $2) RETURNING id`,
		category.ProjectID, category.Name).Scan(&category.ID)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}
