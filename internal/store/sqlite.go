package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// SQLite stores each record as a JSON document next to the columns that
// carry uniqueness and ownership constraints.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens dsn with the pure Go sqlite driver and creates the schema
// when missing. An empty dsn opens a private in-memory database.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// pragmas and in-memory databases are per connection
	db.SetMaxOpenConns(1)
	if err := initDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initDB(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS types (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS objects (
			id INTEGER PRIMARY KEY,
			type_id INTEGER NOT NULL REFERENCES types(id) ON DELETE CASCADE,
			doc TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_type ON objects(type_id);`,
		`CREATE TABLE IF NOT EXISTS user_groups (
			id INTEGER PRIMARY KEY,
			doc TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) ListTypes(ctx context.Context, params model.ListParams) (model.Page[model.Type], error) {
	items, err := queryDocs[model.Type](ctx, s.db, `SELECT doc FROM types`)
	if err != nil {
		return model.Page[model.Type]{}, fmt.Errorf("store: list types: %w", err)
	}
	return pageTypes(items, params)
}

func (s *SQLite) GetType(ctx context.Context, id int) (model.Type, error) {
	t, err := queryDoc[model.Type](ctx, s.db, `SELECT doc FROM types WHERE id = ?`, id)
	if err != nil {
		return model.Type{}, fmt.Errorf("store: type %d: %w", id, err)
	}
	return t, nil
}

func (s *SQLite) CreateType(ctx context.Context, t model.Type) (model.Type, error) {
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := nameFree(ctx, tx, "types", t.Name, 0); err != nil {
			return fmt.Errorf("%w: type name %q already exists", err, t.Name)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO types (name, doc) VALUES (?, '{}')`, t.Name)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.PublicID = int(id)
		return writeDoc(ctx, tx, `UPDATE types SET doc = ? WHERE id = ?`, t, t.PublicID)
	})
	if err != nil {
		return model.Type{}, fmt.Errorf("store: create type: %w", err)
	}
	return t, nil
}

func (s *SQLite) UpdateType(ctx context.Context, t model.Type) (model.Type, error) {
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, "types", t.PublicID); err != nil {
			return err
		}
		if err := nameFree(ctx, tx, "types", t.Name, t.PublicID); err != nil {
			return fmt.Errorf("%w: type name %q already exists", err, t.Name)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE types SET name = ? WHERE id = ?`, t.Name, t.PublicID); err != nil {
			return err
		}
		return writeDoc(ctx, tx, `UPDATE types SET doc = ? WHERE id = ?`, t, t.PublicID)
	})
	if err != nil {
		return model.Type{}, fmt.Errorf("store: update type %d: %w", t.PublicID, err)
	}
	return t, nil
}

func (s *SQLite) DeleteType(ctx context.Context, id int) error {
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, "types", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM types WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: delete type %d: %w", id, err)
	}
	return nil
}

func (s *SQLite) ListCategories(ctx context.Context, params model.ListParams) (model.Page[model.Category], error) {
	items, err := queryDocs[model.Category](ctx, s.db, `SELECT doc FROM categories`)
	if err != nil {
		return model.Page[model.Category]{}, fmt.Errorf("store: list categories: %w", err)
	}
	return pageCategories(items, params)
}

func (s *SQLite) GetCategory(ctx context.Context, id int) (model.Category, error) {
	c, err := queryDoc[model.Category](ctx, s.db, `SELECT doc FROM categories WHERE id = ?`, id)
	if err != nil {
		return model.Category{}, fmt.Errorf("store: category %d: %w", id, err)
	}
	return c, nil
}

func (s *SQLite) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := nameFree(ctx, tx, "categories", c.Name, 0); err != nil {
			return fmt.Errorf("%w: category name %q already exists", err, c.Name)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO categories (name, doc) VALUES (?, '{}')`, c.Name)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		c.PublicID = int(id)
		return writeDoc(ctx, tx, `UPDATE categories SET doc = ? WHERE id = ?`, c, c.PublicID)
	})
	if err != nil {
		return model.Category{}, fmt.Errorf("store: create category: %w", err)
	}
	return c, nil
}

func (s *SQLite) UpdateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, "categories", c.PublicID); err != nil {
			return err
		}
		if err := nameFree(ctx, tx, "categories", c.Name, c.PublicID); err != nil {
			return fmt.Errorf("%w: category name %q already exists", err, c.Name)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, c.Name, c.PublicID); err != nil {
			return err
		}
		return writeDoc(ctx, tx, `UPDATE categories SET doc = ? WHERE id = ?`, c, c.PublicID)
	})
	if err != nil {
		return model.Category{}, fmt.Errorf("store: update category %d: %w", c.PublicID, err)
	}
	return c, nil
}

func (s *SQLite) CategoryTree(ctx context.Context) ([]model.CategoryNode, error) {
	items, err := queryDocs[model.Category](ctx, s.db, `SELECT doc FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("store: category tree: %w", err)
	}
	return buildTree(items), nil
}

func (s *SQLite) ListObjects(ctx context.Context, typeIDs []int, params model.ListParams) (model.Page[model.Object], error) {
	items, err := queryDocs[model.Object](ctx, s.db, `SELECT doc FROM objects`)
	if err != nil {
		return model.Page[model.Object]{}, fmt.Errorf("store: list objects: %w", err)
	}
	return pageObjects(items, typeIDs, params)
}

func (s *SQLite) GetObject(ctx context.Context, id int) (model.Object, error) {
	obj, err := queryDoc[model.Object](ctx, s.db, `SELECT doc FROM objects WHERE id = ?`, id)
	if err != nil {
		return model.Object{}, fmt.Errorf("store: object %d: %w", id, err)
	}
	return obj, nil
}

func (s *SQLite) PutObject(ctx context.Context, obj model.Object) (model.Object, error) {
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, "types", obj.TypeID); err != nil {
			return fmt.Errorf("type %d: %w", obj.TypeID, err)
		}
		if obj.PublicID == 0 {
			res, err := tx.ExecContext(ctx, `INSERT INTO objects (type_id, doc) VALUES (?, '{}')`, obj.TypeID)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			obj.PublicID = int(id)
		}
		doc, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO objects (id, type_id, doc) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET type_id = excluded.type_id, doc = excluded.doc`,
			obj.PublicID, obj.TypeID, string(doc))
		return err
	})
	if err != nil {
		return model.Object{}, fmt.Errorf("store: put object: %w", err)
	}
	return obj, nil
}

func (s *SQLite) DeleteObject(ctx context.Context, id int) error {
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, "objects", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: delete object %d: %w", id, err)
	}
	return nil
}

func (s *SQLite) ListGroups(ctx context.Context) ([]model.Group, error) {
	groups, err := queryDocs[model.Group](ctx, s.db, `SELECT doc FROM user_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	return groups, nil
}

func (s *SQLite) PutGroup(ctx context.Context, g model.Group) error {
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if g.PublicID == 0 {
			var next int
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM user_groups`).Scan(&next); err != nil {
				return err
			}
			g.PublicID = next
		}
		doc, err := json.Marshal(g)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO user_groups (id, doc) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, g.PublicID, string(doc))
		return err
	})
	if err != nil {
		return fmt.Errorf("store: put group: %w", err)
	}
	return nil
}

func (s *SQLite) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryDocs[T any](ctx context.Context, q querier, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal([]byte(doc), &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func queryDoc[T any](ctx context.Context, q querier, query string, args ...any) (T, error) {
	var item T
	var doc string
	err := q.QueryRowContext(ctx, query, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return item, ErrNotFound
	}
	if err != nil {
		return item, err
	}
	err = json.Unmarshal([]byte(doc), &item)
	return item, err
}

func writeDoc(ctx context.Context, tx *sql.Tx, stmt string, value any, id int) error {
	doc, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, stmt, string(doc), id)
	return err
}

// table names below are package constants, never user input
func exists(ctx context.Context, tx *sql.Tx, table string, id int) error {
	var found int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nameFree(ctx context.Context, tx *sql.Tx, table, name string, exclude int) error {
	var found int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE name = ? AND id <> ?`, name, exclude).Scan(&found)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	default:
		return ErrConflict
	}
}
