package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDuplicateAction is returned when a second binding is created for an
// action label that is already bound.
var ErrDuplicateAction = errors.New("action already bound")

// Binding maps a resolved action label (e.g. "goLeft") to a plugin action.
type Binding struct {
	ID           string          `json:"id"`
	ActionName   string          `json:"action_name"`
	PluginName   string          `json:"plugin_name"`
	PluginAction string          `json:"plugin_action"`
	Config       json.RawMessage `json:"config"`
	Enabled      bool            `json:"enabled"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, action_name, plugin_name, plugin_action, config, enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (*Binding, error) {
	b := &Binding{}
	var config string
	var enabled int

	err := row.Scan(&b.ID, &b.ActionName, &b.PluginName, &b.PluginAction, &config, &enabled, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.Config = json.RawMessage(config)
	b.Enabled = enabled != 0
	return b, nil
}

func configOrEmpty(config json.RawMessage) string {
	if len(config) == 0 {
		return "{}"
	}
	return string(config)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// Create inserts a new binding into the database.
func (r *BindingRepository) Create(b *Binding) error {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	if len(b.Config) == 0 {
		b.Config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO bindings (`+bindingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ActionName, b.PluginName, b.PluginAction, configOrEmpty(b.Config), boolToInt(b.Enabled), b.CreatedAt, b.UpdatedAt,
	)
	return uniqueErr(err, b.ActionName)
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// GetByAction retrieves the enabled binding for an action label.
// Returns nil, nil if the action is unbound or its binding is disabled.
func (r *BindingRepository) GetByAction(actionName string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT `+bindingColumns+` FROM bindings WHERE action_name = ? AND enabled = 1`, actionName,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No binding for this action.
	}
	return b, err
}

// List retrieves all bindings ordered by action label.
func (r *BindingRepository) List() ([]*Binding, error) {
	rows, err := r.db.Query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY action_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bindings := []*Binding{}
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

// Update updates an existing binding in the database.
func (r *BindingRepository) Update(b *Binding) error {
	b.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE bindings SET action_name = ?, plugin_name = ?, plugin_action = ?, config = ?, enabled = ?, updated_at = ?
		 WHERE id = ?`,
		b.ActionName, b.PluginName, b.PluginAction, configOrEmpty(b.Config), boolToInt(b.Enabled), b.UpdatedAt, b.ID,
	)
	if err != nil {
		return uniqueErr(err, b.ActionName)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a binding from the database by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func uniqueErr(err error, actionName string) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: bindings.action_name") {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, actionName)
	}
	return err
}
