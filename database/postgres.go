package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store on top of PostgreSQL. Work items and
// planning entities are stored as JSON documents scoped to their owner so
// the replace-all-for-connection semantics map to a delete+insert in one
// transaction.
type PostgresStore struct {
	conn *sql.DB
}

// InitPostgres opens the PostgreSQL store and runs migrations.
func InitPostgres(dbURL string) (*PostgresStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL is not set")
	}

	log.Println("Connecting to PostgreSQL...")

	conn, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{conn: conn}
	if err := store.runMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("PostgreSQL store connected")
	return store, nil
}

func (s *PostgresStore) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS connections (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			doc JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS work_items (
			id TEXT PRIMARY KEY,
			connection_id TEXT NOT NULL,
			jira_key TEXT NOT NULL,
			doc JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_work_items_connection ON work_items(connection_id)`,
		`CREATE TABLE IF NOT EXISTS plan_entities (
			id TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			doc JSONB NOT NULL,
			PRIMARY KEY (kind, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plan_entities_user ON plan_entities(user_id, kind)`,
	}

	for _, migration := range migrations {
		if _, err := s.conn.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// User operations

func (s *PostgresStore) CreateUser(username, email, passwordHash string) (*User, error) {
	user := &User{Username: username, Email: email, PasswordHash: passwordHash}
	err := s.conn.QueryRow(
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		username, email, passwordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) getUser(where string, arg interface{}) (*User, error) {
	user := &User{}
	err := s.conn.QueryRow(
		`SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE `+where,
		arg,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByUsername(username string) (*User, error) {
	return s.getUser("username = $1", username)
}

func (s *PostgresStore) GetUserByEmail(email string) (*User, error) {
	return s.getUser("email = $1", email)
}

func (s *PostgresStore) GetUserByID(id int) (*User, error) {
	return s.getUser("id = $1", id)
}

func (s *PostgresStore) UpdateUserPassword(userID int, passwordHash string) error {
	result, err := s.conn.Exec(
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, userID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// Connection operations

func (s *PostgresStore) CreateConnection(conn *Connection) error {
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = time.Now()
	doc, err := json.Marshal(conn)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(
		`INSERT INTO connections (id, user_id, doc) VALUES ($1, $2, $3)`,
		conn.ID, conn.UserID, doc,
	)
	return err
}

func (s *PostgresStore) GetConnection(id string) (*Connection, error) {
	var doc []byte
	err := s.conn.QueryRow(`SELECT doc FROM connections WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("connection not found")
	}
	if err != nil {
		return nil, err
	}
	conn := &Connection{}
	if err := json.Unmarshal(doc, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *PostgresStore) GetUserConnections(userID int) ([]*Connection, error) {
	rows, err := s.conn.Query(`SELECT doc FROM connections WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []*Connection
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		conn := &Connection{}
		if err := json.Unmarshal(doc, conn); err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

func (s *PostgresStore) UpdateConnection(conn *Connection) error {
	conn.UpdatedAt = time.Now()
	doc, err := json.Marshal(conn)
	if err != nil {
		return err
	}
	result, err := s.conn.Exec(`UPDATE connections SET doc = $1 WHERE id = $2`, doc, conn.ID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("connection not found")
	}
	return nil
}

func (s *PostgresStore) DeleteConnection(id string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM work_items WHERE connection_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM connections WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Work item operations

func (s *PostgresStore) GetWorkItems(connectionID string) ([]WorkItem, error) {
	rows, err := s.conn.Query(`SELECT doc FROM work_items WHERE connection_id = $1`, connectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []WorkItem
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var item WorkItem
		if err := json.Unmarshal(doc, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) ReplaceWorkItems(connectionID string, items []WorkItem) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM work_items WHERE connection_id = $1`, connectionID); err != nil {
		return err
	}
	for i := range items {
		doc, err := json.Marshal(&items[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO work_items (id, connection_id, jira_key, doc) VALUES ($1, $2, $3, $4)`,
			items[i].ID, connectionID, items[i].JiraKey, doc,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) GetWorkItem(connectionID, itemID string) (*WorkItem, error) {
	var doc []byte
	err := s.conn.QueryRow(
		`SELECT doc FROM work_items WHERE connection_id = $1 AND id = $2`,
		connectionID, itemID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("work item not found")
	}
	if err != nil {
		return nil, err
	}
	item := &WorkItem{}
	if err := json.Unmarshal(doc, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *PostgresStore) SaveWorkItem(connectionID string, item *WorkItem) error {
	doc, err := json.Marshal(item)
	if err != nil {
		return err
	}
	result, err := s.conn.Exec(
		`UPDATE work_items SET jira_key = $1, doc = $2 WHERE connection_id = $3 AND id = $4`,
		item.JiraKey, doc, connectionID, item.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("work item not found")
	}
	return nil
}

// Planning entities and reference data share one document table keyed by kind.

func getPlanEntities[T any](s *PostgresStore, userID int, kind string) ([]T, error) {
	rows, err := s.conn.Query(
		`SELECT doc FROM plan_entities WHERE user_id = $1 AND kind = $2`,
		userID, kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var entity T
		if err := json.Unmarshal(doc, &entity); err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

func replacePlanEntities[T any](s *PostgresStore, userID int, kind string, entities []T, id func(*T) string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM plan_entities WHERE user_id = $1 AND kind = $2`, userID, kind); err != nil {
		return err
	}
	for i := range entities {
		doc, err := json.Marshal(&entities[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO plan_entities (id, user_id, kind, doc) VALUES ($1, $2, $3, $4)`,
			id(&entities[i]), userID, kind, doc,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) GetProjects(userID int) ([]Project, error) {
	return getPlanEntities[Project](s, userID, "project")
}

func (s *PostgresStore) ReplaceProjects(userID int, projects []Project) error {
	return replacePlanEntities(s, userID, "project", projects, func(p *Project) string { return p.ID })
}

func (s *PostgresStore) GetPhases(userID int) ([]Phase, error) {
	return getPlanEntities[Phase](s, userID, "phase")
}

func (s *PostgresStore) ReplacePhases(userID int, phases []Phase) error {
	return replacePlanEntities(s, userID, "phase", phases, func(p *Phase) string { return p.ID })
}

func (s *PostgresStore) GetAssignments(userID int) ([]Assignment, error) {
	return getPlanEntities[Assignment](s, userID, "assignment")
}

func (s *PostgresStore) ReplaceAssignments(userID int, assignments []Assignment) error {
	return replacePlanEntities(s, userID, "assignment", assignments, func(a *Assignment) string { return a.ID })
}

func (s *PostgresStore) GetTeamMembers(userID int) ([]TeamMember, error) {
	return getPlanEntities[TeamMember](s, userID, "member")
}

func (s *PostgresStore) ReplaceTeamMembers(userID int, members []TeamMember) error {
	return replacePlanEntities(s, userID, "member", members, func(m *TeamMember) string { return m.ID })
}

func (s *PostgresStore) GetQuarters(userID int) ([]Quarter, error) {
	return getPlanEntities[Quarter](s, userID, "quarter")
}

func (s *PostgresStore) ReplaceQuarters(userID int, quarters []Quarter) error {
	return replacePlanEntities(s, userID, "quarter", quarters, func(q *Quarter) string { return q.ID })
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.conn.Close()
}
