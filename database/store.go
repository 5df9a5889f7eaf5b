package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrAccessDenied is returned when a user touches a connection they do not
// own. Every service enforcing ownership returns this same sentinel.
var ErrAccessDenied = errors.New("access denied")

// Store is the persistence boundary the sync pipeline reads and writes
// through. The diff engine only reads; the merge engine and projector are
// the only writers, via the replace-all methods.
type Store interface {
	CreateUser(username, email, passwordHash string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	GetUserByID(id int) (*User, error)
	UpdateUserPassword(userID int, passwordHash string) error

	CreateConnection(conn *Connection) error
	GetConnection(id string) (*Connection, error)
	GetUserConnections(userID int) ([]*Connection, error)
	UpdateConnection(conn *Connection) error
	DeleteConnection(id string) error

	GetWorkItems(connectionID string) ([]WorkItem, error)
	ReplaceWorkItems(connectionID string, items []WorkItem) error
	GetWorkItem(connectionID, itemID string) (*WorkItem, error)
	SaveWorkItem(connectionID string, item *WorkItem) error

	GetProjects(userID int) ([]Project, error)
	ReplaceProjects(userID int, projects []Project) error
	GetPhases(userID int) ([]Phase, error)
	ReplacePhases(userID int, phases []Phase) error
	GetAssignments(userID int) ([]Assignment, error)
	ReplaceAssignments(userID int, assignments []Assignment) error

	GetTeamMembers(userID int) ([]TeamMember, error)
	ReplaceTeamMembers(userID int, members []TeamMember) error
	GetQuarters(userID int) ([]Quarter, error)
	ReplaceQuarters(userID int, quarters []Quarter) error

	Close() error
}

// DB is the file-backed store: a mutex-guarded in-memory document persisted
// to a single JSON file. It is the default when DATABASE_URL is not set.
type DB struct {
	dataDir string
	mutex   sync.RWMutex

	users       map[int]*User
	connections map[string]*Connection
	items       map[string][]WorkItem // keyed by connection id
	projects    map[int][]Project     // keyed by user id
	phases      map[int][]Phase
	assignments map[int][]Assignment
	members     map[int][]TeamMember
	quarters    map[int][]Quarter

	nextUserID int
}

// InitDB initializes the file-backed store under dbPath.
func InitDB(dbPath string) (*DB, error) {
	dataDir := dbPath + "_data"
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	db := &DB{
		dataDir:     dataDir,
		users:       make(map[int]*User),
		connections: make(map[string]*Connection),
		items:       make(map[string][]WorkItem),
		projects:    make(map[int][]Project),
		phases:      make(map[int][]Phase),
		assignments: make(map[int][]Assignment),
		members:     make(map[int][]TeamMember),
		quarters:    make(map[int][]Quarter),
		nextUserID:  1,
	}

	if err := db.loadData(); err != nil {
		return nil, err
	}

	log.Println("File-backed store initialized")
	return db, nil
}

// User operations

func (db *DB) CreateUser(username, email, passwordHash string) (*User, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for _, user := range db.users {
		if user.Username == username || user.Email == email {
			return nil, fmt.Errorf("user already exists")
		}
	}

	user := &User{
		ID:           db.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	db.users[user.ID] = user
	db.nextUserID++

	if err := db.saveData(); err != nil {
		return nil, err
	}
	return user, nil
}

func (db *DB) GetUserByUsername(username string) (*User, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	for _, user := range db.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (db *DB) GetUserByEmail(email string) (*User, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	for _, user := range db.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (db *DB) GetUserByID(id int) (*User, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if user, exists := db.users[id]; exists {
		return user, nil
	}
	return nil, fmt.Errorf("user not found")
}

func (db *DB) UpdateUserPassword(userID int, passwordHash string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if user, exists := db.users[userID]; exists {
		user.PasswordHash = passwordHash
		user.UpdatedAt = time.Now()
		return db.saveData()
	}
	return fmt.Errorf("user not found")
}

// Connection operations

func (db *DB) CreateConnection(conn *Connection) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, exists := db.connections[conn.ID]; exists {
		return fmt.Errorf("connection already exists")
	}
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = time.Now()
	db.connections[conn.ID] = conn
	return db.saveData()
}

func (db *DB) GetConnection(id string) (*Connection, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if conn, exists := db.connections[id]; exists {
		return conn, nil
	}
	return nil, fmt.Errorf("connection not found")
}

func (db *DB) GetUserConnections(userID int) ([]*Connection, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	var conns []*Connection
	for _, conn := range db.connections {
		if conn.UserID == userID {
			conns = append(conns, conn)
		}
	}
	return conns, nil
}

func (db *DB) UpdateConnection(conn *Connection) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, exists := db.connections[conn.ID]; !exists {
		return fmt.Errorf("connection not found")
	}
	conn.UpdatedAt = time.Now()
	db.connections[conn.ID] = conn
	return db.saveData()
}

func (db *DB) DeleteConnection(id string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	delete(db.connections, id)
	delete(db.items, id)
	return db.saveData()
}

// Work item operations

func (db *DB) GetWorkItems(connectionID string) ([]WorkItem, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	items := db.items[connectionID]
	out := make([]WorkItem, len(items))
	copy(out, items)
	return out, nil
}

func (db *DB) ReplaceWorkItems(connectionID string, items []WorkItem) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	stored := make([]WorkItem, len(items))
	copy(stored, items)
	db.items[connectionID] = stored
	return db.saveData()
}

func (db *DB) GetWorkItem(connectionID, itemID string) (*WorkItem, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	for i := range db.items[connectionID] {
		if db.items[connectionID][i].ID == itemID {
			item := db.items[connectionID][i]
			return &item, nil
		}
	}
	return nil, fmt.Errorf("work item not found")
}

func (db *DB) SaveWorkItem(connectionID string, item *WorkItem) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	items := db.items[connectionID]
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = *item
			return db.saveData()
		}
	}
	return fmt.Errorf("work item not found")
}

// Planning entity operations

func (db *DB) GetProjects(userID int) ([]Project, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	out := make([]Project, len(db.projects[userID]))
	copy(out, db.projects[userID])
	return out, nil
}

func (db *DB) ReplaceProjects(userID int, projects []Project) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	stored := make([]Project, len(projects))
	copy(stored, projects)
	db.projects[userID] = stored
	return db.saveData()
}

func (db *DB) GetPhases(userID int) ([]Phase, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	out := make([]Phase, len(db.phases[userID]))
	copy(out, db.phases[userID])
	return out, nil
}

func (db *DB) ReplacePhases(userID int, phases []Phase) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	stored := make([]Phase, len(phases))
	copy(stored, phases)
	db.phases[userID] = stored
	return db.saveData()
}

func (db *DB) GetAssignments(userID int) ([]Assignment, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	out := make([]Assignment, len(db.assignments[userID]))
	copy(out, db.assignments[userID])
	return out, nil
}

func (db *DB) ReplaceAssignments(userID int, assignments []Assignment) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	stored := make([]Assignment, len(assignments))
	copy(stored, assignments)
	db.assignments[userID] = stored
	return db.saveData()
}

// Reference data operations

func (db *DB) GetTeamMembers(userID int) ([]TeamMember, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	out := make([]TeamMember, len(db.members[userID]))
	copy(out, db.members[userID])
	return out, nil
}

func (db *DB) ReplaceTeamMembers(userID int, members []TeamMember) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	stored := make([]TeamMember, len(members))
	copy(stored, members)
	db.members[userID] = stored
	return db.saveData()
}

func (db *DB) GetQuarters(userID int) ([]Quarter, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	out := make([]Quarter, len(db.quarters[userID]))
	copy(out, db.quarters[userID])
	return out, nil
}

func (db *DB) ReplaceQuarters(userID int, quarters []Quarter) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	stored := make([]Quarter, len(quarters))
	copy(stored, quarters)
	db.quarters[userID] = stored
	return db.saveData()
}

// Data persistence

type fileDocument struct {
	Users       map[int]*User          `json:"users"`
	Connections map[string]*Connection `json:"connections"`
	Items       map[string][]WorkItem  `json:"items"`
	Projects    map[int][]Project      `json:"projects"`
	Phases      map[int][]Phase        `json:"phases"`
	Assignments map[int][]Assignment   `json:"assignments"`
	Members     map[int][]TeamMember   `json:"members"`
	Quarters    map[int][]Quarter      `json:"quarters"`
	NextUserID  int                    `json:"next_user_id"`
}

func (db *DB) saveData() error {
	data := fileDocument{
		Users:       db.users,
		Connections: db.connections,
		Items:       db.items,
		Projects:    db.projects,
		Phases:      db.phases,
		Assignments: db.assignments,
		Members:     db.members,
		Quarters:    db.quarters,
		NextUserID:  db.nextUserID,
	}

	file, err := os.Create(filepath.Join(db.dataDir, "data.json"))
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (db *DB) loadData() error {
	filePath := filepath.Join(db.dataDir, "data.json")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil // no data to load, start fresh
	}

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var data fileDocument
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return err
	}

	if data.Users != nil {
		db.users = data.Users
	}
	if data.Connections != nil {
		db.connections = data.Connections
	}
	if data.Items != nil {
		db.items = data.Items
	}
	if data.Projects != nil {
		db.projects = data.Projects
	}
	if data.Phases != nil {
		db.phases = data.Phases
	}
	if data.Assignments != nil {
		db.assignments = data.Assignments
	}
	if data.Members != nil {
		db.members = data.Members
	}
	if data.Quarters != nil {
		db.quarters = data.Quarters
	}
	if data.NextUserID > 0 {
		db.nextUserID = data.NextUserID
	}

	return nil
}

// Close flushes the document to disk.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.saveData()
}
