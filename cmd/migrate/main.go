package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"

	"jira-capacity-sync/database"
)

// Migrates data from the JSON file store into PostgreSQL. The file store
// keeps everything in one document, so this reads data.json directly and
// replays it through the Postgres store.

type fileDocument struct {
	Users       map[int]*database.User          `json:"users"`
	Connections map[string]*database.Connection `json:"connections"`
	Items       map[string][]database.WorkItem  `json:"items"`
	Projects    map[int][]database.Project      `json:"projects"`
	Phases      map[int][]database.Phase        `json:"phases"`
	Assignments map[int][]database.Assignment   `json:"assignments"`
	Members     map[int][]database.TeamMember   `json:"members"`
	Quarters    map[int][]database.Quarter      `json:"quarters"`
}

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	dataDir := "./capacity_sync.db_data"
	if len(os.Args) > 1 {
		dataDir = os.Args[1]
	}

	doc, err := loadDocument(dataDir)
	if err != nil {
		log.Fatal("Failed to read file store: ", err)
	}

	log.Println("Connecting to PostgreSQL...")
	pg, err := database.InitPostgres(dbURL)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL: ", err)
	}
	defer pg.Close()

	migrateUsers(pg, doc)
	migrateConnections(pg, doc)
	migratePlanEntities(pg, doc)

	log.Println("Migration completed")
}

func loadDocument(dataDir string) (*fileDocument, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, "data.json"))
	if err != nil {
		return nil, err
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// migrateUsers replays users in id order so the serial ids assigned by
// Postgres line up with the ids referenced by connections and plan data.
func migrateUsers(pg *database.PostgresStore, doc *fileDocument) {
	ids := make([]int, 0, len(doc.Users))
	for id := range doc.Users {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	count := 0
	for _, id := range ids {
		user := doc.Users[id]
		created, err := pg.CreateUser(user.Username, user.Email, user.PasswordHash)
		if err != nil {
			log.Printf("Failed to migrate user %s: %v", user.Email, err)
			continue
		}
		if created.ID != id {
			log.Printf("Warning: user %s migrated with id %d (was %d)", user.Email, created.ID, id)
		}
		count++
	}
	log.Printf("Migrated %d users", count)
}

func migrateConnections(pg *database.PostgresStore, doc *fileDocument) {
	count := 0
	for _, conn := range doc.Connections {
		if err := pg.CreateConnection(conn); err != nil {
			log.Printf("Failed to migrate connection %s: %v", conn.Name, err)
			continue
		}
		if items, ok := doc.Items[conn.ID]; ok {
			if err := pg.ReplaceWorkItems(conn.ID, items); err != nil {
				log.Printf("Failed to migrate items for connection %s: %v", conn.Name, err)
			}
		}
		count++
	}
	log.Printf("Migrated %d connections", count)
}

func migratePlanEntities(pg *database.PostgresStore, doc *fileDocument) {
	for userID, projects := range doc.Projects {
		if err := pg.ReplaceProjects(userID, projects); err != nil {
			log.Printf("Failed to migrate projects for user %d: %v", userID, err)
		}
	}
	for userID, phases := range doc.Phases {
		if err := pg.ReplacePhases(userID, phases); err != nil {
			log.Printf("Failed to migrate phases for user %d: %v", userID, err)
		}
	}
	for userID, assignments := range doc.Assignments {
		if err := pg.ReplaceAssignments(userID, assignments); err != nil {
			log.Printf("Failed to migrate assignments for user %d: %v", userID, err)
		}
	}
	for userID, members := range doc.Members {
		if err := pg.ReplaceTeamMembers(userID, members); err != nil {
			log.Printf("Failed to migrate team members for user %d: %v", userID, err)
		}
	}
	for userID, quarters := range doc.Quarters {
		if err := pg.ReplaceQuarters(userID, quarters); err != nil {
			log.Printf("Failed to migrate quarters for user %d: %v", userID, err)
		}
	}
	log.Println("Migrated plan entities")
}
