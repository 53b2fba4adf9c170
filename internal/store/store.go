package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

// Daily counters reset on the IST day boundary, matching the backend's
// reporting timezone.
var istZone = time.FixedZone("IST", 5*3600+1800)

// State keys
const (
	keyProcessing    = "isProcessing"
	keySelectedCat   = "selectedCategory"
	keyDailyProgress = "dailyProgress"
	keyLastResetDate = "lastResetDate"
	keyPromoTexts    = "promoTexts"
)

// Store is the local persistent key/value store: processing flag, category
// selection, daily counters and the category→database binding table.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the agent state database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS agent_state (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notion_databases (
		category_id   INTEGER PRIMARY KEY,
		database_id   TEXT NOT NULL,
		database_name TEXT NOT NULL,
		created_at    DATETIME NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state tables: %v", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM agent_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state %q: %v", key, err)
	}
	return value, true, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO agent_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to write state %q: %v", key, err)
	}
	return nil
}

// IsProcessing reports whether a workflow session is marked in flight.
func (s *Store) IsProcessing() (bool, error) {
	value, ok, err := s.get(keyProcessing)
	if err != nil || !ok {
		return false, err
	}
	return value == "true", nil
}

// SetProcessing flips the global processing flag.
func (s *Store) SetProcessing(processing bool) error {
	return s.set(keyProcessing, strconv.FormatBool(processing))
}

// SelectedCategory returns the operator's chosen category, defaulting to 1.
func (s *Store) SelectedCategory() (int, error) {
	value, ok, err := s.get(keySelectedCat)
	if err != nil || !ok {
		return 1, err
	}
	id, convErr := strconv.Atoi(value)
	if convErr != nil {
		return 1, nil
	}
	return id, nil
}

// SetSelectedCategory stores the operator's category choice.
func (s *Store) SetSelectedCategory(categoryID int) error {
	return s.set(keySelectedCat, strconv.Itoa(categoryID))
}

// todayIST returns the current IST calendar date as YYYY-MM-DD.
func todayIST() string {
	return time.Now().In(istZone).Format("2006-01-02")
}

// DailyProgress returns today's processed-video count, resetting the counter
// when the stored date key is stale.
func (s *Store) DailyProgress() (int, error) {
	date, _, err := s.get(keyLastResetDate)
	if err != nil {
		return 0, err
	}
	if date != todayIST() {
		if err := s.resetDailyProgress(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	value, ok, err := s.get(keyDailyProgress)
	if err != nil || !ok {
		return 0, err
	}
	count, convErr := strconv.Atoi(value)
	if convErr != nil {
		return 0, nil
	}
	return count, nil
}

// IncrementDailyProgress bumps today's counter and returns the new value.
func (s *Store) IncrementDailyProgress() (int, error) {
	current, err := s.DailyProgress()
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := s.set(keyDailyProgress, strconv.Itoa(next)); err != nil {
		return 0, err
	}
	if err := s.set(keyLastResetDate, todayIST()); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) resetDailyProgress() error {
	if err := s.set(keyDailyProgress, "0"); err != nil {
		return err
	}
	return s.set(keyLastResetDate, todayIST())
}

// PromoTexts returns the configured promo pool, or nil when none is stored.
func (s *Store) PromoTexts() ([]string, error) {
	value, ok, err := s.get(keyPromoTexts)
	if err != nil || !ok {
		return nil, err
	}
	var texts []string
	if json.Unmarshal([]byte(value), &texts) != nil {
		return nil, nil
	}
	return texts, nil
}

// SetPromoTexts replaces the promo pool.
func (s *Store) SetPromoTexts(texts []string) error {
	data, err := json.Marshal(texts)
	if err != nil {
		return fmt.Errorf("failed to encode promo texts: %v", err)
	}
	return s.set(keyPromoTexts, string(data))
}

// Binding returns the Notion database binding for a category, or nil when
// the category has no database yet.
func (s *Store) Binding(categoryID int) (*types.DatabaseBinding, error) {
	b := types.DatabaseBinding{CategoryID: categoryID}
	err := s.db.QueryRow(`
		SELECT database_id, database_name, created_at
		FROM notion_databases WHERE category_id = ?`, categoryID).
		Scan(&b.DatabaseID, &b.DatabaseName, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read database binding: %v", err)
	}
	return &b, nil
}

// SetBinding stores (or replaces) the binding for a category. There is at
// most one database per category.
func (s *Store) SetBinding(b types.DatabaseBinding) error {
	_, err := s.db.Exec(`
		INSERT INTO notion_databases (category_id, database_id, database_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category_id) DO UPDATE SET
			database_id = excluded.database_id,
			database_name = excluded.database_name`,
		b.CategoryID, b.DatabaseID, b.DatabaseName, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store database binding: %v", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
