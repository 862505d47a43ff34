package tpx3

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	_ "modernc.org/sqlite"
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

// OpenDatabase connects with an explicit driver ("mysql" or "sqlite").
func OpenDatabase(driver string, dsn string) (*sqlx.DB, error) {
	return sqlx.Connect(driver, dsn)
}

// ConnectFromConfiguration opens the calibration database described by config.
func ConnectFromConfiguration(config Configuration) (*sqlx.DB, error) {
	if config.DBDriver == "sqlite" {
		return OpenDatabase("sqlite", config.DBPath)
	}
	return ConnectToDatabase(config.User, config.Passwd, config.Host, config.DBName)
}

type DeadPixelEntry struct {
	X int `db:"PixelX"`
	Y int `db:"PixelY"`
}

// LoadKnownDeadPixels reads the pixels flagged for a detector in the
// calibration database.
func LoadKnownDeadPixels(db *sqlx.DB, detectorID string, res Resolution) ([]PixelKey, error) {
	query := db.Rebind("SELECT PixelX, PixelY FROM DeadPixels WHERE DetectorID = ? ORDER BY PixelY, PixelX")

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading known dead pixels of detector %s from database", detectorID)
		logger.Info(message, "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}

	rows, err := db.Queryx(query, detectorID)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}
	defer rows.Close()

	keys := make([]PixelKey, 0)
	for rows.Next() {
		result := DeadPixelEntry{}
		err := rows.StructScan(&result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		if !res.Contains(result.X, result.Y) {
			return nil, &ConfigError{Field: "DeadPixels", Reason: fmt.Sprintf("pixel (%d,%d) outside %dx%d detector", result.X, result.Y, res.Width, res.Height)}
		}
		keys = append(keys, res.Key(uint16(result.X), uint16(result.Y)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading DB rows: %w", err)
	}
	return keys, nil
}
