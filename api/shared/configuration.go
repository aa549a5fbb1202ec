package shared

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const CONFIG_PREFIX = "DIARY"

type AppConfig struct {
	PgUsername             string `split_words:"true" default:"postgres"`
	PgPassword             string `split_words:"true" default:"postgres"`
	PgContactPoint         string `split_words:"true" default:"127.0.0.1"`
	PgContactPort          string `split_words:"true" default:"5432"`
	PgDbName               string `split_words:"true" default:"diary"`
	PgSslMode              string `split_words:"true" default:"disable"`
	SqlMigrationsSourceDir string `split_words:"true" default:"./api/sql"`
	StartupMigration       bool   `split_words:"true" default:"false"`
	LogSqlQueries          bool   `split_words:"true" default:"false"`

	ListenAddress string `split_words:"true" default:"0.0.0.0:8080"`
	TxIsolation   string `split_words:"true" default:"serializable"`
	BcryptCost    int    `split_words:"true" default:"12"`

	GcpProjectID       string `split_words:"true" default:"diary"`
	GcpServiceAccount  string `split_words:"true"`
	NotificationsTopic string `split_words:"true"`
}

func InitAppConfiguration() (config *AppConfig, err error) {
	config = &AppConfig{}
	if err := envconfig.Process(CONFIG_PREFIX, config); err != nil {
		return nil, fmt.Errorf("failed to parse env vars: %v", err)
	}
	if _, err := config.IsolationLevel(); err != nil {
		return nil, err
	}

	return
}

func (c *AppConfig) PostgresConnectString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PgContactPoint,
		c.PgContactPort,
		c.PgUsername,
		c.PgPassword,
		c.PgDbName,
		c.PgSslMode)
}

func (c *AppConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%v:%v/%v?sslmode=%s&user=%s&password=%s",
		c.PgContactPoint, c.PgContactPort, c.PgDbName, c.PgSslMode, c.PgUsername, c.PgPassword)
}

// IsolationLevel maps DIARY_TX_ISOLATION onto a database/sql isolation level.
// Repeatable read is refused: its snapshot is taken before the child row
// locks are granted, so two cascades could each count a user the other one
// is removing.
func (c *AppConfig) IsolationLevel() (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.Replace(c.TxIsolation, "_", " ", -1)) {
	case "", "serializable":
		return sql.LevelSerializable, nil
	case "read committed":
		return sql.LevelReadCommitted, nil
	case "default":
		return sql.LevelDefault, nil
	}
	return sql.LevelDefault, fmt.Errorf("unsupported transaction isolation %q", c.TxIsolation)
}
