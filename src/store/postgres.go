package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/store/sql_migrations"
	"github.com/warp-contracts/blockwatch/src/utils/build_info"
	"github.com/warp-contracts/blockwatch/src/utils/config"
	l "github.com/warp-contracts/blockwatch/src/utils/logger"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Row of the blocks table
type Block struct {
	Height       int64 `gorm:"primaryKey"`
	Hash         string
	PreviousHash string
	Data         string `gorm:"type:jsonb"`
	UpdatedAt    time.Time
}

func (Block) TableName() string {
	return "blocks"
}

// Window kept in Postgres
type PostgresStore struct {
	log *logrus.Entry
	db  *gorm.DB
}

func NewPostgresStore(ctx context.Context, config *config.Database) (self *PostgresStore, err error) {
	self = new(PostgresStore)
	self.log = l.NewSublogger("store-postgres")

	err = Migrate(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	self.db, err = Connect(ctx, config, config.User, config.Password, "blockwatch")
	if err != nil {
		return nil, err
	}
	return
}

func (self *PostgresStore) Close() error {
	db, err := self.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (self *PostgresStore) LoadAll(ctx context.Context) (out []chain.SyncedBlock, err error) {
	var rows []Block
	err = self.db.WithContext(ctx).
		Order("height ASC").
		Find(&rows).
		Error
	if err != nil {
		return
	}

	out = make([]chain.SyncedBlock, 0, len(rows))
	for _, row := range rows {
		var block chain.SyncedBlock
		err = json.Unmarshal([]byte(row.Data), &block)
		if err != nil {
			return nil, fmt.Errorf("failed to decode block %d: %w", row.Height, err)
		}
		out = append(out, block)
	}
	return
}

func (self *PostgresStore) SaveMany(ctx context.Context, blocks []chain.SyncedBlock) (err error) {
	if len(blocks) == 0 {
		return nil
	}

	rows := make([]Block, 0, len(blocks))
	for _, block := range blocks {
		var buf []byte
		buf, err = json.Marshal(block)
		if err != nil {
			return
		}
		rows = append(rows, Block{
			Height:       block.Height(),
			Hash:         block.Hash(),
			PreviousHash: block.PreviousHash(),
			Data:         string(buf),
			UpdatedAt:    time.Now(),
		})
	}

	return self.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "height"}},
			UpdateAll: true,
		}).
		Create(&rows).
		Error
}

func (self *PostgresStore) TrimBelow(ctx context.Context, height int64) error {
	return self.db.WithContext(ctx).
		Where("height < ?", height).
		Delete(&Block{}).
		Error
}

func (self *PostgresStore) Clear(ctx context.Context) error {
	return self.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Block{}).
		Error
}

func Connect(ctx context.Context, dbConfig *config.Database, username, password, applicationName string) (self *gorm.DB, err error) {
	log := l.NewSublogger("db")

	logger := logger.New(log,
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s/warp.cc/%s",
		dbConfig.Host,
		dbConfig.Port,
		username,
		password,
		dbConfig.Name,
		dbConfig.SslMode,
		applicationName,
		build_info.Version,
	)

	self, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger})
	if err != nil {
		return
	}

	db, err := self.DB()
	if err != nil {
		return
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	err = ping(ctx, dbConfig, self)
	return
}

// Creates the schema using the migration user. Skipped if it isn't set.
func Migrate(ctx context.Context, dbConfig *config.Database) (err error) {
	log := l.NewSublogger("db-migrate")

	if dbConfig.MigrationUser == "" || dbConfig.MigrationPassword == "" {
		log.Info("Migration user not set, skipping migrations")
		return
	}

	migrations := &migrate.HttpFileSystemMigrationSource{
		FileSystem: http.FS(sql_migrations.FS),
	}

	self, err := Connect(ctx, dbConfig, dbConfig.MigrationUser, dbConfig.MigrationPassword, "migration")
	if err != nil {
		return
	}

	db, err := self.DB()
	if err != nil {
		return
	}
	defer db.Close()

	n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return
	}

	log.WithField("num", n).Info("Applied migrations")
	return
}

func ping(ctx context.Context, dbConfig *config.Database, db *gorm.DB) (err error) {
	if dbConfig.PingTimeout < 0 {
		// Ping disabled
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbConfig.PingTimeout)
	defer cancel()

	return sqlDB.PingContext(dbCtx)
}
