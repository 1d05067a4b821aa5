package dao

import (
	"go.uber.org/zap"
)

// Storage backend names accepted in the STORAGE setting. Anything else means memory.
const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMySQL    = "mysql"
	StorageSQLite   = "sqlite"
	StorageMongo    = "mongo"
	StorageMemory   = "memory"
)

// Connections holds the connection settings for every backend; only the selected one is used.
type Connections struct {
	RedisUrl      string
	PostgresUrl   string
	MySQLDsn      string
	SQLitePath    string
	MongoUri      string
	MemoryMaxKeys int
}

// StorageName normalizes a STORAGE value, falling back to memory for unknown names.
func StorageName(storage string) string {
	switch storage {
	case StorageRedis, StoragePostgres, StorageMySQL, StorageSQLite, StorageMongo:
		return storage
	default:
		return StorageMemory
	}
}

// CreateDao connects the selected backend once; the returned dao is shared by all requests.
func CreateDao(storage string, conns Connections, logger *zap.Logger) (RecordDao, error) {
	name := StorageName(storage)
	logger = logger.With(zap.String("storage", name))

	var (
		d   RecordDao
		err error
	)
	switch name {
	case StorageRedis:
		d, err = CreateRedisDB(conns.RedisUrl, logger)
	case StoragePostgres:
		d, err = CreatePostgresDB(conns.PostgresUrl, logger)
	case StorageMySQL:
		d, err = CreateMySQLDB(conns.MySQLDsn, logger)
	case StorageSQLite:
		d, err = CreateSQLiteDB(conns.SQLitePath, logger)
	case StorageMongo:
		d, err = CreateMongoDB(conns.MongoUri, logger)
	default:
		d = CreateMemoryDB(conns.MemoryMaxKeys)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("storage ready")
	return d, nil
}
