package store

import (
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/egaotan/solana-lending/config"
)

var (
	ErrOperationNotFound = errors.New("operation not found")
)

type Dao struct {
	db *gorm.DB
}

func open(db *config.DB) (gorm.Dialector, error) {
	switch db.Driver {
	case config.DriverMysql:
		return mysql.Open(db.User + ":" + db.Passwd + "@tcp(" + db.Url + ")/" +
			db.Scheme + "?charset=utf8&parseTime=True"), nil
	case config.DriverSqlite, "":
		return sqlite.Open(db.Url), nil
	default:
		return nil, errors.Errorf("unsupported db driver: %s", db.Driver)
	}
}

func NewDao(db *config.DB, level logger.LogLevel) (*Dao, error) {
	dialector, err := open(db)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s db", db.Driver)
	}
	if db.Driver != config.DriverMysql {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, errors.Wrap(err, "sqlite handle")
		}
		// an in-memory sqlite database only lives on its own connection
		sqlDB.SetMaxOpenConns(1)
	}
	if err := gdb.AutoMigrate(&Operation{}, &OperationTransaction{}); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	return &Dao{db: gdb}, nil
}

func (dao *Dao) SaveOperation(op *Operation) error {
	return dao.db.Create(op).Error
}

func (dao *Dao) SelectOperation(id string) (*Operation, error) {
	operations := make([]*Operation, 0, 1)
	res := dao.db.Where("id = ?", id).Preload("Transactions", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq")
	}).Find(&operations)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(operations) == 0 {
		return nil, errors.Wrapf(ErrOperationNotFound, "id: %s", id)
	}
	return operations[0], nil
}

func (dao *Dao) SelectOperationsByWallet(wallet string, limit int) ([]*Operation, error) {
	operations := make([]*Operation, 0)
	res := dao.db.Where("wallet = ?", wallet).Order("created_at desc").Limit(limit).
		Preload("Transactions").Find(&operations)
	return operations, res.Error
}
