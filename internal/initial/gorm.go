package initial

import (
	"fmt"
	"log"
	"os"
	"time"

	"Inkwell/internal/config"
	contentEntity "Inkwell/internal/modules/content/domain/entity"
	notificationEntity "Inkwell/internal/modules/notification/domain/entity"
	userEntity "Inkwell/internal/modules/user/domain/entity"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGormDB 连接 mysql 并自动迁移
func NewGormDB(conf *config.Config) (*gorm.DB, error) {
	dbName := conf.MysqlConfig.DatabaseName
	if dbName == "" {
		dbName = conf.AppName
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.MysqlConfig.User, conf.MysqlConfig.Password, conf.MysqlConfig.Host, conf.MysqlConfig.Port, dbName)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	// 自动迁移，如果没有建表，会自动创建对应的表
	err = db.AutoMigrate(
		&userEntity.UserInfo{},
		&contentEntity.Article{},
		&contentEntity.Project{},
		&contentEntity.Comment{},
		&contentEntity.Like{},
		&notificationEntity.Notification{},
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}
