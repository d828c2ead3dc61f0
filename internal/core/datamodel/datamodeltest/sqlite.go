// Package datamodeltest opens throwaway SQLite stores with the identity schema.
package datamodeltest

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/identity-service/internal/core/datamodel/company"
	"github.com/frahmantamala/identity-service/internal/core/datamodel/session"
	"github.com/frahmantamala/identity-service/internal/core/datamodel/user"
)

// OpenSQLite returns an in-memory database with companies, users and sessions
// migrated. The pool is capped at one connection so every query sees the same
// in-memory database.
func OpenSQLite() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&company.Company{}, &user.User{}, &session.Session{}); err != nil {
		return nil, err
	}
	return db, nil
}
