// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gormstore implements store.Repository and store.LicenseStore on a
// relational database through GORM.
//
// Supported drivers are postgres, mysql, and sqlite. Typed entities are
// persisted with their model structs, one table per object type; identity
// and cross-reference tables use local row types carrying indexes.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
	"github.com/AleutianAI/Curator/services/curator/store/memstore"
)

var (
	_ store.Repository   = (*Store)(nil)
	_ store.LicenseStore = (*Store)(nil)
)

// Config configures the database connection.
type Config struct {
	// Driver selects the dialect: "postgres", "mysql", or "sqlite".
	Driver string `yaml:"driver" validate:"required,oneof=postgres mysql sqlite"`

	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn" validate:"required"`

	// MaxOpenConns caps open connections. Zero means unlimited.
	MaxOpenConns int `yaml:"max_open_conns" validate:"gte=0"`

	// MaxIdleConns caps idle connections.
	MaxIdleConns int `yaml:"max_idle_conns" validate:"gte=0"`

	// ConnMaxLifetime bounds connection reuse. Zero means forever.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// LogLevel is the GORM log level: "silent", "error", "warn", or "info".
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=silent error warn info"`
}

// DefaultConfig returns an in-memory SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Driver:       "sqlite",
		DSN:          "file::memory:?cache=shared",
		MaxIdleConns: 2,
		LogLevel:     "silent",
	}
}

// Open connects to the database described by cfg.
//
// Outputs:
//
//	*gorm.DB - The connection pool. Caller owns it.
//	error - Non-nil if the driver is unknown or the connection fails.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

func parseLogLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// Store implements the store interfaces using GORM.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New wraps an open connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db, logger: slog.Default().With(slog.String("component", "gormstore"))}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&systemObjectRow{}, &xrefRow{}); err != nil {
		return fmt.Errorf("migrating identity tables: %w", err)
	}
	for _, t := range model.AllObjectTypes() {
		tbl := objectTables[t]
		if err := db.Table(tbl.name).AutoMigrate(tbl.row()); err != nil {
			return fmt.Errorf("migrating %s: %w", tbl.name, err)
		}
	}
	extra := []struct {
		name string
		row  any
	}{
		{tableCaptureDataFiles, &model.CaptureDataFile{}},
		{tableLicenses, &model.License{}},
		{tableLicenseAssignments, &model.LicenseAssignment{}},
	}
	for _, e := range extra {
		if err := db.Table(e.name).AutoMigrate(e.row); err != nil {
			return fmt.Errorf("migrating %s: %w", e.name, err)
		}
	}
	s.logger.Info("database migrated")
	return nil
}

// Import copies a memstore dump into the database in one transaction.
//
// Ids are preserved, so universal ids seen in a fixture are the ids served
// by the database afterwards.
func (s *Store) Import(ctx context.Context, d memstore.Dump) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, so := range d.SystemObjects {
			if err := tx.Table(objectTables[so.Type].name).Create(d.Objects[i]).Error; err != nil {
				return fmt.Errorf("inserting %s: %w", so.Key(), err)
			}
			row := toSystemObjectRow(so)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("inserting system object %d: %w", so.ID, err)
			}
		}
		for _, x := range d.Xrefs {
			row := xrefRow{ID: x.ID, MasterID: x.MasterID, DerivedID: x.DerivedID}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("inserting xref %d: %w", x.ID, err)
			}
		}
		for _, f := range d.CaptureFiles {
			if err := tx.Table(tableCaptureDataFiles).Create(f).Error; err != nil {
				return fmt.Errorf("inserting capture data file %d: %w", f.ID, err)
			}
		}
		for _, l := range d.Licenses {
			if err := tx.Table(tableLicenses).Create(l).Error; err != nil {
				return fmt.Errorf("inserting license %d: %w", l.ID, err)
			}
		}
		for _, a := range d.Assignments {
			if err := tx.Table(tableLicenseAssignments).Create(a).Error; err != nil {
				return fmt.Errorf("inserting license assignment %d: %w", a.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("fixture imported",
		slog.Int("objects", len(d.SystemObjects)),
		slog.Int("xrefs", len(d.Xrefs)),
		slog.Int("assignments", len(d.Assignments)),
	)
	return nil
}

// notFound maps gorm.ErrRecordNotFound to store.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
