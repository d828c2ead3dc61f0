package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/identity-service/internal/auth"
	"github.com/frahmantamala/identity-service/internal/user"
	userPostgres "github.com/frahmantamala/identity-service/internal/user/postgres"
)

const (
	demoCompanyName  = "Demo Company"
	demoCompanyEmail = "hello@demo.local"
	demoOwnerName    = "Demo Owner"
	demoOwnerEmail   = "owner@demo.local"
	demoPassword     = "password"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a verified demo tenant for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if clearData {
			if err := clearTables(ctx, gormDB); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared sessions, users and companies")
		}

		hash, err := auth.NewPasswordHasher(cfg.Security.BCryptCost).Hash(demoPassword)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		if err := seedDemoTenant(ctx, gormDB, hash); err != nil {
			log.Fatalf("failed to seed demo tenant: %v", err)
		}
	},
}

func clearTables(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"sessions", "users", "companies"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func seedDemoTenant(ctx context.Context, db *gorm.DB, passwordHash string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		companies := userPostgres.NewCompanyRepository(tx)
		users := userPostgres.NewUserRepository(tx)

		exists, err := users.ExistsByEmail(ctx, demoOwnerEmail)
		if err != nil {
			return err
		}
		if exists {
			fmt.Println("demo owner already exists:", demoOwnerEmail)
			return nil
		}

		company := &user.Company{Name: demoCompanyName, Email: demoCompanyEmail}
		if err := companies.Create(ctx, company); err != nil {
			return fmt.Errorf("create company: %w", err)
		}

		owner := user.NewOwner(company.ID, demoOwnerName, demoOwnerEmail, passwordHash)
		owner.EmailVerified = true
		if err := users.Create(ctx, owner); err != nil {
			return fmt.Errorf("create owner: %w", err)
		}

		fmt.Printf("Seeded %s with owner %s (password %q)\n", demoCompanyName, demoOwnerEmail, demoPassword)
		return nil
	})
}
