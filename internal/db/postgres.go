package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/types"
	"github.com/jcopacetic/lumi/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "lumi", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := gormDB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gormDB, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Partner{},
		&types.LoanType{},
		&types.MarketingLoanApplication{},
		&types.RenovationLoanApplication{},
		&types.DepositLoanApplication{},
		&types.ApplicationDocument{},
		&types.Notification{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		name string
		ddl  string
	}{
		{
			name: "fk_user_token_user_id",
			ddl: `ALTER TABLE "user_token"
				ADD CONSTRAINT "fk_user_token_user_id"
				FOREIGN KEY ("user_id") REFERENCES "user"("id")
				ON DELETE CASCADE`,
		},
		{
			name: "fk_user_partner_id",
			ddl: `ALTER TABLE "user"
				ADD CONSTRAINT "fk_user_partner_id"
				FOREIGN KEY ("partner_id") REFERENCES "partner"("id")
				ON DELETE SET NULL`,
		},
		{
			name: "fk_marketing_loan_application_partner_id",
			ddl: `ALTER TABLE "marketing_loan_application"
				ADD CONSTRAINT "fk_marketing_loan_application_partner_id"
				FOREIGN KEY ("partner_id") REFERENCES "partner"("id")
				ON DELETE CASCADE`,
		},
		{
			name: "fk_renovation_loan_application_partner_id",
			ddl: `ALTER TABLE "renovation_loan_application"
				ADD CONSTRAINT "fk_renovation_loan_application_partner_id"
				FOREIGN KEY ("partner_id") REFERENCES "partner"("id")
				ON DELETE CASCADE`,
		},
		{
			name: "fk_deposit_loan_application_partner_id",
			ddl: `ALTER TABLE "deposit_loan_application"
				ADD CONSTRAINT "fk_deposit_loan_application_partner_id"
				FOREIGN KEY ("partner_id") REFERENCES "partner"("id")
				ON DELETE CASCADE`,
		},
		{
			name: "fk_notification_user_id",
			ddl: `ALTER TABLE "notification"
				ADD CONSTRAINT "fk_notification_user_id"
				FOREIGN KEY ("user_id") REFERENCES "user"("id")
				ON DELETE CASCADE`,
		},
	}
	for _, c := range constraints {
		var exists bool
		if err := s.db.Raw(
			`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)`, c.name,
		).Scan(&exists).Error; err != nil {
			return fmt.Errorf("failed to check constraint %s: %w", c.name, err)
		}
		if exists {
			continue
		}
		if err := s.db.Exec(c.ddl).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", c.name, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
