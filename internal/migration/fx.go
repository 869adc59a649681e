package migration

import (
	authdomain "github.com/telecoop/backoffice/internal/auth/domain"
	clientdomain "github.com/telecoop/backoffice/internal/client/domain"
	"github.com/telecoop/backoffice/internal/config"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
	napboxdomain "github.com/telecoop/backoffice/internal/napbox/domain"
	paymentdomain "github.com/telecoop/backoffice/internal/payment/domain"
	plandomain "github.com/telecoop/backoffice/internal/plan/domain"
	"github.com/telecoop/backoffice/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "sqlite" {
			// Embedded SQL targets postgres; sqlite dev databases build
			// their schema from the models.
			if err := conn.AutoMigrate(
				&authdomain.User{},
				&authdomain.EmailOTP{},
				&authdomain.Session{},
				&plandomain.Plan{},
				&napboxdomain.Napbox{},
				&napboxdomain.NapboxPort{},
				&clientdomain.Client{},
				&invoicedomain.Invoice{},
				&paymentdomain.Payment{},
			); err != nil {
				return err
			}
		} else {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		if cfg.Bootstrap.EnsureAdminUser {
			if err := seed.EnsureAdminUser(conn, cfg); err != nil {
				return err
			}
		}
		if cfg.Bootstrap.EnsureDefaultPlans {
			if err := seed.EnsureDefaultPlans(conn); err != nil {
				return err
			}
		}
		return nil
	}),
)
