package server

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinicrx/internal/config"
	"github.com/clinicrx/clinicrx/internal/domain/account"
	"github.com/clinicrx/clinicrx/internal/domain/appointment"
	"github.com/clinicrx/clinicrx/internal/domain/patient"
	"github.com/clinicrx/clinicrx/internal/domain/prescription"
	"github.com/clinicrx/clinicrx/internal/platform/db"
	"github.com/clinicrx/clinicrx/internal/platform/mongostore"
	"github.com/clinicrx/clinicrx/internal/platform/sequence"
	"github.com/clinicrx/clinicrx/migrations"
)

// MigrationSchema is the Postgres schema the tables live in.
const MigrationSchema = "public"

// Stores holds the repositories of one store driver.
type Stores struct {
	Driver        string
	Users         account.Repository
	Patients      patient.Repository
	Prescriptions prescription.Repository
	Suggestions   prescription.SuggestionRepository
	Appointments  appointment.Repository
	Counter       sequence.Counter
	Tx            prescription.TxRunner

	// Pinger and Stats back GET /health/db. Stats may be nil.
	Pinger db.Pinger
	Stats  func() interface{}

	close func()
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

func NewPostgresStores(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Driver:        config.DriverPostgres,
		Users:         account.NewUserRepoPG(pool),
		Patients:      patient.NewPatientRepoPG(pool),
		Prescriptions: prescription.NewPrescriptionRepoPG(pool),
		Suggestions:   prescription.NewSuggestionRepoPG(pool),
		Appointments:  appointment.NewAppointmentRepoPG(pool),
		Counter:       sequence.NewPGCounter(pool),
		Tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
		Pinger: pool,
		Stats:  func() interface{} { return db.GetPoolStats(pool) },
		close:  pool.Close,
	}
}

func NewMongoStores(store *mongostore.Store) *Stores {
	return &Stores{
		Driver:        config.DriverMongo,
		Users:         account.NewUserRepoMongo(store),
		Patients:      patient.NewPatientRepoMongo(store),
		Prescriptions: prescription.NewPrescriptionRepoMongo(store),
		Suggestions:   prescription.NewSuggestionRepoMongo(store),
		Appointments:  appointment.NewAppointmentRepoMongo(store),
		Counter:       sequence.NewMongoCounter(store.Collection(mongostore.Counters)),
		Tx:            prescription.NoTx,
		Pinger:        store,
		close:         func() { _ = store.Close(context.Background()) },
	}
}

type alwaysUp struct{}

func (alwaysUp) Ping(context.Context) error { return nil }

// NewMemoryStores keeps everything in process memory. Data is lost on exit.
func NewMemoryStores() *Stores {
	rx := prescription.NewMemoryRepository()
	return &Stores{
		Driver:        config.DriverMemory,
		Users:         account.NewMemoryRepository(),
		Patients:      patient.NewMemoryRepository(),
		Prescriptions: rx,
		Suggestions:   rx,
		Appointments:  appointment.NewMemoryRepository(),
		Counter:       sequence.NewMemoryCounter(),
		Tx:            prescription.NoTx,
		Pinger:        alwaysUp{},
	}
}

// MigrationsFS returns the migration files in dir when it is a directory,
// and the set embedded in the binary otherwise.
func MigrationsFS(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	return migrations.FS
}

// OpenStores connects to the store named by cfg.StoreDriver. Postgres is
// migrated first when AUTO_MIGRATE is set; Mongo indexes are always ensured.
func OpenStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			n, err := db.NewMigrator(pool, MigrationsFS(cfg.MigrationsDir)).Up(ctx, MigrationSchema)
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
			logger.Info().Int("applied", n).Msg("migrations applied")
		}
		logger.Info().Msg("connected to postgres")
		return NewPostgresStores(pool), nil

	case config.DriverMongo:
		store, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongo")
		return NewMongoStores(store), nil

	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return NewMemoryStores(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
