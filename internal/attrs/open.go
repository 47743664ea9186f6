package attrs

import (
	"fmt"

	"github.com/livetemplate/tinkersheet/internal/config"
)

// Open creates the store selected by cfg.
func Open(cfg config.StoreConfig, debug bool) (Store, error) {
	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.GetRetryMaxRetries()
	retry.BaseDelay = cfg.GetRetryBaseDelay()
	retry.MaxDelay = cfg.GetRetryMaxDelay()
	retry.EnableLog = debug

	var (
		s   Store
		err error
	)
	switch cfg.GetDriver() {
	case "memory":
		s = NewMemory()
	case "sqlite":
		s, err = asStore(OpenSQLite(cfg.GetDSN(), retry, debug))
	case "postgres":
		dsn := cfg.GetDSN()
		if dsn == "" {
			return nil, fmt.Errorf("postgres store: database connection required (set store.dsn or DATABASE_URL)")
		}
		s, err = asStore(OpenPostgres(dsn, retry, debug))
	case "dir":
		s, err = asStore(OpenDir(cfg.GetDir(), debug))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// asStore keeps a failed open from yielding a non-nil Store holding a nil pointer.
func asStore[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
