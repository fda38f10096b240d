package config

// Store drivers.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.TimeoutSeconds == 0 {
		cfg.Server.TimeoutSeconds = 60
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = int(cfg.Server.RateLimit) + 1
	}
	// A configured cache endpoint implies Redis unless a driver is named.
	if cfg.Store.Driver == "" {
		if cfg.Store.CacheEndpoint != "" {
			cfg.Store.Driver = DriverRedis
		} else {
			cfg.Store.Driver = DriverSQLite
		}
	}
	if cfg.Store.DatabasePath == "" {
		cfg.Store.DatabasePath = "/usr/local/var/shelf/data/db/buckets.db"
	}
	if cfg.Seed.Extensions == nil {
		cfg.Seed.Extensions = []string{".json"}
	}
	if len(cfg.Seed.WatchDirectories) > 0 && cfg.Seed.Recursive == nil {
		t := true
		cfg.Seed.Recursive = &t
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.Fuzziness == 0 {
		cfg.Search.Fuzziness = 2
	}
}
