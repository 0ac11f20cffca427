// Package dispenser parses dispenser command flags and launches the
// dispenser runtime.
package dispenser

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/ieee-uottawa/vending-machine/internal/platform/cmd"
	server "github.com/ieee-uottawa/vending-machine/internal/services/dispenser/app"
)

// Config holds dispenser command configuration.
type Config struct {
	WebhookPort    int           `env:"VENDING_MACHINE_WEBHOOK_PORT" envDefault:"8000"`
	HealthPort     int           `env:"VENDING_MACHINE_HEALTH_PORT" envDefault:"8090"`
	SquareToken    string        `env:"VENDING_MACHINE_SQUARE_TOKEN"`
	SquareBaseURL  string        `env:"VENDING_MACHINE_SQUARE_BASE_URL"`
	SquareTimeout  time.Duration `env:"VENDING_MACHINE_SQUARE_TIMEOUT" envDefault:"30s"`
	DispenseDwell  time.Duration `env:"VENDING_MACHINE_DISPENSE_DWELL" envDefault:"3300ms"`
	SlotLayoutPath string        `env:"VENDING_MACHINE_SLOT_LAYOUT"`
	LedgerPath     string        `env:"VENDING_MACHINE_LEDGER_PATH"`
	QueueSize      int           `env:"VENDING_MACHINE_QUEUE_SIZE" envDefault:"64"`
	Workers        int           `env:"VENDING_MACHINE_WORKERS" envDefault:"4"`
	GPIODryRun     bool          `env:"VENDING_MACHINE_GPIO_DRY_RUN" envDefault:"false"`
}

// ParseConfig parses environment and flags into a Config. The Square access
// token is a secret and is read from the environment only, never from a flag.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.WebhookPort, "webhook-port", cfg.WebhookPort, "The Square webhook HTTP port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The health gRPC server port")
	fs.StringVar(&cfg.SquareBaseURL, "square-base-url", cfg.SquareBaseURL, "The Square API base URL")
	fs.DurationVar(&cfg.SquareTimeout, "square-timeout", cfg.SquareTimeout, "Per-request Square API timeout")
	fs.DurationVar(&cfg.DispenseDwell, "dwell", cfg.DispenseDwell, "Relay activation window per dispense")
	fs.StringVar(&cfg.SlotLayoutPath, "slot-layout", cfg.SlotLayoutPath, "YAML slot layout path (empty uses the built-in table)")
	fs.StringVar(&cfg.LedgerPath, "ledger-path", cfg.LedgerPath, "SQLite admission ledger path (empty keeps admissions in memory)")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Webhook event queue capacity")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Event worker count")
	fs.BoolVar(&cfg.GPIODryRun, "gpio-dry-run", cfg.GPIODryRun, "Simulate relay activity instead of driving GPIO")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the dispenser runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDispenser, func(runCtx context.Context) error {
		return server.Run(runCtx, server.Config{
			WebhookPort:    cfg.WebhookPort,
			HealthPort:     cfg.HealthPort,
			SquareToken:    cfg.SquareToken,
			SquareBaseURL:  cfg.SquareBaseURL,
			SquareTimeout:  cfg.SquareTimeout,
			DispenseDwell:  cfg.DispenseDwell,
			SlotLayoutPath: cfg.SlotLayoutPath,
			LedgerPath:     cfg.LedgerPath,
			QueueSize:      cfg.QueueSize,
			Workers:        cfg.Workers,
			GPIODryRun:     cfg.GPIODryRun,
		})
	})
}
