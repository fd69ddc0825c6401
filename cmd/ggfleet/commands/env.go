package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/user"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/ggfleet/pkg/awsplane"
	"github.com/openfroyo/ggfleet/pkg/config"
	"github.com/openfroyo/ggfleet/pkg/fleet"
	"github.com/openfroyo/ggfleet/pkg/stores"
	"github.com/openfroyo/ggfleet/pkg/telemetry"
)

// remotePlane is what the commands need from the control plane.
type remotePlane interface {
	fleet.ControlPlane
	fleet.ShadowReader
}

// openPlane connects to the control plane. Tests replace it.
var openPlane = func(ctx context.Context, cfg *config.Config) (remotePlane, error) {
	plane, err := awsplane.New(ctx, awsplane.Options{
		Region:      cfg.AWS.Region,
		Profile:     cfg.AWS.Profile,
		MaxAttempts: cfg.AWS.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return plane, nil
}

// env is everything a command needs, built from the configuration.
type env struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	plane   fleet.ControlPlane
	shadows fleet.ShadowReader
	journal stores.Journal
	out     io.Writer
}

// setup loads the configuration, applies the global flags and connects to
// the control plane. The caller must call close.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if region != "" {
		cfg.AWS.Region = region
	}
	if profile != "" {
		cfg.AWS.Profile = profile
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	ctx := cmd.Context()
	remote, err := openPlane(ctx, cfg)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	e := &env{
		cfg:     cfg,
		tel:     tel,
		plane:   fleet.Instrument(remote, tel),
		shadows: fleet.InstrumentShadows(remote, tel),
		out:     cmd.OutOrStdout(),
	}

	if cfg.Journal.Path != "" {
		journal, err := stores.Open(ctx, cfg.Journal.Path)
		if err != nil {
			// History is best effort; the fleet operation still runs.
			tel.Logger.WithError(err).Warnf("Journal %s unavailable", cfg.Journal.Path)
		} else {
			e.journal = journal
		}
	}

	return e, nil
}

// close flushes telemetry and closes the journal.
func (e *env) close(ctx context.Context) {
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close journal")
		}
	}
	if err := e.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}

// printJSON writes v as indented JSON.
func (e *env) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// actor names the local user for policy input and the audit trail.
func actor() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
