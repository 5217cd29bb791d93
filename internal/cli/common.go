package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/ppiankov/intentguard/internal/planner"
	"github.com/ppiankov/intentguard/internal/service"
	"github.com/ppiankov/intentguard/internal/store"
)

// bindFlag binds a flag to a settings key so that an explicitly set flag
// beats env and config file values.
func bindFlag(key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", f.Name, err))
	}
}

// openService builds the shared service from settings. withStore opens
// the SQLite store so traces persist and checkout works; the caller owns
// the returned cleanup.
func openService(withStore bool) (*service.Service, func(), error) {
	var st *store.Store
	if withStore {
		var err error
		st, err = store.Open(settings.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open store: %w", err)
		}
	}

	svc, err := service.New(service.Config{
		PolicyPath:   settings.PolicyPath,
		SchemaPath:   settings.SchemaPath,
		AuditLogPath: settings.AuditLogPath,
		ApprovalDir:  settings.ApprovalsDir,
		Store:        st,
		PublicURL:    settings.PublicURL,
	})
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("close service")
		}
		if st != nil {
			if err := st.Close(); err != nil {
				log.Warn().Err(err).Msg("close store")
			}
		}
	}
	return svc, cleanup, nil
}

// newPlanner returns a planner backed by Gemini when an API key is
// configured, otherwise one that serves fallback questions only.
func newPlanner(ctx context.Context) *planner.Planner {
	gen, err := planner.NewGemini(ctx, settings.GeminiAPIKey, settings.GeminiModel)
	if err != nil {
		if errors.Is(err, planner.ErrNoAPIKey) {
			log.Warn().Msg("no Gemini API key configured, plan generation disabled")
		} else {
			log.Warn().Err(err).Msg("Gemini client unavailable, plan generation disabled")
		}
		return planner.New(nil, planner.Config{})
	}
	return planner.New(gen, planner.Config{})
}
