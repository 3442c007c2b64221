package main

import (
	"errors"
	"fmt"
	"strings"

	redisstore "github.com/target/stockgate/internal/adapters/redis"
	"github.com/target/stockgate/internal/bootstrap"
)

// profileFn runs against the runtime of one profile.
type profileFn func(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error

// withProfile connects the shared infrastructure, builds the profile's runtime
// without starting its background loops, and releases everything afterwards.
func withProfile(cmdCtx *commandContext, profile string, fn profileFn) error {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return errors.New("--profile must not be empty")
	}
	cfg := &cmdCtx.Config

	infra, err := bootstrap.InitInfrastructure(cmdCtx.Ctx, cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infrastructure failed", "error", cerr)
		}
	}()

	identity, err := bootstrap.NewIdentityClient(cfg, nil, nil, cmdCtx.Logger)
	if err != nil {
		return err
	}

	rt, err := bootstrap.NewClientRuntime(bootstrap.ClientRuntimeOptions{
		ClientID:  profile,
		KV:        redisstore.NewKVStore(infra.Redis, profile),
		Config:    cfg,
		Logger:    cmdCtx.Logger,
		Identity:  identity,
		Documents: infra.Documents(),
		Sealer:    bootstrap.NewCredentialSealer(cfg.Remote.CredentialKey, nil),
	})
	if err != nil {
		return fmt.Errorf("build profile runtime: %w", err)
	}
	defer func() {
		rt.Stop()
		rt.Wait()
	}()

	return fn(cmdCtx, rt)
}
