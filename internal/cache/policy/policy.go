// Package policy implements the cache replacement policies driven by the
// processor protocol: the classic online policies (FIFO, LRU, RAND, MCF,
// Size, GreedyDual, Landlord, ARC-bit, EVA) and the offline reuse-distance
// policies (MIN, MIN-d, MIN-cod, OBMA).
package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/datatier/cachesim/internal/cache"
)

// ErrUnknownPolicy is returned when a policy name is not registered.
var ErrUnknownPolicy = errors.New("unknown policy")

// Instance is a constructed policy: either an online Policy or a builder for
// an offline policy requiring the full trace.
type Instance struct {
	Online       cache.Policy
	BuildOffline cache.OfflinePolicyBuilder
}

// Offline reports whether the instance must run under an offline processor.
func (inst Instance) Offline() bool { return inst.BuildOffline != nil }

// Names returns the registered policy names in registry order.
func Names() []string {
	return []string{
		"fifo", "lru", "rand", "mcf", "size",
		"greedydual", "landlord", "arcbit", "eva",
		"min", "mind", "mincod", "obma",
	}
}

// New constructs the named policy. args is the key=value configuration
// string; policies without configuration require it to be empty. The logger
// receives policy debug output.
func New(name, args string, storage *cache.Storage, logger *slog.Logger) (Instance, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(name) {
	case "fifo":
		if err := noArgs(name, args); err != nil {
			return Instance{}, err
		}

		return Instance{Online: NewFIFO()}, nil
	case "lru":
		if err := noArgs(name, args); err != nil {
			return Instance{}, err
		}

		return Instance{Online: NewLRU()}, nil
	case "rand":
		cfg, err := ParseRandConfig(args)
		if err != nil {
			return Instance{}, err
		}

		return Instance{Online: NewRand(cfg)}, nil
	case "mcf":
		if err := noArgs(name, args); err != nil {
			return Instance{}, err
		}

		return Instance{Online: NewMCF()}, nil
	case "size":
		if err := noArgs(name, args); err != nil {
			return Instance{}, err
		}

		return Instance{Online: NewSize()}, nil
	case "greedydual":
		cfg, err := ParseGreedyDualConfig(args)
		if err != nil {
			return Instance{}, err
		}

		return Instance{Online: NewGreedyDual(cfg)}, nil
	case "landlord":
		cfg, err := ParseLandlordConfig(args)
		if err != nil {
			return Instance{}, err
		}

		return Instance{Online: NewLandlord(cfg)}, nil
	case "arcbit":
		cfg, err := ParseARCBitConfig(args)
		if err != nil {
			return Instance{}, err
		}

		return Instance{Online: NewARCBit(cfg, storage.TotalBytes())}, nil
	case "eva":
		cfg, err := ParseEVAConfig(args)
		if err != nil {
			return Instance{}, err
		}

		return Instance{Online: NewEVA(cfg, storage.TotalBytes(), logger)}, nil
	case "min":
		if err := noArgs(name, args); err != nil {
			return Instance{}, err
		}

		return Instance{BuildOffline: BuildMIN}, nil
	case "mind":
		cfg, err := ParseMINDConfig(args)
		if err != nil {
			return Instance{}, err
		}

		return Instance{BuildOffline: BuildMIND(cfg)}, nil
	case "mincod":
		cfg, err := ParseMINCodConfig(args)
		if err != nil {
			return Instance{}, err
		}

		return Instance{BuildOffline: BuildMINCod(cfg)}, nil
	case "obma":
		cfg, err := ParseOBMAConfig(args)
		if err != nil {
			return Instance{}, err
		}

		return Instance{BuildOffline: BuildOBMA(cfg)}, nil
	default:
		return Instance{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

func noArgs(name, args string) error {
	if strings.TrimSpace(args) != "" {
		return fmt.Errorf("policy %s takes no arguments, got %q", name, args)
	}

	return nil
}

// divergence reports an impossible policy state. The policy mirror of the
// storage contents has drifted, which is a bug in the driver or the policy.
func divergence(policy string, err error) {
	panic(fmt.Sprintf("%s policy state diverged from storage: %v", policy, err))
}
