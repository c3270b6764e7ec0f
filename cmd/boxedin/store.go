package main

import (
	"github.com/yaegerbomb42/boxedin/internal/appconfig"
	"github.com/yaegerbomb42/boxedin/internal/toolstore"
)

// newStore opens the on-disk tool catalog rooted at cfg.SandboxDir. Every
// subcommand that drives an agentloop.Loop needs its own *toolstore.Store
// instance (Store itself holds no in-memory cache, so multiple instances
// rooted at the same directory are always consistent with each other).
func newStore(cfg *appconfig.Config) (*toolstore.Store, error) {
	return toolstore.New(cfg.SandboxDir)
}
