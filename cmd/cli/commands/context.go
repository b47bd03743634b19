package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/internal/config"
	"github.com/retailworks/field-scheduler/pkg/core/scheduler"
	"github.com/retailworks/field-scheduler/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Database *postgres.DB
	Scorer   scheduler.Scorer
	Logger   *zap.Logger
	Ctx      context.Context
}
