package app

import (
	"go.uber.org/fx"

	"github.com/gcs-commerce/orderhub/internal/cache"
	"github.com/gcs-commerce/orderhub/internal/client"
	"github.com/gcs-commerce/orderhub/internal/config"
	"github.com/gcs-commerce/orderhub/internal/database"
	"github.com/gcs-commerce/orderhub/internal/logger"
	"github.com/gcs-commerce/orderhub/internal/messaging"
	"github.com/gcs-commerce/orderhub/internal/observability"
	repositoryorder "github.com/gcs-commerce/orderhub/internal/repository/order"
	httpserver "github.com/gcs-commerce/orderhub/internal/server/http"
	serviceorder "github.com/gcs-commerce/orderhub/internal/service/order"
	transporthttp "github.com/gcs-commerce/orderhub/internal/transport/http"
	"github.com/gcs-commerce/orderhub/internal/worker"
	workerorder "github.com/gcs-commerce/orderhub/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	client.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
