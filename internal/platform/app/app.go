package app

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	adapterexport "smart-factory/internal/adapters/export"
	adaptermiddleware "smart-factory/internal/adapters/http/middleware"
	adaptermetrics "smart-factory/internal/adapters/metrics"
	"smart-factory/internal/application"
	"smart-factory/internal/config"
	"smart-factory/internal/infrastructure/auth"
	"smart-factory/internal/infrastructure/dynamodb"
	"smart-factory/internal/infrastructure/memory"
	httpiface "smart-factory/internal/interfaces/http"
	"smart-factory/internal/ports"
)

type Repositories struct {
	Roles      ports.RoleRepository
	Users      ports.UserRepository
	Devices    ports.DeviceRepository
	Alerts     ports.AlertRepository
	AlertRules ports.AlertRuleRepository
	AuditLogs  ports.AuditLogRepository
}

func MemoryRepositories() Repositories {
	s := memory.NewStore()
	return Repositories{
		Roles:      s.Roles(),
		Users:      s.Users(),
		Devices:    s.Devices(),
		Alerts:     s.Alerts(),
		AlertRules: s.AlertRules(),
		AuditLogs:  s.AuditLogs(),
	}
}

func DynamoDBRepositories(ctx context.Context, region, table string) (Repositories, error) {
	client, err := dynamodb.NewClient(ctx, region, table)
	if err != nil {
		return Repositories{}, fmt.Errorf("initialize dynamodb client: %w", err)
	}
	return Repositories{
		Roles:      dynamodb.NewRoleRepository(client),
		Users:      dynamodb.NewUserRepository(client),
		Devices:    dynamodb.NewDeviceRepository(client),
		Alerts:     dynamodb.NewAlertRepository(client),
		AlertRules: dynamodb.NewAlertRuleRepository(client),
		AuditLogs:  dynamodb.NewAuditLogRepository(client),
	}, nil
}

type App struct {
	Echo    *echo.Echo
	Authz   *application.AuthorizationService
	Rules   *application.AlertRuleService
	Metrics *adaptermetrics.Prometheus
}

// New picks the storage backend from cfg and builds the application.
func New(ctx context.Context, cfg config.Config, logger ports.Logger) (*App, error) {
	repos := MemoryRepositories()
	if cfg.Store == config.StoreDynamoDB {
		var err error
		if repos, err = DynamoDBRepositories(ctx, cfg.Region, cfg.TableName); err != nil {
			return nil, err
		}
	}
	return Build(ctx, cfg, repos, logger)
}

// Build seeds the built-in roles, the optional bootstrap admin and the
// authorization policy, then wires services, handlers and middleware.
func Build(ctx context.Context, cfg config.Config, repos Repositories, logger ports.Logger) (*App, error) {
	if err := application.SeedBuiltinRoles(ctx, repos.Roles); err != nil {
		return nil, fmt.Errorf("seed roles: %w", err)
	}
	if cfg.AdminEmail != "" {
		admin, err := application.SeedAdminUser(ctx, repos.Users, cfg.AdminEmail, cfg.AdminName)
		if err != nil {
			return nil, fmt.Errorf("seed admin user: %w", err)
		}
		logger.Info(ctx, "bootstrap admin ready", "user_id", admin.ID, "email", admin.Email)
	}

	metrics := adaptermetrics.NewPrometheus()
	authz := application.NewAuthorizationService(repos.Roles, repos.Users, logger)
	if err := authz.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	auditSvc := application.NewAuditService(repos.AuditLogs, authz, adapterexport.NewXLSXExporter(), metrics, logger)
	roleSvc := application.NewRoleService(repos.Roles, repos.Users, authz, auditSvc, logger)
	userSvc := application.NewUserService(repos.Users, repos.Roles, authz, auditSvc, logger)
	deviceSvc := application.NewDeviceService(repos.Devices, authz, auditSvc, logger)
	alertSvc := application.NewAlertService(repos.Alerts, repos.Devices, authz, auditSvc, metrics, logger)
	ruleSvc := application.NewAlertRuleService(repos.AlertRules, repos.Alerts, repos.Devices, authz, auditSvc, metrics, logger)

	verifier, err := tokenVerifier(cfg)
	if err != nil {
		return nil, err
	}
	authMiddleware, err := adaptermiddleware.AuthMiddleware(cfg.AuthMode, verifier)
	if err != nil {
		return nil, fmt.Errorf("initialize auth middleware: %w", err)
	}

	mw := httpiface.Middleware{
		XRay:           adaptermiddleware.XRayMiddleware("smart-factory-http"),
		RequestLogger:  adaptermiddleware.RequestLogger(logger),
		Metrics:        metrics.Middleware(),
		RateLimit:      adaptermiddleware.RateLimit(cfg.RateLimitRPS),
		Auth:           authMiddleware,
		Actor:          adaptermiddleware.ActorMiddleware(authz, logger),
		MetricsHandler: metrics.Handler(),
	}
	e := httpiface.NewMainRouter(httpiface.Handlers{
		System:     httpiface.NewSystemHandler(authz, roleSvc, logger),
		Roles:      httpiface.NewRolesHandler(roleSvc, logger),
		Users:      httpiface.NewUsersHandler(userSvc, logger),
		Devices:    httpiface.NewDevicesHandler(deviceSvc, logger),
		Alerts:     httpiface.NewAlertsHandler(alertSvc, logger),
		AlertRules: httpiface.NewAlertRulesHandler(ruleSvc, logger),
		Audit:      httpiface.NewAuditHandler(auditSvc, logger),
	}, mw)

	return &App{Echo: e, Authz: authz, Rules: ruleSvc, Metrics: metrics}, nil
}

func tokenVerifier(cfg config.Config) (echo.MiddlewareFunc, error) {
	switch cfg.AuthMode {
	case adaptermiddleware.ModeCognito:
		return auth.NewCognitoMiddleware(cfg.UserPoolID, cfg.Region).Handler, nil
	case adaptermiddleware.ModeJWT:
		v, err := auth.NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		return v.Handler, nil
	default:
		return nil, nil
	}
}
