package main

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	adaptermiddleware "threatgate/internal/adapters/http/middleware"
	adapterlogger "threatgate/internal/adapters/logger"
	"threatgate/internal/application"
	"threatgate/internal/infrastructure/auth"
	"threatgate/internal/infrastructure/dynamodb"
	"threatgate/internal/infrastructure/rules"
	httpiface "threatgate/internal/interfaces/http"
	"threatgate/internal/ports"
)

type config struct {
	AuditLogDir      string
	AuthMode         adaptermiddleware.Mode
	JWKSURL          string
	JWTIssuer        string
	TableName        string
	Region           string
	GraphID          string
	RulesPath        string
	AutoAssignReader bool
	Port             string
}

func loadConfig() (config, error) {
	authMode, err := adaptermiddleware.ParseAuthMode()
	if err != nil {
		return config{}, err
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	auditDir := os.Getenv("AUDIT_LOG_DIR")
	if auditDir == "" {
		auditDir = "./logs/audit"
	}
	cfg := config{
		AuditLogDir:      auditDir,
		AuthMode:         authMode,
		JWKSURL:          os.Getenv("JWKS_URL"),
		JWTIssuer:        os.Getenv("JWT_ISSUER"),
		TableName:        os.Getenv("TABLE_NAME"),
		Region:           os.Getenv("AWS_REGION"),
		GraphID:          os.Getenv("GRAPH_ID"),
		RulesPath:        os.Getenv("RULES_PATH"),
		AutoAssignReader: os.Getenv("AUTO_ASSIGN_READER") == "true",
		Port:             port,
	}
	if cfg.AuthMode == adaptermiddleware.ModeJWT && cfg.JWKSURL == "" {
		return config{}, errors.New("JWKS_URL is required for jwt auth mode")
	}
	if (cfg.TableName == "") != (cfg.Region == "") {
		return config{}, errors.New("TABLE_NAME and AWS_REGION must be set together")
	}
	return cfg, nil
}

func main() {
	_ = godotenv.Load()
	logger := adapterlogger.New()
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	xray.Configure(xray.Config{LogLevel: "error"})

	ruleSet, err := rules.Load(cfg.RulesPath)
	if err != nil {
		logger.Error(ctx, "failed to load rules", "error", err)
		os.Exit(1)
	}

	audit, err := application.NewAuditTrail(cfg.AuditLogDir, logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize audit trail", "error", err)
		os.Exit(1)
	}
	gate := application.NewPermissionGate(cfg.AutoAssignReader, nil, logger)
	guard, err := application.NewInjectionGuardWithRules(ruleSet.Injection.Tables, ruleSet.Injection.Sanitizers, logger)
	if err != nil {
		logger.Error(ctx, "failed to compile injection rules", "error", err)
		os.Exit(1)
	}
	privacy := application.NewPrivacyFilter(logger)
	classifier := application.NewFrameworkClassifierWithTables(ruleSet.Classifier, logger)
	validator, err := application.NewReportValidator()
	if err != nil {
		logger.Error(ctx, "failed to compile report schema", "error", err)
		os.Exit(1)
	}
	graph := application.NewThreatGraph(logger)

	var snapshot ports.GraphSnapshotRepository
	if cfg.TableName != "" {
		ddbClient, err := dynamodb.NewClient(ctx, cfg.Region, cfg.TableName)
		if err != nil {
			logger.Error(ctx, "failed to initialize dynamodb client", "error", err)
			os.Exit(1)
		}
		repo := dynamodb.NewGraphRepository(ddbClient, cfg.GraphID)
		snapshot = repo
		if err := hydrateGraph(ctx, graph, repo); err != nil {
			logger.Error(ctx, "failed to hydrate threat graph", "error", err)
			os.Exit(1)
		}
		logger.Info(ctx, "threat graph hydrated",
			"nodes", graph.NodeCount(), "edges", graph.EdgeCount())
	}

	// Retrieval and generation are external collaborators wired by the
	// deployment; without them query endpoints answer 503.
	pipeline := application.NewRequestPipeline(
		gate, guard, privacy, audit, classifier, validator, nil, nil, logger)

	var jwtHandler echo.MiddlewareFunc
	if cfg.AuthMode == adaptermiddleware.ModeJWT {
		jwtHandler = auth.NewJWKSMiddleware(cfg.JWKSURL, cfg.JWTIssuer).Handler
	}
	authMiddleware, err := adaptermiddleware.AuthMiddleware(jwtHandler)
	if err != nil {
		logger.Error(ctx, "failed to initialize auth middleware", "error", err)
		os.Exit(1)
	}
	mw := httpiface.Middleware{
		Auth:          authMiddleware,
		XRay:          adaptermiddleware.XRayMiddleware("threatgate-http"),
		RequestLogger: adaptermiddleware.RequestLogger(logger),
	}

	e := httpiface.NewRouter(httpiface.Handlers{
		Pipeline: httpiface.NewPipelineHandler(pipeline),
		Access:   httpiface.NewAccessHandler(gate, audit),
		Audit:    httpiface.NewAuditHandler(gate, audit),
		Graph:    httpiface.NewGraphHandler(graph, snapshot),
		Classify: httpiface.NewClassifyHandler(classifier),
	}, mw)

	logger.Info(ctx, "starting http server", "port", cfg.Port)
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}

func hydrateGraph(ctx context.Context, graph *application.ThreatGraph, repo ports.GraphSnapshotRepository) error {
	nodes, err := repo.LoadNodes(ctx)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		graph.AddNode(node)
	}
	edges, err := repo.LoadEdges(ctx)
	if err != nil {
		return err
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge); err != nil {
			return err
		}
	}
	return nil
}
