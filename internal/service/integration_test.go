package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"askdb-go/internal/ai"
	"askdb-go/internal/catalog"
)

const seedSQL = `
CREATE TABLE "User" (
	id text PRIMARY KEY,
	"firstName" text NOT NULL,
	"lastName" text NOT NULL,
	email text NOT NULL,
	"createdAt" timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE "Task" (
	id text PRIMARY KEY,
	title text NOT NULL,
	status text NOT NULL,
	"storyPoints" bigint,
	budget numeric(12,2),
	"createdAt" timestamptz NOT NULL DEFAULT now()
);
INSERT INTO "User" (id, "firstName", "lastName", email) VALUES
	('u1', 'Ana', 'García', 'ana@example.com'),
	('u2', 'Bob', 'Stone', 'bob@example.com');
INSERT INTO "Task" (id, title, status, "storyPoints", budget) VALUES
	('t1', 'Write onboarding docs', 'OPEN', 3, 1250.50),
	('t2', 'Review budget', 'DONE', 9007199254740993, NULL);
`

// PostgresIntegrationSuite 基于真实PostgreSQL的执行器集成测试
type PostgresIntegrationSuite struct {
	suite.Suite
	ctx    context.Context
	pool   *pgxpool.Pool
	db     *sql.DB
	schema *catalog.Schema
}

func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("跳过需要Docker的集成测试")
	}
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx, "postgres:16-alpine",
		postgres.WithDatabase("askdb"),
		postgres.WithUsername("askdb"),
		postgres.WithPassword("askdb"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	testcontainers.CleanupContainer(s.T(), container)
	s.Require().NoError(err)

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(s.ctx, dsn)
	s.Require().NoError(err)
	_, err = s.pool.Exec(s.ctx, seedSQL)
	s.Require().NoError(err)

	s.db, err = sql.Open("pgx", dsn)
	s.Require().NoError(err)

	s.schema = &catalog.Schema{Tables: []catalog.Table{
		{Name: "User", Columns: []catalog.Column{
			{Name: "id", Type: catalog.TypeString},
			{Name: "firstName", Type: catalog.TypeString},
			{Name: "lastName", Type: catalog.TypeString},
			{Name: "email", Type: catalog.TypeString},
			{Name: "createdAt", Type: catalog.TypeDateTime},
		}},
		{Name: "Task", Columns: []catalog.Column{
			{Name: "id", Type: catalog.TypeString},
			{Name: "title", Type: catalog.TypeString},
			{Name: "status", Type: catalog.TypeString},
			{Name: "storyPoints", Type: catalog.TypeInt},
			{Name: "budget", Type: catalog.TypeFloat},
			{Name: "createdAt", Type: catalog.TypeDateTime},
		}},
	}}
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresIntegrationSuite) TestPgxRunnerSerializesValues() {
	executor := NewSQLExecutor(NewPgxRunner(s.pool, 5*time.Second, zap.NewNop()), s.schema, nil, zap.NewNop())

	payload, err := executor.Execute(s.ctx, ai.GeneratedQuery{
		SQL:        `SELECT id, storyPoints, budget, createdAt FROM task ORDER BY id`,
		Parameters: []any{},
	}, "task points")

	s.Require().NoError(err)
	s.Empty(payload.Note)
	s.Require().Equal(2, payload.TotalResults)
	s.Equal(float64(3), payload.Results[0]["storyPoints"])
	s.Equal(1250.5, payload.Results[0]["budget"])
	s.IsType("", payload.Results[0]["createdAt"])
	s.Equal("9007199254740993", payload.Results[1]["storyPoints"])
	s.Nil(payload.Results[1]["budget"])
}

func (s *PostgresIntegrationSuite) TestFallbackLadder() {
	executor := NewSQLExecutor(NewPgxRunner(s.pool, 5*time.Second, zap.NewNop()), s.schema, nil, zap.NewNop())

	payload, err := executor.Execute(s.ctx, ai.GeneratedQuery{
		SQL:        `SELECT missing_column FROM task`,
		Parameters: []any{},
	}, "onboarding docs")

	s.Require().NoError(err)
	s.Contains(payload.Note, "Original question failed")
	s.Contains(payload.Note, "42703")
	s.Require().NotEmpty(payload.Results)
	s.Equal("task", payload.Results[0]["entity_type"])
}

func (s *PostgresIntegrationSuite) TestReadOnlyTransaction() {
	runner := NewPgxRunner(s.pool, 5*time.Second, zap.NewNop())

	_, err := runner.Query(s.ctx, `WITH d AS (DELETE FROM "Task" RETURNING id) SELECT * FROM d`)
	s.Require().Error(err)
	s.Contains(err.Error(), "25006")

	var count int
	s.Require().NoError(s.pool.QueryRow(s.ctx, `SELECT count(*) FROM "Task"`).Scan(&count))
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestSQLRunner() {
	runner := NewSQLRunner(s.db, 5*time.Second, zap.NewNop())

	rows, err := runner.Query(s.ctx, `SELECT "firstName" FROM "User" WHERE email = $1`, "bob@example.com")

	s.Require().NoError(err)
	s.Equal([]map[string]any{{"firstName": "Bob"}}, rows)
}

func (s *PostgresIntegrationSuite) TestSchemaDrift() {
	report, err := CheckSchemaDrift(s.ctx, s.db, s.schema, "")
	s.Require().NoError(err)
	s.False(report.HasDrift())

	report, err = CheckSchemaDrift(s.ctx, s.db, catalog.Default(), "")
	s.Require().NoError(err)
	s.True(report.HasDrift())
	s.Contains(report.MissingTables, "Project")
}

func (s *PostgresIntegrationSuite) TestHealth() {
	h := NewHealthService(s.pool, nil, nil, zap.NewNop())

	s.Equal(HealthStatusHealthy, h.CheckReadiness(s.ctx).Status)
}
