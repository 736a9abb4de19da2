package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"askdb-go/internal/ai"
	"askdb-go/internal/app"
	"askdb-go/internal/catalog"
	"askdb-go/internal/config"
	"askdb-go/internal/database"
	"askdb-go/internal/history"
	"askdb-go/internal/service"
)

// cliConversationKey 未指定 --conversation 时的会话标识
const cliConversationKey = "cli"

var errSchemaDrift = errors.New("schema drift detected")

// answerer 流式回答，由 ai.Composer 实现
type answerer interface {
	Answer(ctx context.Context, question, key string, w ai.StreamWriter) (string, error)
}

func QuestionCommand() *cli.Command {
	return &cli.Command{
		Name:      "question",
		Usage:     "Answer a question, streaming the answer to stdout",
		ArgsUsage: " <question...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "conversation",
				Aliases: []string{"c"},
				Usage:   "conversation key used for history",
			},
			&cli.BoolFlag{
				Name:  "sql-only",
				Usage: "print the generated query as JSON without executing it",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			question, err := questionArg(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd)
			pipeline, cleanup, err := openPipeline(ctx, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if cmd.Bool("sql-only") {
				return printJSON(os.Stdout, pipeline.Generator.Generate(ctx, question))
			}
			key := history.ResolveKey(cmd.String("conversation"), "", cliConversationKey)
			return runQuestion(ctx, os.Stdout, pipeline.Composer, question, key)
		},
	}
}

func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Generate and execute the query for a question and print the result payload",
		ArgsUsage: " <question...>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			question, err := questionArg(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd)
			pipeline, cleanup, err := openPipeline(ctx, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			return runSearch(ctx, os.Stdout, pipeline.Generator, pipeline.Executor, question)
		},
	}
}

func CheckSchemaCommand() *cli.Command {
	return &cli.Command{
		Name:        "check-schema",
		Usage:       "Compare the schema catalog with information_schema.columns",
		Description: `Lists catalog tables and columns missing from the database. Exits non-zero on drift.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "schema",
				Value: service.DefaultTableSchema,
				Usage: "database schema that holds the workspace tables",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := newLogger(cmd)
			dbConfig, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			db, err := database.OpenSQL(ctx, dbConfig, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return runCheckSchema(ctx, os.Stdout, db, catalog.Default(), cmd.String("schema"))
		},
	}
}

func questionArg(cmd *cli.Command) (string, error) {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return "", fmt.Errorf("expected a question")
	}
	return question, nil
}

// openPipeline 通过 database/sql 连接数据库并组装流水线
func openPipeline(ctx context.Context, logger *zap.Logger) (*app.Pipeline, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.OpenSQL(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	store, redisManager, err := app.HistoryStore(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if redisManager != nil {
			_ = redisManager.Close()
		}
		_ = db.Close()
	}

	runner := service.NewSQLRunner(db, cfg.Database.QueryTimeout, logger)
	pipeline, err := app.NewPipeline(&cfg.AI, runner, store, nil, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return pipeline, cleanup, nil
}

func runQuestion(ctx context.Context, out io.Writer, composer answerer, question, key string) error {
	w := ai.NewTextStreamWriter(out, nil)
	defer w.Close()

	if _, err := composer.Answer(ctx, question, key, w); err != nil {
		if w.Written() > 0 {
			fmt.Fprintln(out)
		}
		return err
	}
	_, err := fmt.Fprintln(out)
	return err
}

func runSearch(ctx context.Context, out io.Writer, generator ai.QueryGenerator, executor ai.QueryExecutor, question string) error {
	query := generator.Generate(ctx, question)
	if query.IsHistoric() {
		return printJSON(out, query)
	}
	payload, err := executor.Execute(ctx, query, question)
	if err != nil {
		return err
	}
	return printJSON(out, payload)
}

func runCheckSchema(ctx context.Context, out io.Writer, db *sql.DB, schema *catalog.Schema, tableSchema string) error {
	report, err := service.CheckSchemaDrift(ctx, db, schema, tableSchema)
	if err != nil {
		return err
	}
	if !report.HasDrift() {
		fmt.Fprintf(out, "Schema catalog matches the database (%d tables)\n", len(schema.Tables))
		return nil
	}

	if len(report.MissingTables) > 0 {
		fmt.Fprintln(out, "Missing tables:")
		for _, table := range report.MissingTables {
			fmt.Fprintf(out, "  %s\n", table)
		}
	}
	if len(report.MissingColumns) > 0 {
		fmt.Fprintln(out, "Missing columns:")
		for _, column := range report.MissingColumns {
			fmt.Fprintf(out, "  %s\n", column)
		}
	}
	return errSchemaDrift
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
