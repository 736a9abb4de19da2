// ask 命令行客户端：提问、预览生成的SQL、检查Schema目录与数据库的差异
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"askdb-go/internal/config"
)

func main() {
	if _, err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "读取.env文件失败: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().Run(ctx, os.Args); err != nil {
		if !errors.Is(err, errSchemaDrift) {
			fmt.Fprintln(os.Stderr, "错误:", err)
		}
		os.Exit(1)
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "ask",
		Usage: "Ask questions about the workspace database in natural language",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "write development logs to stderr",
			},
		},
		Commands: []*cli.Command{
			QuestionCommand(),
			SearchCommand(),
			CheckSchemaCommand(),
		},
	}
}

// newLogger 默认不输出日志，--verbose 时输出开发格式日志到 stderr
func newLogger(cmd *cli.Command) *zap.Logger {
	if !cmd.Bool("verbose") {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
