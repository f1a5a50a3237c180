package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/chatdash/internal/app"
	"github.com/hitoshi/chatdash/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "chatdash",
		Short:         "YouTube Live Chat Collector ダッシュボード",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFlag != "" {
				return os.Setenv(config.ConfigFileEnv, configFlag)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "設定ファイル(YAML)のパス")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newHealthcheckCommand())

	return rootCmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "HTTPサーバーと自動更新を起動する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := app.Init(nil)
	if err != nil {
		return err
	}
	return app.RunServe(cmd.Context(), cfg)
}

func newStatusCommand() *cobra.Command {
	var opts app.StatusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "ダッシュボードを1回取得して表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// ログは標準エラーへ出し、標準出力はテーブルかJSONのみにする
			cfg, err := app.Init(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return app.RunStatus(cmd.Context(), cfg, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Cached, "cached", false, "Redisのミラーから読み込む")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "JSONで出力する")
	return cmd
}

func newHealthcheckCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "/health を確認する（Dockerヘルスチェック用）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunHealthcheck(cmd.Context(), port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "確認するポート（既定はSERVER_PORT）")
	return cmd
}
