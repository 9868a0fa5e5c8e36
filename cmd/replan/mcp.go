package main

import (
	"github.com/replanhq/replan/internal/logging"
	mcpserver "github.com/replanhq/replan/internal/mcp"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve replan tools over MCP stdio",
		Long:  "Serve replan tools over MCP stdio for planning agents. Logs go to stderr; stdout carries the protocol.",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, repoRoot, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			eng, err := buildEngine(storeDB, repoRoot, cfg)
			if err != nil {
				return err
			}
			server := mcpserver.NewServer(logging.Component("mcp"), eng, cfg, version)
			return server.Run(cmd.Context())
		},
	}
}
