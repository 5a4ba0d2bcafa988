package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/canopy/internal/config"
	mcpadapter "github.com/aretw0/canopy/pkg/adapters/mcp"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the MCP tool catalog",
	Long:  `List the tools advertised by the configured MCP server, or call one directly for debugging.`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available tools",
	Run: func(cmd *cobra.Command, args []string) {
		client := getMCPClient(cmd)
		defer client.Close()

		catalog, err := client.ListTools(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing tools: %v\n", err)
			os.Exit(1)
		}

		if len(catalog) == 0 {
			fmt.Println("No tools advertised.")
			return
		}

		for _, tool := range catalog {
			fmt.Printf("%s\n    %s\n", tool.Name, tool.Description)
		}
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <tool-name> [json-args]",
	Short: "Call one tool directly",
	Long:  `Invokes a tool by its raw name with a JSON argument object, bypassing the agent. Useful to verify a tool server before pointing the agent at it.`,
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		toolName := args[0]
		toolArgs := map[string]any{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
				fmt.Printf("Error parsing arguments: %v\n", err)
				os.Exit(1)
			}
		}

		client := getMCPClient(cmd)
		defer client.Close()

		result, err := client.CallTool(cmd.Context(), toolName, toolArgs)
		if err != nil {
			fmt.Printf("Error calling '%s': %v\n", toolName, err)
			os.Exit(1)
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Printf("%v\n", result)
			return
		}
		fmt.Println(string(data))
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)
}

func getMCPClient(cmd *cobra.Command) *mcpadapter.Client {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	var client *mcpadapter.Client
	switch cfg.MCP.Transport {
	case "", "sse":
		client, err = mcpadapter.NewSSE(cmd.Context(), cfg.MCP.URL)
	case "http":
		client, err = mcpadapter.NewStreamableHTTP(cmd.Context(), cfg.MCP.URL)
	default:
		fmt.Printf("Unknown mcp transport %q\n", cfg.MCP.Transport)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error connecting to MCP server: %v\n", err)
		os.Exit(1)
	}
	return client
}
