// Command mcpclient is a small interactive exerciser for a streamable
// HTTP MCP server: it dials an endpoint, initializes a session, lists
// the server's tools, and optionally calls one. Mirrors the teacher's
// flag-driven cmd/agent wiring, generalized from load-generation to a
// one-shot client probe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bc-dunia/mcpgo/internal/mcpclient"
	"github.com/bc-dunia/mcpgo/mcp"
)

func main() {
	endpoint := flag.String("endpoint", "http://127.0.0.1:8080/mcp", "server's streamable HTTP endpoint")
	bearerToken := flag.String("bearer-token", "", "optional bearer token sent as Authorization: Bearer <token>")
	callTool := flag.String("call-tool", "", "name of a tool to call after listing (empty to skip)")
	toolArgs := flag.String("tool-args", "{}", "JSON arguments for -call-tool")
	timeout := flag.Duration("timeout", 30*time.Second, "overall operation timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	headers := map[string]string{}
	if *bearerToken != "" {
		headers["Authorization"] = "Bearer " + *bearerToken
	}

	conn, err := mcpclient.Dial(&mcpclient.Config{
		Endpoint: *endpoint,
		Headers:  headers,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error dialing %s: %v\n", *endpoint, err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	initResult, err := conn.Initialize(ctx, mcp.ClientInfo{Name: "mcpclient", Version: "0.1.0"}, mcp.DefaultProtocolVersion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("connected to %s %s (session %s)\n", initResult.ServerInfo.Name, initResult.ServerInfo.Version, conn.SessionID())

	if err := conn.SendInitialized(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error sending initialized: %v\n", err)
		os.Exit(1)
	}

	tools, err := conn.ToolsList(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing tools: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d tool(s) available:\n", len(tools.Tools))
	for _, t := range tools.Tools {
		fmt.Printf("  - %s: %s\n", t.Name, t.Description)
	}

	if *callTool == "" {
		return
	}

	result, err := conn.ToolsCall(ctx, *callTool, json.RawMessage(*toolArgs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error calling tool %s: %v\n", *callTool, err)
		os.Exit(1)
	}
	encoded, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(encoded))
}
