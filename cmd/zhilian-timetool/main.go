// ABOUTME: Standalone tool server exposing the current time over JSON-RPC
// ABOUTME: Serves function declarations on /tools for client discovery

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/zhilian/gateway/internal/jsonrpc"
)

// toolDeclarations is the function list a client forwards to the model
// verbatim when it registers this server.
const toolDeclarations = `{
  "server_name": "TimeServer",
  "version": "1.0",
  "available_functions": [
    {
      "type": "function",
      "function": {
        "name": "get_current_time",
        "description": "Returns the current system time in YYYY-MM-DD HH:MM:SS format",
        "strict": true,
        "parameters": {
          "type": "object",
          "properties": {},
          "required": [],
          "additionalProperties": false
        }
      }
    }
  ]
}`

func main() {
	addr := flag.String("addr", ":8001", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	rpc := jsonrpc.NewHandler(logger)
	rpc.Register("get_current_time", func(_ json.RawMessage) (any, error) {
		return time.Now().Format("2006-01-02 15:04:05"), nil
	})

	mux := http.NewServeMux()
	mux.Handle("/", rpc)
	mux.HandleFunc("/tools", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, toolDeclarations)
	})

	logger.Info("time tool server started", "addr", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
