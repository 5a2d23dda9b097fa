// Package config handles configuration loading for zhilian-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion, validated, and filled with defaults.
//
// # Environment Variable Expansion
//
// Values can reference environment variables:
//
//	model:
//	  api_key: "${OPENAI_API_KEY}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	heartbeat:
//	  interval: "25s"
//	  timeout: "10s"
//
// # Configuration Sections
//
// Server listeners:
//
//	server:
//	  chat_addr: "0.0.0.0:8765"  # chat socket connections
//	  http_addr: "0.0.0.0:8080"  # registration API and health
//
// Database:
//
//	database:
//	  path: "/var/lib/zhilian/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${ZHILIAN_JWT_SECRET}"
//
// Heartbeat timing:
//
//	heartbeat:
//	  interval: "25s"
//	  timeout: "10s"
//	  max_retries: 3
//
// Model backend:
//
//	model:
//	  base_url: "https://api.openai.com/v1"
//	  api_key: "${OPENAI_API_KEY}"
//	  name: "gpt-4o-mini"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Database path presence
//   - Model API key presence
//   - JWT secret minimum length (32 bytes) when set
//   - Duration format validity
//   - Heartbeat retry count (at least 1)
package config
