// Package ai answers natural language questions about settlement history.
// An LLM turns the question into a single read-only ClickHouse SELECT over
// the settlements table, the query runs, and the LLM summarises the rows.
package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	defaultModel   = "openai/gpt-4.1-mini"
	openRouterBase = "https://openrouter.ai/api/v1"
	maxReplyTokens = 512
)

// AgentConfig holds configuration for the AI agent.
type AgentConfig struct {
	// ClickHouse connection settings.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// OpenRouter / LLM settings.
	OpenRouterAPIKey string
	// Model name as understood by OpenRouter, e.g. "openai/gpt-4.1-mini".
	Model string

	Logger *logrus.Logger
}

// Agent holds a live LLM client and ClickHouse connection.
type Agent struct {
	llm    llms.Model
	db     *sql.DB
	logger *logrus.Logger
}

// NewAgent creates a new Agent with its own ClickHouse and LLM clients.
func NewAgent(ctx context.Context, cfg AgentConfig) (*Agent, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	llm, err := openai.New(
		openai.WithToken(cfg.OpenRouterAPIKey),
		openai.WithBaseURL(openRouterBase),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenRouter LLM: %w", err)
	}

	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		},
	})
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse from AI agent: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.ClickHouseAddr,
		"database": cfg.ClickHouseDatabase,
		"model":    cfg.Model,
	}).Info("initialized AI agent")

	return &Agent{llm: llm, db: db, logger: cfg.Logger}, nil
}

// AskOnce builds a short-lived agent, asks one question and tears the agent
// down again. Used for per-request model overrides.
func AskOnce(ctx context.Context, cfg AgentConfig, question string) (*AskResult, error) {
	a, err := NewAgent(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai agent: %w", err)
	}
	defer func() {
		_ = a.Close()
	}()
	return a.Ask(ctx, question)
}

// Close closes underlying resources.
func (a *Agent) Close() error {
	if a.db != nil {
		a.logger.Debug("closing AI agent ClickHouse connection")
		return a.db.Close()
	}
	return nil
}

// AskResult is the structured result of an Ask call.
type AskResult struct {
	SQL    string
	Answer string
}

// Ask runs the full question pipeline: generate SQL, execute it, summarise.
func (a *Agent) Ask(ctx context.Context, question string) (*AskResult, error) {
	sqlQuery, err := a.generateSQL(ctx, question)
	if err != nil {
		return nil, err
	}

	rows, err := a.runQuery(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}

	answer, err := a.answerFromRows(ctx, question, sqlQuery, rows)
	if err != nil {
		return nil, err
	}

	return &AskResult{SQL: sqlQuery, Answer: answer}, nil
}

// generateSQL asks the LLM for a SELECT over the settlements table and
// refuses anything that fails the read-only policy.
func (a *Agent) generateSQL(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`You write ClickHouse SQL for an AMM settlement ledger.

The only table available:
%s

Produce exactly one SELECT statement answering the question below.
- Output the SQL and nothing else, no markdown, no commentary.
- Always reference the table as %s.
- Filter on timestamp for any time window the question implies.
- Aggregate with sum/avg/count where the question asks for totals or averages.
- "top" or "largest" questions need ORDER BY ... DESC with a LIMIT.
- The data is read-only; never emit a statement that writes or alters.

Question:
%s
`, settlementsSchemaDescription, qualifiedTable, question)

	resp, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, llms.WithMaxTokens(maxReplyTokens))
	if err != nil {
		return "", fmt.Errorf("LLM SQL generation failed: %w", err)
	}

	sqlQuery, err := extractSelect(resp)
	if err != nil {
		return "", err
	}

	a.logger.WithField("sql", sqlQuery).Debug("generated SQL from question")
	return sqlQuery, nil
}

// runQuery executes the generated SQL and collects rows as column→value maps.
func (a *Agent) runQuery(ctx context.Context, sqlQuery string) ([]map[string]any, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(cols))
		for i, col := range cols {
			rowMap[col] = values[i]
		}
		out = append(out, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return out, nil
}

// answerFromRows asks the LLM to phrase the query result as an answer.
func (a *Agent) answerFromRows(ctx context.Context, question, sqlQuery string, rows []map[string]any) (string, error) {
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rows to JSON: %w", err)
	}

	prompt := fmt.Sprintf(`You analyse AMM settlement records for a trader.

Question:
%s

SQL that ran:
%s

Rows as JSON (may be empty):
%s

Answer the question from the rows. If there are none, say no settlements
matched. Keep it short, quote the key amounts, counts and prices with
sensible rounding, and never repeat the raw JSON.
`, question, sqlQuery, rowsJSON)

	resp, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, llms.WithMaxTokens(maxReplyTokens))
	if err != nil {
		return "", fmt.Errorf("LLM summarisation failed: %w", err)
	}

	return strings.TrimSpace(resp), nil
}

// writeKeywords are SQL tokens that have no business appearing in a
// read-only analytics query.
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"ALTER": true, "TRUNCATE": true, "CREATE": true, "RENAME": true,
	"ATTACH": true, "DETACH": true,
}

// extractSelect pulls a single SELECT statement out of an LLM response and
// enforces the read-only, single-table policy. Markdown fences and language
// tags around the SQL are tolerated; anything past a closing fence is
// dropped.
func extractSelect(resp string) (string, error) {
	var kept []string
	for _, line := range strings.Split(resp, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if len(kept) > 0 {
				break // closing fence, ignore any trailing prose
			}
			continue
		}
		if len(kept) == 0 && strings.EqualFold(trimmed, "sql") {
			continue
		}
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}

	stmt := strings.TrimSuffix(strings.Join(kept, " "), ";")
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return "", fmt.Errorf("empty SQL generated by LLM")
	}
	if strings.Contains(stmt, ";") {
		return "", fmt.Errorf("multiple SQL statements are not allowed")
	}

	upper := strings.ToUpper(stmt)
	if !strings.HasPrefix(upper, "SELECT") {
		return "", fmt.Errorf("only SELECT queries are allowed")
	}
	for _, tok := range strings.FieldsFunc(upper, func(r rune) bool {
		return (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_'
	}) {
		if writeKeywords[tok] {
			return "", fmt.Errorf("disallowed SQL keyword %q in generated query", tok)
		}
	}

	table := strings.ToUpper(qualifiedTable)
	if !strings.Contains(upper, "FROM "+table) && !strings.Contains(upper, "FROM "+strings.ToUpper(schemaTable)) {
		return "", fmt.Errorf("query must target the %s table", qualifiedTable)
	}

	return stmt, nil
}
