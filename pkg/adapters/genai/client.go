// Package genai backs the model-facing ports (classification, grounded
// answers, judging, response composition, and the planner) with Google's
// Gemini API.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/dugoutlabs/dugout/internal/logging"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Client implements ports.RouteClassifier, ports.GroundedRetriever,
// ports.Judge, ports.Responder, and ports.PlannerModel over one Gemini
// client.
type Client struct {
	gc      *genai.Client
	model   string
	prompts *promptSet
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithModel overrides the generation model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Gemini-backed client.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai: API key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	prompts, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	c := &Client{gc: gc, model: DefaultModel, prompts: prompts, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// wrapErr maps API-level rate limiting onto the domain's transient error so
// callers can retry it.
func wrapErr(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return fmt.Errorf("%s: %w", op, domain.ErrResourceExhausted)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func systemConfig(instruction string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	}
}

func conversationContents(messages []domain.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

// ClassifyAndExtract implements ports.RouteClassifier with a single JSON-mode
// call. The returned tag is raw; the router owns clamping.
func (c *Client) ClassifyAndExtract(ctx context.Context, messages []domain.Message) (*ports.RoutingDecision, error) {
	query := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			query = messages[i].Content
			break
		}
	}

	cfg := systemConfig(c.prompts.Router)
	cfg.ResponseMIMEType = "application/json"
	contents := []*genai.Content{
		genai.NewContentFromText("User Query: "+query, genai.RoleUser),
	}

	resp, err := c.gc.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, wrapErr("classify query", err)
	}
	decision, err := parseRoutingJSON(resp.Text())
	if err != nil {
		return nil, err
	}
	c.logger.Debug("query classified", "route", decision.Route, "name", decision.Name)
	return decision, nil
}

func parseRoutingJSON(raw string) (*ports.RoutingDecision, error) {
	var decision ports.RoutingDecision
	if err := json.Unmarshal([]byte(stripFences(raw)), &decision); err != nil {
		return nil, fmt.Errorf("routing response is not valid JSON: %w", err)
	}
	return &decision, nil
}

// GroundedAnswer implements ports.GroundedRetriever using search grounding;
// citations come from the response's grounding metadata.
func (c *Client) GroundedAnswer(ctx context.Context, query string) (*ports.GroundedAnswer, error) {
	cfg := systemConfig(c.prompts.Grounded)
	cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}

	contents := []*genai.Content{genai.NewContentFromText(query, genai.RoleUser)}
	resp, err := c.gc.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, wrapErr("grounded answer", err)
	}

	answer := &ports.GroundedAnswer{Text: resp.Text()}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			answer.Citations = append(answer.Citations, ports.Citation{
				Title: chunk.Web.Title,
				URI:   chunk.Web.URI,
			})
		}
	}
	return answer, nil
}

// JudgeAnswer implements ports.Judge.
func (c *Client) JudgeAnswer(ctx context.Context, query, answer string) (domain.Verdict, error) {
	cfg := systemConfig(c.prompts.Judge)
	cfg.ResponseMIMEType = "application/json"

	prompt := fmt.Sprintf("Question: %s\n\nCandidate answer: %s", query, answer)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.gc.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", wrapErr("judge answer", err)
	}
	return parseVerdict(resp.Text())
}

func parseVerdict(raw string) (domain.Verdict, error) {
	var payload struct {
		Verdict string `json:"verdict"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return "", fmt.Errorf("judge response is not valid JSON: %w", err)
	}
	switch payload.Verdict {
	case string(domain.VerdictOK):
		return domain.VerdictOK, nil
	case string(domain.VerdictReplan):
		return domain.VerdictReplan, nil
	}
	return "", fmt.Errorf("judge returned unknown verdict %q", payload.Verdict)
}

// Respond implements ports.Responder.
func (c *Client) Respond(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.gc.Models.GenerateContent(ctx, c.model, contents, systemConfig(c.prompts.Responder))
	if err != nil {
		return "", wrapErr("compose answer", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Next implements ports.PlannerModel. The conversation, the tool catalog, and
// the settled exchanges are replayed into one function-calling request; calls
// in the response become the next tool batch and a call-free response is the
// final reply.
func (c *Client) Next(ctx context.Context, messages []domain.Message, tools []ports.ToolSpec, trace []domain.ToolExchange) (*ports.PlannerTurn, error) {
	cfg := systemConfig(c.prompts.Planner)
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  &genai.Schema{Type: genai.TypeObject},
		})
	}
	cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

	contents := conversationContents(messages)
	for _, ex := range trace {
		contents = append(contents,
			genai.NewContentFromParts(
				[]*genai.Part{genai.NewPartFromFunctionCall(ex.Call.Name, ex.Call.Args)},
				genai.RoleModel,
			),
			genai.NewContentFromParts(
				[]*genai.Part{genai.NewPartFromFunctionResponse(ex.Call.Name, exchangeResponse(ex))},
				genai.RoleUser,
			),
		)
	}

	resp, err := c.gc.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, wrapErr("planner turn", err)
	}

	turn := &ports.PlannerTurn{}
	for _, fc := range resp.FunctionCalls() {
		turn.Calls = append(turn.Calls, domain.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
	}
	if len(turn.Calls) == 0 {
		turn.Reply = strings.TrimSpace(resp.Text())
	}
	return turn, nil
}

func exchangeResponse(ex domain.ToolExchange) map[string]any {
	if ex.Failed {
		return map[string]any{"error": ex.Result, "failed": true}
	}
	return map[string]any{"result": ex.Result}
}

// stripFences removes a markdown code fence around a JSON payload. Models in
// JSON mode usually comply, but fenced output still shows up.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var (
	_ ports.RouteClassifier   = (*Client)(nil)
	_ ports.GroundedRetriever = (*Client)(nil)
	_ ports.Judge             = (*Client)(nil)
	_ ports.Responder         = (*Client)(nil)
	_ ports.PlannerModel      = (*Client)(nil)
)
