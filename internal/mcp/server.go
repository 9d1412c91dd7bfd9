package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/civic/internal/accounts"
	"github.com/joescharf/civic/internal/category"
	"github.com/joescharf/civic/internal/issues"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
	"github.com/joescharf/civic/internal/zone"
)

// Server exposes civic operations as MCP tools. Every tool runs as the
// configured actor.
type Server struct {
	issues    *issues.Service
	accounts  *accounts.Service
	suggester *category.Suggester
	actor     models.Actor
}

// NewServer creates the MCP server wrapper.
func NewServer(is *issues.Service, as *accounts.Service, suggester *category.Suggester, actor models.Actor) *Server {
	if suggester == nil {
		suggester = category.NewSuggester(nil, nil)
	}
	return &Server{issues: is, accounts: as, suggester: suggester, actor: actor}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("civic", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.classifyZoneTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.getIssueTool())
	srv.AddTool(s.updateStatusTool())
	srv.AddTool(s.zoneStatsTool())
	srv.AddTool(s.listOfficialsTool())
	srv.AddTool(s.suggestCategoryTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// civic_classify_zone
func (s *Server) classifyZoneTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_classify_zone",
		mcp.WithDescription("Classify GPS coordinates into a Coimbatore District zone. Omit both coordinates to get UNASSIGNED."),
		mcp.WithNumber("latitude", mcp.Description("Latitude in decimal degrees")),
		mcp.WithNumber("longitude", mcp.Description("Longitude in decimal degrees")),
	)
	return tool, s.handleClassifyZone
}

func (s *Server) handleClassifyZone(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	var lat, lng *float64
	if _, ok := args["latitude"]; ok {
		v := request.GetFloat("latitude", 0)
		lat = &v
	}
	if _, ok := args["longitude"]; ok {
		v := request.GetFloat("longitude", 0)
		lng = &v
	}
	z := zone.Classify(lat, lng)
	return jsonResult(map[string]string{"zone": string(z), "description": zone.Describe(z)})
}

// civic_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_list_issues",
		mcp.WithDescription("List civic issues, newest first. Returns a JSON array with id, title, category, status, zone, and assignee."),
		mcp.WithString("zone", mcp.Description("Filter by zone"), mcp.Enum("NORTH", "SOUTH", "EAST", "WEST", "CENTRAL", "UNASSIGNED")),
		mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("PENDING", "IN_PROGRESS", "RESOLVED")),
		mcp.WithBoolean("unassigned", mcp.Description("Only issues without an official")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var filter store.IssueListFilter
	if v := request.GetString("zone", ""); v != "" {
		z, err := models.ParseZone(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Zone = z
	}
	if v := request.GetString("status", ""); v != "" {
		st, err := models.ParseIssueStatus(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Status = st
	}
	filter.Unassigned = request.GetBool("unassigned", false)

	list, err := s.issues.Find(ctx, filter, s.actor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}

	type issueOut struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Category   string `json:"category"`
		Status     string `json:"status"`
		Zone       string `json:"zone"`
		AssignedTo string `json:"assigned_to,omitempty"`
	}
	out := make([]issueOut, len(list))
	for i, issue := range list {
		out[i] = issueOut{
			ID:       issue.ID,
			Title:    issue.Title,
			Category: issue.Category,
			Status:   string(issue.Status),
			Zone:     string(issue.Zone),
		}
		if issue.AssignedTo != nil {
			out[i].AssignedTo = *issue.AssignedTo
		}
	}
	return jsonResult(out)
}

// civic_get_issue
func (s *Server) getIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_get_issue",
		mcp.WithDescription("Get one issue with its comments."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID")),
	)
	return tool, s.handleGetIssue
}

func (s *Server) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	issue, err := s.issues.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(issue)
}

// civic_update_issue_status
func (s *Server) updateStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_update_issue_status",
		mcp.WithDescription("Change an issue's status. The reporter is notified."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status"), mcp.Enum("PENDING", "IN_PROGRESS", "RESOLVED")),
	)
	return tool, s.handleUpdateStatus
}

func (s *Server) handleUpdateStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	raw, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	status, err := models.ParseIssueStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issue, err := s.issues.UpdateStatus(ctx, id, status, s.actor)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Issue %s is now %s", issue.ID, issue.Status)), nil
}

// civic_zone_stats
func (s *Server) zoneStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_zone_stats",
		mcp.WithDescription("Issue counts per status. Administrators get every zone, UNASSIGNED included; regional officials get their own zone."),
	)
	return tool, s.handleZoneStats
}

func (s *Server) handleZoneStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.actor.Role == models.RoleAdmin {
		stats, err := s.issues.StatsByZone(ctx, s.actor)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(stats)
	}

	stats, err := s.issues.ZoneStats(ctx, s.actor)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult([]*models.ZoneStats{stats})
}

// civic_list_officials
func (s *Server) listOfficialsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_list_officials",
		mcp.WithDescription("List regional officials with their zone and issue counters."),
	)
	return tool, s.handleListOfficials
}

func (s *Server) handleListOfficials(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	officials, err := s.accounts.ListOfficials(ctx, s.actor)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(officials)
}

// civic_suggest_category
func (s *Server) suggestCategoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_suggest_category",
		mcp.WithDescription("Suggest a category for a new issue from its title and description."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Description("Issue description")),
	)
	return tool, s.handleSuggestCategory
}

func (s *Server) handleSuggestCategory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	return jsonResult(s.suggester.Suggest(ctx, title, request.GetString("description", "")))
}
