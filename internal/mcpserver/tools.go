package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gyeh/clinscore/internal/engine"
	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/pagination"
)

func patientIDParam() mcp.ToolOption {
	return mcp.WithString("patient_id", mcp.Required(), mcp.Description("Patient group identifier"))
}

func pageParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1"), mcp.DefaultNumber(1), mcp.Min(1)),
		mcp.WithNumber("page_size", mcp.Description("Results per page (1-500)"),
			mcp.DefaultNumber(pagination.DefaultPageSize), mcp.Min(1), mcp.Max(pagination.MaxPageSize)),
	}
}

func (a args) page() (pagination.Params, error) {
	p := pagination.Default()
	var err error
	if p.Page, err = a.integer("page", p.Page); err != nil {
		return p, err
	}
	if p.PageSize, err = a.integer("page_size", p.PageSize); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Server) tools() []toolDef {
	var defs []toolDef

	for _, k := range []model.Kind{model.KindPTSD, model.KindPHQ, model.KindGAD, model.KindWHO, model.KindDERS} {
		info := model.MustKind(k)
		defs = append(defs, toolDef{
			tool: mcp.NewTool(fmt.Sprintf("get_patient_%s_scores", k),
				mcp.WithDescription(fmt.Sprintf("Get %s assessment scores for a patient with calculated totals and severity levels. %s", info.DisplayName, info.ClinicalInfo)),
				patientIDParam(),
				mcp.WithNumber("limit", mcp.Description("Optional limit on number of results")),
			),
			run: func(ctx context.Context, a args) engine.Result {
				limit, err := a.integer("limit", 0)
				if err != nil {
					return invalidArg(err)
				}
				return s.svc.GetScores(ctx, a.str("patient_id"), string(k), limit)
			},
		})
	}

	defs = append(defs,
		toolDef{
			tool: mcp.NewTool("get_all_patient_assessments",
				mcp.WithDescription("Get an overview of all assessments for a patient with calculated totals, filtered by type and date range"),
				patientIDParam(),
				mcp.WithArray("assessment_types",
					mcp.Description("Assessment types to fetch: ptsd, phq, gad, who, ders. Defaults to all"),
					mcp.Items(map[string]any{"type": "string", "enum": []string{"ptsd", "phq", "gad", "who", "ders"}}),
				),
				mcp.WithObject("date_range",
					mcp.Description("Optional date range {start: YYYY-MM-DD, end: YYYY-MM-DD}"),
					mcp.Properties(map[string]any{
						"start": map[string]any{"type": "string"},
						"end":   map[string]any{"type": "string"},
					}),
				),
				mcp.WithNumber("limit", mcp.Description("Optional limit on assessments per type")),
			),
			run: func(ctx context.Context, a args) engine.Result {
				kinds, err := a.strings("assessment_types")
				if err != nil {
					return invalidArg(err)
				}
				df, err := a.dateFilter("date_range")
				if err != nil {
					return invalidArg(err)
				}
				limit, err := a.integer("limit", 0)
				if err != nil {
					return invalidArg(err)
				}
				return s.svc.GetAllAssessments(ctx, a.str("patient_id"), kinds, df, limit)
			},
		},
		toolDef{
			tool: mcp.NewTool("analyze_patient_progress",
				mcp.WithDescription("Analyze patient progress over time with first/latest score change and trend"),
				patientIDParam(),
				mcp.WithString("assessment_type",
					mcp.Description("Assessment to analyze"),
					mcp.Enum("ptsd", "phq", "gad", "who", "all"),
					mcp.DefaultString("all"),
				),
			),
			run: func(ctx context.Context, a args) engine.Result {
				return s.svc.GetProgress(ctx, a.str("patient_id"), a.str("assessment_type"))
			},
		},
		toolDef{
			tool: mcp.NewTool("calculate_composite_risk_score",
				mcp.WithDescription("Calculate a composite risk score across PTSD, depression, anxiety, wellbeing and substance use"),
				patientIDParam(),
			),
			run: func(ctx context.Context, a args) engine.Result {
				return s.svc.GetCompositeRisk(ctx, a.str("patient_id"))
			},
		},
		toolDef{
			tool: mcp.NewTool("compare_patient_to_population",
				mcp.WithDescription("Compare a patient's latest total to the population: mean, median, percentile and z-score"),
				patientIDParam(),
				mcp.WithString("assessment_type", mcp.Required(),
					mcp.Description("Assessment to compare"),
					mcp.Enum("ptsd", "phq", "gad", "who"),
				),
			),
			run: func(ctx context.Context, a args) engine.Result {
				return s.svc.CompareToPopulation(ctx, a.str("patient_id"), a.str("assessment_type"))
			},
		},
		toolDef{
			tool: mcp.NewTool("identify_patients_needing_attention",
				mcp.WithDescription("Identify patients whose latest PTSD, PHQ-9 or GAD-7 totals cross clinical thresholds"),
			),
			run: func(ctx context.Context, _ args) engine.Result {
				return s.svc.FlagCohort(ctx)
			},
		},
		toolDef{
			tool: mcp.NewTool("list_patients_paginated",
				append(pageParams(),
					mcp.WithDescription("List patients with pagination support"),
					mcp.WithString("assessment_filter", mcp.Description("Assessment table to list from (ptsd, phq, gad, who, ders). Defaults to ptsd")),
					mcp.WithBoolean("active_only", mcp.Description("Only include patients assessed in the last year"), mcp.DefaultBool(true)),
				)...,
			),
			run: func(ctx context.Context, a args) engine.Result {
				p, err := a.page()
				if err != nil {
					return invalidArg(err)
				}
				active, err := a.boolean("active_only", true)
				if err != nil {
					return invalidArg(err)
				}
				return s.svc.ListPatients(ctx, p, a.str("assessment_filter"), active)
			},
		},
		toolDef{
			tool: mcp.NewTool("get_assessment_summary_stats_cached",
				mcp.WithDescription("Get cached summary statistics for an assessment type"),
				mcp.WithString("assessment_type", mcp.Required(), mcp.Description("Assessment type (ptsd, phq, gad, who, ders)")),
				mcp.WithBoolean("force_refresh", mcp.Description("Recompute instead of using the cached result"), mcp.DefaultBool(false)),
			),
			run: func(ctx context.Context, a args) engine.Result {
				force, err := a.boolean("force_refresh", false)
				if err != nil {
					return invalidArg(err)
				}
				return s.svc.SummaryStats(ctx, a.str("assessment_type"), force)
			},
		},
		toolDef{
			tool: mcp.NewTool("search_patients_by_score_range",
				append(pageParams(),
					mcp.WithDescription("Search assessments by total score range, highest first"),
					mcp.WithString("assessment_type", mcp.Required(), mcp.Description("Assessment type to search")),
					mcp.WithNumber("min_score", mcp.Description("Minimum total score (inclusive)")),
					mcp.WithNumber("max_score", mcp.Description("Maximum total score (inclusive)")),
				)...,
			),
			run: func(ctx context.Context, a args) engine.Result {
				p, err := a.page()
				if err != nil {
					return invalidArg(err)
				}
				lo, err := a.number("min_score")
				if err != nil {
					return invalidArg(err)
				}
				hi, err := a.number("max_score")
				if err != nil {
					return invalidArg(err)
				}
				return s.svc.SearchByScoreRange(ctx, a.str("assessment_type"), lo, hi, p)
			},
		},
		toolDef{
			tool: mcp.NewTool("get_patient_substance_history",
				mcp.WithDescription("Get the complete substance use history for a patient"),
				patientIDParam(),
			),
			run: func(ctx context.Context, a args) engine.Result {
				return s.svc.SubstanceHistory(ctx, a.str("patient_id"))
			},
		},
		toolDef{
			tool: mcp.NewTool("get_high_risk_substance_users",
				mcp.WithDescription("Identify patients with high-risk substance use patterns"),
			),
			run: func(ctx context.Context, _ args) engine.Result {
				return s.svc.HighRiskSubstanceUsers(ctx)
			},
		},
		toolDef{
			tool: mcp.NewTool("analyze_substance_patterns_across_patients",
				mcp.WithDescription("Analyze substance use patterns across all patients: most common substances, use patterns and risk indicators"),
			),
			run: func(ctx context.Context, _ args) engine.Result {
				return s.svc.SubstancePatterns(ctx)
			},
		},
		toolDef{
			tool: mcp.NewTool("compare_substance_use_by_assessment_scores",
				mcp.WithDescription("Compare latest assessment scores of patients with three or more active substances against those with at most one"),
				mcp.WithString("assessment_type",
					mcp.Description("Assessment to compare"),
					mcp.Enum("ptsd", "phq", "gad", "who"),
					mcp.DefaultString("ptsd"),
				),
			),
			run: func(ctx context.Context, a args) engine.Result {
				kind := a.str("assessment_type")
				if kind == "" {
					kind = "ptsd"
				}
				return s.svc.CompareSubstanceByScores(ctx, kind)
			},
		},
		toolDef{
			tool: mcp.NewTool("get_substance_use_timeline",
				mcp.WithDescription("Get a patient's substance use timeline. Substance records are undated, so this is the current snapshot"),
				patientIDParam(),
			),
			run: func(ctx context.Context, a args) engine.Result {
				return s.svc.SubstanceTimeline(ctx, a.str("patient_id"))
			},
		},
		toolDef{
			tool: mcp.NewTool("get_cache_status",
				mcp.WithDescription("Get current cache status and statistics"),
			),
			run: func(context.Context, args) engine.Result {
				return s.svc.CacheStatus()
			},
		},
		toolDef{
			tool: mcp.NewTool("health_check",
				mcp.WithDescription("Health check of the server and, optionally, the backing store"),
				mcp.WithBoolean("include_dependencies", mcp.Description("Check the backing store and tables"), mcp.DefaultBool(true)),
				mcp.WithBoolean("include_performance_metrics", mcp.Description("Include runtime metrics"), mcp.DefaultBool(false)),
				mcp.WithNumber("timeout_seconds", mcp.Description("Timeout for dependency checks"), mcp.DefaultNumber(30)),
			),
			run: func(ctx context.Context, a args) engine.Result {
				deps, err := a.boolean("include_dependencies", true)
				if err != nil {
					return invalidArg(err)
				}
				perf, err := a.boolean("include_performance_metrics", false)
				if err != nil {
					return invalidArg(err)
				}
				secs, err := a.integer("timeout_seconds", 30)
				if err != nil {
					return invalidArg(err)
				}
				return s.svc.Health(ctx, engine.HealthOptions{
					IncludeDependencies: deps,
					IncludePerformance:  perf,
					Timeout:             time.Duration(secs) * time.Second,
				})
			},
		},
	)
	return defs
}
