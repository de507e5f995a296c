package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gyeh/clinscore/internal/engine"
)

const jsonMIME = "application/json"

type resourceDef struct {
	uri      string
	template mcp.ResourceTemplate
	read     server.ResourceTemplateHandlerFunc
}

// resourceFunc receives the template variables parsed from a URI, in
// template order.
type resourceFunc func(ctx context.Context, vars []string) engine.Result

func (s *Server) resources() []resourceDef {
	return []resourceDef{
		s.resource("patient://{patient_id}/complete-profile",
			"Patient complete profile",
			"Every assessment and the substance history of one patient",
			func(ctx context.Context, v []string) engine.Result {
				return s.svc.PatientProfile(ctx, v[0])
			}),
		s.resource("assessment://{assessment_type}/latest-scores",
			"Latest scores",
			"Each patient's newest scored assessment of one type",
			func(ctx context.Context, v []string) engine.Result {
				return s.svc.LatestScores(ctx, v[0])
			}),
		s.resource("trends://{patient_id}/{timeframe}",
			"Patient trends",
			"Per-assessment trends for a patient over 30d, 90d, 180d, 1y or all",
			func(ctx context.Context, v []string) engine.Result {
				return s.svc.Trends(ctx, v[0], v[1])
			}),
		s.resource("population://{assessment_type}/statistics",
			"Population statistics",
			"Cohort-wide distribution of totals and question columns for one assessment type",
			func(ctx context.Context, v []string) engine.Result {
				return s.svc.PopulationStatistics(ctx, v[0])
			}),
	}
}

func (s *Server) resource(uriTemplate, name, desc string, run resourceFunc) resourceDef {
	return resourceDef{
		uri:      uriTemplate,
		template: mcp.NewResourceTemplate(uriTemplate, name,
			mcp.WithTemplateDescription(desc),
			mcp.WithTemplateMIMEType(jsonMIME),
		),
		read: func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			uri := req.Params.URI
			vars, err := matchURI(uriTemplate, uri)
			if err != nil {
				return nil, err
			}
			log := s.log.With().Str("resource", uriTemplate).Str("uri", uri).Logger()
			start := time.Now()
			r := run(ctx, vars)
			log.Info().
				Str("status", string(r.Status)).
				Dur("duration", time.Since(start)).
				Msg("resource read")

			b, err := json.Marshal(r)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", uri, err)
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: uri, MIMEType: jsonMIME, Text: string(b)},
			}, nil
		},
	}
}

// matchURI extracts the {var} segments of tmpl from uri. Both must share
// the scheme and literal segments; variables are path-unescaped.
func matchURI(tmpl, uri string) ([]string, error) {
	scheme, tpath, _ := strings.Cut(tmpl, "://")
	rest, ok := strings.CutPrefix(uri, scheme+"://")
	if !ok {
		return nil, fmt.Errorf("resource uri %q does not match %s", uri, tmpl)
	}
	tparts := strings.Split(tpath, "/")
	parts := strings.Split(rest, "/")
	if len(parts) != len(tparts) {
		return nil, fmt.Errorf("resource uri %q does not match %s", uri, tmpl)
	}
	var vars []string
	for i, tp := range tparts {
		if strings.HasPrefix(tp, "{") && strings.HasSuffix(tp, "}") {
			v, err := url.PathUnescape(parts[i])
			if err != nil {
				return nil, fmt.Errorf("resource uri %q: %w", uri, err)
			}
			if v == "" {
				return nil, fmt.Errorf("resource uri %q: empty %s", uri, tp)
			}
			vars = append(vars, v)
			continue
		}
		if parts[i] != tp {
			return nil, fmt.Errorf("resource uri %q does not match %s", uri, tmpl)
		}
	}
	return vars, nil
}
